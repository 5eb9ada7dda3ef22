package domain

import (
	"errors"
	"fmt"
	"strings"
)

// File categories produced by the synthesizer.
const (
	FileCategoryInfrastructure = "infrastructure"
	FileCategoryApplication    = "application"
	FileCategoryDocumentation  = "documentation"
)

// GeneratedFile is one file in a deployment kit.
type GeneratedFile struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// DeploymentKit is the file set synthesized from a policy-approved
// manifest.
type DeploymentKit struct {
	Files []GeneratedFile `json:"files"`
}

func (k DeploymentKit) Validate() error {
	if len(k.Files) == 0 {
		return errors.New("deployment kit must contain at least one file")
	}
	for i, f := range k.Files {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("files[%d].name is required", i)
		}
		if strings.TrimSpace(f.Category) == "" {
			return fmt.Errorf("files[%d].category is required", i)
		}
	}
	return nil
}
