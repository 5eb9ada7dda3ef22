package domain

import (
	"fmt"
	"strings"
)

// Sensitivity classifies the most restrictive data class a build request
// touches.
type Sensitivity string

const (
	SensitivityNone Sensitivity = "none"
	SensitivityPII  Sensitivity = "PII"
	SensitivityPHI  Sensitivity = "PHI"
	SensitivityPCI  Sensitivity = "PCI"
)

// NormalizeSensitivity maps free-form classifications to canonical values.
func NormalizeSensitivity(value string) Sensitivity {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "PII":
		return SensitivityPII
	case "PHI":
		return SensitivityPHI
	case "PCI":
		return SensitivityPCI
	case "", "NONE", "PUBLIC":
		return SensitivityNone
	default:
		return ""
	}
}

// Regulated reports whether the classification triggers isolation and
// access-scope policies.
func (s Sensitivity) Regulated() bool {
	switch s {
	case SensitivityPII, SensitivityPHI, SensitivityPCI:
		return true
	default:
		return false
	}
}

// Requirements is the structured interpretation of the user prompt,
// produced once by the extractor stage and read-only afterward.
type Requirements struct {
	Sensitivity Sensitivity `json:"sensitivity"`
	Frameworks  []string    `json:"frameworks"`
	StackNeeds  []string    `json:"stack_needs"`
	ScaleHint   string      `json:"scale_hint,omitempty"`
	Summary     string      `json:"summary,omitempty"`
}

func (r Requirements) Validate() error {
	if NormalizeSensitivity(string(r.Sensitivity)) == "" {
		return fmt.Errorf("unknown sensitivity %q", string(r.Sensitivity))
	}
	return nil
}
