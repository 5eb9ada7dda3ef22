package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/trustbuild-labs/trustbuild-go/internal/domain"
	"github.com/trustbuild-labs/trustbuild-go/internal/platform/textgen"
)

type Synthesizer struct {
	gen textgen.Generator
}

func NewSynthesizer(gen textgen.Generator) *Synthesizer {
	return &Synthesizer{gen: gen}
}

type kitWire struct {
	Files []struct {
		Name     string `json:"name"`
		Content  string `json:"content"`
		Category string `json:"category"`
	} `json:"files"`
}

// Synthesize generates the deployment kit from a policy-approved,
// post-correction manifest.
func (s *Synthesizer) Synthesize(ctx context.Context, manifest domain.ArchitectureManifest) (domain.DeploymentKit, error) {
	input, err := json.Marshal(map[string]any{
		"project_name": manifest.ProjectName,
		"description":  manifest.Description,
		"services":     serviceWires(manifest.Services),
		"networking":   map[string]bool(manifest.Networking),
		"security":     map[string]bool(manifest.Security),
	})
	if err != nil {
		return domain.DeploymentKit{}, fmt.Errorf("code synthesis: %w", err)
	}

	raw, err := s.gen.Generate(ctx, textgen.Request{
		Prompt: "You are an infrastructure engineer. Generate the deployment kit " +
			"(infrastructure code, application scaffold, documentation) for this approved " +
			"architecture.\n\nInput:\n" + string(input),
		Schema:    kitSchema,
		MaxTokens: 4096,
	})
	if err != nil {
		return domain.DeploymentKit{}, fmt.Errorf("code synthesis: %w", err)
	}

	var wire kitWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return domain.DeploymentKit{}, fmt.Errorf("code synthesis: %w: %v", textgen.ErrMalformedOutput, err)
	}

	var kit domain.DeploymentKit
	for _, f := range wire.Files {
		kit.Files = append(kit.Files, domain.GeneratedFile{
			Name:     strings.TrimSpace(f.Name),
			Content:  f.Content,
			Category: strings.ToLower(strings.TrimSpace(f.Category)),
		})
	}
	if err := kit.Validate(); err != nil {
		return domain.DeploymentKit{}, fmt.Errorf("code synthesis: %w: %v", textgen.ErrMalformedOutput, err)
	}
	return kit, nil
}

func serviceWires(services []domain.ServiceComponent) []serviceWire {
	out := make([]serviceWire, 0, len(services))
	for _, svc := range services {
		out = append(out, serviceWire{
			Name:      svc.Name,
			ServiceID: svc.ServiceID,
			Role:      svc.Role,
			Region:    svc.Region,
			Plan:      svc.Plan,
		})
	}
	return out
}
