package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/trustbuild-labs/trustbuild-go/internal/domain"
	"github.com/trustbuild-labs/trustbuild-go/internal/platform/textgen"
)

type Mapper struct {
	gen textgen.Generator
}

func NewMapper(gen textgen.Generator) *Mapper {
	return &Mapper{gen: gen}
}

type serviceWire struct {
	Name      string `json:"name"`
	ServiceID string `json:"service_id"`
	Role      string `json:"role"`
	Region    string `json:"region"`
	Plan      string `json:"plan"`
}

type manifestWire struct {
	ProjectName string          `json:"project_name"`
	Description string          `json:"description"`
	Services    []serviceWire   `json:"services"`
	Networking  map[string]bool `json:"networking"`
	Security    map[string]bool `json:"security"`
}

// Map turns structured requirements into an architecture manifest. The
// sensitivity classification and framework set are carried over from the
// requirements rather than trusted from the model output.
func (m *Mapper) Map(ctx context.Context, reqs domain.Requirements) (domain.ArchitectureManifest, error) {
	input, err := json.Marshal(map[string]any{
		"sensitivity": reqs.Sensitivity,
		"frameworks":  reqs.Frameworks,
		"stack_needs": reqs.StackNeeds,
		"scale_hint":  reqs.ScaleHint,
	})
	if err != nil {
		return domain.ArchitectureManifest{}, fmt.Errorf("architecture mapping: %w", err)
	}

	raw, err := m.gen.Generate(ctx, textgen.Request{
		Prompt: "You are a cloud architect. Select the cloud services and configuration " +
			"that satisfy these requirements.\n\nInput:\n" + string(input),
		Schema:    manifestSchema,
		MaxTokens: 1024,
	})
	if err != nil {
		return domain.ArchitectureManifest{}, fmt.Errorf("architecture mapping: %w", err)
	}

	var wire manifestWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return domain.ArchitectureManifest{}, fmt.Errorf("architecture mapping: %w: %v", textgen.ErrMalformedOutput, err)
	}

	manifest := domain.ArchitectureManifest{
		ProjectName: strings.TrimSpace(wire.ProjectName),
		Description: strings.TrimSpace(wire.Description),
		Sensitivity: reqs.Sensitivity,
		Frameworks:  append([]string(nil), reqs.Frameworks...),
		Networking:  domain.Settings(wire.Networking),
		Security:    domain.Settings(wire.Security),
	}
	if manifest.ProjectName == "" {
		manifest.ProjectName = "trustbuild-app"
	}
	for _, svc := range wire.Services {
		manifest.Services = append(manifest.Services, domain.ServiceComponent{
			Name:      strings.TrimSpace(svc.Name),
			ServiceID: strings.TrimSpace(svc.ServiceID),
			Role:      strings.ToLower(strings.TrimSpace(svc.Role)),
			Region:    strings.TrimSpace(svc.Region),
			Plan:      strings.TrimSpace(svc.Plan),
		})
	}
	if err := manifest.Validate(); err != nil {
		return domain.ArchitectureManifest{}, fmt.Errorf("architecture mapping: %w: %v", textgen.ErrMalformedOutput, err)
	}
	return manifest, nil
}
