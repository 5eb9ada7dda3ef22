// Package stages implements the three generative pipeline collaborators:
// requirements extraction, architecture mapping, and code synthesis. Each
// is a stateless transformation over the shared text-generation
// capability; any external-call error or malformed output surfaces as a
// stage failure, never as a partially populated success.
package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/trustbuild-labs/trustbuild-go/internal/domain"
	"github.com/trustbuild-labs/trustbuild-go/internal/platform/textgen"
)

type Extractor struct {
	gen textgen.Generator
}

func NewExtractor(gen textgen.Generator) *Extractor {
	return &Extractor{gen: gen}
}

type requirementsWire struct {
	Sensitivity string   `json:"sensitivity"`
	Frameworks  []string `json:"frameworks"`
	StackNeeds  []string `json:"stack_needs"`
	ScaleHint   string   `json:"scale_hint"`
	Summary     string   `json:"summary"`
}

// Extract interprets the user prompt into structured requirements.
func (e *Extractor) Extract(ctx context.Context, prompt string) (domain.Requirements, error) {
	raw, err := e.gen.Generate(ctx, textgen.Request{
		Prompt: "You are a cloud solutions analyst. Classify the data sensitivity, applicable " +
			"compliance frameworks, required stack components, and expected scale of the " +
			"following build request.\n\nInput:\n" + prompt,
		Schema:    requirementsSchema,
		MaxTokens: 512,
	})
	if err != nil {
		return domain.Requirements{}, fmt.Errorf("requirements extraction: %w", err)
	}

	var wire requirementsWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return domain.Requirements{}, fmt.Errorf("requirements extraction: %w: %v", textgen.ErrMalformedOutput, err)
	}
	sensitivity := domain.NormalizeSensitivity(wire.Sensitivity)
	if sensitivity == "" {
		return domain.Requirements{}, fmt.Errorf("requirements extraction: %w: unknown sensitivity %q", textgen.ErrMalformedOutput, wire.Sensitivity)
	}

	reqs := domain.Requirements{
		Sensitivity: sensitivity,
		Frameworks:  normalizeList(wire.Frameworks, strings.ToUpper),
		StackNeeds:  normalizeList(wire.StackNeeds, strings.ToLower),
		ScaleHint:   strings.TrimSpace(wire.ScaleHint),
		Summary:     strings.TrimSpace(wire.Summary),
	}
	if err := reqs.Validate(); err != nil {
		return domain.Requirements{}, fmt.Errorf("requirements extraction: %w", err)
	}
	return reqs, nil
}

func normalizeList(values []string, fold func(string) string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = fold(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
