package policy

import (
	"fmt"
	"strings"
)

// Load builds the process-wide knowledge base: the built-in catalog plus,
// when specPath is non-empty, the YAML-authored extension rules. Called
// once at startup, before any run is accepted.
func Load(specPath string) (*KnowledgeBase, error) {
	groups := [][]Rule{Builtin()}
	if strings.TrimSpace(specPath) != "" {
		spec, err := LoadSpecFile(specPath)
		if err != nil {
			return nil, fmt.Errorf("policy spec %s: %w", specPath, err)
		}
		compiled, err := spec.Compile()
		if err != nil {
			return nil, fmt.Errorf("policy spec %s: %w", specPath, err)
		}
		groups = append(groups, compiled)
	}
	return NewKnowledgeBase(groups...)
}
