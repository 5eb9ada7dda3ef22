package policy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/trustbuild-labs/trustbuild-go/internal/domain"
)

// Compliance frameworks recognized by the knowledge base. Baseline rules
// apply to every run regardless of the detected frameworks.
const (
	FrameworkBaseline = "BASELINE"
	FrameworkHIPAA    = "HIPAA"
	FrameworkGDPR     = "GDPR"
	FrameworkSOC2     = "SOC2"
	FrameworkPCIDSS   = "PCI_DSS"
)

// CheckFunc reports whether a manifest satisfies a rule. It must be a pure
// function of the manifest.
type CheckFunc func(domain.ArchitectureManifest) bool

// CorrectFunc is a named correction action: a pure transformation from a
// non-compliant manifest to a corrected one. It must not mutate its input.
type CorrectFunc func(domain.ArchitectureManifest) domain.ArchitectureManifest

// Rule is one compliance rule. Rules are immutable after the knowledge
// base is loaded.
type Rule struct {
	ID             string
	Name           string
	Framework      string
	Severity       domain.Severity
	Description    string
	Check          CheckFunc
	Correct        CorrectFunc
	CorrectionNote string
}

func (r Rule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("rule id is required")
	}
	if strings.TrimSpace(r.Framework) == "" {
		return fmt.Errorf("rule %s: framework is required", r.ID)
	}
	switch r.Severity {
	case domain.SeverityCritical, domain.SeverityHigh, domain.SeverityMedium:
	default:
		return fmt.Errorf("rule %s: unsupported severity %q", r.ID, r.Severity)
	}
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("rule %s: description is required", r.ID)
	}
	if r.Check == nil {
		return fmt.Errorf("rule %s: check is required", r.ID)
	}
	if r.Correct != nil && strings.TrimSpace(r.CorrectionNote) == "" {
		return fmt.Errorf("rule %s: correction note is required", r.ID)
	}
	return nil
}

// KnowledgeBase is the immutable, process-wide policy rule set. It is
// loaded once at startup and shared read-only across concurrent runs.
type KnowledgeBase struct {
	rules []Rule
}

// NewKnowledgeBase validates the given rule groups, rejects duplicate IDs,
// and orders the combined set by rule ID so evaluation is reproducible.
func NewKnowledgeBase(groups ...[]Rule) (*KnowledgeBase, error) {
	var combined []Rule
	seen := make(map[string]struct{})
	for _, group := range groups {
		for _, rule := range group {
			if err := rule.Validate(); err != nil {
				return nil, err
			}
			id := strings.TrimSpace(rule.ID)
			if _, ok := seen[id]; ok {
				return nil, fmt.Errorf("duplicate rule id %q", id)
			}
			seen[id] = struct{}{}
			combined = append(combined, rule)
		}
	}
	if len(combined) == 0 {
		return nil, errors.New("knowledge base must contain at least one rule")
	}
	sort.Slice(combined, func(i, j int) bool {
		return combined[i].ID < combined[j].ID
	})
	return &KnowledgeBase{rules: combined}, nil
}

// Len returns the total number of loaded rules.
func (kb *KnowledgeBase) Len() int {
	return len(kb.rules)
}

// Rules returns the full ordered rule set.
func (kb *KnowledgeBase) Rules() []Rule {
	return append([]Rule(nil), kb.rules...)
}

// ForFrameworks returns the ordered rules applicable to the given
// frameworks. Baseline rules are always included.
func (kb *KnowledgeBase) ForFrameworks(frameworks []string) []Rule {
	applicable := map[string]struct{}{FrameworkBaseline: {}}
	for _, f := range frameworks {
		f = strings.ToUpper(strings.TrimSpace(f))
		if f != "" {
			applicable[f] = struct{}{}
		}
	}
	out := make([]Rule, 0, len(kb.rules))
	for _, rule := range kb.rules {
		if _, ok := applicable[strings.ToUpper(rule.Framework)]; ok {
			out = append(out, rule)
		}
	}
	return out
}
