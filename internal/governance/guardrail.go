// Package governance implements the policy guardrail that gates code
// synthesis. It audits an architecture manifest against the policy
// knowledge base, applies bounded auto-correction, and emits a governance
// report.
package governance

import (
	"errors"
	"math"

	"github.com/trustbuild-labs/trustbuild-go/internal/domain"
	"github.com/trustbuild-labs/trustbuild-go/internal/policy"
)

// DefaultMaxPasses bounds the correct/re-evaluate loop. The bound
// guarantees termination even when a correction reintroduces a different
// violation.
const DefaultMaxPasses = 3

type Config struct {
	MaxPasses int
}

func (c Config) Validate() error {
	if c.MaxPasses < 1 {
		return errors.New("max passes must be >= 1")
	}
	return nil
}

// Guardrail evaluates manifests against the shared read-only knowledge
// base. It holds no per-run state and is safe for concurrent use.
type Guardrail struct {
	kb        *policy.KnowledgeBase
	maxPasses int
}

func New(kb *policy.KnowledgeBase, cfg Config) (*Guardrail, error) {
	if kb == nil {
		return nil, errors.New("knowledge base is required")
	}
	if cfg.MaxPasses == 0 {
		cfg.MaxPasses = DefaultMaxPasses
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Guardrail{kb: kb, maxPasses: cfg.MaxPasses}, nil
}

// Review audits the manifest and auto-corrects violations where the
// violated rule carries a correction action. It returns the (possibly
// corrected) manifest and the governance report. The input manifest is
// never mutated.
//
// A failed report means unresolved critical violations remain and the
// returned manifest must not be handed downstream.
func (g *Guardrail) Review(manifest domain.ArchitectureManifest) (domain.ArchitectureManifest, domain.GovernanceReport) {
	rules := g.kb.ForFrameworks(manifest.Frameworks)
	current := manifest.Clone()

	var corrections []domain.Correction
	applied := make(map[string]struct{})
	passes := 0

	for pass := 0; pass < g.maxPasses; pass++ {
		passes = pass + 1
		violated := violatedRules(rules, current)
		if len(violated) == 0 {
			break
		}
		progressed := false
		for _, rule := range violated {
			if rule.Correct == nil {
				continue
			}
			// A correction that did not resolve its own rule on an
			// earlier pass is not retried.
			if _, done := applied[rule.ID]; done {
				continue
			}
			current = rule.Correct(current)
			applied[rule.ID] = struct{}{}
			corrections = append(corrections, domain.Correction{
				RuleID:      rule.ID,
				Description: rule.CorrectionNote,
			})
			progressed = true
		}
		if !progressed {
			break
		}
	}

	// Final evaluation pass: outstanding violations and the compliance
	// score are computed against the manifest as corrected.
	outstanding := toViolations(violatedRules(rules, current))

	report := domain.GovernanceReport{
		ComplianceScore: complianceScore(len(rules), len(outstanding)),
		Violations:      outstanding,
		Corrections:     corrections,
		RulesEvaluated:  len(rules),
		Passes:          passes,
	}

	switch {
	case report.HasCriticalViolation():
		report.Status = domain.ReportStatusFailed
	case len(corrections) > 0:
		report.Status = domain.ReportStatusCorrected
	default:
		report.Status = domain.ReportStatusPassed
	}
	return current, report
}

func violatedRules(rules []policy.Rule, manifest domain.ArchitectureManifest) []policy.Rule {
	var out []policy.Rule
	for _, rule := range rules {
		if !rule.Check(manifest) {
			out = append(out, rule)
		}
	}
	return out
}

func toViolations(rules []policy.Rule) []domain.Violation {
	out := make([]domain.Violation, 0, len(rules))
	for _, rule := range rules {
		out = append(out, domain.Violation{
			RuleID:      rule.ID,
			Severity:    rule.Severity,
			Description: rule.Description,
		})
	}
	return out
}

func complianceScore(total, outstanding int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(100 * float64(total-outstanding) / float64(total)))
}
