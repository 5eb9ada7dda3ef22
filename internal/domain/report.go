package domain

// Severity ranks how serious a policy violation is. Critical violations
// that remain unresolved block code synthesis.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// ReportStatus is the governance guardrail's verdict for a manifest.
type ReportStatus string

const (
	ReportStatusPassed    ReportStatus = "passed"
	ReportStatusCorrected ReportStatus = "corrected"
	ReportStatusFailed    ReportStatus = "failed"
)

// Violation is one policy rule the final manifest does not satisfy.
type Violation struct {
	RuleID      string   `json:"rule_id"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Correction is one named correction action applied during the review.
type Correction struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
}

// GovernanceReport is produced once per run by the guardrail and immutable
// thereafter. Violations holds the rules still unsatisfied after the final
// evaluation pass; Corrections holds every action applied, in rule order.
type GovernanceReport struct {
	Status          ReportStatus `json:"status"`
	ComplianceScore int          `json:"compliance_score"`
	Violations      []Violation  `json:"violations"`
	Corrections     []Correction `json:"corrections"`
	RulesEvaluated  int          `json:"rules_evaluated"`
	Passes          int          `json:"passes"`
}

// HasCriticalViolation reports whether any outstanding violation is
// critical.
func (r GovernanceReport) HasCriticalViolation() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
