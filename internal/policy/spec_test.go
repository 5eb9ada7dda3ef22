package policy

import (
	"testing"

	"github.com/trustbuild-labs/trustbuild-go/internal/domain"
)

const specYAML = `
schema: trustbuild.policy.v1
rules:
  - id: POL-ORG-001
    name: Approved Regions Only
    framework: BASELINE
    severity: high
    description: Databases must run in approved regions.
    when:
      all:
        - field: services.role
          op: eq
          value: database
        - field: services.region
          op: not_in
          values: [us-south, eu-gb]
    correction:
      note: Moved database services to us-south.
      set:
        - field: services.region
          role: database
          value: us-south
  - id: POL-ORG-002
    name: Audit Logging Everywhere
    framework: SOC2
    severity: medium
    description: Audit logging must be enabled for SOC2 workloads.
    when:
      all:
        - field: security.audit_logging
          op: neq
          value: "true"
`

func TestParseSpecAndCompile(t *testing.T) {
	spec, err := ParseSpec([]byte(specYAML))
	if err != nil {
		t.Fatalf("ParseSpec() err=%v", err)
	}
	rules, err := spec.Compile()
	if err != nil {
		t.Fatalf("Compile() err=%v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("len(rules)=%d, want 2", len(rules))
	}
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			t.Fatalf("rule %s: Validate() err=%v", rule.ID, err)
		}
	}

	manifest := domain.ArchitectureManifest{
		ProjectName: "shop",
		Sensitivity: domain.SensitivityNone,
		Services: []domain.ServiceComponent{
			{Name: "Databases for PostgreSQL", Role: domain.RoleDatabase, Region: "au-syd", Plan: "standard"},
		},
	}

	regions := rules[0]
	if regions.Check(manifest) {
		t.Fatalf("Check()=true for unapproved region")
	}
	corrected := regions.Correct(manifest)
	if corrected.Services[0].Region != "us-south" {
		t.Fatalf("region=%q after correction, want us-south", corrected.Services[0].Region)
	}
	if !regions.Check(corrected) {
		t.Fatalf("Check()=false after correction")
	}
	if manifest.Services[0].Region != "au-syd" {
		t.Fatalf("correction mutated input")
	}

	// Second rule has no correction action.
	audit := rules[1]
	if audit.Correct != nil {
		t.Fatalf("unexpected correction action")
	}
	if audit.Check(manifest) {
		t.Fatalf("Check()=true with audit logging absent")
	}
	manifest.Security = domain.Settings{domain.SecurityAuditLogging: true}
	if !audit.Check(manifest) {
		t.Fatalf("Check()=false with audit logging enabled")
	}
}

func TestParseSpecRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"wrong schema", "schema: other.v1\nrules:\n  - id: R1\n"},
		{"no rules", "schema: trustbuild.policy.v1\nrules: []\n"},
		{
			"unknown field",
			`schema: trustbuild.policy.v1
rules:
  - id: R1
    framework: BASELINE
    severity: high
    description: d
    when:
      all:
        - field: storage.kind
          op: eq
          value: block
`,
		},
		{
			"bad severity",
			`schema: trustbuild.policy.v1
rules:
  - id: R1
    framework: BASELINE
    severity: warning
    description: d
    when:
      all:
        - field: sensitivity
          op: eq
          value: PHI
`,
		},
		{
			"non-boolean set value",
			`schema: trustbuild.policy.v1
rules:
  - id: R1
    framework: BASELINE
    severity: high
    description: d
    when:
      all:
        - field: sensitivity
          op: eq
          value: PHI
    correction:
      note: n
      set:
        - field: security.audit_logging
          value: yes please
`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseSpec([]byte(tc.yaml)); err == nil {
				t.Fatalf("expected parse error")
			}
		})
	}
}

func TestConditionOps(t *testing.T) {
	manifest := domain.ArchitectureManifest{
		ProjectName: "portal",
		Sensitivity: domain.SensitivityPHI,
		Frameworks:  []string{FrameworkHIPAA, FrameworkGDPR},
		Networking:  domain.Settings{domain.NetworkVPCEnabled: false},
	}
	cases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"eq sensitivity", Condition{Field: "sensitivity", Op: "eq", Value: "phi"}, true},
		{"neq sensitivity", Condition{Field: "sensitivity", Op: "neq", Value: "PCI"}, true},
		{"in frameworks", Condition{Field: "frameworks", Op: "in", Values: []string{"GDPR"}}, true},
		{"not_in frameworks", Condition{Field: "frameworks", Op: "not_in", Values: []string{"PCI_DSS"}}, true},
		{"exists toggle", Condition{Field: "networking.vpc_enabled", Op: "exists"}, true},
		{"not_exists toggle", Condition{Field: "networking.subnet_isolation", Op: "not_exists"}, true},
		{"eq false toggle", Condition{Field: "networking.vpc_enabled", Op: "eq", Value: "false"}, true},
		{"contains project", Condition{Field: "project", Op: "contains", Value: "port"}, true},
		{"eq miss", Condition{Field: "sensitivity", Op: "eq", Value: "PII"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := conditionMatches(tc.cond, manifest); got != tc.want {
				t.Fatalf("conditionMatches()=%v, want %v", got, tc.want)
			}
		})
	}
}
