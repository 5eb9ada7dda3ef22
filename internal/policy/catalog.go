package policy

import (
	"strings"

	"github.com/trustbuild-labs/trustbuild-go/internal/domain"
)

// EU regions acceptable for GDPR data residency.
var gdprRegions = map[string]struct{}{
	"eu-gb": {},
	"eu-de": {},
	"eu-fr": {},
}

// Builtin returns the built-in policy catalog: HIPAA isolation and
// encryption rules, baseline transport and exposure rules, and GDPR data
// residency. Every rule here carries a correction action except none;
// correction-less rules can be added through the YAML rule source.
func Builtin() []Rule {
	return []Rule{
		{
			ID:          "POL-HIPAA-001",
			Name:        "Database VPC Isolation Required",
			Framework:   FrameworkHIPAA,
			Severity:    domain.SeverityCritical,
			Description: "All PHI and PII data stores must be isolated within a Virtual Private Cloud with private endpoints only. Public access is strictly prohibited.",
			Check: func(m domain.ArchitectureManifest) bool {
				if m.Sensitivity != domain.SensitivityPHI && m.Sensitivity != domain.SensitivityPII {
					return true
				}
				return m.Networking.Enabled(domain.NetworkVPCEnabled)
			},
			Correct:        enableIsolation,
			CorrectionNote: "Enabled VPC isolation and configured private endpoints for all database services.",
		},
		{
			ID:          "POL-HIPAA-002",
			Name:        "Encryption at Rest Required for PHI",
			Framework:   FrameworkHIPAA,
			Severity:    domain.SeverityCritical,
			Description: "All Protected Health Information must be encrypted at rest using AES-256 or equivalent. Database plan must be dedicated tier minimum.",
			Check: func(m domain.ArchitectureManifest) bool {
				if !m.HasRole(domain.RoleDatabase) {
					return true
				}
				return m.Security.Enabled(domain.SecurityEncryptionAtRest)
			},
			Correct: func(m domain.ArchitectureManifest) domain.ArchitectureManifest {
				out := m.Clone()
				out.Security = ensureSettings(out.Security)
				out.Security[domain.SecurityEncryptionAtRest] = true
				if out.Sensitivity == domain.SensitivityPHI {
					for i := range out.Services {
						if strings.EqualFold(out.Services[i].Role, domain.RoleDatabase) {
							out.Services[i].Plan = "dedicated"
						}
					}
				}
				return out
			},
			CorrectionNote: "Enabled encryption at rest and upgraded database to dedicated tier for PHI compliance.",
		},
		{
			ID:          "POL-HIPAA-003",
			Name:        "Audit Logging Required for PHI Access",
			Framework:   FrameworkHIPAA,
			Severity:    domain.SeverityCritical,
			Description: "All access to PHI must be logged for audit trail compliance. Logging must be enabled at the infrastructure level.",
			Check: func(m domain.ArchitectureManifest) bool {
				if m.Sensitivity != domain.SensitivityPHI {
					return true
				}
				return m.Security.Enabled(domain.SecurityAuditLogging)
			},
			Correct: func(m domain.ArchitectureManifest) domain.ArchitectureManifest {
				out := m.Clone()
				out.Security = ensureSettings(out.Security)
				out.Security[domain.SecurityAuditLogging] = true
				return out
			},
			CorrectionNote: "Enabled infrastructure-level audit logging for all PHI access points.",
		},
		{
			ID:          "POL-BASE-001",
			Name:        "Encryption in Transit Required",
			Framework:   FrameworkBaseline,
			Severity:    domain.SeverityCritical,
			Description: "All data in transit between services must be encrypted using TLS 1.2 or higher. This is a baseline requirement for every deployment.",
			Check: func(m domain.ArchitectureManifest) bool {
				return m.Security.Enabled(domain.SecurityEncryptionInTransit)
			},
			Correct: func(m domain.ArchitectureManifest) domain.ArchitectureManifest {
				out := m.Clone()
				out.Security = ensureSettings(out.Security)
				out.Security[domain.SecurityEncryptionInTransit] = true
				return out
			},
			CorrectionNote: "Enabled TLS encryption for all service-to-service communication.",
		},
		{
			ID:          "POL-BASE-002",
			Name:        "Private Endpoints for Sensitive Data",
			Framework:   FrameworkBaseline,
			Severity:    domain.SeverityMedium,
			Description: "Services handling PHI or PCI data should use private endpoints to avoid routing traffic over the public internet.",
			Check: func(m domain.ArchitectureManifest) bool {
				if m.Sensitivity != domain.SensitivityPHI && m.Sensitivity != domain.SensitivityPCI {
					return true
				}
				return m.Networking.Enabled(domain.NetworkPrivateEndpoints)
			},
			Correct: func(m domain.ArchitectureManifest) domain.ArchitectureManifest {
				out := m.Clone()
				out.Networking = ensureSettings(out.Networking)
				out.Networking[domain.NetworkPrivateEndpoints] = true
				return out
			},
			CorrectionNote: "Configured private endpoints for all sensitive data services.",
		},
		{
			ID:          "POL-SEC-001",
			Name:        "No Public API Exposure for Sensitive Data",
			Framework:   FrameworkBaseline,
			Severity:    domain.SeverityCritical,
			Description: "Services processing PHI, PII, or PCI data must not be publicly accessible. VPC and subnet isolation are mandatory.",
			Check: func(m domain.ArchitectureManifest) bool {
				if !m.Sensitivity.Regulated() {
					return true
				}
				return m.Networking.Enabled(domain.NetworkVPCEnabled) &&
					m.Networking.Enabled(domain.NetworkSubnetIsolation)
			},
			Correct:        enableIsolation,
			CorrectionNote: "Enabled VPC isolation and subnet segregation to prevent public API exposure.",
		},
		{
			ID:          "POL-SEC-002",
			Name:        "IAM Policies Required for Regulated Workloads",
			Framework:   FrameworkBaseline,
			Severity:    domain.SeverityHigh,
			Description: "Workloads handling regulated data must have explicit IAM policies defined for role-based access control.",
			Check: func(m domain.ArchitectureManifest) bool {
				if m.Sensitivity != domain.SensitivityPHI && m.Sensitivity != domain.SensitivityPCI {
					return true
				}
				return m.Security.Enabled(domain.SecurityIAMPolicies)
			},
			Correct: func(m domain.ArchitectureManifest) domain.ArchitectureManifest {
				out := m.Clone()
				out.Security = ensureSettings(out.Security)
				out.Security[domain.SecurityIAMPolicies] = true
				return out
			},
			CorrectionNote: "Added IAM role-based access control policies for all regulated data services.",
		},
		{
			ID:          "POL-GDPR-001",
			Name:        "EU Data Residency for GDPR",
			Framework:   FrameworkGDPR,
			Severity:    domain.SeverityCritical,
			Description: "Data subject to GDPR must be stored and processed within EU regions only. Acceptable regions: eu-gb, eu-de, eu-fr.",
			Check: func(m domain.ArchitectureManifest) bool {
				if !m.HasFramework(FrameworkGDPR) {
					return true
				}
				for _, svc := range m.Services {
					if !strings.EqualFold(svc.Role, domain.RoleDatabase) {
						continue
					}
					if _, ok := gdprRegions[strings.ToLower(svc.Region)]; !ok {
						return false
					}
				}
				return true
			},
			Correct: func(m domain.ArchitectureManifest) domain.ArchitectureManifest {
				out := m.Clone()
				for i := range out.Services {
					if strings.EqualFold(out.Services[i].Role, domain.RoleDatabase) {
						out.Services[i].Region = "eu-gb"
					}
				}
				return out
			},
			CorrectionNote: "Migrated all database services to EU region (eu-gb) for GDPR compliance.",
		},
	}
}

func enableIsolation(m domain.ArchitectureManifest) domain.ArchitectureManifest {
	out := m.Clone()
	out.Networking = ensureSettings(out.Networking)
	out.Networking[domain.NetworkVPCEnabled] = true
	out.Networking[domain.NetworkSubnetIsolation] = true
	out.Networking[domain.NetworkPrivateEndpoints] = true
	return out
}

func ensureSettings(s domain.Settings) domain.Settings {
	if s == nil {
		return domain.Settings{}
	}
	return s
}
