package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Settings is a named set of boolean configuration toggles (network
// placement, encryption, access scope).
type Settings map[string]bool

// Enabled reports whether a toggle is present and set.
func (s Settings) Enabled(key string) bool {
	if s == nil {
		return false
	}
	return s[key]
}

func (s Settings) Clone() Settings {
	if s == nil {
		return nil
	}
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Service roles recognized by the policy catalog.
const (
	RoleHosting  = "hosting"
	RoleDatabase = "database"
	RoleStorage  = "storage"
	RoleGateway  = "gateway"
)

// Networking toggle keys.
const (
	NetworkVPCEnabled       = "vpc_enabled"
	NetworkSubnetIsolation  = "subnet_isolation"
	NetworkPrivateEndpoints = "private_endpoints"
)

// Security toggle keys.
const (
	SecurityEncryptionAtRest    = "encryption_at_rest"
	SecurityEncryptionInTransit = "encryption_in_transit"
	SecurityAuditLogging        = "audit_logging"
	SecurityIAMPolicies         = "iam_policies"
)

// ServiceComponent is one selected cloud service in a manifest.
type ServiceComponent struct {
	Name      string `json:"name"`
	ServiceID string `json:"service_id,omitempty"`
	Role      string `json:"role"`
	Region    string `json:"region,omitempty"`
	Plan      string `json:"plan,omitempty"`
}

// ArchitectureManifest is the declarative description of the selected
// services and their configuration. It is produced by the mapper stage and
// is the only entity the governance guardrail may mutate, exclusively via
// named correction actions.
type ArchitectureManifest struct {
	ProjectName string             `json:"project_name"`
	Description string             `json:"description,omitempty"`
	Sensitivity Sensitivity        `json:"sensitivity"`
	Frameworks  []string           `json:"frameworks"`
	Services    []ServiceComponent `json:"services"`
	Networking  Settings           `json:"networking,omitempty"`
	Security    Settings           `json:"security,omitempty"`
}

// Clone returns a deep copy. Correction actions operate on clones so a
// rule's input manifest is never aliased by its output.
func (m ArchitectureManifest) Clone() ArchitectureManifest {
	out := m
	out.Frameworks = append([]string(nil), m.Frameworks...)
	out.Services = append([]ServiceComponent(nil), m.Services...)
	out.Networking = m.Networking.Clone()
	out.Security = m.Security.Clone()
	return out
}

// HasRole reports whether any selected service plays the given role.
func (m ArchitectureManifest) HasRole(role string) bool {
	for _, svc := range m.Services {
		if strings.EqualFold(svc.Role, role) {
			return true
		}
	}
	return false
}

// HasFramework reports whether a compliance framework applies to the run.
func (m ArchitectureManifest) HasFramework(framework string) bool {
	for _, f := range m.Frameworks {
		if strings.EqualFold(f, framework) {
			return true
		}
	}
	return false
}

func (m ArchitectureManifest) Validate() error {
	if strings.TrimSpace(m.ProjectName) == "" {
		return errors.New("project name is required")
	}
	if NormalizeSensitivity(string(m.Sensitivity)) == "" {
		return fmt.Errorf("unknown sensitivity %q", string(m.Sensitivity))
	}
	for i, svc := range m.Services {
		if strings.TrimSpace(svc.Name) == "" {
			return fmt.Errorf("services[%d].name is required", i)
		}
		if strings.TrimSpace(svc.Role) == "" {
			return fmt.Errorf("services[%d].role is required", i)
		}
	}
	return nil
}
