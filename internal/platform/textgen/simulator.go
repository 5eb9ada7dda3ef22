package textgen

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Simulator is a deterministic generator used when no watsonx credentials
// are configured, and by the test suite. Given the same request it always
// produces the same output.
type Simulator struct{}

func NewSimulator() *Simulator {
	return &Simulator{}
}

func (s *Simulator) Generate(_ context.Context, req Request) (json.RawMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	switch title := SchemaTitle(req.Schema); title {
	case "requirements":
		return marshal(simulateRequirements(req.Prompt))
	case "architecture_manifest":
		return s.simulateManifest(req.Prompt)
	case "deployment_kit":
		return s.simulateKit(req.Prompt)
	default:
		return nil, fmt.Errorf("%w: unknown schema title %q", ErrMalformedOutput, title)
	}
}

func simulateRequirements(prompt string) map[string]any {
	lower := strings.ToLower(prompt)
	contains := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}

	sensitivity := "none"
	frameworks := []string{}
	switch {
	case contains("health", "patient", "medical", "clinic", "hospital", "phi"):
		sensitivity = "PHI"
		frameworks = append(frameworks, "HIPAA")
	case contains("payment", "card", "checkout", "billing"):
		sensitivity = "PCI"
		frameworks = append(frameworks, "PCI_DSS")
	case contains("user", "account", "profile", "email", "customer"):
		sensitivity = "PII"
		frameworks = append(frameworks, "SOC2")
	}
	if contains("gdpr", "europe", "european") {
		frameworks = append(frameworks, "GDPR")
	}

	stack := []string{"api"}
	if contains("database", "data", "store", "record", "inventory") {
		stack = append(stack, "database")
	}
	if contains("file", "image", "upload", "document") {
		stack = append(stack, "storage")
	}
	if contains("dashboard", "portal", "website", "frontend") {
		stack = append(stack, "frontend")
	}

	scale := "small"
	if contains("enterprise", "thousands", "millions", "scale") {
		scale = "large"
	}

	return map[string]any{
		"sensitivity": sensitivity,
		"frameworks":  frameworks,
		"stack_needs": stack,
		"scale_hint":  scale,
		"summary":     fmt.Sprintf("Detected %s sensitivity; stack needs: %s.", sensitivity, strings.Join(stack, ", ")),
	}
}

// simulateManifest reads the requirements JSON embedded in the mapper
// prompt and selects services by stack need. Network and security settings
// are deliberately left empty: hardening is the guardrail's job.
func (s *Simulator) simulateManifest(prompt string) (json.RawMessage, error) {
	embedded, err := ExtractJSON(prompt)
	if err != nil {
		return nil, err
	}
	var reqs struct {
		StackNeeds []string `json:"stack_needs"`
	}
	if err := json.Unmarshal(embedded, &reqs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	services := []map[string]any{
		{"name": "Code Engine", "service_id": "code-engine", "role": "hosting", "region": "us-south", "plan": "standard"},
	}
	for _, need := range reqs.StackNeeds {
		switch strings.ToLower(need) {
		case "database":
			services = append(services, map[string]any{
				"name": "Databases for PostgreSQL", "service_id": "databases-for-postgresql",
				"role": "database", "region": "us-south", "plan": "standard",
			})
		case "storage":
			services = append(services, map[string]any{
				"name": "Cloud Object Storage", "service_id": "cloud-object-storage",
				"role": "storage", "region": "us-south", "plan": "standard",
			})
		case "frontend":
			services = append(services, map[string]any{
				"name": "Internet Services", "service_id": "internet-svcs",
				"role": "gateway", "region": "us-south", "plan": "standard",
			})
		}
	}

	return marshal(map[string]any{
		"project_name": "trustbuild-app",
		"description":  "Generated architecture for the requested build.",
		"services":     services,
		"networking":   map[string]bool{},
		"security":     map[string]bool{},
	})
}

func (s *Simulator) simulateKit(prompt string) (json.RawMessage, error) {
	embedded, err := ExtractJSON(prompt)
	if err != nil {
		return nil, err
	}
	var manifest struct {
		ProjectName string `json:"project_name"`
		Services    []struct {
			Name      string `json:"name"`
			ServiceID string `json:"service_id"`
			Role      string `json:"role"`
			Region    string `json:"region"`
			Plan      string `json:"plan"`
		} `json:"services"`
		Networking map[string]bool `json:"networking"`
		Security   map[string]bool `json:"security"`
	}
	if err := json.Unmarshal(embedded, &manifest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	project := manifest.ProjectName
	if project == "" {
		project = "trustbuild-app"
	}

	var tf strings.Builder
	fmt.Fprintf(&tf, "# %s — generated infrastructure\n\n", project)
	for _, svc := range manifest.Services {
		resource := strings.ReplaceAll(svc.ServiceID, "-", "_")
		fmt.Fprintf(&tf, "resource \"ibm_resource_instance\" %q {\n", resource)
		fmt.Fprintf(&tf, "  name     = \"%s-%s\"\n", project, svc.ServiceID)
		fmt.Fprintf(&tf, "  service  = %q\n", svc.ServiceID)
		fmt.Fprintf(&tf, "  plan     = %q\n", svc.Plan)
		fmt.Fprintf(&tf, "  location = %q\n", svc.Region)
		tf.WriteString("}\n\n")
	}

	var vars strings.Builder
	vars.WriteString("variable \"region\" {\n  type    = string\n  default = \"us-south\"\n}\n\n")
	vars.WriteString("variable \"resource_group\" {\n  type    = string\n  default = \"default\"\n}\n")

	var doc strings.Builder
	fmt.Fprintf(&doc, "# %s\n\nDeployment kit generated from a policy-approved architecture manifest.\n\n", project)
	doc.WriteString("## Security posture\n\n")
	for _, key := range sortedKeys(manifest.Networking) {
		fmt.Fprintf(&doc, "- networking.%s: %v\n", key, manifest.Networking[key])
	}
	for _, key := range sortedKeys(manifest.Security) {
		fmt.Fprintf(&doc, "- security.%s: %v\n", key, manifest.Security[key])
	}

	dockerfile := "FROM node:20-alpine\nWORKDIR /app\nCOPY . .\nRUN npm ci --omit=dev\nEXPOSE 8080\nCMD [\"npm\", \"start\"]\n"

	return marshal(map[string]any{
		"files": []map[string]any{
			{"name": "main.tf", "content": tf.String(), "category": "infrastructure"},
			{"name": "variables.tf", "content": vars.String(), "category": "infrastructure"},
			{"name": "Dockerfile", "content": dockerfile, "category": "application"},
			{"name": "README.md", "content": doc.String(), "category": "documentation"},
		},
	})
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func marshal(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
