package policy

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/trustbuild-labs/trustbuild-go/internal/domain"
)

// SpecSchemaV1 identifies the YAML rule-authoring format. Organizations
// extend the built-in catalog by shipping a spec file next to the service.
const SpecSchemaV1 = "trustbuild.policy.v1"

// Spec is a set of declaratively authored policy rules. A rule is violated
// when its `when` condition group matches the manifest; the optional
// correction applies the listed `set` actions.
type Spec struct {
	Schema string     `yaml:"schema"`
	Rules  []RuleSpec `yaml:"rules"`
}

type RuleSpec struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name,omitempty"`
	Framework   string          `yaml:"framework"`
	Severity    string          `yaml:"severity"`
	Description string          `yaml:"description"`
	When        ConditionGroup  `yaml:"when"`
	Correction  *CorrectionSpec `yaml:"correction,omitempty"`
}

type ConditionGroup struct {
	All []Condition `yaml:"all,omitempty"`
	Any []Condition `yaml:"any,omitempty"`
}

type Condition struct {
	Field  string   `yaml:"field"`
	Op     string   `yaml:"op"`
	Value  string   `yaml:"value,omitempty"`
	Values []string `yaml:"values,omitempty"`
}

type CorrectionSpec struct {
	Note string      `yaml:"note"`
	Set  []SetAction `yaml:"set"`
}

// SetAction assigns a manifest field. Role narrows service-level fields to
// services playing that role; empty role means all services.
type SetAction struct {
	Field string `yaml:"field"`
	Role  string `yaml:"role,omitempty"`
	Value string `yaml:"value"`
}

// ParseSpec decodes and validates a YAML rule spec.
func ParseSpec(input []byte) (Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(input, &spec); err != nil {
		return Spec{}, fmt.Errorf("decode spec: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// LoadSpecFile reads and parses a rule spec from disk.
func LoadSpecFile(path string) (Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("read spec: %w", err)
	}
	return ParseSpec(raw)
}

func (s Spec) Validate() error {
	if strings.TrimSpace(s.Schema) != SpecSchemaV1 {
		return fmt.Errorf("spec.schema must be %q", SpecSchemaV1)
	}
	if len(s.Rules) == 0 {
		return errors.New("spec.rules must be non-empty")
	}
	seen := make(map[string]struct{}, len(s.Rules))
	for i, rule := range s.Rules {
		id := strings.TrimSpace(rule.ID)
		if id == "" {
			return fmt.Errorf("spec.rules[%d].id is required", i)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("spec.rules[%d].id must be unique (duplicate %q)", i, id)
		}
		seen[id] = struct{}{}

		if strings.TrimSpace(rule.Framework) == "" {
			return fmt.Errorf("spec.rules[%d].framework is required", i)
		}
		switch domain.Severity(strings.ToLower(strings.TrimSpace(rule.Severity))) {
		case domain.SeverityCritical, domain.SeverityHigh, domain.SeverityMedium:
		default:
			return fmt.Errorf("spec.rules[%d].severity unsupported: %q", i, rule.Severity)
		}
		if strings.TrimSpace(rule.Description) == "" {
			return fmt.Errorf("spec.rules[%d].description is required", i)
		}
		if len(rule.When.All) == 0 && len(rule.When.Any) == 0 {
			return fmt.Errorf("spec.rules[%d].when must include all or any", i)
		}
		if err := validateConditions(rule.When.All, fmt.Sprintf("spec.rules[%d].when.all", i)); err != nil {
			return err
		}
		if err := validateConditions(rule.When.Any, fmt.Sprintf("spec.rules[%d].when.any", i)); err != nil {
			return err
		}
		if rule.Correction != nil {
			if strings.TrimSpace(rule.Correction.Note) == "" {
				return fmt.Errorf("spec.rules[%d].correction.note is required", i)
			}
			if len(rule.Correction.Set) == 0 {
				return fmt.Errorf("spec.rules[%d].correction.set must be non-empty", i)
			}
			for j, action := range rule.Correction.Set {
				if err := validateSetAction(action); err != nil {
					return fmt.Errorf("spec.rules[%d].correction.set[%d]: %w", i, j, err)
				}
			}
		}
	}
	return nil
}

func validateConditions(conds []Condition, prefix string) error {
	for i, cond := range conds {
		if strings.TrimSpace(cond.Field) == "" {
			return fmt.Errorf("%s[%d].field is required", prefix, i)
		}
		if _, err := resolveField(domain.ArchitectureManifest{}, cond.Field); err != nil {
			return fmt.Errorf("%s[%d]: %w", prefix, i, err)
		}
		op := strings.ToLower(strings.TrimSpace(cond.Op))
		switch op {
		case "eq", "neq", "contains":
			if strings.TrimSpace(cond.Value) == "" {
				return fmt.Errorf("%s[%d].value is required for %s", prefix, i, op)
			}
		case "in", "not_in":
			if len(cond.Values) == 0 {
				return fmt.Errorf("%s[%d].values must be non-empty for %s", prefix, i, op)
			}
		case "exists", "not_exists":
		case "":
			return fmt.Errorf("%s[%d].op is required", prefix, i)
		default:
			return fmt.Errorf("%s[%d].op unsupported: %q", prefix, i, cond.Op)
		}
	}
	return nil
}

func validateSetAction(action SetAction) error {
	field := strings.ToLower(strings.TrimSpace(action.Field))
	switch {
	case strings.HasPrefix(field, "networking."), strings.HasPrefix(field, "security."):
		if _, err := strconv.ParseBool(action.Value); err != nil {
			return fmt.Errorf("value must be a boolean for %q", action.Field)
		}
	case field == "services.region", field == "services.plan":
		if strings.TrimSpace(action.Value) == "" {
			return fmt.Errorf("value is required for %q", action.Field)
		}
	default:
		return fmt.Errorf("field not settable: %q", action.Field)
	}
	return nil
}

// Compile turns the declarative spec into executable rules compatible with
// the built-in catalog.
func (s Spec) Compile() ([]Rule, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	rules := make([]Rule, 0, len(s.Rules))
	for _, rs := range s.Rules {
		rs := rs
		rule := Rule{
			ID:          strings.TrimSpace(rs.ID),
			Name:        strings.TrimSpace(rs.Name),
			Framework:   strings.ToUpper(strings.TrimSpace(rs.Framework)),
			Severity:    domain.Severity(strings.ToLower(strings.TrimSpace(rs.Severity))),
			Description: strings.TrimSpace(rs.Description),
			Check: func(m domain.ArchitectureManifest) bool {
				return !groupMatches(rs.When, m)
			},
		}
		if rs.Correction != nil {
			actions := append([]SetAction(nil), rs.Correction.Set...)
			rule.CorrectionNote = strings.TrimSpace(rs.Correction.Note)
			rule.Correct = func(m domain.ArchitectureManifest) domain.ArchitectureManifest {
				return applySetActions(m, actions)
			}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func groupMatches(group ConditionGroup, m domain.ArchitectureManifest) bool {
	for _, cond := range group.All {
		if !conditionMatches(cond, m) {
			return false
		}
	}
	if len(group.Any) > 0 {
		found := false
		for _, cond := range group.Any {
			if conditionMatches(cond, m) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func conditionMatches(cond Condition, m domain.ArchitectureManifest) bool {
	values, err := resolveField(m, cond.Field)
	if err != nil {
		return false
	}
	op := strings.ToLower(strings.TrimSpace(cond.Op))
	switch op {
	case "exists":
		return len(values) > 0
	case "not_exists":
		return len(values) == 0
	case "eq":
		return containsFold(values, cond.Value)
	case "neq":
		return !containsFold(values, cond.Value)
	case "in":
		for _, want := range cond.Values {
			if containsFold(values, want) {
				return true
			}
		}
		return false
	case "not_in":
		for _, want := range cond.Values {
			if containsFold(values, want) {
				return false
			}
		}
		return true
	case "contains":
		needle := strings.ToLower(strings.TrimSpace(cond.Value))
		for _, v := range values {
			if strings.Contains(strings.ToLower(v), needle) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// resolveField flattens a manifest field to its string values. Boolean
// toggles resolve to "true"/"false"; absent toggles resolve to no values.
func resolveField(m domain.ArchitectureManifest, name string) ([]string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "sensitivity":
		return []string{string(m.Sensitivity)}, nil
	case "project", "project_name":
		return nonEmpty(m.ProjectName), nil
	case "frameworks":
		return append([]string(nil), m.Frameworks...), nil
	case "services.role":
		return serviceField(m, func(s domain.ServiceComponent) string { return s.Role }), nil
	case "services.region":
		return serviceField(m, func(s domain.ServiceComponent) string { return s.Region }), nil
	case "services.plan":
		return serviceField(m, func(s domain.ServiceComponent) string { return s.Plan }), nil
	}
	if toggle, ok := strings.CutPrefix(key, "networking."); ok {
		return toggleValue(m.Networking, toggle), nil
	}
	if toggle, ok := strings.CutPrefix(key, "security."); ok {
		return toggleValue(m.Security, toggle), nil
	}
	return nil, fmt.Errorf("unknown field %q", name)
}

func applySetActions(m domain.ArchitectureManifest, actions []SetAction) domain.ArchitectureManifest {
	out := m.Clone()
	for _, action := range actions {
		field := strings.ToLower(strings.TrimSpace(action.Field))
		switch {
		case strings.HasPrefix(field, "networking."):
			out.Networking = ensureSettings(out.Networking)
			enabled, _ := strconv.ParseBool(action.Value)
			out.Networking[strings.TrimPrefix(field, "networking.")] = enabled
		case strings.HasPrefix(field, "security."):
			out.Security = ensureSettings(out.Security)
			enabled, _ := strconv.ParseBool(action.Value)
			out.Security[strings.TrimPrefix(field, "security.")] = enabled
		case field == "services.region":
			for i := range out.Services {
				if roleMatches(out.Services[i].Role, action.Role) {
					out.Services[i].Region = action.Value
				}
			}
		case field == "services.plan":
			for i := range out.Services {
				if roleMatches(out.Services[i].Role, action.Role) {
					out.Services[i].Plan = action.Value
				}
			}
		}
	}
	return out
}

func roleMatches(role, selector string) bool {
	return strings.TrimSpace(selector) == "" || strings.EqualFold(role, selector)
}

func serviceField(m domain.ArchitectureManifest, pick func(domain.ServiceComponent) string) []string {
	out := make([]string, 0, len(m.Services))
	for _, svc := range m.Services {
		if v := strings.TrimSpace(pick(svc)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func toggleValue(settings domain.Settings, key string) []string {
	if settings == nil {
		return nil
	}
	v, ok := settings[key]
	if !ok {
		return nil
	}
	return []string{strconv.FormatBool(v)}
}

func nonEmpty(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return []string{v}
}

func containsFold(values []string, target string) bool {
	target = strings.ToLower(strings.TrimSpace(target))
	for _, v := range values {
		if strings.ToLower(strings.TrimSpace(v)) == target {
			return true
		}
	}
	return false
}
