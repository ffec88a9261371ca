package validation

import (
	"os"
	"sort"
	"strings"

	"github.com/koustreak/gardien/internal/errs"
	"go.yaml.in/yaml/v3"
)

// RuleSpec declares a composite rule that passes when every rule in All
// passes. Specs are plain data, so they can be stored and reloaded.
type RuleSpec struct {
	Name    string   `yaml:"name"`
	Message string   `yaml:"message,omitempty"`
	All     []string `yaml:"all"`
}

type ruleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// Declare registers a composite rule. Every rule it references must already
// exist.
func (v *Validator) Declare(spec RuleSpec) error {
	if err := checkRuleName(spec.Name); err != nil {
		return err
	}
	if _, builtin := builtinRules()[spec.Name]; builtin {
		return errs.Newf(errs.ErrKindInvalidInput, "rule %s is built in", spec.Name)
	}
	if len(spec.All) == 0 {
		return errs.Newf(errs.ErrKindInvalidInput, "rule %s has no sub-rules", spec.Name)
	}
	for _, sub := range spec.All {
		name, _, _ := strings.Cut(strings.TrimSpace(sub), ":")
		if name == spec.Name || !v.HasRule(name) {
			return errs.Newf(errs.ErrKindInvalidInput, "rule %s references unknown rule %q", spec.Name, name)
		}
	}

	delete(v.rules, spec.Name)
	v.specs[spec.Name] = spec
	if spec.Message != "" {
		v.defaults[spec.Name] = spec.Message
	} else {
		delete(v.defaults, spec.Name)
	}
	return nil
}

// RuleSpecs returns the declared composite rules sorted by name.
func (v *Validator) RuleSpecs() []RuleSpec {
	out := make([]RuleSpec, 0, len(v.specs))
	for _, s := range v.specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadRuleSpecs reads specs from a YAML file of the form:
//
//	rules:
//	  - name: username
//	    message: "The :field field must be 3 to 20 letters or digits."
//	    all: [alphanumeric, "min:3", "max:20"]
func LoadRuleSpecs(path string) ([]RuleSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindIO, "read rule specs", err)
	}
	var f ruleFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "parse rule specs "+path, err)
	}
	return f.Rules, nil
}

// SaveRuleSpecs writes specs to path in the format LoadRuleSpecs reads.
func SaveRuleSpecs(path string, specs []RuleSpec) error {
	raw, err := yaml.Marshal(ruleFile{Rules: specs})
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "encode rule specs", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errs.Wrap(errs.ErrKindIO, "write rule specs", err)
	}
	return nil
}

// LoadFile declares every spec in path, in file order.
func (v *Validator) LoadFile(path string) error {
	specs, err := LoadRuleSpecs(path)
	if err != nil {
		return err
	}
	for _, s := range specs {
		if err := v.Declare(s); err != nil {
			return err
		}
	}
	return nil
}

// SaveFile persists the declared composite rules to path.
func (v *Validator) SaveFile(path string) error {
	return SaveRuleSpecs(path, v.RuleSpecs())
}
