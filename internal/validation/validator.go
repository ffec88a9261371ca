// Package validation checks maps of field values against rule strings such
// as "required|email" or "min:3|max:20". Custom rules can be registered as
// Go functions or declared as composites of existing rules and persisted as
// YAML.
package validation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/koustreak/gardien/internal/errs"
)

// Level grades an Issue.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Issue is one problem found on a field.
type Issue struct {
	Rule    string    `json:"rule"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// maxSpecDepth bounds composite rule expansion.
const maxSpecDepth = 8

var defaultMessages = map[string]string{
	"required":     "The :field field is required.",
	"email":        "The :field field must be a valid email address.",
	"tel":          "The :field field must be a valid phone number.",
	"url":          "The :field field must be a valid URL.",
	"numeric":      "The :field field must be numeric.",
	"integer":      "The :field field must be an integer.",
	"min":          "The :field field must be at least :param.",
	"max":          "The :field field must be at most :param.",
	"regex":        "The :field field does not match the required format.",
	"date":         "The :field field must be a valid date.",
	"alpha":        "The :field field may only contain letters.",
	"alphanumeric": "The :field field may only contain letters and digits.",
}

const fallbackMessage = "The :field field is invalid."

// Validator holds the rule registry, message overrides and the issues of
// the last Validate call. It is not safe for concurrent use; share a
// configured Validator through Clone.
type Validator struct {
	rules    map[string]RuleFunc
	specs    map[string]RuleSpec
	defaults map[string]string
	messages map[string]string
	now      func() time.Time

	issues map[string][]Issue
}

// New returns a validator with the built-in rules.
func New() *Validator {
	v := &Validator{
		rules:    builtinRules(),
		specs:    make(map[string]RuleSpec),
		defaults: make(map[string]string, len(defaultMessages)),
		messages: make(map[string]string),
		now:      time.Now,
		issues:   make(map[string][]Issue),
	}
	for k, m := range defaultMessages {
		v.defaults[k] = m
	}
	return v
}

// Clone returns a validator with the same rules and messages and no issues.
func (v *Validator) Clone() *Validator {
	c := &Validator{
		rules:    make(map[string]RuleFunc, len(v.rules)),
		specs:    make(map[string]RuleSpec, len(v.specs)),
		defaults: make(map[string]string, len(v.defaults)),
		messages: make(map[string]string, len(v.messages)),
		now:      v.now,
		issues:   make(map[string][]Issue),
	}
	for k, f := range v.rules {
		c.rules[k] = f
	}
	for k, s := range v.specs {
		c.specs[k] = s
	}
	for k, m := range v.defaults {
		c.defaults[k] = m
	}
	for k, m := range v.messages {
		c.messages[k] = m
	}
	return c
}

// Register adds or replaces a rule implemented in Go. message becomes the
// rule's default message.
func (v *Validator) Register(name string, fn RuleFunc, message string) error {
	if err := checkRuleName(name); err != nil {
		return err
	}
	if fn == nil {
		return errs.New(errs.ErrKindInvalidInput, "rule "+name+" has no function")
	}
	delete(v.specs, name)
	v.rules[name] = fn
	if message != "" {
		v.defaults[name] = message
	}
	return nil
}

// SetMessages merges overrides keyed by "rule" or "field.rule".
func (v *Validator) SetMessages(messages map[string]string) {
	for k, m := range messages {
		v.messages[k] = m
	}
}

// HasRule reports whether name is a built-in, registered or declared rule.
func (v *Validator) HasRule(name string) bool {
	if _, ok := v.rules[name]; ok {
		return true
	}
	_, ok := v.specs[name]
	return ok
}

// Validate checks data against rules, a map from field name to a rule
// string ("required|min:3") or a list of rule strings. Use the list form
// when a regex contains '|'. With no rules, rules are inferred from data by
// DetectRules. Each field stops at its first failing rule.
func (v *Validator) Validate(data map[string]any, rules map[string]any) bool {
	v.Reset()

	if len(rules) == 0 {
		rules = make(map[string]any, len(data))
		for field, value := range data {
			rules[field] = DetectRules(field, value)
		}
	}

	for _, field := range sortedFields(rules) {
		list, err := ruleList(rules[field])
		if err != nil {
			v.add(field, "", LevelWarning, err.Error())
			continue
		}
		value := data[field]
		for _, r := range list {
			if !v.apply(field, r, value) {
				break
			}
		}
	}
	return !v.HasErrors()
}

func (v *Validator) apply(field, rule string, value any) bool {
	name, param, _ := strings.Cut(strings.TrimSpace(rule), ":")
	if name == "" {
		return true
	}

	ok, known := v.check(name, param, value, 0)
	if !known {
		v.add(field, name, LevelWarning, "unknown rule: "+name)
		return false
	}
	if !ok {
		v.add(field, name, LevelError, v.message(field, name, param, value))
	}
	return ok
}

// check evaluates one rule without recording anything.
func (v *Validator) check(name, param string, value any, depth int) (ok, known bool) {
	if fn, found := v.rules[name]; found {
		if name != RuleRequired && IsEmpty(value) {
			return true, true
		}
		return fn(value, param), true
	}

	spec, found := v.specs[name]
	if !found {
		return false, false
	}
	if depth >= maxSpecDepth {
		return false, true
	}
	for _, sub := range spec.All {
		subName, subParam, _ := strings.Cut(strings.TrimSpace(sub), ":")
		ok, known := v.check(subName, subParam, value, depth+1)
		if !known || !ok {
			return false, true
		}
	}
	return true, true
}

// message resolves field.rule, then rule, then the rule's default.
func (v *Validator) message(field, rule, param string, value any) string {
	m, ok := v.messages[field+"."+rule]
	if !ok {
		m, ok = v.messages[rule]
	}
	if !ok {
		m, ok = v.defaults[rule]
	}
	if !ok {
		m = fallbackMessage
	}
	return strings.NewReplacer(
		":field", field,
		":param", param,
		":value", fmt.Sprint(value),
	).Replace(m)
}

func (v *Validator) add(field, rule string, level Level, msg string) {
	v.issues[field] = append(v.issues[field], Issue{Rule: rule, Level: level, Message: msg, Time: v.now()})
}

// AddIssue records an issue found outside the rule set.
func (v *Validator) AddIssue(field string, level Level, msg string) {
	v.add(field, "", level, msg)
}

// Errors returns every issue of the last run, keyed by field.
func (v *Validator) Errors() map[string][]Issue {
	out := make(map[string][]Issue, len(v.issues))
	for f, list := range v.issues {
		out[f] = append([]Issue(nil), list...)
	}
	return out
}

// FieldErrors returns the issues of one field.
func (v *Validator) FieldErrors(field string) []Issue {
	return append([]Issue(nil), v.issues[field]...)
}

// FirstError returns the first message recorded for field, or "".
func (v *Validator) FirstError(field string) string {
	if list := v.issues[field]; len(list) > 0 {
		return list[0].Message
	}
	return ""
}

// Messages returns all messages ordered by field name.
func (v *Validator) Messages() []string {
	var out []string
	for _, f := range sortedIssueFields(v.issues) {
		for _, is := range v.issues[f] {
			out = append(out, is.Message)
		}
	}
	return out
}

// FirstMessage returns the first message in Messages order, or "".
func (v *Validator) FirstMessage() string {
	if m := v.Messages(); len(m) > 0 {
		return m[0]
	}
	return ""
}

// HasErrors reports whether the last run recorded any issue at warning
// level or above.
func (v *Validator) HasErrors() bool {
	for _, list := range v.issues {
		for _, is := range list {
			if is.Level != LevelInfo {
				return true
			}
		}
	}
	return false
}

func (v *Validator) Reset() {
	v.issues = make(map[string][]Issue)
}

func ruleList(r any) ([]string, error) {
	switch t := r.(type) {
	case string:
		return strings.Split(t, "|"), nil
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			s, ok := x.(string)
			if !ok {
				return nil, fmt.Errorf("rule %v is not a string", x)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported rule list type %T", r)
}

func sortedFields(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedIssueFields(m map[string][]Issue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func checkRuleName(name string) error {
	if name == "" || strings.ContainsAny(name, "|: ") {
		return errs.Newf(errs.ErrKindInvalidInput, "invalid rule name %q", name)
	}
	return nil
}
