package validation

import (
	"strings"
)

// DetectRules infers a rule string from a field name and sample value:
// names mentioning email, tel/phone, url/website or date get the matching
// rule, numeric values get numeric, and anything else is only required.
func DetectRules(field string, value any) string {
	name := strings.ToLower(field)
	var rules []string
	if strings.Contains(name, "email") {
		rules = append(rules, "email")
	}
	if strings.Contains(name, "tel") || strings.Contains(name, "phone") {
		rules = append(rules, "tel")
	}
	if strings.Contains(name, "url") || strings.Contains(name, "website") {
		rules = append(rules, "url")
	}
	if strings.Contains(name, "date") {
		rules = append(rules, "date")
	}
	if _, ok := toFloat(value); ok {
		rules = append(rules, "numeric")
	}
	if len(rules) == 0 {
		rules = append(rules, RuleRequired)
	}
	return Combine(rules...)
}

// Combine joins rule strings with '|', dropping blanks and duplicates.
func Combine(rules ...string) string {
	seen := make(map[string]bool, len(rules))
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		for _, part := range strings.Split(r, "|") {
			part = strings.TrimSpace(part)
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return strings.Join(out, "|")
}
