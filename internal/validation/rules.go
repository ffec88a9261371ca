package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"
)

// RuleFunc reports whether value satisfies the rule. param is the text
// after the first ':' in the rule, or "".
type RuleFunc func(value any, param string) bool

// RuleRequired is the only rule that sees empty values.
const RuleRequired = "required"

// DefaultDateLayout is used by the date rule when no layout is given.
const DefaultDateLayout = "2006-01-02"

var telPattern = regexp.MustCompile(`^(\+33|0)[1-9]\d{8}$|^\+\d{1,3}\d{4,14}$`)

func builtinRules() map[string]RuleFunc {
	return map[string]RuleFunc{
		RuleRequired:   required,
		"email":        email,
		"tel":          tel,
		"url":          validURL,
		"numeric":      numeric,
		"integer":      integer,
		"min":          minRule,
		"max":          maxRule,
		"regex":        regex,
		"date":         date,
		"alpha":        alpha,
		"alphanumeric": alphanumeric,
	}
}

// IsEmpty reports whether v counts as absent: nil, "" or whitespace only.
func IsEmpty(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	case []byte:
		return len(strings.TrimSpace(string(s))) == 0
	}
	return false
}

func required(v any, _ string) bool { return !IsEmpty(v) }

func email(v any, _ string) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func tel(v any, _ string) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	s = strings.NewReplacer(" ", "", "-", "", ".", "").Replace(s)
	return telPattern.MatchString(s)
}

func validURL(v any, _ string) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	u, err := url.ParseRequestURI(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func numeric(v any, _ string) bool {
	_, ok := toFloat(v)
	return ok
}

func integer(v any, _ string) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return float64(n) == float64(int64(n))
	case float64:
		return n == float64(int64(n))
	case string:
		_, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return err == nil
	}
	return false
}

// measure returns the length of a string or the value of a number.
func measure(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		return float64(utf8.RuneCountInString(s)), true
	}
	return toFloat(v)
}

func minRule(v any, param string) bool {
	limit, err := strconv.ParseFloat(param, 64)
	if err != nil {
		return false
	}
	n, ok := measure(v)
	return ok && n >= limit
}

func maxRule(v any, param string) bool {
	limit, err := strconv.ParseFloat(param, 64)
	if err != nil {
		return false
	}
	n, ok := measure(v)
	return ok && n <= limit
}

var (
	regexMu    sync.Mutex
	regexCache = map[string]*regexp.Regexp{}
)

func compile(pattern string) (*regexp.Regexp, error) {
	regexMu.Lock()
	defer regexMu.Unlock()
	if re, ok := regexCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache[pattern] = re
	return re, nil
}

func regex(v any, param string) bool {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	re, err := compile(strings.Trim(param, "/"))
	return err == nil && re.MatchString(s)
}

func date(v any, param string) bool {
	if t, ok := v.(time.Time); ok {
		return !t.IsZero()
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	layout := param
	if layout == "" {
		layout = DefaultDateLayout
	}
	t, err := time.Parse(layout, s)
	return err == nil && t.Format(layout) == s
}

func alpha(v any, _ string) bool {
	return allRunes(v, unicode.IsLetter)
}

func alphanumeric(v any, _ string) bool {
	return allRunes(v, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) })
}

func allRunes(v any, pred func(rune) bool) bool {
	s, ok := v.(string)
	if !ok || s == "" {
		return false
	}
	for _, r := range s {
		if !pred(r) {
			return false
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
