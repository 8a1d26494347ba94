package logger

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultSensitiveFields are the attribute name fragments masked when no
// list is configured.
var DefaultSensitiveFields = []string{
	"password", "passwd", "pwd",
	"token", "api_key", "apikey", "api_token",
	"secret", "auth", "authorization",
	"credit_card", "card_number", "cvv", "cvc",
	"ssn", "social_security",
	"private_key", "priv_key",
}

// Sanitizer masks bound parameters before they are logged. The compiler
// records the attribute behind every parameter, so masking is decided per
// parameter from the attribute name.
type Sanitizer struct {
	maskValue string
	patterns  []*regexp.Regexp
}

// NewSanitizer creates a sanitizer for the given attribute name fragments.
// An empty list uses DefaultSensitiveFields.
//
// A fragment matches whole snake_case segments: "password" matches
// "password" and "password_hash" but not "passwords".
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = DefaultSensitiveFields
	}

	patterns := make([]*regexp.Regexp, 0, len(sensitiveFields))
	for _, field := range sensitiveFields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		patterns = append(patterns, regexp.MustCompile(`(?i)(^|_)`+regexp.QuoteMeta(field)+`($|_)`))
	}

	return &Sanitizer{
		maskValue: "***REDACTED***",
		patterns:  patterns,
	}
}

// IsSensitive reports whether values of attr must not be logged.
func (s *Sanitizer) IsSensitive(attr string) bool {
	for _, p := range s.patterns {
		if p.MatchString(attr) {
			return true
		}
	}
	return false
}

// MaskParams returns a copy of params where every parameter bound to a
// sensitive attribute is replaced by the mask. attrs[i] names the attribute
// behind params[i]; when the two slices disagree in length every parameter
// is masked. params is not modified.
func (s *Sanitizer) MaskParams(attrs []string, params []interface{}) []interface{} {
	if len(params) == 0 {
		return params
	}

	masked := make([]interface{}, len(params))
	if len(attrs) != len(params) {
		for i := range masked {
			masked[i] = s.maskValue
		}
		return masked
	}

	for i, param := range params {
		if s.IsSensitive(attrs[i]) {
			masked[i] = s.maskValue
		} else {
			masked[i] = param
		}
	}
	return masked
}

// FormatParams converts parameters to a safe string representation for logging.
// Sensitive values should be masked using MaskParams before calling this.
func (s *Sanitizer) FormatParams(params []interface{}) string {
	if len(params) == 0 {
		return "[]"
	}

	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = s.formatValue(p)
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

// formatValue truncates long values to keep log lines readable.
func (s *Sanitizer) formatValue(v interface{}) string {
	if v == nil {
		return "NULL"
	}

	str := fmt.Sprintf("%v", v)

	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}

	return str
}
