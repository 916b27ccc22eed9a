// Package logging configures structured logging and masks secrets in
// values that leave the process.
package logging

import (
	"regexp"
	"strings"
)

// SensitiveFields contains field name fragments whose values are masked.
var SensitiveFields = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"api_key",
	"apikey",
	"private_key",
	"credentials",
	"authorization",
	"cookie",
}

// MaskedValue is the string used to replace sensitive values.
const MaskedValue = "[REDACTED]"

// IsSensitiveField reports whether a field name looks like it carries a secret.
func IsSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, s := range SensitiveFields {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// MaskAPIKey masks an API key, showing only the first and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return MaskedValue
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// SensitivePatterns match secrets embedded in free text such as command lines.
var SensitivePatterns = []*regexp.Regexp{
	// key=value and key: value assignments
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|passwd)(\s*[=:]\s*)['"]?[^\s'"]+['"]?`),
	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-\.=]+`),
	// AWS access key IDs
	regexp.MustCompile(`\b(AKIA|ASIA)[A-Z0-9]{16}\b`),
	// Google API keys
	regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{35}\b`),
}

// MaskSensitivePatterns masks sensitive patterns in a raw string.
func MaskSensitivePatterns(s string) string {
	result := s
	for i, pattern := range SensitivePatterns {
		if i == 0 {
			result = pattern.ReplaceAllString(result, "${1}${2}"+MaskedValue)
			continue
		}
		result = pattern.ReplaceAllString(result, MaskedValue)
	}
	return result
}

// RedactFields returns a copy of fields with secret-looking values masked.
// Values under sensitive keys are replaced; other string values have
// embedded secrets masked. The input map is not modified.
func RedactFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if v == nil {
			out[k] = nil
			continue
		}
		if IsSensitiveField(k) {
			out[k] = MaskedValue
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = MaskSensitivePatterns(s)
			continue
		}
		out[k] = v
	}
	return out
}
