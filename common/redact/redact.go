// Package redact strips credentials and personal identifiers from values
// before they reach log lines or the audit trail.
//
// Redaction is best-effort and works on string representations. It does not
// replace keeping passwords out of log call-sites in the first place.
package redact

import (
	"strings"
)

const placeholder = "[REDACTED]"

// sensitiveWords are substrings of argument names that carry credentials or
// personal data (passwords, session tokens, national IDs, API keys).
var sensitiveWords = []string{
	"password", "passwd", "token", "secret", "key", "credential", "national", "auth",
}

// String replaces every occurrence of each sensitive value in s with
// [REDACTED]. Values shorter than 4 characters are skipped.
func String(s string, sensitiveValues ...string) string {
	for _, v := range sensitiveValues {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Args returns a copy of command arguments with the values of sensitive
// keys replaced by [REDACTED].
func Args(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v != "" && IsSensitiveKey(k) {
			out[k] = placeholder
			continue
		}
		out[k] = v
	}
	return out
}

// Map is Args for decoded JSON objects such as tool-call arguments.
// Non-string values are left unchanged.
func Map(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if IsSensitiveKey(k) {
			if str, ok := v.(string); ok && str != "" {
				out[k] = placeholder
				continue
			}
		}
		out[k] = v
	}
	return out
}

// IsSensitiveKey reports whether an argument name suggests a secret.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, word := range sensitiveWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
