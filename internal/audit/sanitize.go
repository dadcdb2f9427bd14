package audit

import "strings"

// RedactedValue replaces any value whose key looks sensitive.
const RedactedValue = "[REDACTED]"

// sensitiveKeySubstrings are matched case-insensitively as substrings, so
// "PasswordHash", "api_token" and "stripe_secret_key" are all caught.
var sensitiveKeySubstrings = []string{
	"password",
	"token",
	"secret",
	"key",
	"card_number",
	"cvv",
}

// Sanitize returns a deep copy of data with every value under a sensitive key
// replaced by RedactedValue. Nested maps and slices are walked recursively;
// the input is never modified. A nil input returns nil.
func Sanitize(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}

	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		if isSensitiveKey(k) {
			out[k] = RedactedValue
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return Sanitize(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeySubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
