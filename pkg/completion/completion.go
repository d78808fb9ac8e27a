// Package completion holds the single truthiness rule for the task
// "completed" field. Older clients send it as "Yes"/"No" strings or 1/0
// numbers; the service and every derived view must interpret those the
// same way, so the predicate lives here and nowhere else.
package completion

import (
	"encoding/json"
	"strings"
)

// Normalize converts any accepted completion representation to a canonical
// boolean. It is total: unknown shapes and absent values are false.
func Normalize(raw interface{}) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "true", "1":
			return true
		}
		return false
	case float64:
		return v == 1
	case int:
		return v == 1
	case int64:
		return v == 1
	case json.Number:
		return v.String() == "1"
	default:
		return false
	}
}
