package completion

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		raw  interface{}
		want bool
	}{
		{"bool true", true, true},
		{"bool false", false, false},
		{"yes", "Yes", true},
		{"yes lower", "yes", true},
		{"yes upper", "YES", true},
		{"yes padded", "  yes ", true},
		{"no", "No", false},
		{"no lower", "no", false},
		{"true string", "true", true},
		{"one string", "1", true},
		{"zero string", "0", false},
		{"empty string", "", false},
		{"garbage", "done", false},
		{"float one", float64(1), true},
		{"float zero", float64(0), false},
		{"float other", float64(2), false},
		{"int one", 1, true},
		{"int zero", 0, false},
		{"json number", json.Number("1"), true},
		{"json number zero", json.Number("0"), false},
		{"nil", nil, false},
		{"map", map[string]interface{}{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.raw))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, raw := range []interface{}{true, false, "Yes", "yes", "No", "no", 1, 0} {
		got := Normalize(raw)
		assert.Equal(t, got, Normalize(got), "normalize(normalize(%v))", raw)
	}
}
