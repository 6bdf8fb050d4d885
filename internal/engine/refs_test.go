package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefTarget(t *testing.T) {
	tests := []struct {
		in   string
		name string
		ok   bool
	}{
		{"ref(main-vpc)", "main-vpc", true},
		{"ref( padded )", "padded", true},
		{"ref()", "", false},
		{"main-vpc", "", false},
		{"ref(main-vpc", "", false},
		{"10.0.0.0/16", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		name, ok := RefTarget(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.name, name, tt.in)
	}
}

func TestExtractRefs_Nested(t *testing.T) {
	params := map[string]any{
		"vpc":        "ref(main-vpc)",
		"cidr_block": "10.0.1.0/24",
		"routes": []any{
			map[string]any{
				"destination": "0.0.0.0/0",
				"gateway":     "ref(igw)",
			},
		},
	}

	refs := ExtractRefs(params)
	assert.ElementsMatch(t, []string{"main-vpc", "igw"}, refs)
}

func TestExtractRefs_NoRefs(t *testing.T) {
	assert.Empty(t, ExtractRefs(map[string]any{"cidr_block": "10.0.0.0/16", "port": 443}))
	assert.Empty(t, ExtractRefs(nil))
}

func TestResolveRefs(t *testing.T) {
	ids := map[string]string{"main-vpc": "vpc-123", "igw": "igw-456"}
	resolve := func(name string) (string, bool) {
		id, ok := ids[name]
		return id, ok
	}

	params := map[string]any{
		"vpc":  "ref(main-vpc)",
		"cidr": "10.0.1.0/24",
		"routes": []any{
			map[string]any{"gateway": "ref(igw)"},
		},
	}

	out, ok := ResolveRefs(params, resolve).(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "vpc-123", out["vpc"])
	assert.Equal(t, "10.0.1.0/24", out["cidr"])
	route := out["routes"].([]any)[0].(map[string]any)
	assert.Equal(t, "igw-456", route["gateway"])

	// The original parameters are untouched.
	assert.Equal(t, "ref(main-vpc)", params["vpc"])
	assert.Equal(t, "ref(igw)", params["routes"].([]any)[0].(map[string]any)["gateway"])
}

func TestResolveRefs_UnresolvedStaysLiteral(t *testing.T) {
	out := ResolveRefs("ref(nothing)", func(string) (string, bool) { return "", false })
	assert.Equal(t, "ref(nothing)", out)
}
