package engine

import "strings"

// Parameters reference the identifier of another plan resource with the
// literal value "ref(logical_name)". References double as implicit
// dependency edges, so a parameter can point at a resource without the
// author repeating it in depends_on.

// RefTarget returns the logical name inside a ref(...) value, or false when
// v is not a reference.
func RefTarget(v string) (string, bool) {
	if !strings.HasPrefix(v, "ref(") || !strings.HasSuffix(v, ")") {
		return "", false
	}
	name := strings.TrimSpace(v[len("ref(") : len(v)-1])
	if name == "" {
		return "", false
	}
	return name, true
}

// ExtractRefs collects every referenced logical name from a parameter value,
// descending into nested maps and lists.
func ExtractRefs(v any) []string {
	var refs []string
	switch val := v.(type) {
	case string:
		if name, ok := RefTarget(val); ok {
			refs = append(refs, name)
		}
	case map[string]any:
		for _, item := range val {
			refs = append(refs, ExtractRefs(item)...)
		}
	case []any:
		for _, item := range val {
			refs = append(refs, ExtractRefs(item)...)
		}
	}
	return refs
}

// ResolveRefs replaces every ref(name) in a parameter value with the
// identifier returned by resolve. Values without references come back
// unchanged; maps and lists are copied so the plan's own parameters are
// never mutated.
func ResolveRefs(v any, resolve func(name string) (string, bool)) any {
	switch val := v.(type) {
	case string:
		if name, ok := RefTarget(val); ok {
			if id, found := resolve(name); found {
				return id
			}
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = ResolveRefs(item, resolve)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = ResolveRefs(item, resolve)
		}
		return out
	default:
		return v
	}
}
