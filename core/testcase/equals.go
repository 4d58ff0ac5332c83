package testcase

import (
	"encoding/json"
	"strings"

	"github.com/zotero/translate/core/diff"
)

// Equals reports whether two tests carry the same content. The
// comparison is deep: arrays are order-sensitive, object keys are not,
// and strings match regardless of leading, trailing, or run-length
// internal whitespace. Fixtures reformatted by hand still count as
// equal to their originals.
func (t *Test) Equals(other *Test) bool {
	if t == nil || other == nil {
		return t == other
	}
	a, okA := canonicalValue(t)
	b, okB := canonicalValue(other)
	if !okA || !okB {
		return false
	}
	return deepEqual(a, b)
}

// DiffWith renders the line diff between the two tests' lossy
// canonical forms. Fields whose value is absent are dropped before
// comparison, so the output shows only substantive differences. The
// result is a reporting aid, not a merge input.
func (t *Test) DiffWith(other *Test) string {
	a, _ := canonicalValue(t)
	b, _ := canonicalValue(other)
	return diff.Diff(dropNulls(a), dropNulls(b))
}

// canonicalValue reduces a value to the generic JSON data model so
// comparison does not depend on Go-side typing.
func canonicalValue(v any) (any, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, true
}

func deepEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !deepEqual(v, w) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case string:
		bv, ok := b.(string)
		if !ok {
			return false
		}
		return collapseSpace(av) == collapseSpace(bv)
	default:
		return a == b
	}
}

// collapseSpace trims the ends and squeezes internal whitespace runs to
// single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// dropNulls removes object fields whose value is absent, recursively.
// The canonicalization is lossy on purpose: a field explicitly recorded
// as null and a missing field diff the same way.
func dropNulls(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, entry := range val {
			if entry == nil {
				continue
			}
			out[k] = dropNulls(entry)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, entry := range val {
			out[i] = dropNulls(entry)
		}
		return out
	default:
		return v
	}
}
