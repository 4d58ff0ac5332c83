// Package diff renders a line-oriented structural diff between two
// JSON-like trees. The output is a reporting aid for humans reviewing
// mismatched extraction results; pass/fail decisions are made
// elsewhere by structural equality.
package diff

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Markers prefixing changed lines. Unchanged lines carry no marker.
const (
	markerRemoved = "- "
	markerAdded   = "+ "
	markerSame    = ""
)

const indentStep = "  "

// Diff compares two trees of nested mappings, sequences, and scalars
// and returns the rendered report. Mappings and sequences of the same
// kind are recursed into; everything else is compared as an opaque
// value. Inputs are reduced to the generic JSON data model first so
// named map and slice types compare by content.
func Diff(a, b any) string {
	var sb strings.Builder
	writeDiff(&sb, canonical(a), canonical(b), 0, "")
	return strings.TrimRight(sb.String(), "\n")
}

// canonical reduces a value to map[string]any / []any / scalar form.
// Values that cannot round-trip through JSON are kept as-is and
// compared opaquely.
func canonical(v any) any {
	switch v.(type) {
	case nil, bool, string, float64, map[string]any, []any:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func writeDiff(sb *strings.Builder, a, b any, depth int, label string) {
	am, aIsMap := a.(map[string]any)
	bm, bIsMap := b.(map[string]any)
	if aIsMap && bIsMap {
		writeLine(sb, depth, markerSame, label+"{")
		for _, k := range unionKeys(am, bm) {
			childLabel := fmt.Sprintf("%q: ", k)
			av, inA := am[k]
			bv, inB := bm[k]
			switch {
			case inA && inB:
				writeDiff(sb, av, bv, depth+1, childLabel)
			case inA:
				writeTree(sb, av, depth+1, markerRemoved, childLabel)
			default:
				writeTree(sb, bv, depth+1, markerAdded, childLabel)
			}
		}
		writeLine(sb, depth, markerSame, "}")
		return
	}

	as, aIsSlice := a.([]any)
	bs, bIsSlice := b.([]any)
	if aIsSlice && bIsSlice {
		writeLine(sb, depth, markerSame, label+"[")
		n := len(as)
		if len(bs) > n {
			n = len(bs)
		}
		for i := 0; i < n; i++ {
			switch {
			case i < len(as) && i < len(bs):
				writeDiff(sb, as[i], bs[i], depth+1, "")
			case i < len(as):
				writeTree(sb, as[i], depth+1, markerRemoved, "")
			default:
				writeTree(sb, bs[i], depth+1, markerAdded, "")
			}
		}
		writeLine(sb, depth, markerSame, "]")
		return
	}

	// Scalars, or composites of mismatched kinds treated as opaque.
	if scalarEqual(a, b) {
		writeLine(sb, depth, markerSame, label+render(a))
		return
	}
	writeLine(sb, depth, markerRemoved, label+render(a))
	writeLine(sb, depth, markerAdded, label+render(b))
}

// writeTree renders a whole subtree with one marker on every line,
// used for keys present on only one side.
func writeTree(sb *strings.Builder, v any, depth int, marker, label string) {
	switch val := v.(type) {
	case map[string]any:
		writeLine(sb, depth, marker, label+"{")
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			writeTree(sb, val[k], depth+1, marker, fmt.Sprintf("%q: ", k))
		}
		writeLine(sb, depth, marker, "}")
	case []any:
		writeLine(sb, depth, marker, label+"[")
		for _, entry := range val {
			writeTree(sb, entry, depth+1, marker, "")
		}
		writeLine(sb, depth, marker, "]")
	default:
		writeLine(sb, depth, marker, label+render(v))
	}
}

func writeLine(sb *strings.Builder, depth int, marker, text string) {
	sb.WriteString(strings.Repeat(indentStep, depth))
	sb.WriteString(marker)
	sb.WriteString(text)
	sb.WriteByte('\n')
}

func unionKeys(a, b map[string]any) []string {
	seen := make(map[string]bool, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func scalarEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any, []any:
		// Mismatched composite kinds reach here and render opaquely.
		return render(av) == render(b)
	default:
		return a == b
	}
}

// render formats a value as compact JSON for a single report line.
func render(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
