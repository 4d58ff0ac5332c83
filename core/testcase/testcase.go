// Package testcase defines the recorded test scenario model: one input
// plus the expected detection and extraction results for a translator.
package testcase

import (
	"encoding/json"
	"fmt"

	"github.com/zotero/translate/core/errors"
	"github.com/zotero/translate/core/item"
)

// Type is the kind of translator behavior a test exercises.
type Type string

// Test type constants.
const (
	TypeWeb    Type = "web"
	TypeImport Type = "import"
	TypeExport Type = "export"
	TypeSearch Type = "search"
)

// validTypes is the set of recognized test types.
var validTypes = map[Type]bool{
	TypeWeb:    true,
	TypeImport: true,
	TypeExport: true,
	TypeSearch: true,
}

// IsValid returns true if the test type is recognized.
func (t Type) IsValid() bool {
	return validTypes[t]
}

// Multiple is the sentinel value meaning "more than one record, contents
// unspecified". It appears both as an expected item type and as the
// items value.
const Multiple = "multiple"

// Input is a test's input. Web tests carry a URL, import tests an
// arbitrary source string, search tests a structured query object.
// Export tests carry either by convention.
type Input struct {
	Text  string
	Query map[string]any
}

// IsQuery returns true when the input is a structured query.
func (in Input) IsQuery() bool {
	return in.Query != nil
}

// Defer records a requested settle wait before extraction runs on a
// page that is not confirmed loaded. Seconds is zero when the test
// declared the boolean form, meaning the default delay applies.
type Defer struct {
	Set     bool
	Seconds float64
}

// Expectation is a detection result: an item type name (possibly the
// multiple sentinel), or a boolean. False records an expected detection
// failure; true, used by non-web tests, records only that detection
// succeeded. The zero value means "absent".
type Expectation struct {
	ItemType string
	Bool     bool
	IsBool   bool
}

// ExpectType returns an Expectation for an item type name.
func ExpectType(name string) Expectation {
	return Expectation{ItemType: name}
}

// ExpectBool returns a boolean Expectation.
func ExpectBool(b bool) Expectation {
	return Expectation{Bool: b, IsBool: true}
}

// Absent returns true for the zero Expectation.
func (e Expectation) Absent() bool {
	return !e.IsBool && e.ItemType == ""
}

// IsFalse returns true when the expectation is exactly the boolean false.
func (e Expectation) IsFalse() bool {
	return e.IsBool && !e.Bool
}

// IsMultiple returns true when the expectation is the multiple sentinel.
func (e Expectation) IsMultiple() bool {
	return e.ItemType == Multiple
}

// Equal compares two expectations by value.
func (e Expectation) Equal(other Expectation) bool {
	return e == other
}

// Matches reports whether an observed detection result satisfies the
// expectation. Boolean expectations are presence checks: true accepts
// any detected type, false requires no detection. Named expectations
// require the exact name. An absent expectation behaves like false.
func (e Expectation) Matches(observed Expectation) bool {
	detected := !observed.Absent() && !observed.IsFalse()
	if e.IsBool {
		return e.Bool == detected
	}
	if e.ItemType == "" {
		return !detected
	}
	return observed.ItemType == e.ItemType
}

// String renders the expectation the way fixtures spell it.
func (e Expectation) String() string {
	if e.IsBool {
		return fmt.Sprintf("%t", e.Bool)
	}
	if e.ItemType == "" {
		return "(absent)"
	}
	return e.ItemType
}

// Items is a test's expected or observed record list, or the multiple
// sentinel. A nil List with Multiple unset means the value is absent.
type Items struct {
	Multiple bool
	List     []item.Item
}

// Present returns true when the value was given at all.
func (is Items) Present() bool {
	return is.Multiple || is.List != nil
}

// Count returns the number of enumerated records (zero for the sentinel).
func (is Items) Count() int {
	return len(is.List)
}

// Test is one recorded scenario. Instances are validated at
// construction and treated as immutable; the runner derives new
// instances rather than mutating them.
type Test struct {
	Type             Type
	Input            Input
	Defer            Defer
	DetectedItemType Expectation
	Items            Items
}

// New builds a validated Test from a decoded configuration object.
func New(raw map[string]any) (*Test, error) {
	return fromRaw(raw)
}

// Parse builds a validated Test from JSON bytes.
func Parse(data []byte) (*Test, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewParse("test case", "", err.Error())
	}
	return fromRaw(raw)
}

// ParseList builds validated Tests from a JSON array.
func ParseList(data []byte) ([]*Test, error) {
	var raws []map[string]any
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, errors.NewParse("test cases", "", err.Error())
	}
	tests := make([]*Test, 0, len(raws))
	for i, raw := range raws {
		tc, err := fromRaw(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "test %d", i)
		}
		tests = append(tests, tc)
	}
	return tests, nil
}

func fromRaw(raw map[string]any) (*Test, error) {
	tc := &Test{}

	rawType, ok := raw["type"].(string)
	if !ok {
		return nil, errors.NewValidation("type", "required and must be a string")
	}
	tc.Type = Type(rawType)
	if !tc.Type.IsValid() {
		return nil, errors.NewValidationValue("type", rawType, "unknown test type")
	}

	if err := parseInput(tc, raw); err != nil {
		return nil, err
	}
	if err := parseDefer(tc, raw); err != nil {
		return nil, err
	}
	if err := parseExpectation(tc, raw); err != nil {
		return nil, err
	}
	if err := parseItems(tc, raw); err != nil {
		return nil, err
	}

	if tc.DetectedItemType.Absent() {
		tc.DetectedItemType = tc.inferredExpectation()
	}

	return tc, nil
}

func parseInput(tc *Test, raw map[string]any) error {
	switch tc.Type {
	case TypeWeb:
		// Web fixtures use the url key; accept input as a fallback.
		v, ok := raw["url"]
		if !ok {
			v, ok = raw["input"]
		}
		if !ok {
			return errors.NewValidation("url", "required for web tests")
		}
		s, ok := v.(string)
		if !ok {
			return errors.NewValidationValue("url", fmt.Sprintf("%v", v), "must be a URL string")
		}
		tc.Input = Input{Text: s}
	case TypeImport:
		v, ok := raw["input"]
		if !ok {
			return errors.NewValidation("input", "required for import tests")
		}
		s, ok := v.(string)
		if !ok {
			return errors.NewValidationValue("input", fmt.Sprintf("%v", v), "must be a string for import tests")
		}
		tc.Input = Input{Text: s}
	case TypeSearch:
		v, ok := raw["input"]
		if !ok {
			return errors.NewValidation("input", "required for search tests")
		}
		q, ok := v.(map[string]any)
		if !ok {
			return errors.NewValidationValue("input", fmt.Sprintf("%v", v), "must be a query object for search tests")
		}
		tc.Input = Input{Query: q}
	case TypeExport:
		// Export tests are dispatched to an unsupported failure, but the
		// recorded input still validates: a string or a query object.
		switch v := raw["input"].(type) {
		case nil:
			return errors.NewValidation("input", "required for export tests")
		case string:
			tc.Input = Input{Text: v}
		case map[string]any:
			tc.Input = Input{Query: v}
		default:
			return errors.NewValidationValue("input", fmt.Sprintf("%v", v), "must be a string or query object")
		}
	}
	return nil
}

func parseDefer(tc *Test, raw map[string]any) error {
	v, ok := raw["defer"]
	if !ok {
		return nil
	}
	switch d := v.(type) {
	case bool:
		if !d {
			return errors.NewValidationValue("defer", "false", "must be true or a number of seconds")
		}
		tc.Defer = Defer{Set: true}
	case float64:
		if d <= 0 {
			return errors.NewValidationValue("defer", fmt.Sprintf("%v", d), "must be a positive number of seconds")
		}
		tc.Defer = Defer{Set: true, Seconds: d}
	default:
		return errors.NewValidationValue("defer", fmt.Sprintf("%v", v), "must be true or a number of seconds")
	}
	return nil
}

func parseExpectation(tc *Test, raw map[string]any) error {
	v, ok := raw["detectedItemType"]
	if !ok {
		return nil
	}
	switch d := v.(type) {
	case string:
		tc.DetectedItemType = ExpectType(d)
	case bool:
		tc.DetectedItemType = ExpectBool(d)
	default:
		return errors.NewValidationValue("detectedItemType", fmt.Sprintf("%v", v), "must be a string or boolean")
	}
	return nil
}

func parseItems(tc *Test, raw map[string]any) error {
	v, ok := raw["items"]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case string:
		if list != Multiple {
			return errors.NewValidationValue("items", list, "must be a list of items or the multiple sentinel")
		}
		tc.Items = Items{Multiple: true}
	case []any:
		items := make([]item.Item, 0, len(list))
		for i, entry := range list {
			m, ok := entry.(map[string]any)
			if !ok {
				return errors.NewValidation("items", fmt.Sprintf("entry %d is not an object", i))
			}
			items = append(items, item.Item(m))
		}
		tc.Items = Items{List: items}
	default:
		return errors.NewValidationValue("items", fmt.Sprintf("%v", v), "must be a list of items or the multiple sentinel")
	}
	return nil
}

// inferredExpectation derives the detection expectation from the items
// value: for web tests the first item's type name (the sentinel when
// items is the sentinel, false when empty); for other types a boolean
// presence check.
func (t *Test) inferredExpectation() Expectation {
	if t.Type == TypeWeb {
		if t.Items.Multiple {
			return ExpectType(Multiple)
		}
		if len(t.Items.List) > 0 {
			if name := t.Items.List[0].Type(); name != "" {
				return ExpectType(name)
			}
		}
		return ExpectBool(false)
	}
	return ExpectBool(t.Items.Multiple || len(t.Items.List) > 0)
}

// Clone deep-copies the test through its serialized form.
func (t *Test) Clone() *Test {
	data, err := json.Marshal(t)
	if err == nil {
		if clone, err := Parse(data); err == nil {
			return clone
		}
	}
	// Serialization of a validated test does not fail; this path keeps
	// Clone total anyway.
	clone := *t
	if t.Items.List != nil {
		clone.Items.List = make([]item.Item, len(t.Items.List))
		for i, it := range t.Items.List {
			clone.Items.List[i] = it.Clone()
		}
	}
	if t.Input.Query != nil {
		clone.Input.Query = item.Item(t.Input.Query).Clone()
	}
	return &clone
}

// WithObserved derives the updated test carrying the observed detection
// result and records. The receiver is not modified.
func (t *Test) WithObserved(detected Expectation, items Items) *Test {
	updated := t.Clone()
	updated.DetectedItemType = detected
	updated.Items = items
	return updated
}
