package testcase

import (
	"bytes"
	"encoding/json"

	"github.com/zotero/translate/core/errors"
)

// MarshalJSON writes the fixture form with a stable key order: type,
// the input key, defer, detectedItemType, items. The detection
// expectation is omitted when it matches what would be inferred from
// the items value, so round-tripping does not add redundant fields.
func (t *Test) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	writeKey(&buf, "type", true)
	if err := writeValue(&buf, string(t.Type)); err != nil {
		return nil, err
	}

	inputKey := "input"
	if t.Type == TypeWeb {
		inputKey = "url"
	}
	writeKey(&buf, inputKey, false)
	var inputVal any
	if t.Input.IsQuery() {
		inputVal = t.Input.Query
	} else {
		inputVal = t.Input.Text
	}
	if err := writeValue(&buf, inputVal); err != nil {
		return nil, err
	}

	if t.Defer.Set {
		writeKey(&buf, "defer", false)
		var deferVal any = true
		if t.Defer.Seconds > 0 {
			deferVal = t.Defer.Seconds
		}
		if err := writeValue(&buf, deferVal); err != nil {
			return nil, err
		}
	}

	if !t.DetectedItemType.Absent() && !t.DetectedItemType.Equal(t.inferredExpectation()) {
		writeKey(&buf, "detectedItemType", false)
		var expectVal any
		if t.DetectedItemType.IsBool {
			expectVal = t.DetectedItemType.Bool
		} else {
			expectVal = t.DetectedItemType.ItemType
		}
		if err := writeValue(&buf, expectVal); err != nil {
			return nil, err
		}
	}

	if t.Items.Present() {
		writeKey(&buf, "items", false)
		var itemsVal any
		if t.Items.Multiple {
			itemsVal = Multiple
		} else {
			itemsVal = t.Items.List
		}
		if err := writeValue(&buf, itemsVal); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string, first bool) {
	if !first {
		buf.WriteByte(',')
	}
	buf.WriteByte('"')
	buf.WriteString(key)
	buf.WriteString(`":`)
}

func writeValue(buf *bytes.Buffer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

// UnmarshalJSON decodes and validates a fixture object in place.
func (t *Test) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.NewParse("test case", "", err.Error())
	}
	parsed, err := fromRaw(raw)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}
