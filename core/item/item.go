package item

import (
	"encoding/json"
)

// Structured keys that are not registry fields. They carry lists or
// bookkeeping values and are handled separately from scalar fields.
const (
	KeyItemType    = "itemType"
	KeyCreators    = "creators"
	KeyTags        = "tags"
	KeyNotes       = "notes"
	KeyNote        = "note"
	KeyAttachments = "attachments"
	KeySeeAlso     = "seeAlso"
	KeyID          = "id"
	KeyComplete    = "complete"
	KeyAccessDate  = "accessDate"
)

// Item is one extracted bibliographic record.
type Item map[string]any

// New creates an empty record of the given item type.
func New(itemType string) Item {
	return Item{KeyItemType: itemType}
}

// Type returns the record's item type, or "" if unset.
func (it Item) Type() string {
	if s, ok := it[KeyItemType].(string); ok {
		return s
	}
	return ""
}

// GetString returns the named field as a string, or "" if absent or not
// a string.
func (it Item) GetString(field string) string {
	if s, ok := it[field].(string); ok {
		return s
	}
	return ""
}

// Set assigns a field and returns the item for chaining.
func (it Item) Set(field string, value any) Item {
	it[field] = value
	return it
}

// Clone deep-copies the record through a JSON round trip. On marshal
// failure (unserializable values) the original is returned unchanged.
func (it Item) Clone() Item {
	data, err := json.Marshal(it)
	if err != nil {
		return it
	}
	var out Item
	if err := json.Unmarshal(data, &out); err != nil {
		return it
	}
	return out
}

// Creator is one author, editor or other contributor.
type Creator struct {
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Name        string `json:"name,omitempty"`
	CreatorType string `json:"creatorType,omitempty"`
}

// Tag is one subject tag. Translator output may carry tags as plain
// strings or as {"tag": ...} objects; Canonical is the object form.
type Tag struct {
	Tag  string `json:"tag"`
	Type int    `json:"type,omitempty"`
}

// Creators returns the creators list decoded into Creator values.
// Malformed entries are skipped.
func (it Item) Creators() []Creator {
	raw, ok := it[KeyCreators].([]any)
	if !ok {
		return nil
	}
	out := make([]Creator, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		var c Creator
		c.FirstName, _ = m["firstName"].(string)
		c.LastName, _ = m["lastName"].(string)
		c.Name, _ = m["name"].(string)
		c.CreatorType, _ = m["creatorType"].(string)
		out = append(out, c)
	}
	return out
}

// AddCreator appends a creator to the record.
func (it Item) AddCreator(c Creator) {
	entry := map[string]any{}
	if c.FirstName != "" {
		entry["firstName"] = c.FirstName
	}
	if c.LastName != "" {
		entry["lastName"] = c.LastName
	}
	if c.Name != "" {
		entry["name"] = c.Name
	}
	if c.CreatorType != "" {
		entry["creatorType"] = c.CreatorType
	}
	list, _ := it[KeyCreators].([]any)
	it[KeyCreators] = append(list, any(entry))
}

// Tags returns the tag list with string entries promoted to the object
// form.
func (it Item) Tags() []Tag {
	raw, ok := it[KeyTags].([]any)
	if !ok {
		return nil
	}
	out := make([]Tag, 0, len(raw))
	for _, entry := range raw {
		switch v := entry.(type) {
		case string:
			out = append(out, Tag{Tag: v})
		case map[string]any:
			var tag Tag
			tag.Tag, _ = v["tag"].(string)
			if n, ok := v["type"].(float64); ok {
				tag.Type = int(n)
			}
			out = append(out, tag)
		}
	}
	return out
}

// AddTag appends a tag string to the record.
func (it Item) AddTag(tag string) {
	list, _ := it[KeyTags].([]any)
	it[KeyTags] = append(list, any(tag))
}

// Attachments returns the raw attachment entries. Attachment shape is
// loose (title, mimeType, url, snapshot flags, an embedded document
// handle during extraction), so entries stay as maps.
func (it Item) Attachments() []map[string]any {
	raw, ok := it[KeyAttachments].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// AddAttachment appends an attachment entry to the record.
func (it Item) AddAttachment(att map[string]any) {
	list, _ := it[KeyAttachments].([]any)
	it[KeyAttachments] = append(list, any(att))
}

// AddNote appends a note body to the record.
func (it Item) AddNote(note string) {
	list, _ := it[KeyNotes].([]any)
	it[KeyNotes] = append(list, any(map[string]any{KeyNote: note}))
}

// IsStructuralKey reports whether key names one of the structured or
// bookkeeping entries rather than a registry field.
func IsStructuralKey(key string) bool {
	switch key {
	case KeyItemType, KeyCreators, KeyTags, KeyNotes, KeyNote,
		KeyAttachments, KeySeeAlso, KeyID, KeyComplete:
		return true
	}
	return false
}
