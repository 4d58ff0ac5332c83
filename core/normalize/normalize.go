// Package normalize canonicalizes extracted records before comparison.
// The comparison form strips everything that is environment-dependent
// or compared out of band, so two runs of the same translator against
// the same source produce byte-identical normalized records.
package normalize

import (
	"encoding/json"
	"sort"

	"github.com/zotero/translate/core/item"
)

// Attachment entry keys handled by the first cleaning step.
const (
	attachDocument = "document"
	attachMIMEType = "mimeType"
	attachURL      = "url"
	attachComplete = "complete"

	// Media type recorded for a saved page snapshot once the live
	// document handle has been removed.
	snapshotMIME = "text/html"
)

// Normalize returns the comparison form of a record. The input is not
// modified. Steps run in a fixed order: attachment cleanup, a
// serialization round trip, removal of structural fields, field
// registry canonicalization, capture-date removal, tag sorting.
// Normalizing an already normalized record is a no-op, and no input
// makes it fail.
func Normalize(it item.Item) item.Item {
	if it == nil {
		return nil
	}
	itemType := it.Type()
	out := cleanAttachments(it)
	out = roundTrip(out)
	out = dropStructural(out)
	out = applyFieldRegistry(out, itemType)
	out = dropAccessDate(out)
	return sortTags(out)
}

// ForSave returns the fixture-recording form of a record: attachments
// are cleaned, the value round-tripped, the capture date removed, and
// tags canonicalized, but display content (creators, notes, tags,
// attachments, the item type) is kept so the stored fixture stays
// readable. Also idempotent.
func ForSave(it item.Item) item.Item {
	if it == nil {
		return nil
	}
	out := cleanAttachments(it)
	out = roundTrip(out)
	out = dropAccessDate(out)
	return sortTags(out)
}

// All maps Normalize over a record list, preserving order.
func All(items []item.Item) []item.Item {
	if items == nil {
		return nil
	}
	out := make([]item.Item, len(items))
	for i, it := range items {
		out[i] = Normalize(it)
	}
	return out
}

// cleanAttachments removes live document handles from attachment
// entries, recording the snapshot media type in their place, and drops
// transient url and completion markers.
func cleanAttachments(it item.Item) item.Item {
	raw, ok := it[item.KeyAttachments].([]any)
	if !ok || len(raw) == 0 {
		return it
	}
	cleaned := make([]any, len(raw))
	for i, entry := range raw {
		att, ok := entry.(map[string]any)
		if !ok {
			cleaned[i] = entry
			continue
		}
		copied := make(map[string]any, len(att))
		for k, v := range att {
			copied[k] = v
		}
		if _, hasDoc := copied[attachDocument]; hasDoc {
			delete(copied, attachDocument)
			copied[attachMIMEType] = snapshotMIME
		}
		delete(copied, attachURL)
		delete(copied, attachComplete)
		cleaned[i] = copied
	}
	out := shallowCopy(it)
	out[item.KeyAttachments] = cleaned
	return out
}

// roundTrip drops values that cannot survive serialization, such as
// callbacks or cyclic structures a translator left on the record. When
// even the per-field retry cannot serialize, the record is returned
// unchanged.
func roundTrip(it item.Item) item.Item {
	data, err := json.Marshal(it)
	if err != nil {
		trimmed := make(item.Item, len(it))
		for k, v := range it {
			if _, err := json.Marshal(v); err != nil {
				continue
			}
			trimmed[k] = v
		}
		if data, err = json.Marshal(trimmed); err != nil {
			return it
		}
	}
	var out item.Item
	if err := json.Unmarshal(data, &out); err != nil {
		return it
	}
	return out
}

// dropStructural removes fields compared out of band or not meaningful
// for comparison: notes, internal identifiers, attachments, tags,
// see-also links, the item type tag, creators, and completion flags.
func dropStructural(it item.Item) item.Item {
	out := make(item.Item, len(it))
	for k, v := range it {
		if item.IsStructuralKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// applyFieldRegistry canonicalizes the remaining fields against the
// item-field registry for the given type: unknown or empty fields are
// dropped, base fields are renamed onto their type-specific synonyms,
// and fields invalid for the type are dropped. When the record already
// carries the type-specific field, the base field is discarded rather
// than renamed over it.
func applyFieldRegistry(it item.Item, itemType string) item.Item {
	out := make(item.Item, len(it))
	keys := make([]string, 0, len(it))
	for k := range it {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if item.IsStructuralKey(k) {
			out[k] = it[k]
			continue
		}
		v := it[k]
		if isFalsy(v) || !item.KnownField(k) {
			continue
		}
		name := k
		if syn, ok := item.Synonym(itemType, k); ok {
			if _, specific := it[syn]; specific {
				continue
			}
			name = syn
		}
		if !item.ValidField(itemType, name) {
			continue
		}
		out[name] = v
	}
	return out
}

// dropAccessDate removes the capture timestamp, which varies by
// environment and run time.
func dropAccessDate(it item.Item) item.Item {
	if _, ok := it[item.KeyAccessDate]; !ok {
		return it
	}
	out := shallowCopy(it)
	delete(out, item.KeyAccessDate)
	return out
}

// sortTags canonicalizes each tag entry to object form and orders the
// list lexicographically by tag text, so tag order never affects
// equality.
func sortTags(it item.Item) item.Item {
	raw, ok := it[item.KeyTags].([]any)
	if !ok {
		return it
	}
	tags := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		switch v := entry.(type) {
		case string:
			tags = append(tags, map[string]any{"tag": v})
		case map[string]any:
			text, _ := v["tag"].(string)
			tag := map[string]any{"tag": text}
			if n, ok := v["type"].(float64); ok && n != 0 {
				tag["type"] = n
			}
			tags = append(tags, tag)
		}
	}
	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i]["tag"].(string) < tags[j]["tag"].(string)
	})
	sorted := make([]any, len(tags))
	for i, tag := range tags {
		sorted[i] = tag
	}
	out := shallowCopy(it)
	out[item.KeyTags] = sorted
	return out
}

// isFalsy reports whether a field value counts as empty in the JSON
// data model.
func isFalsy(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case float64:
		return val == 0
	}
	return false
}

func shallowCopy(it item.Item) item.Item {
	out := make(item.Item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}
