// Package builtin binds execution handlers for the translators that
// ship with the corpus. Importing the package registers them; embedders
// that load their own handler set call Register after clearing.
package builtin

import (
	"strings"

	"github.com/zotero/translate/core/item"
	"github.com/zotero/translate/core/translator"
)

// Register binds every built-in handler, replacing prior bindings.
func Register() {
	translator.RegisterHandler(EmbeddedMetadataID, EmbeddedMetadata{})
	translator.RegisterHandler(UnAPIID, UnAPI{})
}

func init() {
	Register()
}

// setField assigns a scalar field under the name the record's item type
// accepts. Base fields resolve through the synonym table, fields the
// type rejects are dropped, and an already-set field keeps its first
// value.
func setField(rec item.Item, field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	itemType := rec.Type()
	if specific, ok := item.Synonym(itemType, field); ok {
		field = specific
	}
	if !item.ValidField(itemType, field) {
		return
	}
	if rec.GetString(field) != "" {
		return
	}
	rec.Set(field, value)
}

// parseCreatorName splits a personal name written either "Family,
// Given" or "Given Family". A single token becomes a bare family name.
func parseCreatorName(name, creatorType string) (item.Creator, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return item.Creator{}, false
	}
	if family, given, ok := strings.Cut(name, ","); ok {
		family = strings.TrimSpace(family)
		given = strings.TrimSpace(given)
		if family == "" && given == "" {
			return item.Creator{}, false
		}
		return item.Creator{
			FirstName:   given,
			LastName:    family,
			CreatorType: creatorType,
		}, true
	}
	parts := strings.Fields(name)
	if len(parts) == 1 {
		return item.Creator{LastName: parts[0], CreatorType: creatorType}, true
	}
	return item.Creator{
		FirstName:   strings.Join(parts[:len(parts)-1], " "),
		LastName:    parts[len(parts)-1],
		CreatorType: creatorType,
	}, true
}
