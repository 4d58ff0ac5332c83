// Package item defines the bibliographic record model shared by translator
// handlers, the normalizer and the test runner.
//
// # Records
//
// An Item is one extracted bibliographic record. Records are JSON-shaped:
// scalar fields keyed by name, plus the structured creators, tags,
// attachments and notes lists. The shape of the scalar fields varies by
// item type; the field registry in this package is the authority on which
// fields a type accepts and on the type-specific names that replace
// generic base fields (for example publicationTitle becomes bookTitle on
// a bookSection).
//
// # Field registry
//
// The registry drives the normalizer's field pass: unknown fields are
// dropped, base fields are renamed onto their type-specific synonyms, and
// fields invalid for the record's type are removed. Handler authors can
// consult the same tables when mapping scraped values onto records.
package item
