package builtin

import (
	"context"
	"strings"

	"github.com/zotero/translate/core/errors"
	"github.com/zotero/translate/core/item"
	"github.com/zotero/translate/core/translator"
)

// EmbeddedMetadataID is the registry ID of the embedded-metadata
// translator.
const EmbeddedMetadataID = "951c027d-74ac-47d4-a107-9c3069ab7b48"

// EmbeddedMetadata reads bibliographic data straight out of a page's
// meta elements. Highwire Press citation_* tags take priority; Dublin
// Core tags are the fallback and classify the page as a webpage.
type EmbeddedMetadata struct{}

// dcPrefixes are the meta-name spellings Dublin Core fields appear
// under in the wild.
var dcPrefixes = []string{"DC.", "dc.", "DCTERMS.", "dcterms."}

func dcMeta(doc translator.Document, name string) string {
	for _, p := range dcPrefixes {
		if v := doc.Meta(p + name); v != "" {
			return v
		}
	}
	return ""
}

func dcMetaAll(doc translator.Document, name string) []string {
	for _, p := range dcPrefixes {
		if vs := doc.MetaAll(p + name); len(vs) > 0 {
			return vs
		}
	}
	return nil
}

func firstMeta(doc translator.Document, keys ...string) string {
	for _, k := range keys {
		if v := doc.Meta(k); v != "" {
			return v
		}
	}
	return ""
}

// highwireType infers the item type from which citation_* container
// tags are present. Checks run from most to least specific; a page
// with no container tag at all still reads as a journal article, the
// dominant case for Highwire metadata.
func highwireType(doc translator.Document) string {
	switch {
	case doc.Meta("citation_inbook_title") != "":
		return "bookSection"
	case doc.Meta("citation_conference_title") != "":
		return "conferencePaper"
	case doc.Meta("citation_dissertation_institution") != "":
		return "thesis"
	case doc.Meta("citation_technical_report_institution") != "",
		doc.Meta("citation_technical_report_number") != "":
		return "report"
	case doc.Meta("citation_journal_title") != "":
		return "journalArticle"
	case doc.Meta("citation_isbn") != "":
		return "book"
	}
	return "journalArticle"
}

func (EmbeddedMetadata) Detect(ctx context.Context, caps *translator.Capabilities) (string, error) {
	doc := caps.Document
	if doc == nil {
		return "", nil
	}
	if doc.Meta("citation_title") != "" {
		return highwireType(doc), nil
	}
	if dcMeta(doc, "title") != "" {
		return "webpage", nil
	}
	return "", nil
}

func (h EmbeddedMetadata) Extract(ctx context.Context, caps *translator.Capabilities) ([]item.Item, error) {
	doc := caps.Document
	if doc == nil {
		return nil, errors.NewValidation("document", "embedded metadata extraction needs a loaded page")
	}
	itemType, err := h.Detect(ctx, caps)
	if err != nil || itemType == "" {
		return nil, err
	}

	rec := item.New(itemType)

	title := doc.Meta("citation_title")
	if title == "" {
		title = dcMeta(doc, "title")
	}
	if title == "" {
		title = doc.Title()
	}
	setField(rec, "title", title)

	for _, c := range embeddedCreators(doc) {
		rec.AddCreator(c)
	}

	date := firstMeta(doc, "citation_publication_date", "citation_cover_date",
		"citation_date", "citation_online_date")
	if date == "" {
		date = dcMeta(doc, "date")
	}
	setField(rec, "date", date)

	setField(rec, "publicationTitle", doc.Meta("citation_journal_title"))
	setField(rec, "journalAbbreviation", doc.Meta("citation_journal_abbrev"))
	setField(rec, "bookTitle", doc.Meta("citation_inbook_title"))
	setField(rec, "conferenceName", doc.Meta("citation_conference_title"))
	setField(rec, "university", doc.Meta("citation_dissertation_institution"))
	setField(rec, "institution", doc.Meta("citation_technical_report_institution"))
	setField(rec, "reportNumber", doc.Meta("citation_technical_report_number"))
	setField(rec, "volume", doc.Meta("citation_volume"))
	setField(rec, "issue", doc.Meta("citation_issue"))
	setField(rec, "pages", pageRange(doc))
	setField(rec, "DOI", doc.Meta("citation_doi"))
	setField(rec, "ISSN", doc.Meta("citation_issn"))
	setField(rec, "ISBN", doc.Meta("citation_isbn"))

	publisher := doc.Meta("citation_publisher")
	if publisher == "" {
		publisher = dcMeta(doc, "publisher")
	}
	setField(rec, "publisher", publisher)

	lang := doc.Meta("citation_language")
	if lang == "" {
		lang = dcMeta(doc, "language")
	}
	setField(rec, "language", lang)

	abstract := doc.Meta("citation_abstract")
	if abstract == "" {
		abstract = dcMeta(doc, "description")
	}
	if abstract == "" {
		abstract = doc.Meta("description")
	}
	setField(rec, "abstractNote", abstract)

	pageURL := firstMeta(doc, "citation_public_url", "citation_abstract_html_url")
	if pageURL == "" {
		pageURL = doc.URL()
	}
	setField(rec, "url", pageURL)

	for _, tag := range keywordTags(doc) {
		rec.AddTag(tag)
	}

	rec.AddAttachment(map[string]any{
		"title":    "Snapshot",
		"mimeType": "text/html",
	})

	return []item.Item{rec}, nil
}

// embeddedCreators reads citation_author tags, falling back to Dublin
// Core creators then contributors. A single tag may pack several names
// separated by semicolons.
func embeddedCreators(doc translator.Document) []item.Creator {
	creatorType := "author"
	raw := doc.MetaAll("citation_author")
	if len(raw) == 0 {
		raw = dcMetaAll(doc, "creator")
	}
	if len(raw) == 0 {
		raw = dcMetaAll(doc, "contributor")
		creatorType = "contributor"
	}
	var out []item.Creator
	for _, entry := range raw {
		for _, name := range strings.Split(entry, ";") {
			if c, ok := parseCreatorName(name, creatorType); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

func pageRange(doc translator.Document) string {
	first := doc.Meta("citation_firstpage")
	last := doc.Meta("citation_lastpage")
	switch {
	case first != "" && last != "":
		return first + "-" + last
	case first != "":
		return first
	}
	return ""
}

// keywordTags splits citation_keywords values on semicolons and commas,
// falling back to the plain keywords meta tag.
func keywordTags(doc translator.Document) []string {
	raw := doc.MetaAll("citation_keywords")
	if len(raw) == 0 {
		if v := doc.Meta("keywords"); v != "" {
			raw = []string{v}
		}
	}
	var out []string
	for _, entry := range raw {
		for _, tag := range strings.FieldsFunc(entry, func(r rune) bool {
			return r == ';' || r == ','
		}) {
			tag = strings.TrimSpace(tag)
			if tag != "" {
				out = append(out, tag)
			}
		}
	}
	return out
}
