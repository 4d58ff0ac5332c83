package builtin

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/zotero/translate/core/errors"
	"github.com/zotero/translate/core/item"
	"github.com/zotero/translate/core/translator"
	"github.com/zotero/translate/core/webenv"
)

// UnAPIID is the registry ID of the unAPI translator.
const UnAPIID = "e7e01cac-1e37-4da6-b078-a0e8343b0e98"

// UnAPI reads pages that advertise an unAPI endpoint: a link element
// names the server and abbr elements carry record identifiers. Records
// are fetched from the endpoint in MODS and mapped to items.
type UnAPI struct{}

func (UnAPI) Detect(ctx context.Context, caps *translator.Capabilities) (string, error) {
	doc := caps.Document
	if doc == nil {
		return "", nil
	}
	server, ids := unapiEndpoint(doc)
	if server == "" || len(ids) == 0 {
		return "", nil
	}
	if len(ids) > 1 {
		return "multiple", nil
	}
	if caps.Fetch == nil {
		return "", nil
	}
	rec, err := fetchMODS(ctx, caps, server, ids[0])
	if err != nil {
		return "", err
	}
	return rec.Type(), nil
}

func (UnAPI) Extract(ctx context.Context, caps *translator.Capabilities) ([]item.Item, error) {
	doc := caps.Document
	if doc == nil {
		return nil, errors.NewValidation("document", "unAPI extraction needs a loaded page")
	}
	if caps.Fetch == nil {
		return nil, errors.NewValidation("fetch", "unAPI extraction needs network access")
	}
	server, ids := unapiEndpoint(doc)
	if server == "" || len(ids) == 0 {
		return nil, nil
	}

	if len(ids) == 1 {
		rec, err := fetchMODS(ctx, caps, server, ids[0])
		if err != nil {
			return nil, err
		}
		return []item.Item{rec}, nil
	}

	// Fetch every record up front so the selection list carries real
	// titles and the chosen set resolves without a second round trip.
	records := make(map[string]item.Item, len(ids))
	candidates := make([]translator.Candidate, 0, len(ids))
	for _, id := range ids {
		rec, err := fetchMODS(ctx, caps, server, id)
		if err != nil {
			caps.ReportError(err)
			continue
		}
		records[id] = rec
		candidates = append(candidates, translator.Candidate{
			Key:   id,
			Title: rec.GetString("title"),
		})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	chosen := candidates
	if caps.Select != nil {
		chosen = caps.Select(candidates, nil)
	}
	out := make([]item.Item, 0, len(chosen))
	for _, c := range chosen {
		if rec, ok := records[c.Key]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// unapiEndpoint reads the advertised server and the record identifiers
// off the page. Duplicate identifiers collapse to their first mention.
func unapiEndpoint(doc translator.Document) (server string, ids []string) {
	servers := doc.Attr(`link[rel="unapi-server"]`, "href")
	if len(servers) > 0 {
		server = strings.TrimSpace(servers[0])
	}
	seen := map[string]bool{}
	for _, id := range doc.Attr("abbr.unapi-id", "title") {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return server, ids
}

func fetchMODS(ctx context.Context, caps *translator.Capabilities, server, id string) (item.Item, error) {
	endpoint := fmt.Sprintf("%s?id=%s&format=mods", server, url.QueryEscape(id))
	data, err := caps.Fetch(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return parseMODS(data)
}

// modsGenres maps MODS genre terms to item types.
var modsGenres = map[string]string{
	"book":                   "book",
	"periodical":             "journalArticle",
	"academic journal":       "journalArticle",
	"journal article":        "journalArticle",
	"article":                "journalArticle",
	"conference publication": "conferencePaper",
	"thesis":                 "thesis",
	"report":                 "report",
	"technical report":       "report",
	"newspaper":              "newspaperArticle",
	"newspaper article":      "newspaperArticle",
	"web site":               "webpage",
	"web page":               "webpage",
}

func parseMODS(data []byte) (item.Item, error) {
	x, err := webenv.ParseXML(data)
	if err != nil {
		return nil, err
	}

	rec := item.New(modsItemType(x))

	// The absolute path keeps host titles under relatedItem out of the
	// record title.
	title, ok := x.First("/mods/titleInfo/title")
	if !ok {
		title, _ = x.First("//titleInfo/title")
	}
	if strings.TrimSpace(title) == "" {
		return nil, errors.NewParse("mods", "unAPI response", "record has no title")
	}
	setField(rec, "title", title)

	for _, c := range modsCreators(x) {
		rec.AddCreator(c)
	}

	if v, ok := x.First("//originInfo/dateIssued"); ok {
		setField(rec, "date", v)
	}
	if v, ok := x.First(`//relatedItem[@type="host"]/titleInfo/title`); ok {
		setField(rec, "publicationTitle", v)
	}
	if v, ok := x.First(`//detail[@type="volume"]/number`); ok {
		setField(rec, "volume", v)
	}
	if v, ok := x.First(`//detail[@type="issue"]/number`); ok {
		setField(rec, "issue", v)
	}
	start, _ := x.First(`//extent[@unit="page"]/start`)
	end, _ := x.First(`//extent[@unit="page"]/end`)
	switch {
	case start != "" && end != "":
		setField(rec, "pages", start+"-"+end)
	case start != "":
		setField(rec, "pages", start)
	}
	if v, ok := x.First(`//identifier[@type="doi"]`); ok {
		setField(rec, "DOI", v)
	}
	if v, ok := x.First(`//identifier[@type="issn"]`); ok {
		setField(rec, "ISSN", v)
	}
	if v, ok := x.First(`//identifier[@type="isbn"]`); ok {
		setField(rec, "ISBN", v)
	}
	if v, ok := x.First("//abstract"); ok {
		setField(rec, "abstractNote", v)
	}
	if v, ok := x.First("//language/languageTerm"); ok {
		setField(rec, "language", v)
	}
	if v, ok := x.First("//originInfo/publisher"); ok {
		setField(rec, "publisher", v)
	}
	if v, ok := x.First("//location/url"); ok {
		setField(rec, "url", v)
	}

	return rec, nil
}

// modsItemType resolves the record's item type from its genre terms. A
// record with a host but no recognized genre reads as a journal
// article; anything else falls back to a generic document.
func modsItemType(x *webenv.XMLDoc) string {
	for _, genre := range x.Text("//genre") {
		if t, ok := modsGenres[strings.ToLower(strings.TrimSpace(genre))]; ok {
			return t
		}
	}
	if _, ok := x.First(`//relatedItem[@type="host"]/titleInfo/title`); ok {
		return "journalArticle"
	}
	return "document"
}

// modsCreators pairs typed family and given name parts by position.
// Records that only carry untyped name parts fall back to full-name
// splitting.
func modsCreators(x *webenv.XMLDoc) []item.Creator {
	families := x.Text(`//name/namePart[@type="family"]`)
	givens := x.Text(`//name/namePart[@type="given"]`)
	if len(families) > 0 {
		out := make([]item.Creator, 0, len(families))
		for i, family := range families {
			c := item.Creator{LastName: family, CreatorType: "author"}
			if i < len(givens) {
				c.FirstName = givens[i]
			}
			out = append(out, c)
		}
		return out
	}
	var out []item.Creator
	for _, name := range x.Text(`//name/namePart[not(@type)]`) {
		if c, ok := parseCreatorName(name, "author"); ok {
			out = append(out, c)
		}
	}
	return out
}
