// Package query parses the free-text search syntax accepted on the
// command line into the structured query object a search test carries.
// The syntax is a sequence of terms: field:value pairs (values may be
// quoted, and must be when they contain colons or spaces) and bare
// identifier tokens recognized by shape.
//
//	doi:10.1000/xyz          {"DOI": "10.1000/xyz"}
//	isbn:978-0-306-40615-7   {"ISBN": "978-0-306-40615-7"}
//	title:"deep learning"    {"title": "deep learning"}
//	21669575                 {"PMID": "21669575"}
//	2101.00001v2             {"arXiv": "2101.00001v2"}
package query

import (
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/zotero/translate/core/errors"
)

//nolint:govet // participle grammar tags are not standard struct tags
type queryGrammar struct {
	Terms []*queryTerm `@@+`
}

//nolint:govet // participle grammar tags are not standard struct tags
type queryTerm struct {
	Quoted *string     `( @String`
	Head   *string     `| @Token )`
	Value  *queryValue `( Colon @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type queryValue struct {
	Quoted *string `( @String`
	Plain  *string `| @Token )`
}

func (t *queryTerm) head() string {
	if t.Quoted != nil {
		return *t.Quoted
	}
	return *t.Head
}

func (v *queryValue) text() string {
	if v.Quoted != nil {
		return *v.Quoted
	}
	return *v.Plain
}

var queryLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(\\"|[^"])*"`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Token", Pattern: `[^\s:"]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var queryParser = participle.MustBuild[queryGrammar](
	participle.Lexer(queryLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
)

// Identifier fields canonicalize to the key spelling search translators
// expect, whatever the user typed.
var identifierFields = map[string]string{
	"doi":   "DOI",
	"isbn":  "ISBN",
	"pmid":  "PMID",
	"arxiv": "arXiv",
}

var (
	doiRe      = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)
	arxivNewRe = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)
	arxivOldRe = regexp.MustCompile(`^[a-z][a-z-]*(\.[A-Z]{2})?/\d{7}$`)
	pmidRe     = regexp.MustCompile(`^\d{1,8}$`)
)

// Parse turns a query string into the structured search input object.
// Later terms overwrite earlier ones with the same key. A bare token
// that matches no identifier shape is an error rather than a guess.
func Parse(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.NewValidation("query", "empty query")
	}
	parsed, err := queryParser.ParseString("", s)
	if err != nil {
		return nil, errors.NewParse("search query", s, err.Error())
	}

	out := map[string]any{}
	for _, term := range parsed.Terms {
		if term.Value != nil {
			out[fieldName(term.head())] = term.Value.text()
			continue
		}
		head := term.head()
		if term.Quoted != nil {
			// A bare quoted phrase is free text.
			out["query"] = head
			continue
		}
		key, ok := classify(head)
		if !ok {
			return nil, errors.NewValidationValue("query", head, "not a recognized identifier; use field:value")
		}
		out[key] = head
	}
	return out, nil
}

func fieldName(field string) string {
	if canonical, ok := identifierFields[strings.ToLower(field)]; ok {
		return canonical
	}
	return field
}

// classify matches a bare token against the identifier shapes. ISBN is
// tried before PMID so digit-only ISBNs do not read as PubMed IDs.
func classify(token string) (string, bool) {
	switch {
	case doiRe.MatchString(token):
		return "DOI", true
	case isISBN(token):
		return "ISBN", true
	case pmidRe.MatchString(token):
		return "PMID", true
	case arxivNewRe.MatchString(token), arxivOldRe.MatchString(token):
		return "arXiv", true
	}
	return "", false
}

func isISBN(token string) bool {
	clean := strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, token)
	switch len(clean) {
	case 10:
		for i, r := range clean {
			if r >= '0' && r <= '9' {
				continue
			}
			if i == 9 && (r == 'X' || r == 'x') {
				continue
			}
			return false
		}
		return true
	case 13:
		if !strings.HasPrefix(clean, "978") && !strings.HasPrefix(clean, "979") {
			return false
		}
		for _, r := range clean {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	}
	return false
}
