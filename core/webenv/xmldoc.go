package webenv

import (
	"bytes"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/zotero/translate/core/errors"
)

// XMLDoc wraps a parsed XML response, as returned by metadata services
// translators query behind a page (unAPI endpoints, OAI feeds).
type XMLDoc struct {
	root *xmlquery.Node
}

// ParseXML parses bytes into a queryable document.
func ParseXML(data []byte) (*XMLDoc, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewParse("xml", "", err.Error())
	}
	return &XMLDoc{root: root}, nil
}

// Text returns the trimmed text of every node matching the XPath
// expression, in document order. An invalid expression yields nothing.
func (d *XMLDoc) Text(expr string) []string {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil
	}
	nodes := xmlquery.QuerySelectorAll(d.root, compiled)
	out := make([]string, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, strings.TrimSpace(node.InnerText()))
	}
	return out
}

// First returns the trimmed text of the first matching node.
func (d *XMLDoc) First(expr string) (string, bool) {
	all := d.Text(expr)
	if len(all) == 0 {
		return "", false
	}
	return all[0], true
}

// Attr returns the named attribute of every matching node, skipping
// nodes without it.
func (d *XMLDoc) Attr(expr, name string) []string {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil
	}
	nodes := xmlquery.QuerySelectorAll(d.root, compiled)
	var out []string
	for _, node := range nodes {
		value := node.SelectAttr(name)
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
