package webenv

import (
	"testing"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<formats id="https://example.org/item/1">
	<format name="mods" type="application/xml" docs="https://example.org/docs"/>
	<format name="bibtex" type="text/plain"/>
	<title>  A Sample Record  </title>
</formats>`

func TestParseXML(t *testing.T) {
	doc, err := ParseXML([]byte(sampleXML))
	if err != nil {
		t.Fatalf("ParseXML failed: %v", err)
	}

	names := doc.Attr("//format", "name")
	if len(names) != 2 || names[0] != "mods" || names[1] != "bibtex" {
		t.Errorf("Attr(//format, name) = %v", names)
	}

	title, ok := doc.First("//title")
	if !ok || title != "A Sample Record" {
		t.Errorf("First(//title) = %q, %v", title, ok)
	}

	if _, ok := doc.First("//missing"); ok {
		t.Error("First should report no match")
	}

	if got := doc.Text("//format[@name='mods']/@type"); len(got) != 1 || got[0] != "application/xml" {
		t.Errorf("attribute query = %v", got)
	}
}

func TestParseXMLErrors(t *testing.T) {
	if _, err := ParseXML([]byte("<<< not xml")); err == nil {
		t.Error("expected parse error for malformed input")
	}
}

func TestXMLInvalidExpression(t *testing.T) {
	doc, err := ParseXML([]byte(sampleXML))
	if err != nil {
		t.Fatalf("ParseXML failed: %v", err)
	}
	if got := doc.Text("///["); got != nil {
		t.Errorf("invalid expression should yield nothing, got %v", got)
	}
}
