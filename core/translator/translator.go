// Package translator models translator modules: their metadata header,
// source body, embedded test fixtures, and the execution contract the
// runner drives them through.
package translator

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/zotero/translate/core/errors"
)

// Kind is the bitmask of behaviors a translator implements. A module
// may combine several, most commonly web together with search.
type Kind int

// Kind bits, matching the translatorType values stored in metadata.
const (
	KindImport Kind = 1 << iota
	KindExport
	KindWeb
	KindSearch
)

var kindNames = []struct {
	bit  Kind
	name string
}{
	{KindImport, "import"},
	{KindExport, "export"},
	{KindWeb, "web"},
	{KindSearch, "search"},
}

// Has reports whether all bits of other are set.
func (k Kind) Has(other Kind) bool {
	return k&other == other
}

// Names returns the set bits as kind names, in bit order.
func (k Kind) Names() []string {
	var names []string
	for _, entry := range kindNames {
		if k.Has(entry.bit) {
			names = append(names, entry.name)
		}
	}
	return names
}

func (k Kind) String() string {
	names := k.Names()
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// KindForTest maps a test type name onto the kind bit exercising it.
func KindForTest(testType string) (Kind, bool) {
	for _, entry := range kindNames {
		if entry.name == testType {
			return entry.bit, true
		}
	}
	return 0, false
}

// Metadata is the JSON header that opens every translator source file.
type Metadata struct {
	TranslatorID   string `json:"translatorID"`
	Label          string `json:"label"`
	Creator        string `json:"creator"`
	Target         string `json:"target"`
	MinVersion     string `json:"minVersion"`
	MaxVersion     string `json:"maxVersion"`
	Priority       int    `json:"priority"`
	InRepository   bool   `json:"inRepository"`
	TranslatorType Kind   `json:"translatorType"`
	BrowserSupport string `json:"browserSupport"`
	LastUpdated    string `json:"lastUpdated"`
}

// Translator is one parsed translator module.
type Translator struct {
	Metadata

	// Source is everything after the metadata header, including the
	// embedded fixture block if present.
	Source string

	// Path records where the module was loaded from, empty for
	// modules parsed from memory.
	Path string

	raw []byte

	targetOnce sync.Once
	targetRe   *regexp.Regexp
}

// Parse reads a translator source file: a JSON metadata object followed
// by the executable body.
func Parse(data []byte) (*Translator, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.NewParse("translator", "", "missing metadata header")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var meta Metadata
	if err := dec.Decode(&meta); err != nil {
		return nil, errors.NewParse("translator", "", "malformed metadata header: "+err.Error())
	}
	if meta.TranslatorID == "" {
		return nil, errors.NewParse("translator", "", "metadata header has no translatorID")
	}
	if meta.Label == "" {
		return nil, errors.NewParse("translator", "", "metadata header has no label")
	}
	if meta.TranslatorType == 0 {
		return nil, errors.NewParse("translator", meta.Label, "metadata header has no translatorType")
	}

	body := trimmed[dec.InputOffset():]
	return &Translator{
		Metadata: meta,
		Source:   string(body),
		raw:      append([]byte(nil), data...),
	}, nil
}

// Hash returns the hex BLAKE3 digest of the full source file, used to
// detect translator drift between recorded runs.
func (t *Translator) Hash() string {
	sum := blake3.Sum256(t.raw)
	return hex.EncodeToString(sum[:])
}

// Supports reports whether the translator implements the given kind.
func (t *Translator) Supports(kind Kind) bool {
	return t.TranslatorType.Has(kind)
}

// Matches reports whether a URL matches the translator's target
// pattern. Translators without a target, or with a pattern this
// regexp engine cannot compile, match nothing.
func (t *Translator) Matches(url string) bool {
	t.targetOnce.Do(func() {
		if t.Target == "" {
			return
		}
		re, err := regexp.Compile(t.Target)
		if err != nil {
			return
		}
		t.targetRe = re
	})
	return t.targetRe != nil && t.targetRe.MatchString(url)
}

func (t *Translator) String() string {
	return t.Label + " (" + t.TranslatorID + ")"
}

// SortByPriority orders translators by ascending priority, lower
// values first, with the label breaking ties.
func SortByPriority(list []*Translator) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].Label < list[j].Label
	})
}
