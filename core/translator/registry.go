package translator

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zotero/translate/core/errors"
	"github.com/zotero/translate/internal/logging"
)

// Registry holds the translators loaded from a directory, addressable
// by ID or label.
type Registry struct {
	dir  string
	byID map[string]*Translator
	list []*Translator
}

// LoadDir reads every .js file in dir as a translator module. Files
// whose metadata header does not parse are skipped with a warning; an
// unreadable directory is an error.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewIO("read translator directory", dir, err)
	}

	reg := &Registry{dir: dir, byID: map[string]*Translator{}}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".js") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logging.TranslatorSkipped(path, err)
			continue
		}
		tr, err := Parse(data)
		if err != nil {
			logging.TranslatorSkipped(path, err)
			continue
		}
		tr.Path = path
		reg.add(tr)
		logging.TranslatorLoad(tr.TranslatorID, tr.Label, tr.TranslatorType.String())
	}

	sort.Slice(reg.list, func(i, j int) bool {
		return reg.list[i].Label < reg.list[j].Label
	})
	return reg, nil
}

// NewRegistry builds a registry from already parsed translators,
// used by tests and by callers that assemble modules in memory.
func NewRegistry(translators ...*Translator) *Registry {
	reg := &Registry{byID: map[string]*Translator{}}
	for _, tr := range translators {
		reg.add(tr)
	}
	sort.Slice(reg.list, func(i, j int) bool {
		return reg.list[i].Label < reg.list[j].Label
	})
	return reg
}

func (r *Registry) add(tr *Translator) {
	if prev, ok := r.byID[tr.TranslatorID]; ok {
		for i, existing := range r.list {
			if existing == prev {
				r.list = append(r.list[:i], r.list[i+1:]...)
				break
			}
		}
	}
	r.byID[tr.TranslatorID] = tr
	r.list = append(r.list, tr)
}

// Dir returns the directory the registry was loaded from.
func (r *Registry) Dir() string {
	return r.dir
}

// Len returns the number of loaded translators.
func (r *Registry) Len() int {
	return len(r.list)
}

// All returns the translators sorted by label.
func (r *Registry) All() []*Translator {
	out := make([]*Translator, len(r.list))
	copy(out, r.list)
	return out
}

// Get returns the translator with the given ID.
func (r *Registry) Get(id string) (*Translator, error) {
	if tr, ok := r.byID[id]; ok {
		return tr, nil
	}
	return nil, errors.NewNotFound("translator", id)
}

// Lookup resolves an ID or a label, trying the ID first.
func (r *Registry) Lookup(idOrLabel string) (*Translator, error) {
	if tr, ok := r.byID[idOrLabel]; ok {
		return tr, nil
	}
	for _, tr := range r.list {
		if tr.Label == idOrLabel {
			return tr, nil
		}
	}
	return nil, errors.NewNotFound("translator", idOrLabel)
}

// ForURL returns the web translators whose target pattern matches the
// URL, ordered by ascending priority. This is the discovery ranking
// that single-translator test runs deliberately bypass.
func (r *Registry) ForURL(url string) []*Translator {
	var matched []*Translator
	for _, tr := range r.list {
		if tr.Supports(KindWeb) && tr.Matches(url) {
			matched = append(matched, tr)
		}
	}
	SortByPriority(matched)
	return matched
}
