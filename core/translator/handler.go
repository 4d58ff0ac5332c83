package translator

import (
	"context"
	"sort"
	"sync"

	"github.com/zotero/translate/core/item"
)

// Document is the read view of a loaded page that a web translator
// runs against. The web environment provides the implementation.
type Document interface {
	// URL returns the document's final URL after redirects.
	URL() string
	// Title returns the document title.
	Title() string
	// Meta returns the content of the first meta element whose name
	// or property attribute matches key, or "".
	Meta(key string) string
	// MetaAll returns the contents of every matching meta element, in
	// document order.
	MetaAll(key string) []string
	// Text returns the text content of elements matching a CSS
	// selector, in document order.
	Text(selector string) []string
	// Attr returns the given attribute of elements matching a CSS
	// selector, skipping elements without it.
	Attr(selector, attr string) []string
	// HTML returns the serialized document.
	HTML() (string, error)
}

// Candidate is one entry offered to a selection handler when detection
// finds several plausible records on a page. Order is significant.
type Candidate struct {
	Key   string
	Title string
}

// SelectFunc resolves an ambiguous multi-candidate detection. The
// callback is invoked asynchronously with the chosen set; the return
// value carries the same answer for callers that wait in place.
type SelectFunc func(candidates []Candidate, callback func([]Candidate)) []Candidate

// Capabilities is everything a translator invocation may touch. Fields
// are nil when the capability is not available on the current path:
// Document only exists for web runs, Query only for search runs.
type Capabilities struct {
	Translator *Translator

	// Input carries the import body, or the URL for web runs.
	Input string
	// Query carries the structured search query.
	Query map[string]any

	Document Document

	// Fetch issues a GET on behalf of the translator. Nil means no
	// network access on this path.
	Fetch func(ctx context.Context, url string) ([]byte, error)

	// Debug and Error are the caller's sinks for translator chatter.
	Debug func(msg string)
	Error func(err error)

	// Select resolves multi-candidate detection. Nil means the
	// translator must not ask.
	Select SelectFunc
}

// Debugf sends to the debug sink when one is attached.
func (c *Capabilities) Debugf(msg string) {
	if c.Debug != nil {
		c.Debug(msg)
	}
}

// ReportError sends to the error sink when one is attached.
func (c *Capabilities) ReportError(err error) {
	if c.Error != nil && err != nil {
		c.Error(err)
	}
}

// Handler executes one translator's behavior. Detect returns the item
// type name the translator claims for the input, "multiple" for a
// listing page, or "" when it does not handle the input. Extract
// produces the records.
type Handler interface {
	Detect(ctx context.Context, caps *Capabilities) (string, error)
	Extract(ctx context.Context, caps *Capabilities) ([]item.Item, error)
}

// Result is what one extraction attempt reports back: the detected
// type, the produced records, and a reason when something went wrong.
type Result struct {
	DetectedItemType string
	Items            []item.Item
	Reason           string
}

var (
	handlersMu sync.RWMutex
	handlers   = map[string]Handler{}
)

// RegisterHandler binds an execution handler to a translator ID,
// replacing any previous binding.
func RegisterHandler(translatorID string, h Handler) {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	handlers[translatorID] = h
}

// HandlerFor returns the handler bound to a translator ID.
func HandlerFor(translatorID string) (Handler, bool) {
	handlersMu.RLock()
	defer handlersMu.RUnlock()
	h, ok := handlers[translatorID]
	return h, ok
}

// Handlers returns the bound translator IDs, sorted.
func Handlers() []string {
	handlersMu.RLock()
	defer handlersMu.RUnlock()
	ids := make([]string, 0, len(handlers))
	for id := range handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ClearHandlers removes every binding. Tests use it to isolate
// registrations.
func ClearHandlers() {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	handlers = map[string]Handler{}
}
