// Package webenv provides the web execution environment: the boundary
// the runner goes through for page-based test runs. The default
// implementation fetches documents over HTTP; tests and embedders can
// substitute anything that honors the same four operations.
package webenv

import (
	"context"

	"github.com/zotero/translate/core/translator"
)

// Page is the opaque handle to an acquired document. It exposes the
// read view translators consume.
type Page = translator.Document

// Hooks is the handler set the caller supplies for one extraction:
// sinks for translator chatter and the resolver for ambiguous
// multi-candidate detection.
type Hooks struct {
	Debug  func(msg string)
	Error  func(err error)
	Select translator.SelectFunc
}

// Environment is the contract for page-based execution. Implementations
// must keep the four operations independent: a page acquired once is
// released exactly once, on every exit path.
type Environment interface {
	// AcquirePage fetches and parses the document at url. Each call
	// gets its own cookie scope.
	AcquirePage(ctx context.Context, url string) (Page, error)

	// Loaded reports whether the page is confirmed fully loaded.
	// False means unknown; the caller may choose to wait.
	Loaded(page Page) bool

	// Extract runs the translator's detection-then-extraction pipeline
	// against the page. The context carries cancellation; hooks carry
	// the caller's sinks. A nil result never accompanies a nil error.
	Extract(ctx context.Context, page Page, tr *translator.Translator, hooks *Hooks) (*translator.Result, error)

	// Release disposes any resources tied to the page handle. Safe to
	// call with a page that failed mid-acquire conventions; callers
	// invoke it unconditionally.
	Release(page Page)
}
