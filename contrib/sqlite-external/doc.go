// Package sqliteexternal registers the optional CGO SQLite driver.
//
// The run-history store defaults to a pure Go SQLite implementation and
// needs nothing from here. Builds that want mattn/go-sqlite3 instead
// (faster on large history databases, access to SQLite extensions)
// import this package through core/sqlite's cgo_sqlite build tag:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite
//
// Keeping the registration in contrib isolates the CGO dependency from
// default cross-compiled builds.
package sqliteexternal
