//go:build cgo_sqlite

// CGO SQLite driver selection. Build with:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite
//
// The driver registration lives in contrib/sqlite-external so the CGO
// dependency stays out of default builds.
package sqlite

import (
	_ "github.com/zotero/translate/contrib/sqlite-external" // CGO SQLite driver
)

const (
	driverName    = "sqlite3"
	driverType    = "cgo"
	driverPackage = "github.com/mattn/go-sqlite3 (via contrib/sqlite-external)"
)
