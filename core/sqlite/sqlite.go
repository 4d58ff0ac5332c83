// Package sqlite selects the SQLite driver the run-history store rides
// on and gives callers one place to open databases with it.
//
// Build modes:
//   - Default: pure Go modernc.org/sqlite, no CGO required.
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): mattn/go-sqlite3,
//     registered through contrib/sqlite-external.
//
// The registered driver name differs between the two ("sqlite" vs
// "sqlite3"), so open databases through Open rather than sql.Open.
package sqlite

import (
	"database/sql"
)

// DriverName returns the name the active driver registered with
// database/sql.
func DriverName() string {
	return driverName
}

// DriverType identifies the underlying implementation: "purego" for
// modernc.org/sqlite, "cgo" for mattn/go-sqlite3.
func DriverType() string {
	return driverType
}

// IsCGO reports whether the CGO implementation is active.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens a SQLite database through the active driver.
func Open(dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// OpenReadOnly opens an existing database read-only. The file: URI form
// carries the mode for both drivers.
func OpenReadOnly(path string) (*sql.DB, error) {
	return Open("file:" + path + "?mode=ro")
}

// Info describes the active driver configuration, as surfaced by the
// version command.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns the active driver configuration.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
