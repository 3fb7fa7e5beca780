// Copyright (c) 2026 Michael D Henderson. All rights reserved.

// Package sqlite3preload runs an SQL init script on every SQLite
// connection as it is opened, without changes to the code that opens it.
//
// The package binds the real library's open, exec, free and close entry
// points once (see Resolver), and wraps the three open variants
// (sqlite3_open, sqlite3_open16, sqlite3_open_v2) in a Shim. Each wrapped
// open reads the init script, calls the real open, and runs the script on
// the new connection. A connection is only handed back if no script is
// configured or the script ran cleanly; otherwise it is closed and the
// open reports SQLITE_CANTOPEN.
//
// # Environment
//
//   - SQLITE3_LIBRARY: the real library. For the dl backend this is a
//     shared object (default libsqlite3.so.0); for the database/sql
//     backend it is a registered driver name (default DefaultDriverName).
//   - SQLITE3_INIT_SQL: path of the init script. Unset means no script.
//
// The prefix can be changed with Config.EnvPrefix.
//
// # Backends
//
// The cmd/sqlite3-preload command builds an LD_PRELOAD library over the
// dl package. Go programs can get the same behavior from database/sql:
//
//	import _ "modernc.org/sqlite"
//
//	func init() {
//	    sqlite3preload.Register("sqlite3-preload", sqlite3preload.Config{})
//	}
//
//	db, err := sql.Open("sqlite3-preload", "app.db")
//
// # Driver Support
//
// The database/sql backend defaults to modernc.org/sqlite. Build with
// -tags mattn to use github.com/mattn/go-sqlite3 instead.
package sqlite3preload
