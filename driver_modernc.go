// Copyright (c) 2026 Michael D Henderson. All rights reserved.

//go:build !mattn

package sqlite3preload

import (
	"errors"

	"modernc.org/sqlite"
)

// DefaultDriverName is the database/sql driver used as the real library
// when PREFIX_LIBRARY is not set. modernc.org/sqlite registers "sqlite".
const DefaultDriverName = "sqlite"

// driverCode extracts the SQLite result code from a modernc.org/sqlite error.
func driverCode(err error) (Code, bool) {
	var e *sqlite.Error
	if errors.As(err, &e) {
		return Code(e.Code()), true
	}
	return 0, false
}
