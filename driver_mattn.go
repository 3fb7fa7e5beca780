// Copyright (c) 2026 Michael D Henderson. All rights reserved.

//go:build mattn

package sqlite3preload

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// DefaultDriverName is the database/sql driver used as the real library
// when PREFIX_LIBRARY is not set. github.com/mattn/go-sqlite3 registers "sqlite3".
const DefaultDriverName = "sqlite3"

// driverCode extracts the SQLite result code from a mattn/go-sqlite3 error.
func driverCode(err error) (Code, bool) {
	var e sqlite3.Error
	if errors.As(err, &e) {
		return Code(e.Code), true
	}
	return 0, false
}
