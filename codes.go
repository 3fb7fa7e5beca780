// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package sqlite3preload

import (
	"errors"
	"fmt"
)

// Code is a SQLite primary result code.
type Code int

// Result codes used by the shim. Values match sqlite3.h.
const (
	OK       Code = 0
	Error    Code = 1
	NoMem    Code = 7
	CantOpen Code = 14
	Misuse   Code = 21
)

var codeNames = map[Code]string{
	OK:       "SQLITE_OK",
	Error:    "SQLITE_ERROR",
	NoMem:    "SQLITE_NOMEM",
	CantOpen: "SQLITE_CANTOPEN",
	Misuse:   "SQLITE_MISUSE",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("SQLITE_%d", int(c))
}

var (
	// ErrCantOpen matches any *OpenError carrying CantOpen.
	ErrCantOpen = errors.New("unable to open database")

	// ErrScriptOpen is returned when the init script cannot be opened.
	ErrScriptOpen = errors.New("cannot open init script")

	// ErrScriptRead is returned when reading the init script fails part way.
	ErrScriptRead = errors.New("cannot read init script")

	// ErrUnresolved is returned when a delegate cannot be bound.
	ErrUnresolved = errors.New("unresolved symbol")
)

// OpenError reports a failed open through the database/sql surface.
type OpenError struct {
	Op   string
	Code Code
	Err  error // underlying driver error, if any
}

func (e *OpenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Is reports CantOpen errors as ErrCantOpen.
func (e *OpenError) Is(target error) bool {
	return target == ErrCantOpen && e.Code == CantOpen
}
