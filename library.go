// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package sqlite3preload

// Handle is an opaque connection handle produced by the real library.
// The shim never inspects it; it only hands it back to the library.
type Handle any

// Message is error text allocated by the real library. Only the
// library's Free delegate may release it.
type Message interface {
	Text() string
}

// Entry point names resolved from the real library.
const (
	SymOpen   = "sqlite3_open"
	SymOpen16 = "sqlite3_open16"
	SymOpenV2 = "sqlite3_open_v2"
	SymExec   = "sqlite3_exec"
	SymFree   = "sqlite3_free"
	SymClose  = "sqlite3_close"
)

// Symbols lists every entry point the shim binds, in resolution order.
var Symbols = []string{SymOpen, SymOpen16, SymOpenV2, SymExec, SymFree, SymClose}

// Delegate signatures. A Module returns these from Symbol.
// ExecFunc receives a NUL-terminated script and may return
// library-owned error text on failure.
type (
	OpenFunc   func(filename string) (Handle, Code)
	Open16Func func(filename []uint16) (Handle, Code)
	OpenV2Func func(filename string, flags int, vfs string) (Handle, Code)
	ExecFunc   func(db Handle, script []byte) (Code, Message)
	FreeFunc   func(msg Message)
	CloseFunc  func(db Handle) Code
)

// Module is a loaded instance of the real library.
type Module interface {
	// Symbol returns the binding for name. A nil binding with a nil
	// error is treated as a missing symbol.
	Symbol(name string) (any, error)
}

// Opener loads the real library by name.
type Opener func(library string) (Module, error)

// Delegates is the table of real entry points. It is immutable once
// resolved and safe for concurrent use.
type Delegates struct {
	Library string
	Open    OpenFunc
	Open16  Open16Func
	OpenV2  OpenV2Func
	Exec    ExecFunc
	Free    FreeFunc
	Close   CloseFunc
}
