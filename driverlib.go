// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package sqlite3preload

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"unicode/utf16"
)

// Flags accepted by OpenV2. Values match sqlite3.h.
const (
	OpenReadOnly     = 0x00000001
	OpenReadWrite    = 0x00000002
	OpenCreate       = 0x00000004
	OpenURI          = 0x00000040
	OpenMemory       = 0x00000080
	OpenNoMutex      = 0x00008000
	OpenFullMutex    = 0x00010000
	OpenSharedCache  = 0x00020000
	OpenPrivateCache = 0x00040000
)

// DriverModule exposes a registered database/sql SQLite driver as the
// real library. Handles are driver.Conn values.
type DriverModule struct {
	name string
	drv  driver.Driver
}

// OpenDriver is an Opener that looks up a registered database/sql driver.
func OpenDriver(name string) (Module, error) {
	// sql.Open only looks the driver up; it does not connect.
	db, err := sql.Open(name, "")
	if err != nil {
		return nil, err
	}
	defer db.Close()

	drv := db.Driver()
	if _, ok := drv.(*Driver); ok {
		return nil, fmt.Errorf("driver %q is itself a preload driver", name)
	}
	return &DriverModule{name: name, drv: drv}, nil
}

// Symbol implements Module.
func (m *DriverModule) Symbol(name string) (any, error) {
	switch name {
	case SymOpen:
		return OpenFunc(m.open), nil
	case SymOpen16:
		return Open16Func(func(filename []uint16) (Handle, Code) {
			return m.open(decodeUTF16(filename))
		}), nil
	case SymOpenV2:
		return OpenV2Func(m.openV2), nil
	case SymExec:
		return ExecFunc(m.exec), nil
	case SymFree:
		return FreeFunc(m.free), nil
	case SymClose:
		return CloseFunc(m.close), nil
	}
	return nil, fmt.Errorf("driver %s: %s: %w", m.name, name, ErrUnresolved)
}

func (m *DriverModule) open(dsn string) (Handle, Code) {
	conn, err := m.drv.Open(dsn)
	if err != nil {
		return &failedConn{err: err}, codeOf(err, CantOpen)
	}
	return conn, OK
}

func (m *DriverModule) openV2(filename string, flags int, vfs string) (Handle, Code) {
	mode, ok := uriMode(flags)
	if !ok {
		return &failedConn{err: fmt.Errorf("open flags %#x: %w", flags, ErrCantOpen)}, Misuse
	}
	return m.open(buildURI(filename, flags, mode, vfs))
}

func (m *DriverModule) exec(db Handle, script []byte) (Code, Message) {
	conn, ok := db.(driver.Conn)
	if !ok || conn == nil {
		return Misuse, message(fmt.Sprintf("exec: not a connection: %T", db))
	}
	if fc, ok := conn.(*failedConn); ok {
		return Misuse, message(fc.err.Error())
	}
	ex, ok := conn.(driver.ExecerContext)
	if !ok {
		return Error, message(fmt.Sprintf("exec: %T does not support direct execution", conn))
	}

	query := string(script)
	if n := len(query); n > 0 && query[n-1] == 0 {
		query = query[:n-1]
	}
	if _, err := ex.ExecContext(context.Background(), query, nil); err != nil {
		return codeOf(err, Error), message(err.Error())
	}
	return OK, nil
}

// free is a no-op: driver error text is owned by the Go heap.
func (m *DriverModule) free(Message) {}

func (m *DriverModule) close(db Handle) Code {
	conn, ok := db.(driver.Conn)
	if !ok || conn == nil {
		return Misuse
	}
	if err := conn.Close(); err != nil {
		return codeOf(err, Error)
	}
	return OK
}

// message is error text returned by the driver backend.
type message string

func (m message) Text() string { return string(m) }

// failedConn is the handle left by a failed open. Like a SQLite handle
// after a failed sqlite3_open, it only reports the error and can be closed.
type failedConn struct {
	err error
}

func (c *failedConn) Prepare(string) (driver.Stmt, error) { return nil, c.err }
func (c *failedConn) Begin() (driver.Tx, error)           { return nil, c.err }
func (c *failedConn) Close() error                        { return nil }

// Err returns the error that caused the open to fail.
func (c *failedConn) Err() error { return c.err }

// codeOf returns the SQLite primary code carried by err, or fallback.
func codeOf(err error, fallback Code) Code {
	if code, ok := driverCode(err); ok {
		return code & 0xff
	}
	return fallback
}

// uriMode maps open flags to a URI mode parameter. It reports false
// for combinations SQLite rejects: the access bits must be READONLY,
// READWRITE or READWRITE|CREATE, even for in-memory databases.
func uriMode(flags int) (string, bool) {
	var mode string
	switch flags & (OpenReadOnly | OpenReadWrite | OpenCreate) {
	case OpenReadOnly:
		mode = "ro"
	case OpenReadWrite:
		mode = "rw"
	case OpenReadWrite | OpenCreate:
		mode = "rwc"
	default:
		return "", false
	}
	if flags&OpenMemory != 0 {
		mode = "memory"
	}
	return mode, true
}

var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// buildURI constructs a SQLite URI filename for an OpenV2 call.
// Filenames already in URI form keep their own parameters.
func buildURI(filename string, flags int, mode, vfs string) string {
	var sb strings.Builder

	if strings.HasPrefix(filename, "file:") {
		sb.WriteString(filename)
	} else {
		sb.WriteString("file:")
		sb.WriteString(uriEscaper.Replace(filename))
	}

	sep := "?"
	if strings.Contains(sb.String(), "?") {
		sep = "&"
	}
	param := func(key, value string) {
		fmt.Fprintf(&sb, "%s%s=%s", sep, key, value)
		sep = "&"
	}

	param("mode", mode)
	switch {
	case flags&OpenSharedCache != 0:
		param("cache", "shared")
	case flags&OpenPrivateCache != 0:
		param("cache", "private")
	}
	if vfs != "" {
		param("vfs", vfs)
	}
	return sb.String()
}

// decodeUTF16 converts a UTF-16 filename, stopping at the first NUL.
func decodeUTF16(s []uint16) string {
	for i, c := range s {
		if c == 0 {
			s = s[:i]
			break
		}
	}
	return string(utf16.Decode(s))
}
