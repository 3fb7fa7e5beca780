// Copyright (c) 2026 Michael D Henderson. All rights reserved.

//go:build cgo && (linux || darwin || freebsd)

// Command sqlite3-preload is a shared library that runs an SQL script on
// every SQLite connection a process opens.
//
// Build it with
//
//	go build -buildmode=c-shared -o libsqlite3-preload.so ./cmd/sqlite3-preload
//
// and load it ahead of SQLite:
//
//	SQLITE3_INIT_SQL=/etc/sqlite-init.sql LD_PRELOAD=./libsqlite3-preload.so sqlite3 app.db
//
// SQLITE3_LIBRARY names the real library (default libsqlite3.so.0).
// When SQLITE3_INIT_SQL is unset, opens behave exactly as without the
// preload. A script that cannot be read or fails to run makes the open
// return SQLITE_CANTOPEN. Both variables are read with getenv, so changes
// the host makes after startup take effect on the next open.
package main

/*
#include <stdlib.h>

typedef struct sqlite3 sqlite3;
*/
import "C"

import (
	"unsafe"

	"github.com/mdhender/sqlite3preload"
	"github.com/mdhender/sqlite3preload/dl"
)

var shim *sqlite3preload.Shim

// init runs when the library is loaded, before any exported entry point
// can be called.
func init() {
	shim = sqlite3preload.New(sqlite3preload.Config{
		DefaultLibrary: dl.DefaultLibrary,
		Abort:          func() { C.abort() },
		LookupEnv:      getenv,
	}, dl.Open)
}

// getenv reads the host's environment, which may have changed since the
// Go runtime copied it at load.
func getenv(key string) (string, bool) {
	ckey := C.CString(key)
	defer C.free(unsafe.Pointer(ckey))
	v := C.getenv(ckey)
	if v == nil {
		return "", false
	}
	return C.GoString(v), true
}

var misuse = C.int(sqlite3preload.Misuse)

//export sqlite3_open
func sqlite3_open(filename *C.char, ppDb **C.sqlite3) C.int {
	if ppDb == nil {
		return misuse
	}
	h, rc := shim.Open(C.GoString(filename))
	setHandle(ppDb, h)
	return C.int(rc)
}

//export sqlite3_open16
func sqlite3_open16(filename unsafe.Pointer, ppDb **C.sqlite3) C.int {
	if ppDb == nil {
		return misuse
	}
	h, rc := shim.Open16(wideString(filename))
	setHandle(ppDb, h)
	return C.int(rc)
}

//export sqlite3_open_v2
func sqlite3_open_v2(filename *C.char, ppDb **C.sqlite3, flags C.int, zVfs *C.char) C.int {
	if ppDb == nil {
		return misuse
	}
	vfs := ""
	if zVfs != nil {
		vfs = C.GoString(zVfs)
	}
	h, rc := shim.OpenV2(C.GoString(filename), int(flags), vfs)
	setHandle(ppDb, h)
	return C.int(rc)
}

// setHandle stores the real library's handle in *ppDb. A nil handle
// means the real open was never called and *ppDb is left alone.
func setHandle(ppDb **C.sqlite3, h sqlite3preload.Handle) {
	p, ok := h.(unsafe.Pointer)
	if !ok {
		return
	}
	*ppDb = (*C.sqlite3)(p)
}

// wideString copies a NUL-terminated UTF-16 string out of C memory.
func wideString(p unsafe.Pointer) []uint16 {
	if p == nil {
		return nil
	}
	n := 0
	for *(*uint16)(unsafe.Add(p, 2*n)) != 0 {
		n++
	}
	return unsafe.Slice((*uint16)(p), n)
}

func main() {}
