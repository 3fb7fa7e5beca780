// Copyright (c) 2026 Michael D Henderson. All rights reserved.

//go:build cgo && (linux || darwin || freebsd)

// Package dl loads the real SQLite shared library with dlopen and binds
// its entry points for sqlite3preload.
package dl

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>

typedef struct sqlite3 sqlite3;

// dlerror state is per thread, so each open or lookup and its error
// check happen inside one C call.
static void *open_lib(const char *name, const char **err) {
	void *h;
	(void)dlerror();
	h = dlopen(name, RTLD_NOW|RTLD_GLOBAL);
	*err = dlerror();
	return h;
}

static void *lookup(void *lib, const char *name, const char **err) {
	void *sym;
	(void)dlerror();
	sym = dlsym(lib, name);
	*err = dlerror();
	return sym;
}

static int call_open(void *fn, const char *filename, sqlite3 **db) {
	return ((int (*)(const char *, sqlite3 **))fn)(filename, db);
}

static int call_open16(void *fn, const void *filename, sqlite3 **db) {
	return ((int (*)(const void *, sqlite3 **))fn)(filename, db);
}

static int call_open_v2(void *fn, const char *filename, sqlite3 **db, int flags, const char *vfs) {
	return ((int (*)(const char *, sqlite3 **, int, const char *))fn)(filename, db, flags, vfs);
}

static int call_exec(void *fn, sqlite3 *db, const char *sql, char **errmsg) {
	return ((int (*)(sqlite3 *, const char *, int (*)(void *, int, char **, char **), void *, char **))fn)(db, sql, 0, 0, errmsg);
}

static void call_free(void *fn, void *p) {
	((void (*)(void *))fn)(p);
}

static int call_close(void *fn, sqlite3 *db) {
	return ((int (*)(sqlite3 *))fn)(db);
}
*/
import "C"

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/mdhender/sqlite3preload"
)

// DefaultLibrary is loaded when SQLITE3_LIBRARY is not set.
var DefaultLibrary = defaultLibrary()

func defaultLibrary() string {
	if runtime.GOOS == "darwin" {
		return "libsqlite3.dylib"
	}
	return "libsqlite3.so.0"
}

// Error is a dlerror message.
type Error string

func (e Error) Error() string { return string(e) }

// Lib is an open handle to the real library. Handles are never closed.
type Lib struct {
	handle unsafe.Pointer
	name   string
}

// Open loads library with immediate binding and global symbol visibility.
// It satisfies sqlite3preload.Opener.
func Open(library string) (sqlite3preload.Module, error) {
	return Load(library)
}

// Load is Open returning the concrete type.
func Load(library string) (*Lib, error) {
	cname := C.CString(library)
	defer C.free(unsafe.Pointer(cname))

	var cerr *C.char
	h := C.open_lib(cname, &cerr)
	if cerr != nil {
		return nil, fmt.Errorf("dlopen %s: %w", library, Error(C.GoString(cerr)))
	}
	if h == nil {
		return nil, fmt.Errorf("dlopen %s: %w", library, Error("dlopen() returned NULL"))
	}
	return &Lib{handle: h, name: library}, nil
}

// Lookup returns the address of symbol name. A NULL address without a
// dlerror message is reported as an error.
func (l *Lib) Lookup(name string) (unsafe.Pointer, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var cerr *C.char
	sym := C.lookup(l.handle, cname, &cerr)
	if cerr != nil {
		return nil, fmt.Errorf("dlsym %s %s: %w", l.name, name, Error(C.GoString(cerr)))
	}
	if sym == nil {
		return nil, fmt.Errorf("dlsym %s %s: %w", l.name, name, Error("dlsym() returned NULL"))
	}
	return sym, nil
}

// Symbol implements sqlite3preload.Module.
func (l *Lib) Symbol(name string) (any, error) {
	fn, err := l.Lookup(name)
	if err != nil {
		return nil, err
	}
	switch name {
	case sqlite3preload.SymOpen:
		return sqlite3preload.OpenFunc(func(filename string) (sqlite3preload.Handle, sqlite3preload.Code) {
			cname := C.CString(filename)
			defer C.free(unsafe.Pointer(cname))
			var db *C.sqlite3
			rc := C.call_open(fn, cname, &db)
			return unsafe.Pointer(db), sqlite3preload.Code(rc)
		}), nil
	case sqlite3preload.SymOpen16:
		return sqlite3preload.Open16Func(func(filename []uint16) (sqlite3preload.Handle, sqlite3preload.Code) {
			wide := make([]uint16, len(filename)+1)
			copy(wide, filename)
			var db *C.sqlite3
			rc := C.call_open16(fn, unsafe.Pointer(&wide[0]), &db)
			return unsafe.Pointer(db), sqlite3preload.Code(rc)
		}), nil
	case sqlite3preload.SymOpenV2:
		return sqlite3preload.OpenV2Func(func(filename string, flags int, vfs string) (sqlite3preload.Handle, sqlite3preload.Code) {
			cname := C.CString(filename)
			defer C.free(unsafe.Pointer(cname))
			var cvfs *C.char
			if vfs != "" {
				cvfs = C.CString(vfs)
				defer C.free(unsafe.Pointer(cvfs))
			}
			var db *C.sqlite3
			rc := C.call_open_v2(fn, cname, &db, C.int(flags), cvfs)
			return unsafe.Pointer(db), sqlite3preload.Code(rc)
		}), nil
	case sqlite3preload.SymExec:
		return sqlite3preload.ExecFunc(func(db sqlite3preload.Handle, script []byte) (sqlite3preload.Code, sqlite3preload.Message) {
			p, ok := db.(unsafe.Pointer)
			if !ok || len(script) == 0 || script[len(script)-1] != 0 {
				return sqlite3preload.Misuse, nil
			}
			var errmsg *C.char
			rc := C.call_exec(fn, (*C.sqlite3)(p), (*C.char)(unsafe.Pointer(&script[0])), &errmsg)
			if errmsg == nil {
				return sqlite3preload.Code(rc), nil
			}
			return sqlite3preload.Code(rc), &message{p: errmsg}
		}), nil
	case sqlite3preload.SymFree:
		return sqlite3preload.FreeFunc(func(msg sqlite3preload.Message) {
			if m, ok := msg.(*message); ok && m.p != nil {
				C.call_free(fn, unsafe.Pointer(m.p))
				m.p = nil
			}
		}), nil
	case sqlite3preload.SymClose:
		return sqlite3preload.CloseFunc(func(db sqlite3preload.Handle) sqlite3preload.Code {
			p, ok := db.(unsafe.Pointer)
			if !ok {
				return sqlite3preload.Misuse
			}
			return sqlite3preload.Code(C.call_close(fn, (*C.sqlite3)(p)))
		}), nil
	}
	return nil, fmt.Errorf("%s: %w", name, sqlite3preload.ErrUnresolved)
}

// message is error text allocated by sqlite3_malloc.
type message struct {
	p *C.char
}

func (m *message) Text() string {
	if m.p == nil {
		return ""
	}
	return C.GoString(m.p)
}
