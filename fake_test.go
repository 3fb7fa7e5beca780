// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package sqlite3preload_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mdhender/sqlite3preload"
)

// testPrefix keeps tests away from a real SQLITE3_* environment.
const testPrefix = "PRELOADTEST"

// fakeConn is a handle produced by fakeLib.
type fakeConn struct {
	id     int
	closed bool
}

// fakeMsg is error text produced by fakeLib.exec.
type fakeMsg struct {
	text  string
	freed bool
}

func (m *fakeMsg) Text() string { return m.text }

// fakeLib stands in for the real SQLite library and counts calls.
type fakeLib struct {
	mu sync.Mutex

	openRC  sqlite3preload.Code
	execRC  sqlite3preload.Code
	execMsg string
	missing string // symbol to report as missing

	calls   []string
	opens   int
	closes  int
	frees   int
	scripts [][]byte
	last    *fakeConn
	msgs    []*fakeMsg
}

func (f *fakeLib) Symbol(name string) (any, error) {
	if name == f.missing {
		return nil, fmt.Errorf("%s: not found", name)
	}
	switch name {
	case sqlite3preload.SymOpen:
		return sqlite3preload.OpenFunc(func(filename string) (sqlite3preload.Handle, sqlite3preload.Code) {
			return f.open("open " + filename)
		}), nil
	case sqlite3preload.SymOpen16:
		return sqlite3preload.Open16Func(func(filename []uint16) (sqlite3preload.Handle, sqlite3preload.Code) {
			return f.open(fmt.Sprintf("open16 %d", len(filename)))
		}), nil
	case sqlite3preload.SymOpenV2:
		return sqlite3preload.OpenV2Func(func(filename string, flags int, vfs string) (sqlite3preload.Handle, sqlite3preload.Code) {
			return f.open(fmt.Sprintf("open_v2 %s %#x %s", filename, flags, vfs))
		}), nil
	case sqlite3preload.SymExec:
		return sqlite3preload.ExecFunc(f.exec), nil
	case sqlite3preload.SymFree:
		return sqlite3preload.FreeFunc(f.free), nil
	case sqlite3preload.SymClose:
		return sqlite3preload.CloseFunc(f.close), nil
	}
	return nil, fmt.Errorf("%s: unknown", name)
}

func (f *fakeLib) open(call string) (sqlite3preload.Handle, sqlite3preload.Code) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.opens++
	f.last = &fakeConn{id: f.opens}
	return f.last, f.openRC
}

func (f *fakeLib) exec(db sqlite3preload.Handle, script []byte) (sqlite3preload.Code, sqlite3preload.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "exec")
	f.scripts = append(f.scripts, script)
	if f.execRC == sqlite3preload.OK {
		return sqlite3preload.OK, nil
	}
	msg := &fakeMsg{text: f.execMsg}
	f.msgs = append(f.msgs, msg)
	return f.execRC, msg
}

func (f *fakeLib) free(msg sqlite3preload.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "free")
	f.frees++
	msg.(*fakeMsg).freed = true
}

func (f *fakeLib) close(db sqlite3preload.Handle) sqlite3preload.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "close")
	f.closes++
	db.(*fakeConn).closed = true
	return sqlite3preload.OK
}

// opener returns an Opener serving f and counting how often it is used.
func (f *fakeLib) opener(count *int) sqlite3preload.Opener {
	return func(library string) (sqlite3preload.Module, error) {
		if count != nil {
			*count++
		}
		return f, nil
	}
}

// testConfig returns a config that logs into buf and fails the test on abort.
func testConfig(t *testing.T, buf *bytes.Buffer) sqlite3preload.Config {
	t.Helper()
	return sqlite3preload.Config{
		EnvPrefix: testPrefix,
		Logger:    slog.New(slog.NewTextHandler(buf, nil)),
		Abort:     func() { t.Fatal("unexpected abort") },
	}
}

// writeScript writes an init script into a temp dir and points the
// environment at it.
func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "init.sql")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	t.Setenv(testPrefix+"_INIT_SQL", path)
	return path
}

// unsetScript makes sure no init script is configured.
func unsetScript(t *testing.T) {
	t.Helper()
	t.Setenv(testPrefix+"_INIT_SQL", "")
	os.Unsetenv(testPrefix + "_INIT_SQL")
}
