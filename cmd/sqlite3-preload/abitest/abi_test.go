// Copyright (c) 2026 Michael D Henderson. All rights reserved.

//go:build cgo && linux

// Package abitest checks the preload library at the C ABI: it builds the
// c-shared library and runs a C host under LD_PRELOAD.
package abitest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var (
	buildOnce  sync.Once
	preloadLib string
	hostBin    string
	skipReason string
	buildErr   string
	buildDir   string
)

func TestMain(m *testing.M) {
	code := m.Run()
	if buildDir != "" {
		os.RemoveAll(buildDir)
	}
	os.Exit(code)
}

// buildHost builds the preload library and the C test host once per run.
func buildHost(t *testing.T) (lib, host string) {
	t.Helper()
	buildOnce.Do(func() {
		goBin, err := exec.LookPath("go")
		if err != nil {
			skipReason = "go tool not found"
			return
		}
		cc, err := exec.LookPath("cc")
		if err != nil {
			skipReason = "C compiler not found"
			return
		}
		dir, err := os.MkdirTemp("", "sqlite3-preload-test")
		if err != nil {
			buildErr = err.Error()
			return
		}
		buildDir = dir

		lib := filepath.Join(dir, "libsqlite3-preload.so")
		out, err := exec.Command(goBin, "build", "-buildmode=c-shared", "-o", lib, "..").CombinedOutput()
		if err != nil {
			buildErr = "build preload library: " + err.Error() + "\n" + string(out)
			return
		}

		host := filepath.Join(dir, "host")
		out, err = exec.Command(cc, "-o", host, filepath.Join("testdata", "host.c"), "-l:libsqlite3.so.0").CombinedOutput()
		if err != nil {
			skipReason = "cannot link against system SQLite: " + string(out)
			return
		}
		preloadLib, hostBin = lib, host
	})
	if skipReason != "" {
		t.Skip(skipReason)
	}
	if buildErr != "" {
		t.Fatal(buildErr)
	}
	return preloadLib, hostBin
}

// runHost runs the test host with env added to a clean environment and
// returns its report lines keyed by entry point.
func runHost(t *testing.T, preload bool, env []string, args ...string) map[string]string {
	t.Helper()
	lib, host := buildHost(t)

	cmd := exec.Command(host, args...)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "SQLITE3_") || strings.HasPrefix(kv, "LD_PRELOAD=") {
			continue
		}
		cmd.Env = append(cmd.Env, kv)
	}
	if preload {
		cmd.Env = append(cmd.Env, "LD_PRELOAD="+lib)
	}
	cmd.Env = append(cmd.Env, env...)

	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("host %v: %v\n%s", args, err, out)
	}
	result := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		label, rest, _ := strings.Cut(line, " ")
		result[label] = rest
	}
	return result
}

// writeScript writes an init script into a temp dir and returns its path.
func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "init.sql")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

// expectAll builds the expected report with the same result for every entry point.
func expectAll(result string) map[string]string {
	return map[string]string{"open": result, "open16": result, "open_v2": result}
}

// TestPreload_NoScript tests that without a script the preload is
// indistinguishable from the real library.
func TestPreload_NoScript(t *testing.T) {
	plain := runHost(t, false, nil)
	preloaded := runHost(t, true, nil)
	if diff := cmp.Diff(plain, preloaded); diff != "" {
		t.Errorf("preload changed results (-plain +preloaded):\n%s", diff)
	}
	if diff := cmp.Diff(expectAll("rc=0 uv=0"), preloaded); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

// TestPreload_MissingScript tests that a missing script fails every open
// with SQLITE_CANTOPEN and leaves the caller's handle alone.
func TestPreload_MissingScript(t *testing.T) {
	env := []string{"SQLITE3_INIT_SQL=" + filepath.Join(t.TempDir(), "missing.sql")}
	got := runHost(t, true, env)
	if diff := cmp.Diff(expectAll("rc=14 handle=untouched"), got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

// TestPreload_ScriptApplied tests that the script's pragma is in effect
// on the returned connection.
func TestPreload_ScriptApplied(t *testing.T) {
	env := []string{"SQLITE3_INIT_SQL=" + writeScript(t, "PRAGMA user_version = 42;")}
	got := runHost(t, true, env)
	if diff := cmp.Diff(expectAll("rc=0 uv=42"), got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

// TestPreload_ScriptFails tests that invalid SQL yields SQLITE_CANTOPEN
// with the real open's (now closed) handle left in *ppDb.
func TestPreload_ScriptFails(t *testing.T) {
	env := []string{"SQLITE3_INIT_SQL=" + writeScript(t, "THIS IS NOT SQL;")}
	got := runHost(t, true, env)
	if diff := cmp.Diff(expectAll("rc=14 handle=set"), got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

// TestPreload_SetenvAfterLoad tests that a variable set by the host after
// startup is used by the next open.
func TestPreload_SetenvAfterLoad(t *testing.T) {
	path := writeScript(t, "PRAGMA user_version = 77;")
	got := runHost(t, true, nil, "setenv", path)
	if diff := cmp.Diff(expectAll("rc=0 uv=77"), got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

// TestPreload_UnsetenvAfterLoad tests that a variable removed by the host
// after startup stops the script from running.
func TestPreload_UnsetenvAfterLoad(t *testing.T) {
	env := []string{"SQLITE3_INIT_SQL=" + writeScript(t, "PRAGMA user_version = 77;")}
	got := runHost(t, true, env, "unsetenv")
	if diff := cmp.Diff(expectAll("rc=0 uv=0"), got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

// TestPreload_NullHandle tests that a NULL ppDb is rejected with
// SQLITE_MISUSE instead of opening a connection nobody can close.
func TestPreload_NullHandle(t *testing.T) {
	env := []string{"SQLITE3_INIT_SQL=" + writeScript(t, "PRAGMA user_version = 1;")}
	got := runHost(t, true, env, "nullhandle")
	if got["nullhandle"] != "rc=21" {
		t.Errorf("expected rc=21, got %q", got["nullhandle"])
	}
}
