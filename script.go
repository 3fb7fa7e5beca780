// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package sqlite3preload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"syscall"

	"github.com/hashicorp/go-multierror"
)

// Script is an init script read for a single open call.
// Its buffer belongs to the caller that loaded it until Release.
type Script struct {
	path     string
	buf      []byte // NUL-terminated
	released atomic.Bool
}

// Path returns the file the script was read from.
func (s *Script) Path() string { return s.path }

// Bytes returns the script including its trailing NUL.
func (s *Script) Bytes() []byte { return s.buf }

// SQL returns the script text without the trailing NUL.
func (s *Script) SQL() string {
	if len(s.buf) == 0 {
		return ""
	}
	return string(s.buf[:len(s.buf)-1])
}

// Len returns the script length, not counting the NUL.
func (s *Script) Len() int {
	if len(s.buf) == 0 {
		return 0
	}
	return len(s.buf) - 1
}

// Release drops the buffer. Releasing a nil script does nothing;
// releasing the same script twice panics.
func (s *Script) Release() {
	if s == nil {
		return
	}
	if s.released.Swap(true) {
		panic("sqlite3preload: init script released twice: " + s.path)
	}
	s.buf = nil
}

// ScriptLoader reads the init script named by PREFIX_INIT_SQL.
type ScriptLoader struct {
	cfg  Config
	open func(path string) (io.ReadCloser, error)
}

// NewScriptLoader returns a loader that reads scripts from the file system.
func NewScriptLoader(cfg Config) *ScriptLoader {
	return &ScriptLoader{
		cfg: cfg.defaults(),
		open: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// Load reads the configured script. It returns nil, nil when no script
// is configured. The file is read again on every call.
func (l *ScriptLoader) Load() (*Script, error) {
	path, ok, err := l.cfg.scriptPath()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	r, err := l.open(path)
	if err != nil {
		l.report(path, "open", err)
		return nil, fmt.Errorf("%s: %w: %w", path, ErrScriptOpen, err)
	}

	buf, err := l.read(r)
	if cerr := r.Close(); cerr != nil && err != nil {
		err = multierror.Append(err, cerr)
	}
	if err != nil {
		l.report(path, "read", err)
		return nil, fmt.Errorf("%s: %w: %w", path, ErrScriptRead, err)
	}

	return &Script{path: path, buf: buf}, nil
}

// read copies r into a growing buffer one chunk at a time and appends
// a NUL. On error the partial buffer is discarded.
func (l *ScriptLoader) read(r io.Reader) ([]byte, error) {
	chunk := make([]byte, l.cfg.ChunkSize)
	buf := make([]byte, 0, l.cfg.ChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = grow(buf, n+1, l.cfg.Slack)
			buf = append(buf, chunk[:n]...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	buf = grow(buf, 1, l.cfg.Slack)
	return append(buf, 0), nil
}

// grow makes room for n more bytes. New capacity is at least double the
// old one and at least the requirement plus slack.
func grow(buf []byte, n, slack int) []byte {
	need := len(buf) + n
	if need <= cap(buf) {
		return buf
	}
	size := max(2*cap(buf), need+slack)
	nbuf := make([]byte, len(buf), size)
	copy(nbuf, buf)
	return nbuf
}

// report writes a script failure diagnostic.
func (l *ScriptLoader) report(path, op string, err error) {
	errno := 0
	var e syscall.Errno
	if errors.As(err, &e) {
		errno = int(e)
	}
	l.cfg.Logger.Error("init script failed",
		"var", l.cfg.EnvPrefix+"_INIT_SQL",
		"path", path,
		"op", op,
		"errno", errno,
		"err", err)
}
