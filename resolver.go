// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package sqlite3preload

import (
	"fmt"
	"sync"
)

// Resolver binds the real library's entry points exactly once.
type Resolver struct {
	cfg    Config
	opener Opener

	once      sync.Once
	delegates *Delegates
}

// NewResolver returns a resolver that loads the real library with opener.
// Nothing is loaded until Load is called.
func NewResolver(cfg Config, opener Opener) *Resolver {
	return &Resolver{cfg: cfg.defaults(), opener: opener}
}

// Load resolves the delegate table on the first call and returns it.
// Later calls return the same table without touching the library again.
//
// A resolution failure is logged and Config.Abort is called. If Abort
// returns, Load returns nil from then on.
func (r *Resolver) Load() *Delegates {
	r.once.Do(func() {
		d, err := r.Resolve()
		if err != nil {
			r.cfg.Logger.Error("sqlite3 preload: resolve failed", "err", err)
			r.cfg.Abort()
			return
		}
		r.cfg.Logger.Debug("sqlite3 preload: delegates bound", "library", d.Library)
		r.delegates = d
	})
	return r.delegates
}

// Resolve opens the real library and binds every entry point in Symbols.
// It does not cache; callers wanting once-only semantics use Load.
func (r *Resolver) Resolve() (*Delegates, error) {
	library, err := r.cfg.libraryName()
	if err != nil {
		return nil, err
	}

	mod, err := r.opener(library)
	if err != nil {
		return nil, fmt.Errorf("open library %s: %w", library, err)
	}
	if mod == nil {
		return nil, fmt.Errorf("open library %s: loader returned no module", library)
	}

	d := &Delegates{Library: library}
	for _, name := range Symbols {
		sym, err := mod.Symbol(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", library, name, err)
		}
		if sym == nil {
			return nil, fmt.Errorf("%s: %s: lookup returned nil: %w", library, name, ErrUnresolved)
		}
		if err := d.bind(name, sym); err != nil {
			return nil, fmt.Errorf("%s: %w", library, err)
		}
	}
	return d, nil
}

// bind stores sym in the field for name. A typed nil counts as missing.
func (d *Delegates) bind(name string, sym any) error {
	ok := false
	switch name {
	case SymOpen:
		d.Open, ok = sym.(OpenFunc)
		ok = ok && d.Open != nil
	case SymOpen16:
		d.Open16, ok = sym.(Open16Func)
		ok = ok && d.Open16 != nil
	case SymOpenV2:
		d.OpenV2, ok = sym.(OpenV2Func)
		ok = ok && d.OpenV2 != nil
	case SymExec:
		d.Exec, ok = sym.(ExecFunc)
		ok = ok && d.Exec != nil
	case SymFree:
		d.Free, ok = sym.(FreeFunc)
		ok = ok && d.Free != nil
	case SymClose:
		d.Close, ok = sym.(CloseFunc)
		ok = ok && d.Close != nil
	default:
		return fmt.Errorf("%s: unknown entry point: %w", name, ErrUnresolved)
	}
	if !ok {
		return fmt.Errorf("%s: bad binding %T: %w", name, sym, ErrUnresolved)
	}
	return nil
}
