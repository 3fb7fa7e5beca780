// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package sqlite3preload

// Shim wraps the real open entry points so that every connection they
// produce has run the init script before the caller sees it.
type Shim struct {
	cfg       Config
	resolver  *Resolver
	scripts   *ScriptLoader
	delegates *Delegates
}

// New binds the real library through opener and returns a shim over it.
// Binding happens here, before any open can be intercepted; a failure
// aborts the process as described on Resolver.Load.
func New(cfg Config, opener Opener) *Shim {
	cfg = cfg.defaults()
	s := &Shim{
		cfg:      cfg,
		resolver: NewResolver(cfg, opener),
		scripts:  NewScriptLoader(cfg),
	}
	s.delegates = s.resolver.Load()
	return s
}

// Delegates returns the bound table of real entry points.
func (s *Shim) Delegates() *Delegates { return s.delegates }

// Open wraps sqlite3_open.
func (s *Shim) Open(filename string) (Handle, Code) {
	return s.intercept(func(d *Delegates) (Handle, Code) {
		return d.Open(filename)
	})
}

// Open16 wraps sqlite3_open16.
func (s *Shim) Open16(filename []uint16) (Handle, Code) {
	return s.intercept(func(d *Delegates) (Handle, Code) {
		return d.Open16(filename)
	})
}

// OpenV2 wraps sqlite3_open_v2.
func (s *Shim) OpenV2(filename string, flags int, vfs string) (Handle, Code) {
	return s.intercept(func(d *Delegates) (Handle, Code) {
		return d.OpenV2(filename, flags, vfs)
	})
}

// intercept runs one open call: load the script, call the real open,
// then run the script on the new connection.
func (s *Shim) intercept(open func(*Delegates) (Handle, Code)) (Handle, Code) {
	d := s.delegates
	if d == nil {
		return nil, Misuse
	}

	script, err := s.scripts.Load()
	if err != nil {
		return nil, CantOpen
	}

	db, rc := open(d)
	if rc != OK {
		if script != nil {
			script.Release()
		}
		return db, rc
	}

	if script == nil {
		return db, rc
	}
	defer script.Release()

	if rc, msg := d.Exec(db, script.Bytes()); rc != OK {
		s.reportExec(script, rc, msg)
		if msg != nil {
			d.Free(msg)
		}
		d.Close(db)
		return db, CantOpen
	}
	return db, OK
}

// reportExec writes the diagnostic for a failed init script.
func (s *Shim) reportExec(script *Script, rc Code, msg Message) {
	text := ""
	if msg != nil {
		text = msg.Text()
	}
	s.cfg.Logger.Error("sqlite3_open error",
		"script", script.Path(),
		"code", rc,
		"err", text)
}
