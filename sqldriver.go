// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package sqlite3preload

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
)

// Driver is a database/sql driver whose connections are opened through
// a Shim, so each one has run the init script before it is used.
type Driver struct {
	shim *Shim
}

// NewDriver returns a driver over shim. The shim must be backed by a
// Module whose handles are driver.Conn values, such as DriverModule.
func NewDriver(shim *Shim) *Driver {
	return &Driver{shim: shim}
}

// Register binds the real driver named by the environment (or
// DefaultDriverName) and registers a preload driver under name.
// Like sql.Register, it panics if name is already registered.
func Register(name string, cfg Config) *Shim {
	shim := New(cfg, OpenDriver)
	sql.Register(name, NewDriver(shim))
	return shim
}

// Open implements driver.Driver using sqlite3_open semantics.
func (d *Driver) Open(dsn string) (driver.Conn, error) {
	h, rc := d.shim.Open(dsn)
	return connFromHandle(SymOpen, h, rc)
}

// OpenConnector implements driver.DriverContext.
func (d *Driver) OpenConnector(dsn string) (driver.Connector, error) {
	return &connector{drv: d, filename: dsn}, nil
}

// NewConnector returns a connector that opens filename with
// sqlite3_open_v2 semantics, using flags and the named VFS.
// Use it with sql.OpenDB.
func NewConnector(d *Driver, filename string, flags int, vfs string) driver.Connector {
	return &connector{drv: d, filename: filename, flags: flags, vfs: vfs, v2: true}
}

type connector struct {
	drv      *Driver
	filename string
	flags    int
	vfs      string
	v2       bool
}

// Connect implements driver.Connector. The open itself cannot be
// interrupted; ctx is only checked before it starts.
func (c *connector) Connect(ctx context.Context) (driver.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.v2 {
		return c.drv.Open(c.filename)
	}
	h, rc := c.drv.shim.OpenV2(c.filename, c.flags, c.vfs)
	return connFromHandle(SymOpenV2, h, rc)
}

func (c *connector) Driver() driver.Driver { return c.drv }

// connFromHandle turns a shim result into a database/sql result.
// On failure the handle is not used: it was either closed by the shim
// or only carries the driver's error.
func connFromHandle(op string, h Handle, rc Code) (driver.Conn, error) {
	if rc != OK {
		err := &OpenError{Op: op, Code: rc}
		if fc, ok := h.(interface{ Err() error }); ok {
			err.Err = fc.Err()
		}
		return nil, err
	}
	conn, ok := h.(driver.Conn)
	if !ok || conn == nil {
		return nil, &OpenError{Op: op, Code: Misuse, Err: fmt.Errorf("handle %T is not a driver.Conn", h)}
	}
	return conn, nil
}
