// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package sqlite3preload

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kelseyhightower/envconfig"
)

// Default settings.
const (
	DefaultEnvPrefix = "SQLITE3"
	DefaultChunkSize = 1024
	DefaultSlack     = 4096
)

// Config holds shim configuration options.
type Config struct {
	// EnvPrefix selects the environment variables consulted by the shim:
	// PREFIX_LIBRARY names the real library and PREFIX_INIT_SQL names the
	// init script. Default: "SQLITE3".
	EnvPrefix string

	// DefaultLibrary is used when PREFIX_LIBRARY is not set. Backends
	// supply their own value; see dl.DefaultLibrary and DefaultDriverName.
	DefaultLibrary string

	// Logger receives diagnostics. Defaults to a text handler on stderr.
	Logger *slog.Logger

	// Abort ends the process after a resolution failure.
	// Default: exit with status 134.
	Abort func()

	// ChunkSize is the read size used by the script loader. Default: 1024.
	ChunkSize int

	// Slack is added to the buffer whenever it has to grow. Default: 4096.
	Slack int

	// LookupEnv, if set, replaces the Go process environment when reading
	// PREFIX_LIBRARY and PREFIX_INIT_SQL. The preload library sets it to
	// C getenv so that variables the host changes after load are seen.
	LookupEnv func(key string) (string, bool)
}

// defaults returns a copy of cfg with default values applied.
func (cfg Config) defaults() Config {
	if cfg.EnvPrefix == "" {
		cfg.EnvPrefix = DefaultEnvPrefix
	}
	if cfg.DefaultLibrary == "" {
		cfg.DefaultLibrary = DefaultDriverName
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if cfg.Abort == nil {
		cfg.Abort = func() { os.Exit(134) }
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Slack <= 0 {
		cfg.Slack = DefaultSlack
	}
	return cfg
}

// Environment is the process configuration read by the shim.
type Environment struct {
	// Library is the real library to delegate to.
	Library string

	// InitSQL is the path of the init script. Nil when the variable is
	// unset, which is different from set-but-empty.
	InitSQL *string `split_words:"true"`
}

// readEnvironment loads the two shim variables. Without a LookupEnv
// hook they come from the Go process environment.
func (cfg Config) readEnvironment() (Environment, error) {
	var env Environment
	if cfg.LookupEnv == nil {
		if err := envconfig.Process(cfg.EnvPrefix, &env); err != nil {
			return Environment{}, fmt.Errorf("environment: %w", err)
		}
		return env, nil
	}
	env.Library, _ = cfg.LookupEnv(cfg.EnvPrefix + "_LIBRARY")
	if path, ok := cfg.LookupEnv(cfg.EnvPrefix + "_INIT_SQL"); ok {
		env.InitSQL = &path
	}
	return env, nil
}

// libraryName returns the real library to load.
func (cfg Config) libraryName() (string, error) {
	env, err := cfg.readEnvironment()
	if err != nil {
		return "", err
	}
	if env.Library == "" {
		return cfg.DefaultLibrary, nil
	}
	return env.Library, nil
}

// scriptPath returns the configured script path and whether one is set.
func (cfg Config) scriptPath() (string, bool, error) {
	env, err := cfg.readEnvironment()
	if err != nil {
		return "", false, err
	}
	if env.InitSQL == nil {
		return "", false, nil
	}
	return *env.InitSQL, true, nil
}
