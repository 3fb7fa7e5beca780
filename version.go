package sqlite3preload

import (
	"github.com/maloquacious/semver"
)

var (
	version = semver.Version{
		Major: 0,
		Minor: 1,
		Patch: 0,
		Build: semver.Commit(),
	}
)

// Version returns the shim's version, including the VCS commit when known.
func Version() semver.Version {
	return version
}
