// Package alvrfs bootstraps the filesystem layout this module needs: a
// config directory and a log directory, both under the platform's
// conventional per-user directories, created if absent. Directory
// resolution uses the stdlib os.UserConfigDir/os.UserCacheDir, since
// this module runs as a per-user background process across platforms
// (see DESIGN.md for why no third-party directory package is used here).
package alvrfs

import (
	"os"
	"path/filepath"
)

// appDirName is the subdirectory created under the user config/cache
// root.
const appDirName = "alvr"

// Layout is the set of directories this module reads and writes.
type Layout struct {
	// ConfigDir holds any persisted configuration. Currently unused by
	// the bridge itself but created for forward compatibility with the
	// ALVR server runtime's own config file, which lives alongside it.
	ConfigDir string

	// LogDir holds rotated log files written by the logging package.
	LogDir string
}

// Bootstrap resolves and creates the layout's directories, returning an
// error if either cannot be created.
func Bootstrap() (Layout, error) {
	configRoot, err := os.UserConfigDir()
	if err != nil {
		return Layout{}, err
	}
	cacheRoot, err := os.UserCacheDir()
	if err != nil {
		return Layout{}, err
	}

	l := Layout{
		ConfigDir: filepath.Join(configRoot, appDirName),
		LogDir:    filepath.Join(cacheRoot, appDirName, "logs"),
	}

	if err := os.MkdirAll(l.ConfigDir, 0o755); err != nil {
		return Layout{}, err
	}
	if err := os.MkdirAll(l.LogDir, 0o755); err != nil {
		return Layout{}, err
	}

	return l, nil
}
