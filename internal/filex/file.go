// Package filex resolves and creates the client's on-disk data directory.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDataDir creates dir (with parents) and returns its absolute path.
// Relative paths are resolved against the current working directory.
// The directory holds credentials, so it is created owner-only.
func EnsureDataDir(dir string) (string, error) {
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}
