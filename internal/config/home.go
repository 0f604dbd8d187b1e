package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeDirName is the per-project directory holding configuration, results
// and fixtures.
const HomeDirName = ".a11y"

// FindProjectRoot returns the project directory
// Priority order:
//  1. A11Y_HOME environment variable (if set)
//  2. Nearest ancestor of start containing a .a11y directory
//  3. start itself (fallback)
func FindProjectRoot(start string) (string, error) {
	if home := os.Getenv("A11Y_HOME"); home != "" {
		return home, nil
	}

	start, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve start directory: %w", err)
	}

	current := start
	for {
		info, err := os.Stat(filepath.Join(current, HomeDirName))
		if err == nil && info.IsDir() {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return start, nil
}

// EnsureHome creates the .a11y directory under root if it doesn't exist
func EnsureHome(root string) (string, error) {
	home := filepath.Join(root, HomeDirName)
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create %s directory: %w", HomeDirName, err)
	}
	return home, nil
}
