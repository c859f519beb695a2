package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolve locates a model file by name in the fixed precedence order:
// the models directory next to the executable (bundled deployments), the
// project root models directory (development), then the user config
// directory (user-installed models).
func Resolve(modelName string) (string, error) {
	paths := searchPaths(modelName)
	if found, ok := firstExisting(paths); ok {
		return found, nil
	}
	return "", fmt.Errorf("%w: %s (searched: %s)", ErrModelNotFound, modelName, strings.Join(paths, ", "))
}

func searchPaths(modelName string) []string {
	var paths []string
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), "models", modelName))
	}
	if root, ok := projectRoot(); ok {
		paths = append(paths, filepath.Join(root, "models", modelName))
	}
	if cfgDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(cfgDir, "murmur", "models", modelName))
	}
	return paths
}

// projectRoot walks upward from the working directory and the executable
// directory looking for a directory that has both a go.mod marker and a
// models directory. The walk is capped so a misplaced binary cannot scan
// the whole filesystem.
func projectRoot() (string, bool) {
	var starts []string
	if wd, err := os.Getwd(); err == nil {
		starts = append(starts, wd)
	}
	if exe, err := os.Executable(); err == nil {
		starts = append(starts, filepath.Dir(exe))
	}
	for _, start := range starts {
		if root, ok := projectRootFrom(start); ok {
			return root, true
		}
	}
	return "", false
}

func projectRootFrom(start string) (string, bool) {
	current := start
	for i := 0; i < 10; i++ {
		hasMarker := exists(filepath.Join(current, "go.mod"))
		hasModels := isDir(filepath.Join(current, "models"))
		if hasMarker && hasModels {
			return current, true
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return "", false
}

func firstExisting(paths []string) (string, bool) {
	for _, p := range paths {
		if exists(p) {
			return p, true
		}
	}
	return "", false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
