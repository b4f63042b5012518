package filepathparser

import (
	"os"
	"path/filepath"
	"strings"
)

// ParsePath expands a leading ~/ to the user home directory and returns
// the absolute form of the path.
func ParsePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		dirname, _ := os.UserHomeDir()
		path = filepath.Join(dirname, path[2:])
	}

	return filepath.Abs(path)
}

// EnsureFolder resolves the path like ParsePath and creates the folder
// if it does not exist yet.
func EnsureFolder(path string) (string, error) {
	resolved, err := ParsePath(path)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(resolved, 0755); err != nil {
		return "", err
	}

	return resolved, nil
}
