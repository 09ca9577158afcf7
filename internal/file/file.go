package file

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ExpandPath expands a path to avoid `~`.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "getting user home dir")
	}
	return filepath.Join(home, path[2:]), nil
}

// Exists returns true if the specified file exists.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "checking file existence")
	}
	return !info.IsDir(), nil
}

// EnsureDirectory creates a directory if it doesn't already exist.
func EnsureDirectory(directory string) error {
	info, err := os.Stat(directory)
	if err == nil && info.IsDir() {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "checking directory existence")
	}
	if err := os.MkdirAll(directory, 0755); err != nil {
		return errors.Wrap(err, "creating directory")
	}
	return nil
}
