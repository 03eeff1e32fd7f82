package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFile returns the path of fn relative to the root of the repository, so tests can refer to shared chain
// descriptions without knowing where they run from.
func ResolveFile(fn string) string {
	//nolint:dogsled
	_, thisFilePath, _, _ := runtime.Caller(0)
	thisDirPath, err := filepath.Abs(filepath.Dir(thisFilePath))
	if err != nil {
		panic(err)
	}
	return filepath.Join(thisDirPath, "..", fn)
}

// ExpandHomeDir replaces a leading ~ in path with the user's home directory.
func ExpandHomeDir(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
