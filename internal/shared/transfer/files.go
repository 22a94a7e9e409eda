package transfer

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// ListDir returns the regular files directly inside dir. The client uses it
// to enumerate the data folder before an upload; the worker uses it to
// collect output files before a download.
func ListDir(dir string) ([]string, error) {
	return FindFiles([]string{filepath.Join(dir, "*")})
}

// FindFiles expands glob patterns into the regular files they match.
func FindFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, err
		}
		for _, name := range matches {
			info, err := os.Lstat(name)
			if err != nil {
				continue
			}
			if info.Mode().IsRegular() {
				files = append(files, name)
			}
		}
	}
	return files, nil
}
