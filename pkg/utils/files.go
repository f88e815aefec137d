package utils

import (
	"io/fs"
	"path/filepath"
)

// ExecutableFiles walks path and returns all regular files with an executable
// bit set.
func ExecutableFiles(path string) ([]string, error) {
	executables := make([]string, 0)
	err := filepath.Walk(path, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() && info.Mode()&0111 != 0 {
			executables = append(executables, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return executables, nil
}
