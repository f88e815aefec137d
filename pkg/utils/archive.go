package utils

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Extract takes a .tar.gz stream and decompresses the contents into baseDir.
// File modes from the archive are preserved so executables stay executable.
// Entries that would escape baseDir are rejected.
func Extract(r io.Reader, baseDir string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("utils: could not read gzip stream: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("utils: could not read tar entry: %w", err)
		}

		target := filepath.Join(baseDir, filepath.FromSlash(header.Name))
		rel, err := filepath.Rel(baseDir, target)
		if err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("utils: archive entry escapes extraction dir: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if _, err := os.Stat(target); err != nil {
				if err := os.MkdirAll(target, fs.FileMode(header.Mode)); err != nil {
					return err
				}
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, fs.FileMode(header.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			f.Close()
		}
	}
}
