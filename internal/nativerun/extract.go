package nativerun

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func isArchive(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}

// extractArchive unpacks a zip into destDir. Entries whose cleaned
// path would escape destDir are rejected.
func extractArchive(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, zf := range r.File {
		target := filepath.Join(destDir, zf.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes extraction dir", zf.Name)
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		src, err := zf.Open()
		if err != nil {
			return err
		}
		dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			src.Close()
			return err
		}
		_, err = io.Copy(dst, src)
		src.Close()
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// pickContent chooses the content file out of an extracted tree: first
// match in ranked extension order, else the first regular file in
// sorted walk order.
func pickContent(dir string, ranked []string) (string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(files)

	for _, ext := range ranked {
		for _, f := range files {
			if strings.EqualFold(filepath.Ext(f), ext) {
				return f, nil
			}
		}
	}
	if len(files) > 0 {
		return files[0], nil
	}
	return "", fmt.Errorf("%w: no content in archive", ErrExtractionFailed)
}
