package util

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/project-spencer/orbit/pkg/model"
)

// PathNotFoundError is returned when an input directory does not exist.
type PathNotFoundError struct {
	Path string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("path not found: %s", e.Path)
}

// RunID returns a new unique identifier for a pipeline run.
func RunID() string {
	return uuid.NewString()
}

// ListImages returns the image files directly inside dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	info, err := os.Stat(dir)

	if os.IsNotExist(err) {
		return nil, &PathNotFoundError{Path: dir}
	}

	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)

	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !model.IsImage(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}

	sort.Strings(files)
	return files, nil
}

// CountImages is len(ListImages(dir)).
func CountImages(dir string) (int, error) {
	files, err := ListImages(dir)
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// CopyFile copies src into dir under the same base name. The data is written
// to a temporary file in dir first and renamed into place, so a crash never
// leaves a partially written image behind.
func CopyFile(src, dir string) (string, error) {
	in, err := os.Open(src)

	if err != nil {
		return "", err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(dir, ".copy-*")

	if err != nil {
		return "", err
	}

	// no-op after a successful rename
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return "", err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", err
	}

	if err := tmp.Close(); err != nil {
		return "", err
	}

	dst := filepath.Join(dir, filepath.Base(src))

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}

	return dst, nil
}

// ResetDir removes dir and everything in it, then creates it empty.
func ResetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ZipImages writes every image in dir into a flat zip archive.
func ZipImages(dir string, w io.Writer) (int, error) {
	files, err := ListImages(dir)

	if err != nil {
		return 0, err
	}

	zw := zip.NewWriter(w)

	for _, f := range files {
		if err := addFileToZip(zw, f); err != nil {
			zw.Close()
			return 0, err
		}
	}

	return len(files), zw.Close()
}

func addFileToZip(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	// images are already compressed
	zf, err := zw.CreateHeader(&zip.FileHeader{
		Name:   filepath.Base(path),
		Method: zip.Store,
	})
	if err != nil {
		return err
	}

	_, err = io.Copy(zf, f)
	return err
}
