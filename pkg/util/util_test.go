package util

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.png", "b")
	touch(t, dir, "a.JPG", "a")
	touch(t, dir, "log.txt", "x")
	touch(t, dir, ".copy-123", "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0755))

	files, err := ListImages(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "a.JPG"), filepath.Join(dir, "b.png")}, files)

	n, err := CountImages(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestListImages_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone")

	_, err := ListImages(missing)

	var notFound *PathNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, missing, notFound.Path)
	assert.Contains(t, err.Error(), missing)
}

func TestListImages_File(t *testing.T) {
	p := touch(t, t.TempDir(), "a.png", "a")

	_, err := ListImages(p)
	assert.Error(t, err)
}

func TestCopyFile(t *testing.T) {
	src := touch(t, t.TempDir(), "frame.png", "pixels")
	dst := t.TempDir()

	out, err := CopyFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dst, "frame.png"), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))

	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary file left behind")

	_, err = os.Stat(src)
	assert.NoError(t, err, "source untouched")
}

func TestCopyFile_MissingSource(t *testing.T) {
	dst := t.TempDir()

	_, err := CopyFile(filepath.Join(dst, "nope.png"), dst)
	assert.Error(t, err)

	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResetDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "old"), 0755))
	touch(t, dir, "stale.png", "x")

	require.NoError(t, ResetDir(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestZipImages(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.png", "aaa")
	touch(t, dir, "b.jpg", "bb")
	touch(t, dir, "skip.txt", "x")

	var buf bytes.Buffer
	n, err := ZipImages(dir, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		assert.Equal(t, zip.Store, f.Method)
	}
	assert.Equal(t, []string{"a.png", "b.jpg"}, names)
}

func TestRunID(t *testing.T) {
	a, b := RunID(), RunID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
