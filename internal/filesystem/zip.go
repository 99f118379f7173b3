package filesystem

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
)

// ZipArchive serves files from a zip container. Lookups ignore case and
// accept either path separator.
type ZipArchive struct {
	name    string
	closer  io.Closer
	entries map[string]*zip.File
}

// OpenZip opens a zip archive from disk.
func OpenZip(path string) (*ZipArchive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	return newZipArchive(filepath.Base(path), &rc.Reader, rc), nil
}

// NewZipArchive reads a zip archive held by r.
func NewZipArchive(name string, r io.ReaderAt, size int64) (*ZipArchive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	return newZipArchive(name, zr, nil), nil
}

func newZipArchive(name string, zr *zip.Reader, closer io.Closer) *ZipArchive {
	a := &ZipArchive{name: name, closer: closer, entries: make(map[string]*zip.File)}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		a.entries[entryKey(f.Name)] = f
	}
	return a
}

func entryKey(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.ToLower(strings.TrimPrefix(name, "/"))
}

func (a *ZipArchive) Name() string { return a.name }

func (a *ZipArchive) Exists(filename string) bool {
	_, ok := a.entries[entryKey(filename)]
	return ok
}

func (a *ZipArchive) Open(filename string) (io.ReadCloser, error) {
	f, ok := a.entries[entryKey(filename)]
	if !ok {
		return nil, fmt.Errorf("file not found in %s: %s", a.name, filename)
	}
	return f.Open()
}

// List returns the stored names in sorted order.
func (a *ZipArchive) List() []string {
	names := make([]string, 0, len(a.entries))
	for _, f := range a.entries {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func (a *ZipArchive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
