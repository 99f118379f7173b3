package filesystem

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Manager resolves content names against mounted archives first and the
// root directory second.
type Manager struct {
	rootDir  string
	archives []Archive
}

// Archive is a mounted container of content files.
type Archive interface {
	Name() string
	Open(filename string) (io.ReadCloser, error)
	Exists(filename string) bool
	List() []string
	Close() error
}

// NewManager creates a new filesystem manager
func NewManager(rootDir string) *Manager {
	return &Manager{rootDir: rootDir}
}

// Init initializes the filesystem
func (m *Manager) Init() error {
	if _, err := os.Stat(m.rootDir); os.IsNotExist(err) {
		return fmt.Errorf("root directory does not exist: %s", m.rootDir)
	}

	log.Printf("Filesystem initialized with root: %s", m.rootDir)
	return nil
}

// MountArchive opens a zip archive, relative to the root directory unless
// absolute. Archives mounted later take precedence.
func (m *Manager) MountArchive(filename string) error {
	path := filename
	if !filepath.IsAbs(path) {
		path = m.getFullPath(filename)
	}
	a, err := OpenZip(path)
	if err != nil {
		return fmt.Errorf("failed to mount archive %s: %w", filename, err)
	}
	m.archives = append([]Archive{a}, m.archives...)

	log.Printf("Mounted archive %s (%d files)", filename, len(a.List()))
	return nil
}

// Mount adds an already opened archive.
func (m *Manager) Mount(a Archive) {
	m.archives = append([]Archive{a}, m.archives...)
}

// Open opens a file, checking archives first, then filesystem
func (m *Manager) Open(filename string) (io.ReadCloser, error) {
	for _, archive := range m.archives {
		if archive.Exists(filename) {
			return archive.Open(filename)
		}
	}

	file, err := os.Open(m.getFullPath(filename))
	if err != nil {
		return nil, fmt.Errorf("file not found: %s: %w", filename, err)
	}
	return file, nil
}

// Exists checks if a file exists in archives or filesystem
func (m *Manager) Exists(filename string) bool {
	for _, archive := range m.archives {
		if archive.Exists(filename) {
			return true
		}
	}

	_, err := os.Stat(m.getFullPath(filename))
	return err == nil
}

// ReadFile reads an entire file into memory
func (m *Manager) ReadFile(filename string) ([]byte, error) {
	file, err := m.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

// getFullPath accepts either separator in filename.
func (m *Manager) getFullPath(filename string) string {
	clean := strings.ReplaceAll(filename, "\\", "/")
	return filepath.Join(m.rootDir, filepath.FromSlash(clean))
}

// ListDirectory lists files in a directory under the root
func (m *Manager) ListDirectory(dirPath string) ([]string, error) {
	entries, err := os.ReadDir(m.getFullPath(dirPath))
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	return files, nil
}

// Close closes all mounted archives
func (m *Manager) Close() error {
	for _, archive := range m.archives {
		if err := archive.Close(); err != nil {
			log.Printf("Error closing archive %s: %v", archive.Name(), err)
		}
	}

	m.archives = nil
	log.Println("Filesystem manager closed")
	return nil
}
