package bill

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage defines the interface for file storage operations. It holds the
// original upload and the per-page crop artifacts so a reviewer can inspect
// exactly what the extractor saw.
type Storage interface {
	// Save saves a file and returns the path/filename
	Save(filename string, data []byte) (string, error)

	// Get retrieves a file by path
	Get(path string) ([]byte, error)

	// Delete removes a file
	Delete(path string) error

	// DeleteAll removes every file saved under the given prefix
	DeleteAll(prefix string) error
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Save saves a file to local storage. Filenames may contain a directory
// component (one directory per document).
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	path := filepath.Join(l.basePath, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating document directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filename, nil
}

// Get retrieves a file from local storage
func (l *LocalStorage) Get(path string) ([]byte, error) {
	fullPath := filepath.Join(l.basePath, path)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(path string) error {
	fullPath := filepath.Join(l.basePath, path)
	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// DeleteAll removes the directory holding every artifact saved under the
// given prefix.
func (l *LocalStorage) DeleteAll(prefix string) error {
	fullPath := filepath.Join(l.basePath, prefix)
	if err := os.RemoveAll(fullPath); err != nil {
		return fmt.Errorf("deleting artifacts: %w", err)
	}
	return nil
}
