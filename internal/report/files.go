// Package report renders accepted handovers, snagging reports and approved
// requests as PDFs, and stores them alongside uploads in a local file store.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidKey is returned for keys that would escape the store directory.
var ErrInvalidKey = errors.New("invalid file key")

// FilesPrefix is the URL path under which stored files are served.
const FilesPrefix = "/files/"

// FileStore keeps files on local disk under a root directory. Keys are
// slash-separated relative paths.
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("creating file store: %w", err)
	}
	return &FileStore{root: root}, nil
}

// NewKey returns a fresh key under prefix keeping ext (".pdf", ".jpg").
func NewKey(prefix, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join(prefix, uuid.NewString()+strings.ToLower(ext))
}

// URL returns the served path of key.
func URL(key string) string {
	return FilesPrefix + key
}

// KeyFromURL is the inverse of URL. Keys pass through unchanged.
func KeyFromURL(u string) string {
	return strings.TrimPrefix(u, FilesPrefix)
}

func (s *FileStore) path(key string) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != key || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Save writes r to key, replacing any existing file, and returns the size.
func (s *FileStore) Save(key string, r io.Reader) (n int64, err error) {
	p, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return 0, fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	n, err = io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("writing %s: %w", key, err)
	}
	if err = tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing %s: %w", key, err)
	}
	if err = os.Rename(tmp.Name(), p); err != nil {
		return 0, fmt.Errorf("moving %s into place: %w", key, err)
	}
	return n, nil
}

// Open opens key for reading. Missing files report os.ErrNotExist.
func (s *FileStore) Open(key string) (*os.File, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Delete removes key. Missing files are not an error.
func (s *FileStore) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}
