package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var ErrInvalidPath = errors.New("invalid storage path")

// Store persists uploaded files
type Store interface {
	Save(ctx context.Context, name string, reader io.Reader) (int64, error)
	Open(ctx context.Context, name string) (afero.File, error)
	Delete(ctx context.Context, name string) error
}

// AferoStore keeps files on an afero filesystem rooted at a base directory
type AferoStore struct {
	fs afero.Fs
}

// NewAferoStore creates a store over fs
func NewAferoStore(fs afero.Fs) *AferoStore {
	return &AferoStore{fs: fs}
}

// NewDiskStore creates a store rooted at dir on the local disk
func NewDiskStore(dir string) (*AferoStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return NewAferoStore(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// ObjectName builds a collision-free name for an upload, keeping the extension
func ObjectName(owner, filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	return path.Join(owner, uuid.NewString()+ext)
}

func clean(name string) (string, error) {
	cleaned := path.Clean("/" + name)
	if cleaned == "/" || strings.Contains(name, "..") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

// Save writes the content of the reader to name
func (s *AferoStore) Save(ctx context.Context, name string, reader io.Reader) (int64, error) {
	p, err := clean(name)
	if err != nil {
		return 0, err
	}
	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return 0, err
	}
	f, err := s.fs.Create(p)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(f, reader)
}

// Open opens a stored file for reading
func (s *AferoStore) Open(ctx context.Context, name string) (afero.File, error) {
	p, err := clean(name)
	if err != nil {
		return nil, err
	}
	return s.fs.OpenFile(p, os.O_RDONLY, 0)
}

// Delete removes a stored file
func (s *AferoStore) Delete(ctx context.Context, name string) error {
	p, err := clean(name)
	if err != nil {
		return err
	}
	return s.fs.Remove(p)
}
