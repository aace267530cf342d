package document

import (
	"context"
	"os"
	"path/filepath"
)

// BlobStorage persists a finished artifact and returns its stable URL.
type BlobStorage interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// DirStorage writes artifacts under a local directory served at baseURL.
type DirStorage struct {
	Dir     string
	BaseURL string
}

func NewDirStorage(dir, baseURL string) *DirStorage {
	return &DirStorage{Dir: dir, BaseURL: baseURL}
}

func (s *DirStorage) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return s.BaseURL + "/" + name, nil
}
