package engine

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"evalportal/internal/domain/evaluation"
)

// Snapshot is the device-scoped mirror of the record. It lives under a
// fixed key regardless of employee, so the embedded EmployeeID must be
// checked against the authenticated employee before the snapshot is
// trusted.
type Snapshot struct {
	Record      *evaluation.Record `json:"record"`
	LastSavedAt time.Time          `json:"lastSavedAt"`
}

// Cache is the ephemeral local mirror. Load returns (nil, nil) when the
// cache is empty.
type Cache interface {
	Load() (*Snapshot, error)
	Store(snap *Snapshot) error
	Clear() error
}

// FileCache stores the snapshot as a single JSON file, the fixed storage
// key of the original client.
type FileCache struct {
	Path string
}

// DefaultCachePath places the snapshot in the OS user cache directory.
func DefaultCachePath() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "evalportal", "evaluation.json"), nil
}

func NewFileCache(path string) *FileCache {
	return &FileCache{Path: path}
}

func (c *FileCache) Load() (*Snapshot, error) {
	data, err := os.ReadFile(c.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	if snap.Record == nil {
		return nil, nil
	}
	return &snap, nil
}

func (c *FileCache) Store(snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.Path, data, 0o600)
}

func (c *FileCache) Clear() error {
	err := os.Remove(c.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
