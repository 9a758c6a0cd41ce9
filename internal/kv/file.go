package kv

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File stores each key as its own file under a directory. Writes go through
// a temp file and a rename so a crash never leaves a half-written value.
type File struct {
	dir string
	mu  sync.Mutex
}

// NewFile creates dir if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, base64.RawURLEncoding.EncodeToString([]byte(key))+".json")
}

// Load reads the key's file, returning ErrNotFound when it does not exist.
func (f *File) Load(_ context.Context, key string) ([]byte, error) {
	raw, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return raw, nil
}

// Save atomically replaces the key's file.
func (f *File) Save(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(name, f.path(key)); err != nil {
		os.Remove(name)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}
