// Package kv is the local key-value persistence primitive the sync subsystem
// stores its outbox, catalog cache, identities and sale ledger in.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Load when nothing was saved under a key.
var ErrNotFound = errors.New("kv: key not found")

// Store loads and saves opaque values by key. Implementations must be safe
// for concurrent use; read-modify-write sequencing is the caller's job.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

// LoadJSON decodes the value under key into v. It reports false when the key
// is absent.
func LoadJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, err := s.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SaveJSON encodes v and saves it under key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Save(ctx, key, raw)
}
