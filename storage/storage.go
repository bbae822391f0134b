package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Namespaced keys of the three independent snapshots.
const (
	KeyPlaylists = "base-music-playlists"
	KeyHistory   = "base-music-play-history"
	KeyPoints    = "base-music-points"
)

var (
	// ErrNotFound is returned by a Backend when nothing is stored under a key.
	ErrNotFound = errors.New("snapshot not found")
	// ErrCorrupt wraps decode failures of a stored snapshot.
	ErrCorrupt = errors.New("snapshot corrupt")
)

// Backend stores opaque snapshot blobs under string keys. Writes replace the
// whole value; there is no compare-and-swap.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Repository loads and saves one typed snapshot.
type Repository[T any] interface {
	Load(ctx context.Context) (T, error)
	Save(ctx context.Context, v T) error
	Clear(ctx context.Context) error
}

// Snapshot is a JSON-encoded Repository bound to a single backend key.
type Snapshot[T any] struct {
	backend Backend
	key     string
}

// NewSnapshot returns a repository for key on b.
func NewSnapshot[T any](b Backend, key string) *Snapshot[T] {
	return &Snapshot[T]{backend: b, key: key}
}

// Key returns the backend key of the snapshot.
func (s *Snapshot[T]) Key() string { return s.key }

// Load returns the stored value. A missing key yields the zero value and no
// error; undecodable data yields the zero value and an ErrCorrupt error.
func (s *Snapshot[T]) Load(ctx context.Context) (T, error) {
	var zero T
	data, err := s.backend.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return zero, nil
		}
		return zero, fmt.Errorf("load %s: %w", s.key, err)
	}
	if len(data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, fmt.Errorf("load %s: %w: %v", s.key, ErrCorrupt, err)
	}
	return v, nil
}

// Save replaces the stored value with v.
func (s *Snapshot[T]) Save(ctx context.Context, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.key, err)
	}
	if err := s.backend.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	return nil
}

// Clear removes the stored value. Clearing a missing key is not an error.
func (s *Snapshot[T]) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("clear %s: %w", s.key, err)
	}
	return nil
}

// prefixed joins an optional namespace prefix and a key.
func prefixed(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}
