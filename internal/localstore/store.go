// ABOUTME: Key/value storage interface for client-side persisted state
// ABOUTME: Defines the KV contract shared by the SQLite and in-memory implementations

package localstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("key not found")

// KV is a small persistent string map.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
