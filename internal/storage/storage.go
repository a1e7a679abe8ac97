package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested key does not exist.
var ErrNotFound = errors.New("not found")

// KV is a durable string store: async get/set/remove, no transactions,
// no query capability. The cache layer builds everything else on top.
type KV interface {
	// Get returns the raw value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Clear wipes the entire store.
	Clear(ctx context.Context) error

	// Keys returns every key currently present, in no particular order.
	Keys(ctx context.Context) ([]string, error)
}
