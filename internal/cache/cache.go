// Package cache is the offline-first device cache for journal entries.
//
// It wraps a durable string store with a JSON envelope (optional expiry,
// lazy eviction), per-user entry lists with optimistic insert-then-replace
// reconciliation, a serializing queue so read-modify-write mutations never
// interleave, and change notifications for list views.
//
// A single Cache instance must own a given store for the process lifetime.
// Two instances over the same underlying store are not mutually exclusive
// for structural writes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/petrel-app/vaultd/internal/storage"
)

const entriesKeyPrefix = "entries_"

// Cache is the process-wide entry cache over a durable KV store.
type Cache struct {
	kv     storage.KV
	queue  serialQueue
	events *notifier
	logger *slog.Logger
	now    func() time.Time
}

func New(kv storage.KV) *Cache {
	logger := slog.Default()
	return &Cache{
		kv:     kv,
		events: newNotifier(logger),
		logger: logger,
		now:    time.Now,
	}
}

// envelope is the persisted wrapper for every cache value. The field names
// are part of the on-device format; do not rename them.
type envelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	ExpiresAt int64           `json:"expiresAt,omitempty"`
}

// SetItem stores value under key, wrapped in the envelope. A ttl of 0 means
// the item never expires.
func SetItem[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding value for %q: %w", key, err)
	}
	return c.setRaw(ctx, key, data, ttl)
}

// GetItem returns the value stored under key, or ok=false when the key is
// absent, expired, or unreadable. Store read failures and corrupt payloads
// are logged and treated as a miss, never surfaced as a hard failure.
// Expired items are physically removed on read.
func GetItem[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var zero T
	raw, ok := c.getRaw(ctx, key)
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.Warn("cached value does not decode, treating as miss", "key", key, "error", err)
		return zero, false
	}
	return v, true
}

// RemoveItem deletes key from the store.
func (c *Cache) RemoveItem(ctx context.Context, key string) error {
	if err := c.kv.Remove(ctx, key); err != nil {
		return err
	}
	c.emitIfEntries(key)
	return nil
}

// Clear wipes the entire store. Used on full logout/reset.
func (c *Cache) Clear(ctx context.Context) error {
	return c.kv.Clear(ctx)
}

// Keys returns every key currently present in the store.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	return c.kv.Keys(ctx)
}

// OnEntriesChanged registers a listener for entry list changes and returns
// a function that unsubscribes it.
func (c *Cache) OnEntriesChanged(fn Listener) func() {
	return c.events.on(fn)
}

func (c *Cache) setRaw(ctx context.Context, key string, data json.RawMessage, ttl time.Duration) error {
	now := c.now()
	env := envelope{Data: data, Timestamp: now.UnixMilli()}
	if ttl > 0 {
		env.ExpiresAt = now.Add(ttl).UnixMilli()
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope for %q: %w", key, err)
	}
	if err := c.kv.Set(ctx, key, string(raw)); err != nil {
		return err
	}
	c.emitIfEntries(key)
	return nil
}

func (c *Cache) getRaw(ctx context.Context, key string) (json.RawMessage, bool) {
	raw, err := c.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss", "key", key, "error", err)
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		c.logger.Warn("corrupt cache payload, treating as miss", "key", key, "error", err)
		return nil, false
	}

	if env.ExpiresAt > 0 && c.now().UnixMilli() >= env.ExpiresAt {
		if err := c.RemoveItem(ctx, key); err != nil {
			c.logger.Warn("evicting expired key failed", "key", key, "error", err)
		}
		return nil, false
	}
	return env.Data, true
}

func entriesKey(userID string) string {
	return entriesKeyPrefix + userID
}

func (c *Cache) emitIfEntries(key string) {
	if userID, ok := strings.CutPrefix(key, entriesKeyPrefix); ok && userID != "" {
		c.events.emit(EntriesChanged{UserID: userID})
	}
}
