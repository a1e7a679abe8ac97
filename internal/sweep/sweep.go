// Package sweep evicts expired cache items in the background. Expiry is
// otherwise lazy (checked on read), so keys nobody reads anymore would pin
// their storage forever.
package sweep

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/petrel-app/vaultd/internal/cache"
)

// Sweeper periodically enumerates keys and performs envelope reads; the
// read path physically removes anything past its expiry.
type Sweeper struct {
	cache    *cache.Cache
	interval time.Duration
	logger   *slog.Logger
}

// New creates a Sweeper. If interval is <= 0, it defaults to 15 minutes.
func New(c *cache.Cache, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Sweeper{
		cache:    c,
		interval: interval,
		logger:   slog.Default(),
	}
}

// Run sweeps on a ticker until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("sweep iteration failed", "error", err)
			}
		}
	}
}

// RunOnce scans every key once. Returns an error only when the key
// enumeration itself fails; unreadable individual items are already
// handled (and logged) by the cache's read path.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	keys, err := s.cache.Keys(ctx)
	if err != nil {
		return fmt.Errorf("listing keys: %w", err)
	}

	evicted := 0
	for _, key := range keys {
		if _, ok := cache.GetItem[json.RawMessage](ctx, s.cache, key); !ok {
			evicted++
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if evicted > 0 {
		s.logger.Debug("sweep complete", "scanned", len(keys), "evicted", evicted)
	}
	return nil
}
