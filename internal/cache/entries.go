package cache

import (
	"context"
	"sort"
)

// GetEntries returns the cached entry list for userID, or ok=false when
// nothing is cached yet. The read is not serialized against in-flight
// writes; callers needing a snapshot right after a write should react to
// the EntriesChanged notification instead of racing a read.
func (c *Cache) GetEntries(ctx context.Context, userID string) ([]Entry, bool) {
	return GetItem[[]Entry](ctx, c, entriesKey(userID))
}

// SetEntries reconciles a freshly fetched server snapshot with the cached
// list. Server fetches are periodic full-list replacements, so a naive
// overwrite would erase entries created locally between the capture and the
// next successful refresh. Cached entries that are local-authoritative and
// whose id is absent from the snapshot survive the merge; everything else
// is superseded by the server list. The union is sorted newest-first by
// created_at.
func (c *Cache) SetEntries(ctx context.Context, userID string, serverEntries []Entry) error {
	return c.queue.Run(ctx, func(ctx context.Context) error {
		current, _ := c.readEntries(ctx, userID)

		serverIDs := make(map[string]struct{}, len(serverEntries))
		for _, e := range serverEntries {
			serverIDs[e.ID()] = struct{}{}
		}

		// Local entries the server has since caught up on are redundant
		// and must not duplicate.
		surviving := make([]Entry, 0, len(current))
		for _, e := range current {
			if !e.LocalAuthoritative() {
				continue
			}
			if _, ok := serverIDs[e.ID()]; ok {
				continue
			}
			surviving = append(surviving, e)
		}

		merged := append(surviving, serverEntries...)

		// Stable sort keeps concatenation order on ties. Entries without a
		// created_at compare as the zero time and sink toward the bottom.
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].CreatedAt().After(merged[j].CreatedAt())
		})

		return c.writeEntries(ctx, userID, merged)
	})
}

// AddEntry prepends entry to userID's list so newly captured moments show
// before older ones. Inserting an id that is already present is a no-op,
// which makes capture-save retries harmless.
func (c *Cache) AddEntry(ctx context.Context, userID string, entry Entry) error {
	return c.queue.Run(ctx, func(ctx context.Context) error {
		current, _ := c.readEntries(ctx, userID)
		for _, e := range current {
			if e.ID() == entry.ID() {
				c.logger.Info("entry already cached, skipping insert",
					"user_id", userID, "entry_id", entry.ID())
				return nil
			}
		}
		return c.writeEntries(ctx, userID, append([]Entry{entry}, current...))
	})
}

// UpdateEntry shallow-merges updates into the entry with id entryID.
// Unknown ids leave the list unchanged.
func (c *Cache) UpdateEntry(ctx context.Context, userID, entryID string, updates Entry) error {
	return c.queue.Run(ctx, func(ctx context.Context) error {
		current, _ := c.readEntries(ctx, userID)
		for i, e := range current {
			if e.ID() == entryID {
				merged := e.Clone()
				merged.Apply(updates)
				current[i] = merged
				break
			}
		}
		return c.writeEntries(ctx, userID, current)
	})
}

// ReplaceEntry swaps the optimistic entry with id tempID for real, keeping
// its position in the list. A nil real removes the optimistic entry instead
// (the save failed and the insert is rolled back). If tempID is no longer
// present and real is given, real is prepended. That covers the race where
// the optimistic entry was already evicted by a refresh.
func (c *Cache) ReplaceEntry(ctx context.Context, userID, tempID string, real Entry) error {
	return c.queue.Run(ctx, func(ctx context.Context) error {
		current, _ := c.readEntries(ctx, userID)

		found := false
		out := make([]Entry, 0, len(current)+1)
		for _, e := range current {
			if e.ID() == tempID {
				found = true
				if real != nil {
					out = append(out, real)
				}
				continue
			}
			out = append(out, e)
		}
		if !found && real != nil {
			out = append([]Entry{real}, out...)
		}
		return c.writeEntries(ctx, userID, out)
	})
}

// RemoveEntry deletes the entry with id entryID from userID's list.
func (c *Cache) RemoveEntry(ctx context.Context, userID, entryID string) error {
	return c.queue.Run(ctx, func(ctx context.Context) error {
		current, _ := c.readEntries(ctx, userID)
		out := current[:0]
		for _, e := range current {
			if e.ID() != entryID {
				out = append(out, e)
			}
		}
		return c.writeEntries(ctx, userID, out)
	})
}

func (c *Cache) readEntries(ctx context.Context, userID string) ([]Entry, bool) {
	return GetItem[[]Entry](ctx, c, entriesKey(userID))
}

// writeEntries persists the full list with no expiry; the envelope write
// emits EntriesChanged.
func (c *Cache) writeEntries(ctx context.Context, userID string, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	return SetItem(ctx, c, entriesKey(userID), entries, 0)
}
