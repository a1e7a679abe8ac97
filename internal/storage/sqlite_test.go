package storage

import (
	"context"
	"errors"
	"sort"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestGetMissingKey(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get on missing key: got %v, want ErrNotFound", err)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "greeting", `{"data":"hello"}`); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := s.Get(ctx, "greeting")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != `{"data":"hello"}` {
		t.Errorf("Get = %q, want %q", got, `{"data":"hello"}`)
	}
}

func TestSetOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("Set v1: %v", err)
	}
	if err := s.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("Set v2: %v", err)
	}

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "v2" {
		t.Errorf("Get = %q, want %q", got, "v2")
	}
}

func TestRemove(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove: got %v, want ErrNotFound", err)
	}

	// Removing an absent key is not an error.
	if err := s.Remove(ctx, "k"); err != nil {
		t.Errorf("Remove absent key: %v", err)
	}
}

func TestClearAndKeys(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "entries_u1"} {
		if err := s.Set(ctx, k, "v"); err != nil {
			t.Fatalf("Set %q: %v", k, err)
		}
	}

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	sort.Strings(keys)
	want := []string{"a", "b", "entries_u1"}
	if len(keys) != len(want) {
		t.Fatalf("Keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys = %v, want %v", keys, want)
		}
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	keys, err = s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys after Clear: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Keys after Clear = %v, want empty", keys)
	}
}

// TestPersistsAcrossReopen verifies values survive a close/reopen cycle.
func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.Set(ctx, "entries_u1", `[{"id":"e1"}]`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.Get(ctx, "entries_u1")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got != `[{"id":"e1"}]` {
		t.Errorf("Get after reopen = %q", got)
	}
}

func TestMemoryImplementsKV(t *testing.T) {
	var _ KV = NewMemory()
	var _ KV = &Store{}

	m := NewMemory()
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Errorf("Get = %q, %v", got, err)
	}
	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Clear: got %v, want ErrNotFound", err)
	}
}
