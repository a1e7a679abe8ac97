package cache

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the local lifecycle state of an entry. An entry carrying any of
// these values is local-authoritative: a server refresh must not silently
// drop it (the server has not acknowledged it yet).
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Entry is a single shareable moment (photo/video/audio post). The cache
// interprets only the id, status and created_at fields. Everything else
// (media URL, captions, attachments, privacy flags) is opaque payload
// carried through unchanged.
type Entry map[string]json.RawMessage

// NewTempID returns a client-generated id for an optimistic entry,
// distinct from any server-issued id.
func NewTempID() string {
	return uuid.NewString()
}

func (e Entry) stringField(name string) string {
	raw, ok := e[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// ID returns the entry's identity, or "" if absent or malformed.
func (e Entry) ID() string {
	return e.stringField("id")
}

// Status returns the entry's local lifecycle state, or "" when the field
// is absent (server-confirmed entries carry no status).
func (e Entry) Status() Status {
	return Status(e.stringField("status"))
}

// LocalAuthoritative reports whether the entry must survive a server
// refresh that does not include its id.
func (e Entry) LocalAuthoritative() bool {
	switch e.Status() {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CreatedAt returns the entry's creation time for sort ordering.
// Missing or unparseable values sort as the zero time (oldest).
func (e Entry) CreatedAt() time.Time {
	s := e.stringField("created_at")
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Clone returns a shallow copy of the entry's field map.
func (e Entry) Clone() Entry {
	out := make(Entry, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Apply shallow-merges updates over the entry, field by field.
func (e Entry) Apply(updates Entry) {
	for k, v := range updates {
		e[k] = v
	}
}

// SetString sets a field to a JSON string value. Convenience for callers
// constructing optimistic entries.
func (e Entry) SetString(name, value string) {
	raw, _ := json.Marshal(value)
	e[name] = raw
}
