package cache

import (
	"log/slog"
	"sync"
)

// EntriesChanged is published after every successful write or delete of a
// per-user entries key, whether through the generic envelope operations or
// the entry mutations.
type EntriesChanged struct {
	UserID string
}

// Listener receives EntriesChanged notifications. Listeners are invoked
// synchronously on the writer's goroutine; keep them short.
type Listener func(EntriesChanged)

type notifier struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
	logger    *slog.Logger
}

func newNotifier(logger *slog.Logger) *notifier {
	return &notifier{listeners: make(map[int]Listener), logger: logger}
}

// on registers a listener and returns a function that removes it.
// Unsubscribing twice is harmless.
func (n *notifier) on(fn Listener) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

// emit invokes every registered listener. A panicking listener is logged
// and skipped; it never breaks delivery to the others or propagates to
// the writer that triggered the event.
func (n *notifier) emit(ev EntriesChanged) {
	n.mu.Lock()
	fns := make([]Listener, 0, len(n.listeners))
	for _, fn := range n.listeners {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		n.safeCall(fn, ev)
	}
}

func (n *notifier) safeCall(fn Listener, ev EntriesChanged) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("entries listener panicked", "user_id", ev.UserID, "panic", r)
		}
	}()
	fn(ev)
}
