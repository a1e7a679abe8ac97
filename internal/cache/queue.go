package cache

import (
	"context"
	"sync"
)

// serialQueue runs operations strictly one at a time in submission order.
// Every structural mutation of the cache goes through here: the operations
// are read-modify-write over the same persisted value, and two interleaved
// bodies would each write back a stale snapshot.
type serialQueue struct {
	mu   sync.Mutex
	tail chan struct{}
}

// Run waits for all previously submitted operations to finish, then executes
// op and returns its error. A failing (or panicking) operation does not
// block or poison the operations queued behind it.
func (q *serialQueue) Run(ctx context.Context, op func(context.Context) error) error {
	q.mu.Lock()
	prev := q.tail
	done := make(chan struct{})
	q.tail = done
	q.mu.Unlock()

	defer close(done)
	if prev != nil {
		<-prev
	}
	return op(ctx)
}
