package api

import (
	"fmt"
	"net/http"

	"github.com/petrel-app/vaultd/internal/cache"
)

// handleEvents streams entriesChanged notifications as Server-Sent Events
// so list views can refetch without polling.
func handleEvents(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "streaming_error", "response writer does not support streaming")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		// Buffered so a slow client never blocks the writer emitting the
		// event; overflow drops the notification (the client refetches on
		// the next one).
		ch := make(chan cache.EntriesChanged, 16)
		off := deps.Cache.OnEntriesChanged(func(ev cache.EntriesChanged) {
			select {
			case ch <- ev:
			default:
			}
		})
		defer off()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev := <-ch:
				fmt.Fprintf(w, "event: entriesChanged\ndata: {\"userId\":%q}\n\n", ev.UserID)
				flusher.Flush()
			}
		}
	}
}
