package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/petrel-app/vaultd/internal/cache"
)

func handleGetEntries(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		entries, ok := deps.Cache.GetEntries(r.Context(), userID)
		if entries == nil {
			entries = []cache.Entry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"cached":  ok,
			"entries": entries,
		})
	}
}

type setEntriesRequest struct {
	Entries []cache.Entry `json:"entries"`
}

// handleSetEntries takes a full server snapshot and reconciles it with the
// cached list. Called after every successful feed refresh.
func handleSetEntries(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		var req setEntriesRequest
		if decodeBody(w, r, &req) != nil {
			return
		}

		if err := deps.Cache.SetEntries(r.Context(), userID, req.Entries); err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "reconciling entries: %v", err)
			return
		}

		merged, _ := deps.Cache.GetEntries(r.Context(), userID)
		writeJSON(w, http.StatusOK, map[string]any{"entries": merged})
	}
}

// handleAddEntry inserts an optimistic entry. Missing id, status, and
// created_at are stamped client-side so the entry renders immediately and
// sorts as newest until the server confirms it.
func handleAddEntry(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		var entry cache.Entry
		if decodeBody(w, r, &entry) != nil {
			return
		}
		if entry == nil {
			entry = cache.Entry{}
		}

		if entry.ID() == "" {
			entry.SetString("id", cache.NewTempID())
		}
		if entry.Status() == "" {
			entry.SetString("status", string(cache.StatusPending))
		}
		if _, ok := entry["created_at"]; !ok {
			entry.SetString("created_at", time.Now().UTC().Format(time.RFC3339))
		}

		if err := deps.Cache.AddEntry(r.Context(), userID, entry); err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "adding entry: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"entry": entry})
	}
}

func handleUpdateEntry(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		entryID := chi.URLParam(r, "entryID")

		var updates cache.Entry
		if decodeBody(w, r, &updates) != nil {
			return
		}

		if err := deps.Cache.UpdateEntry(r.Context(), userID, entryID, updates); err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "updating entry: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entry_id": entryID})
	}
}

// handleReplaceEntry swaps a temp-id entry for its server-confirmed form.
// An empty body rolls back the optimistic insert instead.
func handleReplaceEntry(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		tempID := chi.URLParam(r, "entryID")

		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		defer r.Body.Close()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading body: %v", err)
			return
		}

		var real cache.Entry
		if len(body) > 0 {
			if err := json.Unmarshal(body, &real); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid entry: %v", err)
				return
			}
		}

		if err := deps.Cache.ReplaceEntry(r.Context(), userID, tempID, real); err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "replacing entry: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"temp_id": tempID})
	}
}

func handleRemoveEntry(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		entryID := chi.URLParam(r, "entryID")

		if err := deps.Cache.RemoveEntry(r.Context(), userID, entryID); err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "removing entry: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entry_id": entryID})
	}
}
