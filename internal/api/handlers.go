// Package api exposes the entry cache over a loopback HTTP surface for the
// app shell and the vaultd CLI.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/petrel-app/vaultd/internal/cache"
)

const maxBodySize = 10 << 20 // 10MB

type AppDeps struct {
	Cache *cache.Cache
	Token string
	// DefaultTTL applies to kv writes that do not name a ttl. 0 = no expiry.
	DefaultTTL time.Duration
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/kv", handleListKeys(deps))
		r.Delete("/kv", handleClear(deps))
		r.Get("/kv/{key}", handleGetItem(deps))
		r.Put("/kv/{key}", handleSetItem(deps))
		r.Delete("/kv/{key}", handleRemoveItem(deps))

		r.Get("/users/{userID}/entries", handleGetEntries(deps))
		r.Put("/users/{userID}/entries", handleSetEntries(deps))
		r.Post("/users/{userID}/entries", handleAddEntry(deps))
		r.Patch("/users/{userID}/entries/{entryID}", handleUpdateEntry(deps))
		r.Put("/users/{userID}/entries/{entryID}/replacement", handleReplaceEntry(deps))
		r.Delete("/users/{userID}/entries/{entryID}", handleRemoveEntry(deps))

		r.Get("/events", handleEvents(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- generic kv ---

func handleGetItem(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		value, ok := cache.GetItem[json.RawMessage](r.Context(), deps.Cache, key)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "no value for key %q", key)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": value})
	}
}

type setItemRequest struct {
	Value      json.RawMessage `json:"value"`
	TTLMinutes *int            `json:"ttl_minutes,omitempty"`
}

func handleSetItem(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		defer r.Body.Close()

		var req setItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.Value) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "value is required")
			return
		}

		ttl := deps.DefaultTTL
		if req.TTLMinutes != nil {
			ttl = time.Duration(*req.TTLMinutes) * time.Minute
		}

		if err := cache.SetItem(r.Context(), deps.Cache, key, req.Value, ttl); err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "writing %q: %v", key, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"key": key})
	}
}

func handleRemoveItem(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if err := deps.Cache.RemoveItem(r.Context(), key); err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "removing %q: %v", key, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"key": key})
	}
}

func handleListKeys(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := deps.Cache.Keys(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "listing keys: %v", err)
			return
		}
		if keys == nil {
			keys = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
	}
}

func handleClear(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Cache.Clear(r.Context()); err != nil {
			httpError(w, http.StatusInternalServerError, "storage_error", "clearing store: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
	}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return err
	}
	return nil
}
