package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/petrel-app/vaultd/internal/config"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestKVSetCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PUT /kv/settings": `{"status":"stored","key":"settings"}`,
	})

	client := ts.client()

	body := map[string]any{
		"value":       json.RawMessage(`{"theme":"dark"}`),
		"ttl_minutes": 30,
	}
	resp, err := client.put(ctx, "/kv/settings", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["status"] != "stored" {
		t.Errorf("status = %q, want stored", result["status"])
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}

	r := ts.requests[0]
	if r.Method != "PUT" {
		t.Errorf("method = %q, want PUT", r.Method)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var sent map[string]any
	if err := json.Unmarshal([]byte(r.Body), &sent); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if sent["ttl_minutes"] != float64(30) {
		t.Errorf("body.ttl_minutes = %v, want 30", sent["ttl_minutes"])
	}
	value, ok := sent["value"].(map[string]any)
	if !ok {
		t.Fatal("expected body.value to be an object")
	}
	if value["theme"] != "dark" {
		t.Errorf("body.value.theme = %v, want dark", value["theme"])
	}
}

func TestKVGetCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /kv/settings": `{"key":"settings","value":{"theme":"dark"}}`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/kv/settings")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if result.Key != "settings" {
		t.Errorf("key = %q, want settings", result.Key)
	}
	var value map[string]any
	if err := json.Unmarshal(result.Value, &value); err != nil {
		t.Fatalf("value parse error: %v", err)
	}
	if value["theme"] != "dark" {
		t.Errorf("value.theme = %v, want dark", value["theme"])
	}
}

func TestKVKeysCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /kv": `{"keys":["entries_u1","settings"]}`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/kv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Keys []string `json:"keys"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(result.Keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(result.Keys))
	}
	if result.Keys[0] != "entries_u1" {
		t.Errorf("keys[0] = %q, want entries_u1", result.Keys[0])
	}
}

func TestKVSetCommand_RejectsInvalidJSON(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"kv", "set", "settings", "{not json"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for invalid JSON value")
	}
	if !strings.Contains(err.Error(), "not valid JSON") {
		t.Errorf("error = %q, want it to mention 'not valid JSON'", err.Error())
	}
}

func TestEntriesListCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /users/u1/entries": `{"cached":true,"entries":[{"id":"e1","type":"text","status":"pending","created_at":"2025-06-01T10:00:00Z"},{"id":"e2","type":"audio","created_at":"2025-05-30T08:00:00Z"}]}`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/users/u1/entries")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Cached  bool `json:"cached"`
		Entries []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"entries"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if !result.Cached {
		t.Error("expected cached=true")
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	if result.Entries[0].ID != "e1" || result.Entries[0].Status != "pending" {
		t.Errorf("entries[0] = %+v, want id e1 status pending", result.Entries[0])
	}
	// Server-confirmed entries carry no status field.
	if result.Entries[1].Status != "" {
		t.Errorf("entries[1].status = %q, want empty", result.Entries[1].Status)
	}
}

func TestEntriesAddCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /users/u1/entries": `{"entry":{"id":"temp-abc","status":"pending","content":"hello"}}`,
	})

	client := ts.client()
	entry := map[string]any{"content": "hello"}
	resp, err := client.post(ctx, "/users/u1/entries", entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Entry map[string]any `json:"entry"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if result.Entry["id"] != "temp-abc" {
		t.Errorf("entry.id = %v, want temp-abc", result.Entry["id"])
	}
	if result.Entry["status"] != "pending" {
		t.Errorf("entry.status = %v, want pending", result.Entry["status"])
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if ts.requests[0].Path != "/users/u1/entries" {
		t.Errorf("path = %q, want /users/u1/entries", ts.requests[0].Path)
	}
}

func TestEntriesRemoveCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /users/u1/entries/e1": `{"status":"removed"}`,
	})

	client := ts.client()
	resp, err := client.delete(ctx, "/users/u1/entries/e1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["status"] != "removed" {
		t.Errorf("status = %q, want removed", result["status"])
	}
}

func TestEntriesAddCommand_InvalidJSON(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"entries", "add", "u1", "not-json"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for invalid entry JSON")
	}
	if !strings.Contains(err.Error(), "invalid entry JSON") {
		t.Errorf("error = %q, want it to mention 'invalid entry JSON'", err.Error())
	}
}

func TestStatusCommand_Running(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status code = %d, want 200", resp.StatusCode)
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestAPIClientAuth(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	client.token = "my-secret-token"

	_, err := client.get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if ts.requests[0].Auth != "Bearer my-secret-token" {
		t.Errorf("auth = %q, want 'Bearer my-secret-token'", ts.requests[0].Auth)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"auth_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "bad-token",
		httpClient: ts.Client(),
	}

	resp, err := client.get(ctx, "/kv/settings")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4600
	cfg.Cache.SweepIntervalMinutes = 15

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4600" {
			found = true
		}
	}
	if !found {
		t.Error("expected to find server.port=4600 in ShowAll output")
	}
}
