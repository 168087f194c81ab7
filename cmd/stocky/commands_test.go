package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
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

func TestTasksList(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /tasks": `[{"id":"aaaabbbb-0000-0000-0000-000000000000","kind":"reminder","status":"pending","description":"pay rent","due_at":"2026-09-01T09:00:00Z"}]`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/tasks?bot=money&limit=20")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var tasks []struct {
		ID     string `json:"id"`
		Kind   string `json:"kind"`
		Status string `json:"status"`
	}
	if err := decodeJSON(resp, &tasks); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if tasks[0].Kind != "reminder" || tasks[0].Status != "pending" {
		t.Errorf("task = %+v", tasks[0])
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if ts.requests[0].Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", ts.requests[0].Auth)
	}
}

func TestTasksAdd(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /tasks": `{"id":"task-123","status":"pending"}`,
	})

	client := ts.client()
	body := map[string]any{
		"bot":         "stocky",
		"kind":        "report",
		"description": "weekly portfolio report",
		"due_at":      "2026-09-01T16:00:00Z",
	}
	resp, err := client.post(ctx, "/tasks", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["id"] != "task-123" {
		t.Errorf("id = %q, want task-123", result["id"])
	}

	var sentBody map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &sentBody); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if sentBody["kind"] != "report" {
		t.Errorf("body.kind = %v, want report", sentBody["kind"])
	}
}

func TestTasksAdd_MissingDue(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"tasks", "add", "money", "reminder", "pay rent"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing --due")
	}
	if !strings.Contains(err.Error(), "--due") {
		t.Errorf("error = %q, want it to mention --due", err.Error())
	}
}

func TestChat(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /chat": `{"reply":"AAPL closed at 242.10"}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/chat", map[string]any{
		"bot":     "stocky",
		"message": "where did AAPL close?",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["reply"] != "AAPL closed at 242.10" {
		t.Errorf("reply = %q", result["reply"])
	}

	var sentBody map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &sentBody); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if sentBody["bot"] != "stocky" {
		t.Errorf("body.bot = %v, want stocky", sentBody["bot"])
	}
}

func TestPortfolio(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /portfolio": `{"account":"cash 1000","positions":"AAPL: 10 shares"}`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/portfolio")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["account"] != "cash 1000" {
		t.Errorf("account = %q", result["account"])
	}
}

func TestMemorySet(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PUT /memory/user/currency": `{"status":"stored"}`,
	})

	client := ts.client()
	resp, err := client.put(ctx, "/memory/user/currency", map[string]string{"value": "EUR"})
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

	var sentBody map[string]string
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &sentBody); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if sentBody["value"] != "EUR" {
		t.Errorf("body.value = %q, want EUR", sentBody["value"])
	}
}

func TestMemoryList_PrefixEncoding(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /memory": `[]`,
	})

	client := ts.client()
	path := "/memory?prefix=" + url.QueryEscape("user settings/")
	resp, err := client.get(ctx, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if strings.Contains(ts.requests[0].Path, "user settings") {
		t.Errorf("path = %q, prefix should be URL-encoded", ts.requests[0].Path)
	}
}

func TestDecodeJSON_ErrorStatus(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	client := ts.client()
	resp, err := client.get(ctx, "/nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out map[string]any
	err = decodeJSON(resp, &out)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %q, want it to mention 404", err.Error())
	}
}
