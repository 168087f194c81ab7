package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken-1/getMe" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"id": 1, "is_bot": true, "username": "money_bot"},
		})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("token-1", srv.URL)
	me, err := c.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if me.Username != "money_bot" {
		t.Errorf("username = %q", me.Username)
	}
}

func TestAPIErrorSurfacesDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "Unauthorized"})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("bad-token", srv.URL)
	_, err := c.GetMe(context.Background())
	if err == nil || !strings.Contains(err.Error(), "Unauthorized") {
		t.Fatalf("err = %v", err)
	}
}

func TestSendMessageChunksLongText(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		bodies = append(bodies, r.FormValue("text"))
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{}})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("token", srv.URL)
	long := strings.Repeat("line of text\n", 500) // ~6500 runes
	if err := c.SendMessage(context.Background(), 1, long); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(bodies) < 2 {
		t.Fatalf("long message sent in %d chunks", len(bodies))
	}
	for i, b := range bodies {
		if len([]rune(b)) > maxMessageLen {
			t.Errorf("chunk %d exceeds limit: %d runes", i, len([]rune(b)))
		}
	}
	if strings.Join(bodies, "") != long {
		t.Error("chunks do not reassemble to the original text")
	}
}

func TestSplitMessagePrefersNewlines(t *testing.T) {
	text := strings.Repeat("a", 3000) + "\n" + strings.Repeat("b", 3000)
	chunks := splitMessage(text, maxMessageLen)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "a") {
		t.Errorf("first chunk should end at the newline boundary")
	}
}

func TestGetUpdatesParsesMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.FormValue("offset") != "7" {
			t.Errorf("offset = %s", r.FormValue("offset"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": []map[string]any{{
				"update_id": 8,
				"message": map[string]any{
					"message_id": 100,
					"chat":       map[string]any{"id": 42, "type": "private"},
					"text":       "hello",
				},
			}},
		})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("token", srv.URL)
	updates, err := c.GetUpdates(context.Background(), 7, 0)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 1 || updates[0].Message.Text != "hello" || updates[0].Message.Chat.ID != 42 {
		t.Fatalf("updates = %+v", updates)
	}
}
