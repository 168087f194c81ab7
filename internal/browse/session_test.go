package browse

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeService mimics the automation service's session endpoints.
type fakeService struct {
	mux      *http.ServeMux
	sessions int
	deleted  []string
	alive    bool
}

func newFakeService(t *testing.T, html string) (*fakeService, *Client) {
	t.Helper()
	fs := &fakeService{mux: http.NewServeMux(), alive: true}

	fs.mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		fs.sessions++
		w.Write([]byte(`{"id":"sess-1"}`))
	})
	fs.mux.HandleFunc("GET /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !fs.alive {
			w.WriteHeader(http.StatusNotFound)
		}
	})
	fs.mux.HandleFunc("DELETE /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		fs.deleted = append(fs.deleted, r.PathValue("id"))
	})
	fs.mux.HandleFunc("POST /sessions/{id}/content", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"html":` + jsonString(html) + `}`))
	})
	fs.mux.HandleFunc("POST /sessions/{id}/screenshot", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("\x89PNG fake"))
	})

	srv := httptest.NewServer(fs.mux)
	t.Cleanup(srv.Close)
	return fs, NewClient(srv.URL, "browse-token")
}

func jsonString(s string) string {
	var b bytes.Buffer
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func TestContentReusesLiveSession(t *testing.T) {
	fs, c := newFakeService(t, "<p>hello</p>")

	for i := 0; i < 2; i++ {
		got, err := c.Content(context.Background(), "https://example.com")
		if err != nil {
			t.Fatalf("Content: %v", err)
		}
		if got != "<p>hello</p>" {
			t.Errorf("html = %q", got)
		}
	}

	if fs.sessions != 1 {
		t.Errorf("sessions created = %d, want 1 (second call reuses the lease)", fs.sessions)
	}
}

func TestContentReleasesDeadSession(t *testing.T) {
	fs, c := newFakeService(t, "<p>x</p>")

	if _, err := c.Content(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("Content: %v", err)
	}

	// Service drops the session; the next call must lease a fresh one.
	fs.alive = false
	if _, err := c.Content(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("Content after session loss: %v", err)
	}
	if fs.sessions != 2 {
		t.Errorf("sessions created = %d, want 2", fs.sessions)
	}
}

func TestScreenshot(t *testing.T) {
	_, c := newFakeService(t, "")

	png, err := c.Screenshot(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Screenshot: %v", err)
	}
	if len(png) == 0 || png[0] != 0x89 {
		t.Errorf("png = %q", png)
	}
}

func TestFindLoginForm(t *testing.T) {
	page := `<html><body>
		<form action="/search"><input type="text" name="q"></form>
		<form action="/login">
			<input type="email" name="user_email">
			<input type="password" name="user_password">
		</form>
	</body></html>`

	form, ok := FindLoginForm(page)
	if !ok {
		t.Fatal("no login form found")
	}
	if form.Action != "/login" {
		t.Errorf("action = %q", form.Action)
	}
	if form.UsernameField != "user_email" {
		t.Errorf("username field = %q", form.UsernameField)
	}
	if form.PasswordField != "user_password" {
		t.Errorf("password field = %q", form.PasswordField)
	}
}

func TestFindLoginForm_NoPasswordInput(t *testing.T) {
	if _, ok := FindLoginForm(`<form><input type="text" name="q"></form>`); ok {
		t.Error("found a login form on a page without password inputs")
	}
}

func TestFindLoginForm_IDFallback(t *testing.T) {
	page := `<form action="/signin"><input type="text" id="login"><input type="password" id="pass"></form>`
	form, ok := FindLoginForm(page)
	if !ok {
		t.Fatal("no login form found")
	}
	if form.UsernameField != "login" || form.PasswordField != "pass" {
		t.Errorf("form = %+v", form)
	}
}
