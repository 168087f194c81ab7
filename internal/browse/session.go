// Package browse drives a remote headless-browser service. Sessions are
// leased: a cached session is reused only after a liveness check and torn
// down on any failure, never held as ambient global state by callers.
package browse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultTimeout = 60 * time.Second

// Client communicates with a browserless-style automation service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	mu      sync.Mutex
	session string // cached session id, "" when none
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

type sessionResponse struct {
	ID string `json:"id"`
}

// lease returns a live session id, reusing the cached one only if the
// service still reports it alive, otherwise creating a fresh session.
func (c *Client) lease(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.session
	c.mu.Unlock()

	if cached != "" && c.alive(ctx, cached) {
		return cached, nil
	}

	var sr sessionResponse
	if err := c.do(ctx, http.MethodPost, "/sessions", nil, &sr); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	if sr.ID == "" {
		return "", fmt.Errorf("service returned empty session id")
	}

	c.mu.Lock()
	c.session = sr.ID
	c.mu.Unlock()
	return sr.ID, nil
}

func (c *Client) alive(ctx context.Context, id string) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.do(ctx, http.MethodGet, "/sessions/"+id, nil, nil) == nil
}

// release tears the session down after a failure so the next call starts clean.
func (c *Client) release(id string) {
	c.mu.Lock()
	if c.session == id {
		c.session = ""
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.do(ctx, http.MethodDelete, "/sessions/"+id, nil, nil)
}

// withSession runs fn against a leased session, tearing it down on failure.
func (c *Client) withSession(ctx context.Context, fn func(sessionID string) error) error {
	id, err := c.lease(ctx)
	if err != nil {
		return err
	}
	if err := fn(id); err != nil {
		c.release(id)
		return err
	}
	return nil
}

type contentRequest struct {
	URL string `json:"url"`
}

type contentResponse struct {
	HTML string `json:"html"`
}

// Content navigates the leased session to url and returns the rendered HTML.
func (c *Client) Content(ctx context.Context, pageURL string) (string, error) {
	var html string
	err := c.withSession(ctx, func(id string) error {
		var cr contentResponse
		if err := c.do(ctx, http.MethodPost, "/sessions/"+id+"/content", contentRequest{URL: pageURL}, &cr); err != nil {
			return err
		}
		html = cr.HTML
		return nil
	})
	if err != nil {
		return "", err
	}
	return html, nil
}

// Screenshot navigates the leased session to url and returns a PNG capture.
func (c *Client) Screenshot(ctx context.Context, pageURL string) ([]byte, error) {
	var png []byte
	err := c.withSession(ctx, func(id string) error {
		body, err := json.Marshal(contentRequest{URL: pageURL})
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sessions/"+id+"/screenshot", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		c.setHeaders(req, true)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("browse: unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		png, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return png, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req, body != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("browse: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
}
