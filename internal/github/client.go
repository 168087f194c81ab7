// Package github wraps the GitHub contents API for reading and committing
// files in the bots' repositories.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.github.com"
	defaultTimeout = 30 * time.Second
	apiVersion     = "2022-11-28"
)

// Client communicates with the GitHub REST API using a personal access token.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client with the given token.
func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(token, baseURL string) *Client {
	c := NewClient(token)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// File is a decoded repository file plus the blob SHA needed for updates.
type File struct {
	Path    string
	SHA     string
	Content string
}

// Entry is one directory listing item.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // "file" or "dir"
	Size int    `json:"size"`
	SHA  string `json:"sha"`
}

// contentsResponse mirrors GET /repos/{owner}/{repo}/contents/{path} for a file.
type contentsResponse struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Type     string `json:"type"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// GetFile fetches and decodes a single file.
func (c *Client) GetFile(ctx context.Context, owner, repo, path string) (File, error) {
	var cr contentsResponse
	if err := c.do(ctx, http.MethodGet, c.contentsPath(owner, repo, path), nil, &cr); err != nil {
		return File{}, err
	}
	if cr.Type != "file" {
		return File{}, fmt.Errorf("%s is not a file (type %s)", path, cr.Type)
	}
	if cr.Encoding != "base64" {
		return File{}, fmt.Errorf("unexpected encoding %q for %s", cr.Encoding, path)
	}
	// The API wraps base64 content with newlines.
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(cr.Content, "\n", ""))
	if err != nil {
		return File{}, fmt.Errorf("decoding content of %s: %w", path, err)
	}
	return File{Path: cr.Path, SHA: cr.SHA, Content: string(decoded)}, nil
}

// ListDir lists a directory.
func (c *Client) ListDir(ctx context.Context, owner, repo, path string) ([]Entry, error) {
	var entries []Entry
	if err := c.do(ctx, http.MethodGet, c.contentsPath(owner, repo, path), nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
}

type commitResponse struct {
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

// PutFile creates or updates a file. For updates, sha must be the current
// blob SHA; the API rejects stale SHAs, which is the optimistic concurrency
// check. Returns the new commit SHA.
func (c *Client) PutFile(ctx context.Context, owner, repo, path, content, message, sha string) (string, error) {
	req := putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString([]byte(content)),
		SHA:     sha,
	}
	var cr commitResponse
	if err := c.do(ctx, http.MethodPut, c.contentsPath(owner, repo, path), req, &cr); err != nil {
		return "", err
	}
	return cr.Commit.SHA, nil
}

type deleteRequest struct {
	Message string `json:"message"`
	SHA     string `json:"sha"`
}

// DeleteFile removes a file. sha must be the current blob SHA.
func (c *Client) DeleteFile(ctx context.Context, owner, repo, path, message, sha string) error {
	return c.do(ctx, http.MethodDelete, c.contentsPath(owner, repo, path), deleteRequest{Message: message, SHA: sha}, nil)
}

func (c *Client) contentsPath(owner, repo, path string) string {
	p := strings.TrimPrefix(path, "/")
	escaped := make([]string, 0, 4)
	for _, seg := range strings.Split(p, "/") {
		escaped = append(escaped, url.PathEscape(seg))
	}
	return fmt.Sprintf("/repos/%s/%s/contents/%s", url.PathEscape(owner), url.PathEscape(repo), strings.Join(escaped, "/"))
}

type apiError struct {
	Message string `json:"message"`
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
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		var ae apiError
		if json.Unmarshal(respBody, &ae) == nil && ae.Message != "" {
			return fmt.Errorf("github: HTTP %d: %s", resp.StatusCode, ae.Message)
		}
		return fmt.Errorf("github: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
