// Package client is an HTTP client for the lumo server. It implements
// reconcile.API, so the CLI's session-open protocol runs unchanged against
// a remote server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sarvesh-official/lumo/internal/reconcile"
	"github.com/sarvesh-official/lumo/pkg/types"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

// Client talks to a lumo server with bearer authentication.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Turn streams run
// until the turn finishes, so the client must not carry a short timeout.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession creates a fresh session and returns its ID.
func (c *Client) CreateSession(ctx context.Context, title string) (string, error) {
	var out struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/session", map[string]string{"title": title}, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// Resolve returns an existing session or creates one for the supplied ID,
// seeded with seedText. existed is true when a session was already there.
func (c *Client) Resolve(ctx context.Context, sessionID, title, seedText string) (string, bool, error) {
	in := map[string]string{}
	if sessionID != "" {
		in["sessionId"] = sessionID
	}
	if title != "" {
		in["title"] = title
	}
	if seedText != "" {
		in["seedText"] = seedText
	}
	var out struct {
		SessionID string `json:"sessionId"`
		Existed   bool   `json:"existed"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/session/resolve", in, &out); err != nil {
		return "", false, err
	}
	return out.SessionID, out.Existed, nil
}

// Load fetches a session's transcript. A missing session is reported as
// reconcile.ErrNotFound.
func (c *Client) Load(ctx context.Context, sessionID string) (*reconcile.LoadResult, error) {
	var out struct {
		Messages []types.Message `json:"messages"`
		Title    string          `json:"title"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/session/"+sessionID, nil, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, fmt.Errorf("load %s: %w", sessionID, reconcile.ErrNotFound)
		}
		return nil, err
	}
	return &reconcile.LoadResult{Title: out.Title, Messages: out.Messages}, nil
}

// SynthesizeTitle asks the server for a short title derived from seed.
func (c *Client) SynthesizeTitle(ctx context.Context, seed string) (string, error) {
	var out struct {
		Title string `json:"title"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/title", map[string]string{"message": seed}, &out); err != nil {
		return "", err
	}
	return out.Title, nil
}

// Sessions lists the caller's sessions, newest first.
func (c *Client) Sessions(ctx context.Context) ([]types.SessionSummary, error) {
	var out struct {
		Sessions []types.SessionSummary `json:"sessions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// Cards fetches the flashcards generated for a session, newest set first.
func (c *Client) Cards(ctx context.Context, sessionID string) ([]types.Card, error) {
	var out struct {
		Cards []types.Card `json:"cards"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/tool-records/"+sessionID, nil, &out); err != nil {
		return nil, err
	}
	return out.Cards, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if json.Unmarshal(raw, &body) == nil && body.Error.Code != "" {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
