// Package analysis is the HTTP client for the analysis backend that turns
// an uploaded dataset into findings.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 60 * time.Second

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 512

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// Config holds configuration for the client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the analysis backend.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a client for the backend at cfg.BaseURL.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{base: base, http: hc, logger: logger}, nil
}

// StartSession uploads a dataset and starts an analysis. A non-empty
// sessionID adds a new hub to an existing session.
func (c *Client) StartSession(ctx context.Context, filename string, data io.Reader, sessionID string) (Session, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return Session{}, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, data); err != nil {
		return Session{}, fmt.Errorf("build upload: %w", err)
	}
	if sessionID != "" {
		if err := mw.WriteField("session_id", sessionID); err != nil {
			return Session{}, fmt.Errorf("build upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return Session{}, fmt.Errorf("build upload: %w", err)
	}

	var s Session
	if err := c.do(ctx, http.MethodPost, "session/start", mw.FormDataContentType(), &body, &s); err != nil {
		return Session{}, err
	}
	if s.Hub == "" {
		return Session{}, fmt.Errorf("start session: response has no hub id")
	}
	c.logger.Info("analysis session started", "session", s.Session, "hub", s.Hub)
	return s, nil
}

// HubNodes returns every item generated for hub so far, in creation order.
func (c *Client) HubNodes(ctx context.Context, hubID string) ([]Item, error) {
	var items []Item
	err := c.do(ctx, http.MethodGet, "hubs/"+url.PathEscape(hubID)+"/nodes", "", nil, &items)
	return items, err
}

// Question resolves a follow-up question into a finding.
func (c *Client) Question(ctx context.Context, questionID string) (Item, error) {
	var it Item
	err := c.do(ctx, http.MethodGet, "question/"+url.PathEscape(questionID), "", nil, &it)
	return it, err
}

// Prompted generates a finding from free text, in the context of parent.
func (c *Client) Prompted(ctx context.Context, parentID, prompt string) (Item, error) {
	payload, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return Item{}, err
	}
	var it Item
	err = c.do(ctx, http.MethodPost, "question/from/"+url.PathEscape(parentID), "application/json", bytes.NewReader(payload), &it)
	return it, err
}

// DetailNodes generates the broad follow-up findings for parent.
func (c *Client) DetailNodes(ctx context.Context, parentID string) ([]Item, error) {
	var items []Item
	err := c.do(ctx, http.MethodGet, "l2nodes/"+url.PathEscape(parentID), "", nil, &items)
	return items, err
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	u := c.base.String() + "/" + path
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("backend request", "method", method, "url", u, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, URL: u, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, u, err)
	}
	return nil
}
