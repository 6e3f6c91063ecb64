// Package backend talks to the lilibet tutor backend over HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rbright/lilibet/internal/config"
)

const defaultTimeout = 15 * time.Second

// Options configures one backend client.
type Options struct {
	BaseURL           string
	Token             string
	Timeout           time.Duration
	TranscribeTimeout time.Duration
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// Client is a backend API client. The bearer token may change after login.
type Client struct {
	baseURL           string
	timeout           time.Duration
	transcribeTimeout time.Duration
	http              *http.Client
	logger            *slog.Logger

	mu    sync.RWMutex
	token string
}

// New builds a client from explicit options.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transcribeTimeout := opts.TranscribeTimeout
	if transcribeTimeout <= 0 {
		transcribeTimeout = 20 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:           strings.TrimRight(opts.BaseURL, "/"),
		timeout:           timeout,
		transcribeTimeout: transcribeTimeout,
		http:              httpClient,
		logger:            opts.Logger,
		token:             strings.TrimSpace(opts.Token),
	}
}

// NewFromConfig builds a client for the resolved backend URL.
func NewFromConfig(cfg config.Config, logger *slog.Logger) *Client {
	return New(Options{
		BaseURL:           cfg.Backend.URL(),
		Token:             cfg.Backend.Token,
		Timeout:           cfg.Backend.Timeout(),
		TranscribeTimeout: cfg.Transcribe.Timeout(),
		Logger:            logger,
	})
}

// BaseURL returns the resolved backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// Token returns the current bearer token, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token. Empty clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

// Authenticated reports whether a bearer token is present.
func (c *Client) Authenticated() bool { return c.Token() != "" }

// APIError is a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error: status %d", e.Status)
}

// StatusCode extracts the HTTP status from an APIError chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func (c *Client) newRequest(ctx context.Context, method string, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request %s %s: %w", method, path, err)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// doJSON sends an optional JSON body and decodes a JSON reply into out.
func (c *Client) doJSON(ctx context.Context, method string, path string, in any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		body = buf
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logRequest(method, path, 0, started, err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logRequest(method, path, resp.StatusCode, started, nil)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	message := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		message = strings.TrimSpace(payload.Error)
		if message == "" {
			message = strings.TrimSpace(payload.Message)
		}
	}
	return &APIError{Status: resp.StatusCode, Message: message}
}

func (c *Client) logRequest(method string, path string, status int, started time.Time, err error) {
	if c.logger == nil {
		return
	}
	attrs := []any{
		"method", method,
		"path", path,
		"status", status,
		"duration_ms", time.Since(started).Milliseconds(),
	}
	if err != nil {
		c.logger.Warn("backend request failed", append(attrs, "error", err.Error())...)
		return
	}
	c.logger.Debug("backend request", attrs...)
}

// isTimeout reports deadline expiry from either ctx or the transport.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
