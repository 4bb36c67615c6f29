// Package vision is the HTTP client for the remote vision backend. The
// backend captures frames, runs detection and tracking, and reports per-zone
// people counts; this package only speaks its JSON API.
//
// Every response is decoded into an explicit schema and validated here.
// Transport failures wrap models.ErrNetwork, non-success responses return a
// *models.BackendError carrying the backend's message, and responses whose
// shape does not match the schema wrap models.ErrBackendRejected. Nothing is
// retried: callers decide whether a failure is fatal or best-effort.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rewired-gh/zonewatch/internal/models"
)

// maxResponseBytes bounds response bodies; frame updates carry two base64 JPEGs.
const maxResponseBytes = 32 << 20

// TokenSource supplies the current session credential ("" when logged out).
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed credential, mostly useful in tests and one-shot commands.
type StaticToken string

// Token returns the credential.
func (t StaticToken) Token() string { return string(t) }

// Client provides access to the vision backend API
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// NewClient creates a new backend client. tokens may be nil for
// unauthenticated use (register/login only).
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	if tokens == nil {
		tokens = StaticToken("")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tokens: tokens,
	}
}

// HasCredential reports whether a credential is currently available.
func (c *Client) HasCredential() bool {
	return c.tokens.Token() != ""
}

// envelope is the common shape of every backend reply: a human-readable
// message and, on failures, an error string.
type envelope struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e envelope) text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	auth        bool
}

type response struct {
	status int
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// rejection builds the error for a non-success response, falling back to the
// status code when the body carries no message.
func (r *response) rejection() error {
	var env envelope
	_ = json.Unmarshal(r.body, &env)
	return &models.BackendError{StatusCode: r.status, Message: env.text()}
}

// do performs one HTTP round trip. Authenticated requests without a
// credential fail with models.ErrAuthRequired before touching the network.
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, req.body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if req.auth {
		token := c.tokens.Token()
		if token == "" {
			return nil, models.ErrAuthRequired
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", models.ErrNetwork, req.method, req.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", models.ErrNetwork, req.path, err)
	}
	return &response{status: resp.StatusCode, body: body}, nil
}

// call performs a request and decodes a successful JSON body into out.
func (c *Client) call(ctx context.Context, req request, out interface{}) error {
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return resp.rejection()
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return malformed(req.path, err)
	}
	return nil
}

func malformed(path string, err error) error {
	return fmt.Errorf("%w: malformed response from %s: %v", models.ErrBackendRejected, path, err)
}

func jsonBody(v interface{}) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return bytes.NewReader(data), nil
}

// postMessage issues an authenticated POST whose reply is just an envelope
// and returns the backend's message.
func (c *Client) postMessage(ctx context.Context, path string) (string, error) {
	var env envelope
	if err := c.call(ctx, request{method: http.MethodPost, path: path, auth: true}, &env); err != nil {
		return "", err
	}
	return env.Message, nil
}
