package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenSource owns the persisted bearer token. The session manager and this
// client are the only writers; everything else treats the token as read-only.
type TokenSource interface {
	Token() string
	SetToken(token string) error
	ClearToken() error
}

// expirySkew is the clock-skew buffer: a token expiring within this window
// is treated as already expired so we never send a doomed request.
const expirySkew = 30 * time.Second

// Client is the single HTTP adapter for the case-tracking backend. It
// attaches the bearer token, rejects expired tokens before sending, and is
// the only component permitted to clear the session as a side effect of a
// network response.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *log.Logger

	// onAuthFailure runs after the token has been cleared because of a 401
	// or a client-detected expiry. The owner (session manager) guards
	// against re-entry so repeated 401s fan out to a single logout.
	onAuthFailure func()

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewClient creates a backend client. tokens may not be nil; logger may be.
func NewClient(baseURL string, tokens TokenSource, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

// SetAuthFailureHandler installs the hook invoked when the session is
// cleared by a 401 or local expiry detection.
func (c *Client) SetAuthFailureHandler(fn func()) {
	c.onAuthFailure = fn
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// HasToken reports whether a bearer token is stored.
func (c *Client) HasToken() bool { return c.tokens.Token() != "" }

// ClearStoredToken removes the persisted token. The session manager routes
// its logout through here so token writes stay in one place.
func (c *Client) ClearStoredToken() error { return c.tokens.ClearToken() }

// tokenExpired decodes the token payload without verifying the signature
// (expiry inspection only) and applies the clock-skew buffer. Malformed
// tokens or tokens without exp are not treated as expired; the backend
// will reject them if they are invalid.
func (c *Client) tokenExpired(token string) bool {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.Time.After(c.now().Add(expirySkew))
}

// authFailed clears the stored token and notifies the session manager.
func (c *Client) authFailed() {
	if err := c.tokens.ClearToken(); err != nil {
		c.logger.Printf("Failed to clear token: %v", err)
	}
	if c.onAuthFailure != nil {
		c.onAuthFailure()
	}
}

// do performs a JSON request against the backend. When authed is true the
// bearer token is attached (after the local expiry check); a 401 then
// clears the session. When authed is false (login) a 401 maps to
// ErrInvalidCredentials and the session is left alone.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}, authed bool) error {
	if authed {
		if token := c.tokens.Token(); token != "" && c.tokenExpired(token) {
			c.logger.Printf("Token expired locally, aborting %s %s", method, path)
			c.authFailed()
			return fmt.Errorf("%s %s: %w", method, path, ErrSessionExpired)
		}
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "console-cs/1.0")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if authed {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, &TransientError{Err: err})
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil

	case resp.StatusCode == http.StatusUnauthorized:
		if !authed {
			return fmt.Errorf("%s %s: %w", method, path, ErrInvalidCredentials)
		}
		c.logger.Printf("Received 401 on %s %s, clearing session", method, path)
		c.authFailed()
		return fmt.Errorf("%s %s: %w", method, path, ErrSessionExpired)

	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)

	case resp.StatusCode >= 500:
		return fmt.Errorf("%s %s: %w", method, path, &TransientError{Status: resp.StatusCode})

	default:
		return fmt.Errorf("%s %s: %w", method, path, &ValidationError{
			Status: resp.StatusCode,
			Detail: decodeDetail(resp.Body),
		})
	}
}

// decodeDetail extracts the backend's {"detail": "..."} message, falling
// back to the raw body when it isn't JSON.
func decodeDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(raw))
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out, true)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out, true)
}

func (c *Client) put(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out, true)
}

func (c *Client) patch(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPatch, path, nil, body, out, true)
}

func (c *Client) delete(ctx context.Context, path string, body interface{}) error {
	return c.do(ctx, http.MethodDelete, path, nil, body, nil, true)
}
