package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTokens is an in-memory TokenSource for tests.
type memTokens struct {
	mu    sync.Mutex
	token string
}

func (m *memTokens) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *memTokens) SetToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *memTokens) ClearToken() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	client := NewClient("http://unused", &memTokens{}, nil)
	client.now = func() time.Time { return now }

	tests := []struct {
		name    string
		exp     time.Time
		expired bool
	}{
		{"long since expired", now.Add(-time.Hour), true},
		{"just expired", now.Add(-time.Second), true},
		{"expires within the skew window", now.Add(10 * time.Second), true},
		{"expires exactly at the skew boundary", now.Add(30 * time.Second), true},
		{"expires just past the skew window", now.Add(31 * time.Second), false},
		{"plenty of time left", now.Add(time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, client.tokenExpired(signedToken(t, tt.exp)))
		})
	}
}

func TestTokenExpiredMalformed(t *testing.T) {
	client := NewClient("http://unused", &memTokens{}, nil)

	// Garbage and exp-less tokens are passed through to the server rather
	// than rejected locally.
	assert.False(t, client.tokenExpired("not-a-jwt"))

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"})
	signed, err := noExp.SignedString([]byte("k"))
	require.NoError(t, err)
	assert.False(t, client.tokenExpired(signed))
}

func TestExpiredTokenAbortsBeforeSending(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	tokens := &memTokens{token: signedToken(t, time.Now().Add(-time.Hour))}
	client := NewClient(srv.URL, tokens, nil)

	var authFailures int
	client.SetAuthFailureHandler(func() { authFailures++ })

	_, err := client.Me(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 0, hits, "expired token must never reach the wire")
	assert.Equal(t, 1, authFailures)
	assert.Empty(t, tokens.Token(), "expired token should be cleared")
}

func TestAuthedRequestAttachesHeaders(t *testing.T) {
	token := signedToken(t, time.Now().Add(time.Hour))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1,"name":"Agent","email":"agent@example.com","role":"CS"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, &memTokens{token: token}, nil)
	user, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "agent@example.com", user.Email)
}

func TestUnauthorizedOnAuthedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &memTokens{token: signedToken(t, time.Now().Add(time.Hour))}
	client := NewClient(srv.URL, tokens, nil)

	var authFailures int
	client.SetAuthFailureHandler(func() { authFailures++ })

	_, err := client.Me(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 1, authFailures)
	assert.Empty(t, tokens.Token())
}

func TestUnauthorizedOnLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &memTokens{}
	client := NewClient(srv.URL, tokens, nil)

	var authFailures int
	client.SetAuthFailureHandler(func() { authFailures++ })

	_, err := client.Login(context.Background(), "agent@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 0, authFailures, "a failed login must not trigger the session-expired path")
}

func TestLoginPersistsToken(t *testing.T) {
	token := signedToken(t, time.Now().Add(time.Hour))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"` + token + `","token_type":"bearer"}`))
	}))
	defer srv.Close()

	tokens := &memTokens{}
	client := NewClient(srv.URL, tokens, nil)

	resp, err := client.Login(context.Background(), "agent@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, token, resp.AccessToken)
	assert.Equal(t, token, tokens.Token())
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "not found",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name:   "validation detail verbatim",
			status: http.StatusUnprocessableEntity,
			body:   `{"detail":"title must not be empty"}`,
			check: func(t *testing.T, err error) {
				assert.Equal(t, "title must not be empty", ValidationDetail(err))
			},
		},
		{
			name:   "server error is transient",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				assert.True(t, IsTransient(err))
			},
		},
		{
			name:   "bad gateway is transient",
			status: http.StatusBadGateway,
			check: func(t *testing.T, err error) {
				assert.True(t, IsTransient(err))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				if tt.body != "" {
					w.Write([]byte(tt.body))
				}
			}))
			defer srv.Close()

			client := NewClient(srv.URL, &memTokens{token: signedToken(t, time.Now().Add(time.Hour))}, nil)
			_, err := client.GetCase(context.Background(), 42)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(srv.URL, &memTokens{token: signedToken(t, time.Now().Add(time.Hour))}, nil)
	_, err := client.Me(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}
