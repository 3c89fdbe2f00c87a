package session

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

	"github.com/csdesk/console-cs/internal/api"
)

type fakeTokens struct {
	mu    sync.Mutex
	token string
}

func (f *fakeTokens) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeTokens) SetToken(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
	return nil
}

func (f *fakeTokens) ClearToken() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	return nil
}

func validToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

const userJSON = `{"id":1,"name":"Agent","email":"agent@example.com","role":"CS"}`

// transitionRecorder captures state transitions delivered via OnChange.
type transitionRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *transitionRecorder) record(s State, _ *api.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *transitionRecorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.states))
	copy(out, r.states)
	return out
}

func TestStartWithoutToken(t *testing.T) {
	client := api.NewClient("http://unused", &fakeTokens{}, nil)
	m := NewManager(client, time.Hour, nil)
	defer m.Close()

	m.Start(context.Background())
	assert.Equal(t, StateAnonymous, m.State())
	assert.Nil(t, m.User())
}

func TestStartWithValidToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/me", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(userJSON))
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: validToken(t)}
	client := api.NewClient(srv.URL, tokens, nil)
	m := NewManager(client, time.Hour, nil)
	defer m.Close()

	rec := &transitionRecorder{}
	m.OnChange(rec.record)

	m.Start(context.Background())
	assert.Equal(t, StateAuthenticated, m.State())
	require.NotNil(t, m.User())
	assert.Equal(t, "agent@example.com", m.User().Email)
	assert.Equal(t, []State{StateLoading, StateAuthenticated}, rec.all())
}

func TestStartWithRejectedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: validToken(t)}
	client := api.NewClient(srv.URL, tokens, nil)
	m := NewManager(client, time.Hour, nil)
	defer m.Close()

	m.Start(context.Background())
	assert.Equal(t, StateAnonymous, m.State())
	assert.Empty(t, tokens.Token(), "rejected token is cleared")
}

func TestStartWithUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	tokens := &fakeTokens{token: validToken(t)}
	client := api.NewClient(srv.URL, tokens, nil)
	m := NewManager(client, time.Hour, nil)
	defer m.Close()

	// Startup failures are the normal anonymous state, never fatal.
	m.Start(context.Background())
	assert.Equal(t, StateAnonymous, m.State())
	assert.Empty(t, tokens.Token())
}

func TestLoginAndLogout(t *testing.T) {
	token := validToken(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			w.Write([]byte(`{"access_token":"` + token + `","token_type":"bearer"}`))
		case "/auth/me":
			w.Write([]byte(userJSON))
		}
	}))
	defer srv.Close()

	tokens := &fakeTokens{}
	client := api.NewClient(srv.URL, tokens, nil)
	m := NewManager(client, time.Hour, nil)
	defer m.Close()

	user, err := m.Login(context.Background(), "agent@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Agent", user.Name)
	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, token, tokens.Token())

	m.Logout()
	assert.Equal(t, StateAnonymous, m.State())
	assert.Nil(t, m.User())
	assert.Empty(t, tokens.Token())
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, &fakeTokens{}, nil)
	m := NewManager(client, time.Hour, nil)
	defer m.Close()
	m.Start(context.Background())

	_, err := m.Login(context.Background(), "agent@example.com", "wrong")
	assert.ErrorIs(t, err, api.ErrInvalidCredentials)
	assert.Equal(t, StateAnonymous, m.State(), "a failed login leaves the session alone")
}

func TestConcurrent401CollapsesToOneTransition(t *testing.T) {
	var mu sync.Mutex
	authorized := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ok := authorized
		mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(userJSON))
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: validToken(t)}
	client := api.NewClient(srv.URL, tokens, nil)
	m := NewManager(client, time.Hour, nil)
	defer m.Close()
	m.Start(context.Background())
	require.True(t, m.IsAuthenticated())

	rec := &transitionRecorder{}
	m.OnChange(rec.record)

	mu.Lock()
	authorized = false
	mu.Unlock()

	// Several requests racing into 401 at once.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = client.Me(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, StateAnonymous, m.State())
	var anon int
	for _, s := range rec.all() {
		if s == StateAnonymous {
			anon++
		}
	}
	assert.Equal(t, 1, anon, "the 401 cascade collapses to a single transition")
}

func TestIdleLogout(t *testing.T) {
	token := validToken(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			w.Write([]byte(`{"access_token":"` + token + `","token_type":"bearer"}`))
		case "/auth/me":
			w.Write([]byte(userJSON))
		}
	}))
	defer srv.Close()

	tokens := &fakeTokens{}
	client := api.NewClient(srv.URL, tokens, nil)
	m := NewManager(client, 30*time.Millisecond, nil)
	defer m.Close()

	_, err := m.Login(context.Background(), "agent@example.com", "secret")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return m.State() == StateAnonymous }, time.Second, 5*time.Millisecond)
	assert.Empty(t, tokens.Token(), "idle logout clears the token")
}
