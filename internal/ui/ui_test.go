package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csdesk/console-cs/internal/api"
	"github.com/csdesk/console-cs/internal/controller"
	"github.com/csdesk/console-cs/internal/session"
)

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

// authBackend serves just enough of /auth for a login round trip.
func authBackend(t *testing.T) *httptest.Server {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(api.TokenResponse{AccessToken: signed}))
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(api.User{
			ID: 1, Name: "Agent", Email: "agent@example.com", Role: api.RoleCS,
		}))
	})
	return httptest.NewServer(mux)
}

func newTestUI(t *testing.T, idleTimeout time.Duration, opts Options) (*UI, *session.Manager) {
	t.Helper()
	srv := authBackend(t)
	t.Cleanup(srv.Close)

	client := api.NewClient(srv.URL, &memTokens{}, nil)
	sess := session.NewManager(client, idleTimeout, nil)
	t.Cleanup(sess.Close)

	u := NewUI(context.Background(), client, sess, nil, opts)
	t.Cleanup(u.Stop)
	return u, sess
}

func TestMouseActivityDefersIdleLogout(t *testing.T) {
	u, sess := newTestUI(t, 400*time.Millisecond, Options{})

	_, err := sess.Login(context.Background(), "agent@example.com", "secret")
	require.NoError(t, err)

	capture := u.app.GetMouseCapture()
	require.NotNil(t, capture, "mouse capture must be installed alongside the input capture")

	// Steady mouse activity keeps the session alive well past the idle
	// timeout because every event resets the countdown.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		ev, action := capture(tcell.NewEventMouse(1, 1, tcell.Button1, 0), tview.MouseMove)
		require.NotNil(t, ev, "mouse events pass through the capture")
		require.Equal(t, tview.MouseMove, action)
		require.True(t, sess.IsAuthenticated(), "mouse activity must defer the idle logout")
		time.Sleep(25 * time.Millisecond)
	}

	// Once the mouse goes quiet the idle logout fires as usual.
	require.Eventually(t, func() bool { return !sess.IsAuthenticated() }, 2*time.Second, 10*time.Millisecond)
}

func TestListOptionsFollowConfig(t *testing.T) {
	u, _ := newTestUI(t, time.Minute, Options{
		PageSize:       5,
		SearchDebounce: 50 * time.Millisecond,
	})

	for name, pg := range map[string]controller.PaginationState{
		"cases":   u.cases.list.Pagination(),
		"catalog": u.catalog.list.Pagination(),
		"quotes":  u.quotes.list.Pagination(),
		"users":   u.users.list.Pagination(),
	} {
		assert.Equal(t, 5, pg.PageSize, "%s list must use the configured page size", name)
	}
}

func TestSetThemeByName(t *testing.T) {
	u, _ := newTestUI(t, time.Minute, Options{ThemeName: "dark"})

	u.setThemeDirect("light")
	assert.Equal(t, "light", u.themeName)
	assert.Equal(t, themeLight().Bg, u.theme.Bg)

	// Unknown names fall back to the default, matching startup.
	u.setThemeDirect("solarized")
	assert.Equal(t, "dark", u.themeName)
	assert.Equal(t, themeDark().Bg, u.theme.Bg)
}
