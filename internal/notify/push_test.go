package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csdesk/console-cs/internal/api"
	"github.com/csdesk/console-cs/internal/store"
)

// pushBackend serves the push endpoints and records subscriptions.
type pushBackend struct {
	t *testing.T

	mu            sync.Mutex
	noVapid       bool
	subscriptions []api.PushSubscription
	unsubscribed  []string
	missing       bool // unsubscribe returns 404
}

func (b *pushBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/push/vapid-public-key", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.noVapid {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"public_key":"BPub"}`))
	})
	mux.HandleFunc("/push/subscribe", func(w http.ResponseWriter, r *http.Request) {
		var sub api.PushSubscription
		require.NoError(b.t, json.NewDecoder(r.Body).Decode(&sub))
		b.mu.Lock()
		b.subscriptions = append(b.subscriptions, sub)
		b.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/push/unsubscribe", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.missing {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var payload struct {
			Endpoint string `json:"endpoint"`
		}
		require.NoError(b.t, json.NewDecoder(r.Body).Decode(&payload))
		b.unsubscribed = append(b.unsubscribed, payload.Endpoint)
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func newPushManager(t *testing.T, srv *httptest.Server) (*PushManager, *store.Store) {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	st, err := store.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	client := api.NewClient(srv.URL, &fakeTokens{token: signed}, nil)
	return NewPushManager(client, st, nil), st
}

func TestPushEndpointStable(t *testing.T) {
	srv := httptest.NewServer((&pushBackend{t: t}).handler())
	defer srv.Close()

	pm, st := newPushManager(t, srv)
	ctx := context.Background()

	endpoint, err := pm.Endpoint(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(endpoint, "console-cs://device/"))

	deviceID, err := st.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "console-cs://device/"+deviceID, endpoint)

	again, err := pm.Endpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, endpoint, again)
}

func TestSubscribe(t *testing.T) {
	backend := &pushBackend{t: t}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	pm, _ := newPushManager(t, srv)
	require.NoError(t, pm.Subscribe(context.Background()))

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.subscriptions, 1)
	sub := backend.subscriptions[0]
	assert.True(t, strings.HasPrefix(sub.Endpoint, "console-cs://device/"))
	assert.NotEmpty(t, sub.P256DH)
	assert.NotEmpty(t, sub.Auth)
	assert.NotEqual(t, sub.P256DH, sub.Auth)
}

func TestSubscribeWithoutServerPushSupport(t *testing.T) {
	backend := &pushBackend{t: t, noVapid: true}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	pm, _ := newPushManager(t, srv)
	err := pm.Subscribe(context.Background())
	require.Error(t, err)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Empty(t, backend.subscriptions, "no subscription is registered when push is unavailable")
}

func TestUnsubscribe(t *testing.T) {
	backend := &pushBackend{t: t}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	pm, _ := newPushManager(t, srv)
	require.NoError(t, pm.Unsubscribe(context.Background()))

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.unsubscribed, 1)
}

func TestUnsubscribeWhenNotSubscribed(t *testing.T) {
	backend := &pushBackend{t: t, missing: true}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	pm, _ := newPushManager(t, srv)
	assert.NoError(t, pm.Unsubscribe(context.Background()), "a missing subscription is not an error")
}

func TestDeriveKeyStable(t *testing.T) {
	a := deriveKey("device-1", "p256dh")
	b := deriveKey("device-1", "p256dh")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, deriveKey("device-1", "auth"))
	assert.NotEqual(t, a, deriveKey("device-2", "p256dh"))
}
