package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csdesk/console-cs/internal/api"
	"github.com/csdesk/console-cs/internal/store"
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

// notifBackend serves /notifications and records read marks.
type notifBackend struct {
	t *testing.T

	mu            sync.Mutex
	notifications []api.Notification
	failMarkRead  bool
	readIDs       []int
}

func (b *notifBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/notifications", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		require.NoError(b.t, json.NewEncoder(w).Encode(b.notifications))
	})
	mux.HandleFunc("/notifications/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.failMarkRead {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var id int
		_, err := fmt.Sscanf(r.URL.Path, "/notifications/%d/read", &id)
		require.NoError(b.t, err)
		b.readIDs = append(b.readIDs, id)
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (b *notifBackend) push(n api.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifications = append([]api.Notification{n}, b.notifications...)
}

func newNotifier(t *testing.T, srv *httptest.Server, announcer Announcer, interval time.Duration) (*Notifier, *store.Store) {
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
	return NewNotifier(client, st, announcer, interval, nil), st
}

func notif(id int, msg string, age time.Duration) api.Notification {
	return api.Notification{
		ID:        id,
		UserID:    1,
		Message:   msg,
		Type:      api.NotifyComment,
		CreatedAt: time.Now().Add(-age),
	}
}

func TestFirstFetchSeedsSilently(t *testing.T) {
	backend := &notifBackend{t: t, notifications: []api.Notification{
		notif(1, "assigned to case 7", time.Hour),
		notif(2, "new comment on case 7", 30*time.Minute),
	}}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	var mu sync.Mutex
	var announced []int
	announcer := AnnouncerFunc(func(n api.Notification) {
		mu.Lock()
		announced = append(announced, n.ID)
		mu.Unlock()
	})

	n, _ := newNotifier(t, srv, announcer, time.Hour)
	require.NoError(t, n.Start(context.Background()))
	defer n.Stop()

	require.Eventually(t, func() bool { return n.UnreadCount() == 2 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Empty(t, announced, "the seeding fetch announces nothing")
	mu.Unlock()

	// A notification arriving after the seed is announced on the next poll.
	backend.push(notif(3, "priority raised on case 7", 0))
	n.Kick()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(announced) == 1 && announced[0] == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, n.UnreadCount())

	// Unread is ordered newest first.
	unread := n.Unread()
	assert.Equal(t, 3, unread[0].ID)
}

func TestSeenSetPersistsAcrossRestart(t *testing.T) {
	backend := &notifBackend{t: t, notifications: []api.Notification{
		notif(1, "assigned to case 7", time.Hour),
	}}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	n, st := newNotifier(t, srv, nil, time.Hour)
	require.NoError(t, n.Start(context.Background()))
	require.Eventually(t, func() bool { return n.UnreadCount() == 1 }, time.Second, 5*time.Millisecond)
	n.Stop()

	seen, err := st.SeenNotificationIDs(context.Background())
	require.NoError(t, err)
	assert.True(t, seen[1], "seeded IDs are persisted for the next session")
}

func TestRestartReseedsSilently(t *testing.T) {
	backend := &notifBackend{t: t, notifications: []api.Notification{
		notif(1, "assigned to case 7", time.Hour),
	}}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	var mu sync.Mutex
	var announced []int
	announcer := AnnouncerFunc(func(n api.Notification) {
		mu.Lock()
		announced = append(announced, n.ID)
		mu.Unlock()
	})

	n, _ := newNotifier(t, srv, announcer, time.Hour)
	require.NoError(t, n.Start(context.Background()))
	require.Eventually(t, func() bool { return n.UnreadCount() == 1 }, time.Second, 5*time.Millisecond)

	n.Stop()
	assert.Zero(t, n.UnreadCount(), "stopping drops the previous session's unread set")

	// A different user's backlog accumulates while the notifier is stopped,
	// as after a logout and a fresh login in the same process.
	backend.mu.Lock()
	backend.notifications = []api.Notification{
		notif(40, "assigned to case 12", 2*time.Hour),
		notif(41, "new comment on case 12", time.Hour),
	}
	backend.mu.Unlock()

	require.NoError(t, n.Start(context.Background()))
	defer n.Stop()
	require.Eventually(t, func() bool { return n.UnreadCount() == 2 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Empty(t, announced, "the first fetch after a restart seeds silently")
	mu.Unlock()
}

func TestAnnouncedOnlyOnce(t *testing.T) {
	backend := &notifBackend{t: t}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	var mu sync.Mutex
	var announced []int
	announcer := AnnouncerFunc(func(n api.Notification) {
		mu.Lock()
		announced = append(announced, n.ID)
		mu.Unlock()
	})

	n, _ := newNotifier(t, srv, announcer, time.Hour)

	// Each completed poll emits the unread count, so this tracks polls even
	// while the list is empty.
	polls := make(chan int, 16)
	n.OnUnreadChange(func(c int) { polls <- c })

	require.NoError(t, n.Start(context.Background()))
	defer n.Stop()

	// Wait out the silent seeding fetch.
	select {
	case <-polls:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the seed poll")
	}

	backend.push(notif(5, "new comment", 0))
	n.Kick()
	require.Eventually(t, func() bool { return n.UnreadCount() == 1 }, time.Second, 5*time.Millisecond)

	// Repeated polls returning the same unread notification do not
	// re-announce it.
	n.Kick()
	n.Kick()
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{5}, announced)
}

func TestMarkReadOptimistic(t *testing.T) {
	backend := &notifBackend{t: t, notifications: []api.Notification{
		notif(1, "assigned", time.Hour),
		notif(2, "comment", 30*time.Minute),
	}}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	n, _ := newNotifier(t, srv, nil, time.Hour)

	var mu sync.Mutex
	var counts []int
	n.OnUnreadChange(func(c int) {
		mu.Lock()
		counts = append(counts, c)
		mu.Unlock()
	})

	require.NoError(t, n.Start(context.Background()))
	defer n.Stop()
	require.Eventually(t, func() bool { return n.UnreadCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, n.MarkRead(context.Background(), 2))
	assert.Equal(t, 1, n.UnreadCount())

	backend.mu.Lock()
	assert.Equal(t, []int{2}, backend.readIDs)
	backend.mu.Unlock()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, counts)
	assert.Equal(t, 1, counts[len(counts)-1], "the badge drops before the server confirms")
}

func TestMarkReadRestoresOnFailure(t *testing.T) {
	backend := &notifBackend{t: t, notifications: []api.Notification{
		notif(1, "assigned", time.Hour),
		notif(2, "comment", 30*time.Minute),
	}}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	n, _ := newNotifier(t, srv, nil, time.Hour)
	require.NoError(t, n.Start(context.Background()))
	defer n.Stop()
	require.Eventually(t, func() bool { return n.UnreadCount() == 2 }, time.Second, 5*time.Millisecond)

	backend.mu.Lock()
	backend.failMarkRead = true
	backend.mu.Unlock()

	err := n.MarkRead(context.Background(), 2)
	require.Error(t, err)
	assert.Equal(t, 2, n.UnreadCount(), "a rejected mark-read restores the notification")

	unread := n.Unread()
	assert.Equal(t, 2, unread[0].ID, "restored notification returns in newest-first order")
}
