// Package notify keeps the client's notification state current: a 30s
// poll of /notifications plus an optional Redis-backed push channel that
// shortcuts the wait. Seen-state lives in the local store so restarting
// the client does not replay old notifications.
package notify

import (
	"context"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/csdesk/console-cs/internal/api"
	"github.com/csdesk/console-cs/internal/bus"
	"github.com/csdesk/console-cs/internal/poll"
	"github.com/csdesk/console-cs/internal/store"
)

// DefaultPollInterval matches the server's expectation for polling clients.
const DefaultPollInterval = 30 * time.Second

// Announcer receives newly observed notifications. The TUI shows a toast
// and bumps the badge; the headless CLI prints a line.
type Announcer interface {
	Announce(n api.Notification)
}

// AnnouncerFunc adapts a function to the Announcer interface.
type AnnouncerFunc func(n api.Notification)

func (f AnnouncerFunc) Announce(n api.Notification) { f(n) }

// Notifier polls for unread notifications and announces ones not seen
// before. The first successful fetch after startup only seeds the seen
// set; nothing is announced for it, so a returning user is not greeted
// with a storm of stale toasts.
type Notifier struct {
	client    *api.Client
	store     *store.Store
	announcer Announcer
	logger    *log.Logger
	poller    *poll.Poller

	mu     sync.Mutex
	seeded bool
	unread []api.Notification
	seen   map[int]struct{}

	onUnread func(count int)
}

// NewNotifier creates a notifier. Call Start to begin polling.
func NewNotifier(client *api.Client, st *store.Store, announcer Announcer, interval time.Duration, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	n := &Notifier{
		client:    client,
		store:     st,
		announcer: announcer,
		logger:    logger,
		seen:      make(map[int]struct{}),
	}
	n.poller = poll.NewPoller(interval, n.pollOnce)
	return n
}

// SetAnnouncer replaces the announcer. Used when the consumer (the TUI)
// is constructed after the notifier.
func (n *Notifier) SetAnnouncer(a Announcer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.announcer = a
}

// SetPollInterval applies a new poll cadence to a running poller.
func (n *Notifier) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		n.poller.SetInterval(interval)
	}
}

// OnUnreadChange registers the callback for unread-count changes.
func (n *Notifier) OnUnreadChange(fn func(count int)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onUnread = fn
}

// Start loads the persisted seen set and begins polling. The poller fires
// immediately, so the seed fetch happens right away.
func (n *Notifier) Start(ctx context.Context) error {
	seen, err := n.store.SeenNotificationIDs(ctx)
	if err != nil {
		return err
	}
	n.mu.Lock()
	for id := range seen {
		n.seen[id] = struct{}{}
	}
	n.mu.Unlock()

	n.poller.Start(ctx)
	return nil
}

// Stop halts polling and forgets the seed baseline, so the first fetch
// after the next Start is silent again. A different user signing in
// within the same process gets their backlog seeded, not toasted.
func (n *Notifier) Stop() {
	n.poller.Stop()
	n.mu.Lock()
	n.seeded = false
	n.unread = nil
	n.mu.Unlock()
}

// Kick forces an immediate poll, used when a push message arrives.
func (n *Notifier) Kick() {
	n.poller.Kick()
}

// Unread returns the current unread notifications, newest first.
func (n *Notifier) Unread() []api.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]api.Notification, len(n.unread))
	copy(out, n.unread)
	return out
}

// UnreadCount returns the number of unread notifications.
func (n *Notifier) UnreadCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.unread)
}

// MarkRead marks one notification read, optimistically dropping it from
// the unread set before the server confirms. A server failure restores it.
func (n *Notifier) MarkRead(ctx context.Context, id int) error {
	n.mu.Lock()
	idx := -1
	for i := range n.unread {
		if n.unread[i].ID == id {
			idx = i
			break
		}
	}
	var removed api.Notification
	if idx >= 0 {
		removed = n.unread[idx]
		n.unread = append(n.unread[:idx:idx], n.unread[idx+1:]...)
	}
	count := len(n.unread)
	n.mu.Unlock()
	n.emitUnread(count)

	if err := n.client.MarkNotificationRead(ctx, id); err != nil {
		if idx >= 0 {
			n.mu.Lock()
			n.unread = append(n.unread, removed)
			n.sortUnreadLocked()
			count = len(n.unread)
			n.mu.Unlock()
			n.emitUnread(count)
		}
		return err
	}
	return nil
}

// pollOnce fetches unread notifications. Failures are logged and swallowed:
// a missed poll only means stale data until the next tick.
func (n *Notifier) pollOnce(ctx context.Context) {
	notifications, err := n.client.ListNotifications(ctx, true)
	if err != nil {
		n.logger.Printf("Notification poll failed: %v", err)
		return
	}

	n.mu.Lock()
	firstFetch := !n.seeded
	n.seeded = true
	var fresh []api.Notification
	var freshIDs []int
	for _, notif := range notifications {
		if _, ok := n.seen[notif.ID]; !ok {
			n.seen[notif.ID] = struct{}{}
			fresh = append(fresh, notif)
			freshIDs = append(freshIDs, notif.ID)
		}
	}
	n.unread = notifications
	n.sortUnreadLocked()
	count := len(n.unread)
	announcer := n.announcer
	n.mu.Unlock()

	if len(freshIDs) > 0 {
		if err := n.store.MarkNotificationsSeen(ctx, freshIDs); err != nil {
			n.logger.Printf("Failed to persist seen notifications: %v", err)
		}
	}

	n.emitUnread(count)

	// The seeding fetch is silent: it establishes the baseline without
	// announcing notifications that predate this session.
	if firstFetch {
		return
	}
	if announcer != nil {
		for _, notif := range fresh {
			announcer.Announce(notif)
		}
	}
}

func (n *Notifier) sortUnreadLocked() {
	sort.SliceStable(n.unread, func(i, j int) bool {
		return n.unread[i].CreatedAt.After(n.unread[j].CreatedAt)
	})
}

func (n *Notifier) emitUnread(count int) {
	n.mu.Lock()
	fn := n.onUnread
	n.mu.Unlock()
	if fn != nil {
		fn(count)
	}
}

// ListenPush subscribes to the push bus for the given user and kicks the
// poller whenever a message arrives, so the badge updates within one round
// trip instead of waiting out the poll interval. Blocks until ctx ends.
func (n *Notifier) ListenPush(ctx context.Context, b bus.Bus, userID int) error {
	return b.Subscribe(ctx, userID, func(msg bus.PushMessage) {
		n.logger.Printf("Push message received for notification %d", msg.NotificationID)
		n.Kick()
	})
}
