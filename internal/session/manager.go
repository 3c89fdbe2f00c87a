// Package session owns the current-user state and token lifecycle: startup
// validation, login, logout, idle timeout, and the global reaction to a 401
// response. All other components read session state through accessors; only
// Login and Logout (and the HTTP adapter's 401 handling) mutate it.
package session

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/csdesk/console-cs/internal/api"
)

// State is the session lifecycle state.
type State int

const (
	// StateUnknown is the initial state before Start has run.
	StateUnknown State = iota
	// StateLoading means a stored token is being validated against /auth/me.
	StateLoading
	// StateAuthenticated means a valid user is logged in.
	StateAuthenticated
	// StateAnonymous means no valid session exists.
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// DefaultIdleTimeout matches the product default of 60 minutes.
const DefaultIdleTimeout = 60 * time.Minute

// Manager is the session/auth state machine.
type Manager struct {
	client *api.Client
	logger *log.Logger
	idle   *IdleTimer

	mu       sync.RWMutex
	state    State
	user     *api.User
	handlers []func(State, *api.User)

	// expiring guards the 401 cascade: many in-flight requests can fail
	// with 401 at once, but the session transitions to anonymous only once.
	expiring bool
}

// NewManager creates a session manager bound to the API client. The manager
// installs itself as the client's auth-failure handler.
func NewManager(client *api.Client, idleTimeout time.Duration, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	m := &Manager{
		client: client,
		logger: logger,
		state:  StateUnknown,
	}
	m.idle = NewIdleTimer(idleTimeout, m.idleLogout)
	client.SetAuthFailureHandler(m.sessionExpired)
	return m
}

// Start validates any stored token against /auth/me. A failure of any kind
// is the normal unauthenticated state, never surfaced as an error.
func (m *Manager) Start(ctx context.Context) {
	if !m.client.HasToken() {
		m.setState(StateAnonymous, nil)
		return
	}
	m.setState(StateLoading, nil)

	user, err := m.client.Me(ctx)
	if err != nil {
		if !errors.Is(err, api.ErrSessionExpired) {
			// The adapter only clears the token on auth failures; clear it
			// for everything else too so a stale token doesn't linger.
			if cerr := m.clearToken(); cerr != nil {
				m.logger.Printf("Failed to clear stale token: %v", cerr)
			}
			m.logger.Printf("Startup profile fetch failed, treating as anonymous: %v", err)
		}
		m.setState(StateAnonymous, nil)
		return
	}

	m.logger.Printf("Resumed session for %s (%s)", user.Name, user.Role)
	m.becomeAuthenticated(user)
}

// Login authenticates, persists the token, and fetches the profile.
// A 401 surfaces as api.ErrInvalidCredentials for inline display.
func (m *Manager) Login(ctx context.Context, email, password string) (*api.User, error) {
	if _, err := m.client.Login(ctx, email, password); err != nil {
		return nil, err
	}

	user, err := m.client.Me(ctx)
	if err != nil {
		return nil, err
	}

	m.logger.Printf("Logged in as %s (%s)", user.Name, user.Role)
	m.becomeAuthenticated(user)
	return user, nil
}

// Logout clears the stored token and in-memory user.
func (m *Manager) Logout() {
	m.idle.Disarm()
	if err := m.clearToken(); err != nil {
		m.logger.Printf("Failed to clear token on logout: %v", err)
	}
	m.logger.Println("Logged out")
	m.setState(StateAnonymous, nil)
}

// Touch resets the idle countdown. The UI forwards every qualifying input
// event (key press, mouse event) here.
func (m *Manager) Touch() {
	m.idle.Touch()
}

// SetIdleTimeout applies a new idle duration, restarting an armed timer.
func (m *Manager) SetIdleTimeout(timeout time.Duration) {
	if timeout > 0 {
		m.idle.SetTimeout(timeout)
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// User returns the authenticated user, or nil.
func (m *Manager) User() *api.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// IsAuthenticated reports whether a user is logged in.
func (m *Manager) IsAuthenticated() bool {
	return m.State() == StateAuthenticated
}

// OnChange registers a handler invoked on every state transition. Handlers
// run outside the manager's lock, on the goroutine that triggered the
// transition.
func (m *Manager) OnChange(fn func(State, *api.User)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, fn)
}

// Close disarms the idle timer. The manager cannot be reused.
func (m *Manager) Close() {
	m.idle.Disarm()
}

func (m *Manager) becomeAuthenticated(user *api.User) {
	m.setState(StateAuthenticated, user)
	m.idle.Arm()
}

// idleLogout runs when the idle timer fires.
func (m *Manager) idleLogout() {
	if m.State() != StateAuthenticated {
		return
	}
	m.logger.Println("Session expired due to inactivity")
	m.Logout()
}

// sessionExpired is invoked by the HTTP adapter after it cleared the token
// because of a 401 or local expiry. The expiring flag collapses concurrent
// failures into a single transition.
func (m *Manager) sessionExpired() {
	m.mu.Lock()
	if m.expiring || m.state != StateAuthenticated {
		m.mu.Unlock()
		return
	}
	m.expiring = true
	m.mu.Unlock()

	m.logger.Println("Session expired, switching to anonymous")
	m.idle.Disarm()
	m.setState(StateAnonymous, nil)

	m.mu.Lock()
	m.expiring = false
	m.mu.Unlock()
}

func (m *Manager) clearToken() error {
	// The adapter owns the token source; route through it so there is a
	// single write path.
	return m.client.ClearStoredToken()
}

func (m *Manager) setState(state State, user *api.User) {
	m.mu.Lock()
	m.state = state
	m.user = user
	handlers := make([]func(State, *api.User), len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	for _, fn := range handlers {
		fn(state, user)
	}
}
