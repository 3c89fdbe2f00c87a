// Package bus delivers server-pushed notifications to the client over a
// Redis pub/sub channel, with a no-op fallback when Redis is unavailable.
// Polling remains the source of truth; the bus only shortens the latency
// between a server event and the client noticing it.
package bus

import (
	"context"
	"io"
	"log"
	"time"
)

// PushMessage is one notification pushed over the wire. It carries enough
// to announce the event; the full record still comes from the API.
type PushMessage struct {
	NotificationID int       `json:"notification_id"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	CaseID         *int      `json:"case_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Bus defines the interface for push delivery implementations
type Bus interface {
	// Subscribe listens on the given user's channel and invokes handler
	// for each message until ctx is cancelled
	Subscribe(ctx context.Context, userID int, handler func(msg PushMessage)) error

	// HealthCheck performs a health check on the bus connection
	HealthCheck(ctx context.Context) error

	// Close closes the bus connection
	Close() error
}

// NewBus creates a new bus instance based on the Redis URL
// If redisURL is empty or invalid, returns a NullBus
func NewBus(redisURL string, logger *log.Logger) Bus {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	if redisURL == "" {
		return NewNullBus(logger)
	}

	if redisBus, err := NewRedisBus(redisURL, logger); err == nil {
		return redisBus
	}

	// Fall back to null bus if Redis fails
	return NewNullBus(logger)
}
