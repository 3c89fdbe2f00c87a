package bus

import (
	"context"
	"log"
)

// NullBus is a no-op implementation of the bus interface for when Redis is disabled
type NullBus struct {
	logger *log.Logger
}

// NewNullBus creates a new null bus instance
func NewNullBus(logger *log.Logger) *NullBus {
	if logger == nil {
		logger = log.New(log.Writer(), "[NullBus] ", log.LstdFlags)
	}

	return &NullBus{
		logger: logger,
	}
}

// Close is a no-op for null bus
func (nb *NullBus) Close() error {
	return nil
}

// Subscribe blocks until the context is cancelled; no messages ever arrive
func (nb *NullBus) Subscribe(ctx context.Context, userID int, handler func(msg PushMessage)) error {
	nb.logger.Printf("Push delivery disabled for user %d (no Redis configured)", userID)
	<-ctx.Done()
	return ctx.Err()
}

// HealthCheck always returns nil for null bus
func (nb *NullBus) HealthCheck(ctx context.Context) error {
	return nil
}
