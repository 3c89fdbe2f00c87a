package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisBus subscribes to per-user notification channels over Redis pub/sub
type RedisBus struct {
	client *redis.Client
	logger *log.Logger
}

// NewRedisBus creates a new Redis bus instance
func NewRedisBus(redisURL string, logger *log.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = log.New(log.Writer(), "[RedisBus] ", log.LstdFlags)
	}

	return &RedisBus{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (rb *RedisBus) Close() error {
	return rb.client.Close()
}

func channelForUser(userID int) string {
	return fmt.Sprintf("notify:user:%d", userID)
}

// Subscribe listens on the user's channel until ctx is cancelled. Messages
// that fail to decode are logged and skipped, never fatal.
func (rb *RedisBus) Subscribe(ctx context.Context, userID int, handler func(msg PushMessage)) error {
	channel := channelForUser(userID)
	sub := rb.client.Subscribe(ctx, channel)
	defer sub.Close()

	// Force the subscription to be established before we report listening
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	rb.logger.Printf("Subscribed to push channel %s", channel)
	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("push channel %s closed", channel)
			}
			var push PushMessage
			if err := json.Unmarshal([]byte(msg.Payload), &push); err != nil {
				rb.logger.Printf("Skipping undecodable push message on %s: %v", channel, err)
				continue
			}
			handler(push)
		}
	}
}

// HealthCheck pings Redis
func (rb *RedisBus) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rb.client.Ping(ctx).Err()
}
