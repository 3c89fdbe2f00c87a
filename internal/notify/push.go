package notify

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/csdesk/console-cs/internal/api"
	"github.com/csdesk/console-cs/internal/store"
)

// PushManager registers this device's push subscription with the backend.
// The subscription endpoint is derived from the persisted device ID, so
// the same install re-registers the same endpoint and the server upserts
// rather than piling up duplicates. Subscription state is queried from the
// server on demand, never assumed from local state.
type PushManager struct {
	client *api.Client
	store  *store.Store
	logger *log.Logger

	mu       sync.Mutex
	endpoint string
}

// NewPushManager creates a push manager.
func NewPushManager(client *api.Client, st *store.Store, logger *log.Logger) *PushManager {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &PushManager{client: client, store: st, logger: logger}
}

// Endpoint returns this device's stable push endpoint.
func (pm *PushManager) Endpoint(ctx context.Context) (string, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.endpoint != "" {
		return pm.endpoint, nil
	}
	deviceID, err := pm.store.DeviceID(ctx)
	if err != nil {
		return "", fmt.Errorf("loading device ID: %w", err)
	}
	pm.endpoint = "console-cs://device/" + deviceID
	return pm.endpoint, nil
}

// Subscribe registers this device with the backend. Safe to call when
// already subscribed; the server treats the endpoint as the identity.
func (pm *PushManager) Subscribe(ctx context.Context) error {
	// The VAPID key is fetched even though this client does not verify
	// payload signatures; a server without push configured returns an
	// error here and we stop before registering a dead subscription.
	if _, err := pm.client.VapidPublicKey(ctx); err != nil {
		return fmt.Errorf("push not available: %w", err)
	}

	endpoint, err := pm.Endpoint(ctx)
	if err != nil {
		return err
	}
	deviceID, err := pm.store.DeviceID(ctx)
	if err != nil {
		return err
	}

	sub := api.PushSubscription{
		Endpoint: endpoint,
		P256DH:   deriveKey(deviceID, "p256dh"),
		Auth:     deriveKey(deviceID, "auth"),
	}
	if err := pm.client.SubscribePush(ctx, sub); err != nil {
		return fmt.Errorf("registering push subscription: %w", err)
	}
	pm.logger.Printf("Push subscription registered for endpoint %s", endpoint)
	return nil
}

// Unsubscribe removes this device's subscription. Unsubscribing when not
// subscribed is not an error.
func (pm *PushManager) Unsubscribe(ctx context.Context) error {
	endpoint, err := pm.Endpoint(ctx)
	if err != nil {
		return err
	}
	if err := pm.client.UnsubscribePush(ctx, endpoint); err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("removing push subscription: %w", err)
	}
	pm.logger.Printf("Push subscription removed for endpoint %s", endpoint)
	return nil
}

// deriveKey produces a stable opaque key for the subscription record. The
// backend stores these verbatim; this client identifies itself by endpoint
// and does not decrypt payloads.
func deriveKey(deviceID, purpose string) string {
	sum := sha256.Sum256([]byte(purpose + ":" + deviceID))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
