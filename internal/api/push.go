package api

import "context"

// VapidPublicKey fetches the server's push public key.
func (c *Client) VapidPublicKey(ctx context.Context) (string, error) {
	var out struct {
		PublicKey string `json:"public_key"`
	}
	if err := c.get(ctx, "/push/vapid-public-key", nil, &out); err != nil {
		return "", err
	}
	return out.PublicKey, nil
}

// SubscribePush registers a push subscription. Registering an endpoint that
// already exists updates its keys, so the call is idempotent.
func (c *Client) SubscribePush(ctx context.Context, sub PushSubscription) error {
	return c.post(ctx, "/push/subscribe", sub, nil)
}

// UnsubscribePush removes a push subscription by endpoint.
func (c *Client) UnsubscribePush(ctx context.Context, endpoint string) error {
	payload := map[string]string{"endpoint": endpoint}
	return c.delete(ctx, "/push/unsubscribe", payload)
}
