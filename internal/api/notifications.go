package api

import (
	"context"
	"fmt"
	"net/url"
)

// ListNotifications fetches the current user's notifications, newest first.
func (c *Client) ListNotifications(ctx context.Context, unreadOnly bool) ([]Notification, error) {
	q := url.Values{}
	if unreadOnly {
		q.Set("unread_only", "true")
	}
	var out []Notification
	err := c.get(ctx, "/notifications", q, &out)
	return out, err
}

// MarkNotificationRead marks a notification as read. Callers treat failures
// as best-effort; the next poll corrects any drift.
func (c *Client) MarkNotificationRead(ctx context.Context, id int) error {
	return c.patch(ctx, fmt.Sprintf("/notifications/%d/read", id), nil, nil)
}
