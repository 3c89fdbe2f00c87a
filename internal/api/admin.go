package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// UserFilters narrows the admin user list.
type UserFilters struct {
	Search string
	Role   Role
}

// UserCreate is the payload for creating a user through the admin surface.
type UserCreate struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// UserUpdate is the payload for updating a user. Nil fields keep their
// current values.
type UserUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Role  *Role   `json:"role,omitempty"`
}

// ListUsers fetches one page of the admin user list.
func (c *Client) ListUsers(ctx context.Context, filters UserFilters, page, pageSize int) (Page[User], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if filters.Search != "" {
		q.Set("search", filters.Search)
	}
	if filters.Role != "" {
		q.Set("role", string(filters.Role))
	}
	var out Page[User]
	err := c.get(ctx, "/admin/users", q, &out)
	return out, err
}

// GetUser fetches a single user.
func (c *Client) GetUser(ctx context.Context, id int) (*User, error) {
	var out User
	if err := c.get(ctx, fmt.Sprintf("/admin/users/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateUser creates a new user.
func (c *Client) CreateUser(ctx context.Context, data UserCreate) (*User, error) {
	var out User
	if err := c.post(ctx, "/admin/users", data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUser updates a user's profile.
func (c *Client) UpdateUser(ctx context.Context, id int, data UserUpdate) (*User, error) {
	var out User
	if err := c.put(ctx, fmt.Sprintf("/admin/users/%d", id), data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUser deactivates a user.
func (c *Client) DeleteUser(ctx context.Context, id int) error {
	return c.delete(ctx, fmt.Sprintf("/admin/users/%d", id), nil)
}

// ResetPassword sets a new password for a user (admin only).
func (c *Client) ResetPassword(ctx context.Context, id int, newPassword string) error {
	payload := map[string]string{"new_password": newPassword}
	return c.post(ctx, fmt.Sprintf("/admin/users/%d/reset-password", id), payload, nil)
}
