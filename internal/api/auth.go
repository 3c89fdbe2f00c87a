package api

import (
	"context"
	"fmt"
)

// Login exchanges credentials for a bearer token. The token is persisted in
// the token source on success. A 401 maps to ErrInvalidCredentials so the
// login form can show an inline message.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	payload := map[string]string{"email": email, "password": password}
	var token TokenResponse
	if err := c.do(ctx, "POST", "/auth/login", nil, payload, &token, false); err != nil {
		return nil, err
	}
	if err := c.tokens.SetToken(token.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}
	return &token, nil
}

// Me fetches the current user's profile, validating the stored token.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.get(ctx, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Assignees lists the users a case or quote request can be assigned to.
func (c *Client) Assignees(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.get(ctx, "/auth/users/assignees", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}
