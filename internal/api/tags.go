package api

import (
	"context"
	"net/url"
)

// SearchTags runs a prefix search for tag auto-completion.
func (c *Client) SearchTags(ctx context.Context, query string) ([]string, error) {
	q := url.Values{}
	q.Set("q", query)
	var out []string
	err := c.get(ctx, "/tags/search", q, &out)
	return out, err
}

// SuggestTags asks the backend for tags matching a draft case.
func (c *Client) SuggestTags(ctx context.Context, title, content string) ([]string, error) {
	q := url.Values{}
	q.Set("title", title)
	if content != "" {
		q.Set("content", content)
	}
	var out []string
	err := c.get(ctx, "/tags/suggest", q, &out)
	return out, err
}
