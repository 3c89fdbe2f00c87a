package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// QuoteFilters narrows the quote request list.
type QuoteFilters struct {
	Status QuoteStatus
	Search string
}

// ListQuoteRequests fetches one page of quote requests.
func (c *Client) ListQuoteRequests(ctx context.Context, filters QuoteFilters, page, pageSize int) (Page[QuoteRequest], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if filters.Status != "" {
		q.Set("status", string(filters.Status))
	}
	if filters.Search != "" {
		q.Set("search", filters.Search)
	}
	var out Page[QuoteRequest]
	err := c.get(ctx, "/quote-requests/", q, &out)
	return out, err
}

// GetQuoteRequest fetches a single quote request.
func (c *Client) GetQuoteRequest(ctx context.Context, id int) (*QuoteRequest, error) {
	var out QuoteRequest
	if err := c.get(ctx, fmt.Sprintf("/quote-requests/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateQuoteRequestStatus changes the status and returns the updated entity.
func (c *Client) UpdateQuoteRequestStatus(ctx context.Context, id int, status QuoteStatus) (*QuoteRequest, error) {
	var out QuoteRequest
	payload := map[string]QuoteStatus{"status": status}
	if err := c.patch(ctx, fmt.Sprintf("/quote-requests/%d/status", id), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateQuoteRequestAssignees replaces the assignee set.
func (c *Client) UpdateQuoteRequestAssignees(ctx context.Context, id int, assigneeIDs []int) (*QuoteRequest, error) {
	var out QuoteRequest
	payload := map[string][]int{"assignee_ids": assigneeIDs}
	if err := c.put(ctx, fmt.Sprintf("/quote-requests/%d/assignees", id), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteQuoteRequest deletes a quote request.
func (c *Client) DeleteQuoteRequest(ctx context.Context, id int) error {
	return c.delete(ctx, fmt.Sprintf("/quote-requests/%d", id), nil)
}

// GetDefaultAssignees fetches the users auto-assigned to new quote requests.
func (c *Client) GetDefaultAssignees(ctx context.Context) ([]int, error) {
	var out struct {
		AssigneeIDs []int `json:"assignee_ids"`
	}
	if err := c.get(ctx, "/quote-requests/settings/default-assignees", nil, &out); err != nil {
		return nil, err
	}
	return out.AssigneeIDs, nil
}

// SetDefaultAssignees replaces the default assignee set.
func (c *Client) SetDefaultAssignees(ctx context.Context, assigneeIDs []int) error {
	payload := map[string][]int{"assignee_ids": assigneeIDs}
	return c.put(ctx, "/quote-requests/settings/default-assignees", payload, nil)
}

// ListQuoteRequestComments fetches the flat comment list for a quote request.
func (c *Client) ListQuoteRequestComments(ctx context.Context, id int) ([]Comment, error) {
	var out []Comment
	err := c.get(ctx, fmt.Sprintf("/quote-requests/%d/comments", id), nil, &out)
	return out, err
}

// CreateQuoteRequestComment creates a comment or reply on a quote request.
func (c *Client) CreateQuoteRequestComment(ctx context.Context, id int, data CommentCreate) (*Comment, error) {
	var out Comment
	if err := c.post(ctx, fmt.Sprintf("/quote-requests/%d/comments", id), data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteQuoteRequestComment deletes a comment on a quote request.
func (c *Client) DeleteQuoteRequestComment(ctx context.Context, id, commentID int) error {
	return c.delete(ctx, fmt.Sprintf("/quote-requests/%d/comments/%d", id, commentID), nil)
}
