package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// CaseFilters narrows the case list. Zero values are omitted from the query.
type CaseFilters struct {
	Status     CaseStatus
	Priority   Priority
	AssigneeID int
	ProductID  int
	Search     string
	Sort       string
	Order      string
}

func (f CaseFilters) query(page, pageSize int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Priority != "" {
		q.Set("priority", string(f.Priority))
	}
	if f.AssigneeID > 0 {
		q.Set("assignee_id", strconv.Itoa(f.AssigneeID))
	}
	if f.ProductID > 0 {
		q.Set("product_id", strconv.Itoa(f.ProductID))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Sort != "" {
		q.Set("sort", f.Sort)
	}
	if f.Order != "" {
		q.Set("order", f.Order)
	}
	return q
}

// ListCases fetches one page of the case list.
func (c *Client) ListCases(ctx context.Context, filters CaseFilters, page, pageSize int) (Page[Case], error) {
	var out Page[Case]
	err := c.get(ctx, "/cases", filters.query(page, pageSize), &out)
	return out, err
}

// GetCase fetches a single case.
func (c *Client) GetCase(ctx context.Context, id int) (*Case, error) {
	var out Case
	if err := c.get(ctx, fmt.Sprintf("/cases/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCase creates a new case.
func (c *Client) CreateCase(ctx context.Context, data CaseCreate) (*Case, error) {
	var out Case
	if err := c.post(ctx, "/cases", data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCase performs a full update (PUT) and returns the updated case.
func (c *Client) UpdateCase(ctx context.Context, id int, data CaseUpdate) (*Case, error) {
	var out Case
	if err := c.put(ctx, fmt.Sprintf("/cases/%d", id), data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCaseStatus changes only the status (PATCH) and returns the updated case.
func (c *Client) UpdateCaseStatus(ctx context.Context, id int, status CaseStatus) (*Case, error) {
	var out Case
	payload := map[string]CaseStatus{"status": status}
	if err := c.patch(ctx, fmt.Sprintf("/cases/%d/status", id), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteCase deletes a case and all of its sub-resources.
func (c *Client) DeleteCase(ctx context.Context, id int) error {
	return c.delete(ctx, fmt.Sprintf("/cases/%d", id), nil)
}

// SimilarCases runs the backend similarity search for a draft case.
func (c *Client) SimilarCases(ctx context.Context, title, content string, tags []string) ([]SimilarCase, error) {
	q := url.Values{}
	q.Set("title", title)
	if content != "" {
		q.Set("content", content)
	}
	for _, tag := range tags {
		q.Add("tags", tag)
	}
	var out []SimilarCase
	err := c.get(ctx, "/cases/similar", q, &out)
	return out, err
}

// SimilarCasesByID fetches cases similar to an existing case.
func (c *Client) SimilarCasesByID(ctx context.Context, caseID int) ([]SimilarCase, error) {
	var out []SimilarCase
	err := c.get(ctx, fmt.Sprintf("/cases/%d/similar", caseID), nil, &out)
	return out, err
}

// ListComments fetches the flat comment list for a case. Use
// BuildCommentTree to assemble the reply structure.
func (c *Client) ListComments(ctx context.Context, caseID int) ([]Comment, error) {
	var out []Comment
	err := c.get(ctx, fmt.Sprintf("/cases/%d/comments/", caseID), nil, &out)
	return out, err
}

// CreateComment creates a comment or, with ParentID set, a reply.
func (c *Client) CreateComment(ctx context.Context, caseID int, data CommentCreate) (*Comment, error) {
	var out Comment
	if err := c.post(ctx, fmt.Sprintf("/cases/%d/comments/", caseID), data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteComment deletes a comment. The backend rejects callers who are
// neither the author nor an admin.
func (c *Client) DeleteComment(ctx context.Context, caseID, commentID int) error {
	return c.delete(ctx, fmt.Sprintf("/cases/%d/comments/%d", caseID, commentID), nil)
}

// ListChecklist fetches the checklist items for a case.
func (c *Client) ListChecklist(ctx context.Context, caseID int) ([]ChecklistItem, error) {
	var out []ChecklistItem
	err := c.get(ctx, fmt.Sprintf("/cases/%d/checklists", caseID), nil, &out)
	return out, err
}

// CreateChecklistItem adds an item to a case's checklist.
func (c *Client) CreateChecklistItem(ctx context.Context, caseID int, content string) (*ChecklistItem, error) {
	var out ChecklistItem
	payload := map[string]string{"content": content}
	if err := c.post(ctx, fmt.Sprintf("/cases/%d/checklists", caseID), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateChecklistItem sets the done flag of a checklist item.
func (c *Client) UpdateChecklistItem(ctx context.Context, itemID int, isDone bool) (*ChecklistItem, error) {
	var out ChecklistItem
	payload := map[string]bool{"is_done": isDone}
	if err := c.patch(ctx, fmt.Sprintf("/checklists/%d", itemID), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Statistics fetches one of the aggregated case reports. The result shape
// depends on by: "assignee" and "status" return lists, "time" returns a
// single object, so callers use the typed helpers below.
func (c *Client) statistics(ctx context.Context, by string, out interface{}) error {
	q := url.Values{}
	q.Set("by", by)
	return c.get(ctx, "/cases/statistics", q, out)
}

// StatisticsByAssignee fetches per-assignee case counts.
func (c *Client) StatisticsByAssignee(ctx context.Context) ([]StatByAssignee, error) {
	var out []StatByAssignee
	err := c.statistics(ctx, "assignee", &out)
	return out, err
}

// StatisticsByStatus fetches per-status case counts.
func (c *Client) StatisticsByStatus(ctx context.Context) ([]StatByStatus, error) {
	var out []StatByStatus
	err := c.statistics(ctx, "status", &out)
	return out, err
}

// StatisticsByTime fetches the average-resolution-time report.
func (c *Client) StatisticsByTime(ctx context.Context) (*StatByTime, error) {
	var out StatByTime
	if err := c.statistics(ctx, "time", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMyProgress fetches the current user's case counts by status.
// targetDate is YYYY-MM-DD; empty means all time.
func (c *Client) GetMyProgress(ctx context.Context, targetDate string) (*MyProgress, error) {
	q := url.Values{}
	if targetDate != "" {
		q.Set("target_date", targetDate)
	}
	var out MyProgress
	if err := c.get(ctx, "/cases/my-progress", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
