package controller

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/csdesk/console-cs/internal/api"
)

// QuoteRequestDetail holds one quote request and its comment tree.
type QuoteRequestDetail struct {
	client *api.Client
	logger *log.Logger
	id     int

	mu       sync.Mutex
	state    DetailState
	loadErr  error
	quote    *api.QuoteRequest
	comments []api.Comment

	onChange func()
}

// NewQuoteRequestDetail creates a detail controller for one quote request.
func NewQuoteRequestDetail(client *api.Client, id int, logger *log.Logger) *QuoteRequestDetail {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &QuoteRequestDetail{
		client: client,
		logger: logger,
		id:     id,
		state:  DetailLoading,
	}
}

// OnChange registers the callback invoked after every applied state change.
func (d *QuoteRequestDetail) OnChange(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = fn
}

// Load fetches the quote request and its comments concurrently.
func (d *QuoteRequestDetail) Load(ctx context.Context) error {
	d.mu.Lock()
	d.state = DetailLoading
	d.loadErr = nil
	d.mu.Unlock()

	var (
		quote    *api.QuoteRequest
		comments []api.Comment
		errQuote error
		errCom   error
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		quote, errQuote = d.client.GetQuoteRequest(ctx, d.id)
	}()
	go func() {
		defer wg.Done()
		comments, errCom = d.client.ListQuoteRequestComments(ctx, d.id)
	}()
	wg.Wait()

	for _, err := range []error{errQuote, errCom} {
		if err != nil {
			d.mu.Lock()
			d.state = DetailFailed
			d.loadErr = err
			d.mu.Unlock()
			d.notify()
			return fmt.Errorf("loading quote request %d: %w", d.id, err)
		}
	}

	d.mu.Lock()
	d.state = DetailReady
	d.quote = quote
	d.comments = api.BuildCommentTree(comments)
	d.mu.Unlock()
	d.notify()
	return nil
}

// State returns the controller lifecycle state.
func (d *QuoteRequestDetail) State() DetailState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err returns the failure that put the controller in the failed state.
func (d *QuoteRequestDetail) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadErr
}

// QuoteRequest returns the loaded record, or nil before a successful Load.
func (d *QuoteRequestDetail) QuoteRequest() *api.QuoteRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.quote == nil {
		return nil
	}
	out := *d.quote
	return &out
}

// Comments returns the comment tree roots.
func (d *QuoteRequestDetail) Comments() []api.Comment {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]api.Comment, len(d.comments))
	copy(out, d.comments)
	return out
}

// SetStatus changes the quote status and merges the server response.
func (d *QuoteRequestDetail) SetStatus(ctx context.Context, status api.QuoteStatus) error {
	updated, err := d.client.UpdateQuoteRequestStatus(ctx, d.id, status)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.quote = updated
	d.mu.Unlock()
	d.notify()
	return nil
}

// SetAssignees replaces the assignee set and merges the server response.
func (d *QuoteRequestDetail) SetAssignees(ctx context.Context, assigneeIDs []int) error {
	updated, err := d.client.UpdateQuoteRequestAssignees(ctx, d.id, assigneeIDs)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.quote = updated
	d.mu.Unlock()
	d.notify()
	return nil
}

// Delete removes the quote request and invalidates the controller.
func (d *QuoteRequestDetail) Delete(ctx context.Context) error {
	if err := d.client.DeleteQuoteRequest(ctx, d.id); err != nil {
		return err
	}
	d.mu.Lock()
	d.state = DetailDeleted
	d.mu.Unlock()
	d.notify()
	return nil
}

// AddComment posts a comment and re-fetches the tree.
func (d *QuoteRequestDetail) AddComment(ctx context.Context, content string, parentID *int) error {
	if _, err := d.client.CreateQuoteRequestComment(ctx, d.id, api.CommentCreate{Content: content, ParentID: parentID}); err != nil {
		return err
	}
	return d.reloadComments(ctx)
}

// DeleteComment removes a comment and re-fetches the tree.
func (d *QuoteRequestDetail) DeleteComment(ctx context.Context, commentID int) error {
	if err := d.client.DeleteQuoteRequestComment(ctx, d.id, commentID); err != nil {
		return err
	}
	return d.reloadComments(ctx)
}

func (d *QuoteRequestDetail) reloadComments(ctx context.Context) error {
	comments, err := d.client.ListQuoteRequestComments(ctx, d.id)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.comments = api.BuildCommentTree(comments)
	d.mu.Unlock()
	d.notify()
	return nil
}

func (d *QuoteRequestDetail) notify() {
	d.mu.Lock()
	fn := d.onChange
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}
