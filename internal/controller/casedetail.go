package controller

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/csdesk/console-cs/internal/api"
)

// DetailState is the lifecycle of a detail controller.
type DetailState int

const (
	DetailLoading DetailState = iota
	DetailReady
	DetailFailed
	DetailDeleted
)

func (s DetailState) String() string {
	switch s {
	case DetailLoading:
		return "loading"
	case DetailReady:
		return "ready"
	case DetailFailed:
		return "failed"
	case DetailDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// CaseDetail holds one case together with its comment tree and checklist.
// Load fetches all three in parallel; a failure on any leg puts the
// controller in the failed state rather than showing a partial record.
type CaseDetail struct {
	client *api.Client
	logger *log.Logger
	caseID int

	mu        sync.Mutex
	state     DetailState
	loadErr   error
	kase      *api.Case
	comments  []api.Comment
	checklist []api.ChecklistItem

	onChange func()
}

// NewCaseDetail creates a detail controller for one case. Call Load before
// reading any of the accessors.
func NewCaseDetail(client *api.Client, caseID int, logger *log.Logger) *CaseDetail {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &CaseDetail{
		client: client,
		logger: logger,
		caseID: caseID,
		state:  DetailLoading,
	}
}

// OnChange registers the callback invoked after every applied state change.
func (d *CaseDetail) OnChange(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = fn
}

// Load fetches the case, its comments, and its checklist concurrently.
func (d *CaseDetail) Load(ctx context.Context) error {
	d.mu.Lock()
	d.state = DetailLoading
	d.loadErr = nil
	d.mu.Unlock()

	var (
		kase      *api.Case
		comments  []api.Comment
		checklist []api.ChecklistItem
		errCase   error
		errCom    error
		errChk    error
	)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		kase, errCase = d.client.GetCase(ctx, d.caseID)
	}()
	go func() {
		defer wg.Done()
		comments, errCom = d.client.ListComments(ctx, d.caseID)
	}()
	go func() {
		defer wg.Done()
		checklist, errChk = d.client.ListChecklist(ctx, d.caseID)
	}()
	wg.Wait()

	for _, err := range []error{errCase, errCom, errChk} {
		if err != nil {
			d.mu.Lock()
			d.state = DetailFailed
			d.loadErr = err
			d.mu.Unlock()
			d.notify()
			return fmt.Errorf("loading case %d: %w", d.caseID, err)
		}
	}

	d.mu.Lock()
	d.state = DetailReady
	d.kase = kase
	d.comments = api.BuildCommentTree(comments)
	d.checklist = checklist
	d.mu.Unlock()
	d.notify()
	return nil
}

// State returns the controller lifecycle state.
func (d *CaseDetail) State() DetailState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err returns the failure that put the controller in the failed state.
func (d *CaseDetail) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadErr
}

// Case returns the loaded case, or nil before a successful Load.
func (d *CaseDetail) Case() *api.Case {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.kase == nil {
		return nil
	}
	out := *d.kase
	return &out
}

// Comments returns the comment tree roots.
func (d *CaseDetail) Comments() []api.Comment {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]api.Comment, len(d.comments))
	copy(out, d.comments)
	return out
}

// Checklist returns the checklist items.
func (d *CaseDetail) Checklist() []api.ChecklistItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]api.ChecklistItem, len(d.checklist))
	copy(out, d.checklist)
	return out
}

// SetStatus changes the case status and merges the server response.
func (d *CaseDetail) SetStatus(ctx context.Context, status api.CaseStatus) error {
	updated, err := d.client.UpdateCaseStatus(ctx, d.caseID, status)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.kase = updated
	d.mu.Unlock()
	d.notify()
	return nil
}

// Update applies a partial edit and merges the server response.
func (d *CaseDetail) Update(ctx context.Context, upd api.CaseUpdate) error {
	updated, err := d.client.UpdateCase(ctx, d.caseID, upd)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.kase = updated
	d.mu.Unlock()
	d.notify()
	return nil
}

// Delete removes the case on the server and invalidates the controller.
func (d *CaseDetail) Delete(ctx context.Context) error {
	if err := d.client.DeleteCase(ctx, d.caseID); err != nil {
		return err
	}
	d.mu.Lock()
	d.state = DetailDeleted
	d.mu.Unlock()
	d.notify()
	return nil
}

// AddComment posts a comment (optionally replying to parentID) and
// re-fetches the tree so nesting and ordering come from the server.
func (d *CaseDetail) AddComment(ctx context.Context, content string, parentID *int) error {
	if _, err := d.client.CreateComment(ctx, d.caseID, api.CommentCreate{Content: content, ParentID: parentID}); err != nil {
		return err
	}
	return d.reloadComments(ctx)
}

// DeleteComment removes a comment and re-fetches the tree.
func (d *CaseDetail) DeleteComment(ctx context.Context, commentID int) error {
	if err := d.client.DeleteComment(ctx, d.caseID, commentID); err != nil {
		return err
	}
	return d.reloadComments(ctx)
}

func (d *CaseDetail) reloadComments(ctx context.Context) error {
	comments, err := d.client.ListComments(ctx, d.caseID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.comments = api.BuildCommentTree(comments)
	d.mu.Unlock()
	d.notify()
	return nil
}

// AddChecklistItem appends an item and merges the server response.
func (d *CaseDetail) AddChecklistItem(ctx context.Context, content string) error {
	item, err := d.client.CreateChecklistItem(ctx, d.caseID, content)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.checklist = append(d.checklist, *item)
	d.mu.Unlock()
	d.notify()
	return nil
}

// ToggleChecklist flips an item's done flag optimistically: the local
// state changes immediately and is rolled back if the server rejects it.
func (d *CaseDetail) ToggleChecklist(ctx context.Context, itemID int) error {
	d.mu.Lock()
	idx := -1
	for i := range d.checklist {
		if d.checklist[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.mu.Unlock()
		return fmt.Errorf("checklist item %d not found on case %d", itemID, d.caseID)
	}
	d.checklist[idx].IsDone = !d.checklist[idx].IsDone
	wantDone := d.checklist[idx].IsDone
	d.mu.Unlock()
	d.notify()

	item, err := d.client.UpdateChecklistItem(ctx, itemID, wantDone)
	if err != nil {
		d.mu.Lock()
		for i := range d.checklist {
			if d.checklist[i].ID == itemID {
				d.checklist[i].IsDone = !wantDone
				break
			}
		}
		d.mu.Unlock()
		d.notify()
		d.logger.Printf("Checklist toggle rolled back for item %d: %v", itemID, err)
		return err
	}

	d.mu.Lock()
	for i := range d.checklist {
		if d.checklist[i].ID == itemID {
			d.checklist[i] = *item
			break
		}
	}
	d.mu.Unlock()
	d.notify()
	return nil
}

func (d *CaseDetail) notify() {
	d.mu.Lock()
	fn := d.onChange
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}
