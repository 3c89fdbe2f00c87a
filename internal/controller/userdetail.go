package controller

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/csdesk/console-cs/internal/api"
)

// UserDetail holds one user record for the admin surface. Mutations merge
// the server's returned copy so the view never renders a guess.
type UserDetail struct {
	client *api.Client
	logger *log.Logger
	id     int

	mu      sync.Mutex
	state   DetailState
	loadErr error
	user    *api.User

	onChange func()
}

// NewUserDetail creates a detail controller for one user.
func NewUserDetail(client *api.Client, id int, logger *log.Logger) *UserDetail {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &UserDetail{
		client: client,
		logger: logger,
		id:     id,
		state:  DetailLoading,
	}
}

// OnChange registers the callback invoked after every applied state change.
func (d *UserDetail) OnChange(fn func()) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

// Load fetches the user.
func (d *UserDetail) Load(ctx context.Context) error {
	d.mu.Lock()
	d.state = DetailLoading
	d.loadErr = nil
	d.mu.Unlock()

	user, err := d.client.GetUser(ctx, d.id)
	if err != nil {
		d.mu.Lock()
		d.state = DetailFailed
		d.loadErr = err
		d.mu.Unlock()
		d.notify()
		return fmt.Errorf("loading user %d: %w", d.id, err)
	}

	d.mu.Lock()
	d.state = DetailReady
	d.user = user
	d.mu.Unlock()
	d.notify()
	return nil
}

// State returns the controller lifecycle state.
func (d *UserDetail) State() DetailState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err returns the failure that put the controller in the failed state.
func (d *UserDetail) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadErr
}

// User returns the loaded user, or nil before a successful Load.
func (d *UserDetail) User() *api.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.user == nil {
		return nil
	}
	out := *d.user
	return &out
}

// Update applies a partial update and merges the server's returned record.
func (d *UserDetail) Update(ctx context.Context, upd api.UserUpdate) error {
	user, err := d.client.UpdateUser(ctx, d.id, upd)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.user = user
	d.mu.Unlock()
	d.notify()
	return nil
}

// SetRole changes the user's role.
func (d *UserDetail) SetRole(ctx context.Context, role api.Role) error {
	return d.Update(ctx, api.UserUpdate{Role: &role})
}

// ResetPassword sets a new password. The record itself does not change.
func (d *UserDetail) ResetPassword(ctx context.Context, newPassword string) error {
	return d.client.ResetPassword(ctx, d.id, newPassword)
}

// Delete deactivates the user and moves the controller to the deleted
// state.
func (d *UserDetail) Delete(ctx context.Context) error {
	if err := d.client.DeleteUser(ctx, d.id); err != nil {
		return err
	}
	d.mu.Lock()
	d.state = DetailDeleted
	d.user = nil
	d.mu.Unlock()
	d.notify()
	return nil
}

func (d *UserDetail) notify() {
	d.mu.Lock()
	fn := d.onChange
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}
