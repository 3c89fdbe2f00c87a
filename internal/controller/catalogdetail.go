package controller

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/csdesk/console-cs/internal/api"
)

// ProductDetail holds one product, its licenses, and its memos. Memos go
// through a MemoSource so the same memo logic serves licenses too.
type ProductDetail struct {
	client *api.Client
	logger *log.Logger
	id     int
	memos  *MemoPanel

	mu       sync.Mutex
	state    DetailState
	loadErr  error
	product  *api.Product
	licenses []api.License

	onChange func()
}

// NewProductDetail creates a detail controller for one product.
func NewProductDetail(client *api.Client, id int, logger *log.Logger) *ProductDetail {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &ProductDetail{
		client: client,
		logger: logger,
		id:     id,
		memos:  NewMemoPanel(client.ProductMemos(), id, logger),
		state:  DetailLoading,
	}
}

// OnChange registers the callback invoked after every applied state change.
func (d *ProductDetail) OnChange(fn func()) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
	d.memos.OnChange(fn)
}

// Memos returns the memo panel for this product.
func (d *ProductDetail) Memos() *MemoPanel { return d.memos }

// Load fetches the product, its licenses, and its memos concurrently.
func (d *ProductDetail) Load(ctx context.Context) error {
	d.mu.Lock()
	d.state = DetailLoading
	d.loadErr = nil
	d.mu.Unlock()

	var (
		product  *api.Product
		licenses []api.License
		errProd  error
		errLic   error
		errMemo  error
	)
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		product, errProd = d.client.GetProduct(ctx, d.id)
	}()
	go func() {
		defer wg.Done()
		licenses, errLic = d.client.ListProductLicenses(ctx, d.id)
	}()
	go func() {
		defer wg.Done()
		errMemo = d.memos.Load(ctx)
	}()
	wg.Wait()

	for _, err := range []error{errProd, errLic, errMemo} {
		if err != nil {
			d.mu.Lock()
			d.state = DetailFailed
			d.loadErr = err
			d.mu.Unlock()
			d.notify()
			return fmt.Errorf("loading product %d: %w", d.id, err)
		}
	}

	d.mu.Lock()
	d.state = DetailReady
	d.product = product
	d.licenses = licenses
	d.mu.Unlock()
	d.notify()
	return nil
}

// State returns the controller lifecycle state.
func (d *ProductDetail) State() DetailState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err returns the failure that put the controller in the failed state.
func (d *ProductDetail) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadErr
}

// Product returns the loaded product, or nil before a successful Load.
func (d *ProductDetail) Product() *api.Product {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.product == nil {
		return nil
	}
	out := *d.product
	return &out
}

// Licenses returns the licenses under this product.
func (d *ProductDetail) Licenses() []api.License {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]api.License, len(d.licenses))
	copy(out, d.licenses)
	return out
}

// AddLicense creates a license under this product and appends it locally.
func (d *ProductDetail) AddLicense(ctx context.Context, name, description string) error {
	lic, err := d.client.CreateLicense(ctx, d.id, name, description)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.licenses = append(d.licenses, *lic)
	d.mu.Unlock()
	d.notify()
	return nil
}

func (d *ProductDetail) notify() {
	d.mu.Lock()
	fn := d.onChange
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// LicenseDetail holds one license and its memos.
type LicenseDetail struct {
	client *api.Client
	logger *log.Logger
	id     int
	memos  *MemoPanel

	mu      sync.Mutex
	state   DetailState
	loadErr error
	license *api.License

	onChange func()
}

// NewLicenseDetail creates a detail controller for one license.
func NewLicenseDetail(client *api.Client, id int, logger *log.Logger) *LicenseDetail {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &LicenseDetail{
		client: client,
		logger: logger,
		id:     id,
		memos:  NewMemoPanel(client.LicenseMemos(), id, logger),
		state:  DetailLoading,
	}
}

// OnChange registers the callback invoked after every applied state change.
func (d *LicenseDetail) OnChange(fn func()) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
	d.memos.OnChange(fn)
}

// Memos returns the memo panel for this license.
func (d *LicenseDetail) Memos() *MemoPanel { return d.memos }

// Load fetches the license and its memos concurrently.
func (d *LicenseDetail) Load(ctx context.Context) error {
	d.mu.Lock()
	d.state = DetailLoading
	d.loadErr = nil
	d.mu.Unlock()

	var (
		license *api.License
		errLic  error
		errMemo error
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		license, errLic = d.client.GetLicense(ctx, d.id)
	}()
	go func() {
		defer wg.Done()
		errMemo = d.memos.Load(ctx)
	}()
	wg.Wait()

	for _, err := range []error{errLic, errMemo} {
		if err != nil {
			d.mu.Lock()
			d.state = DetailFailed
			d.loadErr = err
			d.mu.Unlock()
			d.notify()
			return fmt.Errorf("loading license %d: %w", d.id, err)
		}
	}

	d.mu.Lock()
	d.state = DetailReady
	d.license = license
	d.mu.Unlock()
	d.notify()
	return nil
}

// State returns the controller lifecycle state.
func (d *LicenseDetail) State() DetailState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err returns the failure that put the controller in the failed state.
func (d *LicenseDetail) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadErr
}

// License returns the loaded license, or nil before a successful Load.
func (d *LicenseDetail) License() *api.License {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.license == nil {
		return nil
	}
	out := *d.license
	return &out
}

func (d *LicenseDetail) notify() {
	d.mu.Lock()
	fn := d.onChange
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// MemoPanel manages the memo list attached to a product or license. The
// owning entity is identified only through the MemoSource, so the panel
// itself is entity-agnostic.
type MemoPanel struct {
	source  api.MemoSource
	ownerID int
	logger  *log.Logger

	mu    sync.Mutex
	memos []api.Memo

	onChange func()
}

// NewMemoPanel creates a memo panel backed by the given source.
func NewMemoPanel(source api.MemoSource, ownerID int, logger *log.Logger) *MemoPanel {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &MemoPanel{source: source, ownerID: ownerID, logger: logger}
}

// OnChange registers the callback invoked after every applied change.
func (p *MemoPanel) OnChange(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

// Load fetches the memo list.
func (p *MemoPanel) Load(ctx context.Context) error {
	memos, err := p.source.List(ctx, p.ownerID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.memos = memos
	p.mu.Unlock()
	p.notify()
	return nil
}

// Memos returns the current memo list.
func (p *MemoPanel) Memos() []api.Memo {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]api.Memo, len(p.memos))
	copy(out, p.memos)
	return out
}

// Add creates a memo and appends the server's copy locally.
func (p *MemoPanel) Add(ctx context.Context, content string) error {
	memo, err := p.source.Create(ctx, p.ownerID, content)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.memos = append(p.memos, *memo)
	p.mu.Unlock()
	p.notify()
	return nil
}

// Delete removes a memo optimistically and restores it if the server
// rejects the delete.
func (p *MemoPanel) Delete(ctx context.Context, memoID int) error {
	p.mu.Lock()
	idx := -1
	for i := range p.memos {
		if p.memos[i].ID == memoID {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.mu.Unlock()
		return fmt.Errorf("memo %d not found", memoID)
	}
	removed := p.memos[idx]
	p.memos = append(p.memos[:idx:idx], p.memos[idx+1:]...)
	p.mu.Unlock()
	p.notify()

	if err := p.source.Delete(ctx, memoID); err != nil {
		p.mu.Lock()
		pos := idx
		if pos > len(p.memos) {
			pos = len(p.memos)
		}
		p.memos = append(p.memos[:pos], append([]api.Memo{removed}, p.memos[pos:]...)...)
		p.mu.Unlock()
		p.notify()
		p.logger.Printf("Memo delete rolled back for memo %d: %v", memoID, err)
		return err
	}
	return nil
}

func (p *MemoPanel) notify() {
	p.mu.Lock()
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}
