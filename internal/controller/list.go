// Package controller implements the client-side fetch logic shared by every
// entity in the app: the paginated list state machine and the per-entity
// detail controllers with optimistic mutations.
package controller

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/csdesk/console-cs/internal/api"
	"github.com/csdesk/console-cs/internal/poll"
)

// Criteria is the filter/sort/search state of a list. Any change to it
// resets the page to 1 before the next fetch.
type Criteria struct {
	Filters map[string]string
	Search  string
	Sort    string
	Order   string
}

func (c Criteria) clone() Criteria {
	out := c
	out.Filters = make(map[string]string, len(c.Filters))
	for k, v := range c.Filters {
		out.Filters[k] = v
	}
	return out
}

// Equal reports whether two criteria describe the same query.
func (c Criteria) Equal(other Criteria) bool {
	if c.Search != other.Search || c.Sort != other.Sort || c.Order != other.Order {
		return false
	}
	if len(c.Filters) != len(other.Filters) {
		return false
	}
	for k, v := range c.Filters {
		if other.Filters[k] != v {
			return false
		}
	}
	return true
}

// PaginationState mirrors the server's list envelope. TotalPages is always
// at least 1 so page clamping has a floor.
type PaginationState struct {
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// FetchPageFunc fetches one page of a list for the given criteria.
type FetchPageFunc[T any] func(ctx context.Context, crit Criteria, page, pageSize int) (api.Page[T], error)

// ListOptions configures a list controller.
type ListOptions struct {
	PageSize       int
	SearchDebounce time.Duration
	Logger         *log.Logger
}

// ListController is the generic page/filter/sort state machine reused by
// the case, product, user, and quote-request lists. Free-text search input
// is debounced; discrete changes (filters, sort, page moves) fetch
// immediately. Stale responses are discarded: only the response matching
// the most recently issued criteria snapshot is applied.
type ListController[T any] struct {
	fetch  FetchPageFunc[T]
	logger *log.Logger
	ctx    context.Context

	mu         sync.Mutex
	crit       Criteria
	page       int
	pageSize   int
	total      int
	totalPages int
	items      []T
	loading    bool

	// generation tags each in-flight fetch with the criteria+page snapshot
	// it was issued for; resolutions with a stale generation are dropped.
	generation uint64

	searchDebounce *poll.Debouncer[string]

	onUpdate func(items []T, pg PaginationState)
	onError  func(error)
}

// NewListController creates a list controller. ctx bounds every fetch the
// controller issues; cancelling it stops all in-flight work.
func NewListController[T any](ctx context.Context, fetch FetchPageFunc[T], opts ListOptions) *ListController[T] {
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.SearchDebounce <= 0 {
		opts.SearchDebounce = 400 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}

	lc := &ListController[T]{
		fetch:      fetch,
		logger:     opts.Logger,
		ctx:        ctx,
		crit:       Criteria{Filters: make(map[string]string)},
		page:       1,
		pageSize:   opts.PageSize,
		totalPages: 1,
	}
	lc.searchDebounce = poll.NewDebouncer(opts.SearchDebounce, lc.applySearch)
	return lc
}

// SetSearchDebounce changes the quiet period applied to subsequent search
// input. Used by config hot-reload.
func (lc *ListController[T]) SetSearchDebounce(d time.Duration) {
	if d > 0 {
		lc.searchDebounce.SetDelay(d)
	}
}

// OnUpdate registers the callback receiving each applied page. It runs on
// the fetch goroutine; UI callers re-queue onto their own loop.
func (lc *ListController[T]) OnUpdate(fn func(items []T, pg PaginationState)) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.onUpdate = fn
}

// OnError registers the callback for fetch failures. Stale failures (a
// newer fetch has been issued) are not reported.
func (lc *ListController[T]) OnError(fn func(error)) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.onError = fn
}

// SetFilter sets one discrete filter and fetches immediately. An empty
// value removes the filter.
func (lc *ListController[T]) SetFilter(key, value string) {
	lc.mu.Lock()
	if value == "" {
		delete(lc.crit.Filters, key)
	} else {
		lc.crit.Filters[key] = value
	}
	lc.page = 1
	snapshot := lc.beginFetchLocked()
	lc.mu.Unlock()
	go lc.runFetch(snapshot)
}

// SetSort sets the sort column and order and fetches immediately.
func (lc *ListController[T]) SetSort(sort, order string) {
	lc.mu.Lock()
	lc.crit.Sort = sort
	lc.crit.Order = order
	lc.page = 1
	snapshot := lc.beginFetchLocked()
	lc.mu.Unlock()
	go lc.runFetch(snapshot)
}

// SetSearch feeds the free-text search box. The fetch is issued after the
// quiet period; typing again before it elapses replaces the pending value.
func (lc *ListController[T]) SetSearch(search string) {
	lc.searchDebounce.Set(search)
}

func (lc *ListController[T]) applySearch(search string) {
	lc.mu.Lock()
	if lc.crit.Search == search {
		lc.mu.Unlock()
		return
	}
	lc.crit.Search = search
	lc.page = 1
	snapshot := lc.beginFetchLocked()
	lc.mu.Unlock()
	lc.runFetch(snapshot)
}

// SetFilterNow sets a filter without issuing a fetch. Headless callers use
// the quiet setters and follow up with one synchronous Load.
func (lc *ListController[T]) SetFilterNow(key, value string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if value == "" {
		delete(lc.crit.Filters, key)
	} else {
		lc.crit.Filters[key] = value
	}
	lc.page = 1
}

// SetSearchNow applies a search term immediately, bypassing the debounce
// and without issuing a fetch.
func (lc *ListController[T]) SetSearchNow(search string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.crit.Search != search {
		lc.crit.Search = search
		lc.page = 1
	}
}

// SetPage jumps to a page without fetching. No upper clamp is applied here
// since the total is unknown until the next Load; the server-reported total
// snaps the page back into range then.
func (lc *ListController[T]) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	lc.mu.Lock()
	lc.page = page
	lc.mu.Unlock()
}

// GoToPage navigates to a page, clamped to [1, totalPages]. A request that
// clamps onto the current page issues no fetch.
func (lc *ListController[T]) GoToPage(page int) {
	lc.mu.Lock()
	if page < 1 {
		page = 1
	}
	if page > lc.totalPages {
		page = lc.totalPages
	}
	if page == lc.page {
		lc.mu.Unlock()
		return
	}
	lc.page = page
	snapshot := lc.beginFetchLocked()
	lc.mu.Unlock()
	go lc.runFetch(snapshot)
}

// NextPage advances one page when possible.
func (lc *ListController[T]) NextPage() {
	lc.GoToPage(lc.Pagination().Page + 1)
}

// PrevPage goes back one page when possible.
func (lc *ListController[T]) PrevPage() {
	lc.GoToPage(lc.Pagination().Page - 1)
}

// Refresh re-fetches the current page with the current criteria.
func (lc *ListController[T]) Refresh() {
	lc.mu.Lock()
	snapshot := lc.beginFetchLocked()
	lc.mu.Unlock()
	go lc.runFetch(snapshot)
}

// Load fetches the current page synchronously. Used by the headless CLI,
// which has no event loop to receive OnUpdate on.
func (lc *ListController[T]) Load(ctx context.Context) ([]T, PaginationState, error) {
	lc.mu.Lock()
	snapshot := lc.beginFetchLocked()
	lc.mu.Unlock()

	page, err := lc.fetch(ctx, snapshot.crit, snapshot.page, snapshot.pageSize)
	if err != nil {
		lc.finishFetch(snapshot, api.Page[T]{}, err)
		return nil, lc.Pagination(), err
	}
	lc.finishFetch(snapshot, page, nil)
	return lc.Items(), lc.Pagination(), nil
}

// Items returns the most recently applied page of items.
func (lc *ListController[T]) Items() []T {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	out := make([]T, len(lc.items))
	copy(out, lc.items)
	return out
}

// Pagination returns the current pagination state.
func (lc *ListController[T]) Pagination() PaginationState {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return PaginationState{
		Page:       lc.page,
		PageSize:   lc.pageSize,
		Total:      lc.total,
		TotalPages: lc.totalPages,
	}
}

// Criteria returns a copy of the current criteria.
func (lc *ListController[T]) Criteria() Criteria {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.crit.clone()
}

// Loading reports whether a fetch is in flight.
func (lc *ListController[T]) Loading() bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.loading
}

// Close cancels the pending search debounce. In-flight fetches resolve
// against the controller context.
func (lc *ListController[T]) Close() {
	lc.searchDebounce.Stop()
}

// fetchSnapshot tags one in-flight request with the state it was issued for.
type fetchSnapshot struct {
	crit       Criteria
	page       int
	pageSize   int
	generation uint64
}

func (lc *ListController[T]) beginFetchLocked() fetchSnapshot {
	lc.generation++
	lc.loading = true
	return fetchSnapshot{
		crit:       lc.crit.clone(),
		page:       lc.page,
		pageSize:   lc.pageSize,
		generation: lc.generation,
	}
}

func (lc *ListController[T]) runFetch(snapshot fetchSnapshot) {
	page, err := lc.fetch(lc.ctx, snapshot.crit, snapshot.page, snapshot.pageSize)
	lc.finishFetch(snapshot, page, err)
}

// finishFetch applies a resolved fetch unless a newer one has been issued
// since (last-request-wins by criteria snapshot, not arrival order).
func (lc *ListController[T]) finishFetch(snapshot fetchSnapshot, page api.Page[T], err error) {
	lc.mu.Lock()
	if snapshot.generation != lc.generation {
		lc.mu.Unlock()
		lc.logger.Printf("Discarding stale list response (generation %d, current %d)", snapshot.generation, lc.generation)
		return
	}
	lc.loading = false

	if err != nil {
		onError := lc.onError
		lc.mu.Unlock()
		if onError != nil {
			onError(err)
		}
		return
	}

	lc.items = page.Items
	lc.total = page.Total
	lc.totalPages = page.TotalPages
	if lc.totalPages < 1 {
		lc.totalPages = 1
	}
	if lc.page > lc.totalPages {
		// The result set shrank under us; snap back into range.
		lc.page = lc.totalPages
	}
	items := make([]T, len(lc.items))
	copy(items, lc.items)
	pg := PaginationState{Page: lc.page, PageSize: lc.pageSize, Total: lc.total, TotalPages: lc.totalPages}
	onUpdate := lc.onUpdate
	lc.mu.Unlock()

	if onUpdate != nil {
		onUpdate(items, pg)
	}
}
