package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/csdesk/console-cs/internal/api"
	"github.com/csdesk/console-cs/internal/controller"
)

// quoteListView is the paginated quote-request table with a detail pane.
type quoteListView struct {
	ui   *UI
	root *tview.Flex

	table  *tview.Table
	detail *tview.TextView
	footer *tview.TextView

	list   *controller.ListController[api.QuoteRequest]
	items  []api.QuoteRequest
	active *controller.QuoteRequestDetail

	statusFilter api.QuoteStatus
}

func newQuoteListView(ui *UI) *quoteListView {
	v := &quoteListView{ui: ui}

	v.list = controller.NewListController(ui.ctx, v.fetch, ui.listOptions())
	v.list.OnUpdate(v.onPage)
	v.list.OnError(func(err error) { ui.reportError(err) })

	v.table = tview.NewTable().SetSelectable(true, false).SetFixed(1, 0)
	v.table.SetBorder(true).SetTitle(" Quote requests ")
	v.table.SetSelectionChangedFunc(func(row, _ int) {
		if row >= 1 && row-1 < len(v.items) {
			v.loadDetail(v.items[row-1].ID)
		}
	})
	v.table.SetInputCapture(v.handleKey)

	v.detail = tview.NewTextView().SetDynamicColors(true).SetWordWrap(true)
	v.detail.SetBorder(true).SetTitle(" Detail ")

	v.footer = tview.NewTextView().SetDynamicColors(true)

	body := tview.NewFlex().
		AddItem(v.table, 0, 1, true).
		AddItem(v.detail, 0, 1, false)

	v.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, true).
		AddItem(v.footer, 1, 0, false)

	return v
}

func (v *quoteListView) fetch(ctx context.Context, crit controller.Criteria, page, pageSize int) (api.Page[api.QuoteRequest], error) {
	filters := api.QuoteFilters{
		Status: api.QuoteStatus(crit.Filters["status"]),
		Search: crit.Search,
	}
	return v.ui.client.ListQuoteRequests(ctx, filters, page, pageSize)
}

func (v *quoteListView) activate() {
	v.list.Refresh()
	v.ui.app.SetFocus(v.table)
	v.ui.setStatusDirect("[%s]d: mark done  o: reopen  a: assignees  c: comment  s: status filter  ←/→: page[-]", v.ui.theme.TagMuted)
}

func (v *quoteListView) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyLeft:
		v.list.PrevPage()
		return nil
	case tcell.KeyRight:
		v.list.NextPage()
		return nil
	}
	switch event.Rune() {
	case 'd':
		go v.setStatus(api.QuoteDone)
		return nil
	case 'o':
		go v.setStatus(api.QuoteOpen)
		return nil
	case 'c':
		v.promptComment()
		return nil
	case 'a':
		go v.openAssigneePicker()
		return nil
	case 's':
		v.cycleStatusFilter()
		return nil
	case 'R':
		v.list.Refresh()
		return nil
	}
	return event
}

func (v *quoteListView) cycleStatusFilter() {
	order := []api.QuoteStatus{"", api.QuoteOpen, api.QuoteDone}
	for i, s := range order {
		if s == v.statusFilter {
			v.statusFilter = order[(i+1)%len(order)]
			break
		}
	}
	v.list.SetFilter("status", string(v.statusFilter))
}

func (v *quoteListView) setStatus(status api.QuoteStatus) {
	detail := v.active
	if detail == nil {
		return
	}
	ctx, cancel := v.ui.requestCtx()
	defer cancel()
	if err := detail.SetStatus(ctx, status); err != nil {
		v.ui.reportError(err)
		return
	}
	v.ui.setStatus("[%s]Quote request marked %s[-]", v.ui.theme.TagSuccess, status)
	v.list.Refresh()
}

func (v *quoteListView) promptComment() {
	detail := v.active
	if detail == nil {
		return
	}
	promptText(v.ui, " New comment ", func(text string) {
		go func() {
			ctx, cancel := v.ui.requestCtx()
			defer cancel()
			if err := detail.AddComment(ctx, text, nil); err != nil {
				v.ui.reportError(err)
			}
		}()
	})
}

// openAssigneePicker shows a checkbox per assignable user. Saving
// replaces the quote request's assignee set.
func (v *quoteListView) openAssigneePicker() {
	detail := v.active
	if detail == nil {
		return
	}
	q := detail.QuoteRequest()
	if q == nil {
		return
	}

	ctx, cancel := v.ui.requestCtx()
	defer cancel()
	users, err := v.ui.client.Assignees(ctx)
	if err != nil {
		v.ui.reportError(err)
		return
	}

	current := make(map[int]bool, len(q.AssigneeIDs))
	for _, id := range q.AssigneeIDs {
		current[id] = true
	}

	v.ui.app.QueueUpdateDraw(func() {
		const pageName = "quote-assignees"
		checked := make(map[int]bool, len(users))
		form := tview.NewForm()
		for _, u := range users {
			u := u
			checked[u.ID] = current[u.ID]
			form.AddCheckbox(fmt.Sprintf("%s (%s)", u.Name, u.Role), current[u.ID],
				func(on bool) { checked[u.ID] = on })
		}
		closeForm := func() { v.ui.pages.RemovePage(pageName) }
		form.AddButton("Save", func() {
			ids := make([]int, 0, len(users))
			for _, u := range users {
				if checked[u.ID] {
					ids = append(ids, u.ID)
				}
			}
			closeForm()
			go func() {
				ctx, cancel := v.ui.requestCtx()
				defer cancel()
				if err := detail.SetAssignees(ctx, ids); err != nil {
					v.ui.reportError(err)
					return
				}
				v.ui.setStatus("[%s]Assignees updated[-]", v.ui.theme.TagSuccess)
				v.list.Refresh()
			}()
		})
		form.AddButton("Cancel", closeForm)
		form.SetCancelFunc(closeForm)
		form.SetBorder(true).SetTitle(fmt.Sprintf(" Assignees for quote request #%d ", q.ID))
		v.ui.pages.AddPage(pageName, centered(form, 50, len(users)*2+5), true, true)
		v.ui.app.SetFocus(form)
	})
}

func (v *quoteListView) loadDetail(id int) {
	detail := controller.NewQuoteRequestDetail(v.ui.client, id, v.ui.logger)
	v.active = detail
	detail.OnChange(func() {
		v.ui.app.QueueUpdateDraw(func() {
			if v.active == detail {
				v.renderDetail(detail)
			}
		})
	})
	go func() {
		ctx, cancel := v.ui.requestCtx()
		defer cancel()
		if err := detail.Load(ctx); err != nil {
			v.ui.logger.Printf("Quote request detail load failed: %v", err)
		}
	}()
}

func (v *quoteListView) renderDetail(detail *controller.QuoteRequestDetail) {
	t := v.ui.theme
	switch detail.State() {
	case controller.DetailLoading:
		v.detail.SetText(fmt.Sprintf("[%s]Loading...[-]", t.TagMuted))
		return
	case controller.DetailFailed:
		v.detail.SetText(fmt.Sprintf("[%s]Failed to load quote request: %v[-]", t.TagError, detail.Err()))
		return
	}
	q := detail.QuoteRequest()
	if q == nil {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s]Status:[-] %s\n", t.TagMuted, q.Status)
	if q.Organization != "" {
		fmt.Fprintf(&b, "[%s]Organization:[-] %s\n", t.TagMuted, tview.Escape(q.Organization))
	}
	if q.DeliveryDate != nil {
		fmt.Fprintf(&b, "[%s]Delivery:[-] %s\n", t.TagMuted, q.DeliveryDate.Format("2006-01-02"))
	}
	if len(q.FailedProducts) > 0 {
		fmt.Fprintf(&b, "[%s]Unmatched products:[-] %s\n", t.TagWarning, strings.Join(q.FailedProducts, ", "))
	}
	fmt.Fprintf(&b, "\n%s\n", tview.Escape(q.QuoteRequestText))

	comments := detail.Comments()
	if len(comments) > 0 {
		fmt.Fprintf(&b, "\n[%s::b]Comments[-:-:-]\n", t.TagAccent)
		var walk func(cs []api.Comment, depth int)
		walk = func(cs []api.Comment, depth int) {
			indent := strings.Repeat("  ", depth)
			for _, c := range cs {
				fmt.Fprintf(&b, "%s[%s]%s:[-] %s\n", indent, t.TagMuted, tview.Escape(c.AuthorName), tview.Escape(c.Content))
				walk(c.Replies, depth+1)
			}
		}
		walk(comments, 0)
	}
	v.detail.SetText(b.String())
}

func (v *quoteListView) onPage(items []api.QuoteRequest, pg controller.PaginationState) {
	v.ui.app.QueueUpdateDraw(func() {
		v.items = items
		v.renderTable()
		v.footer.SetText(fmt.Sprintf(" [%s]Page %d/%d  (%d quote requests)[-]",
			v.ui.theme.TagMuted, pg.Page, pg.TotalPages, pg.Total))
	})
}

func (v *quoteListView) renderTable() {
	t := v.ui.theme
	v.table.Clear()
	headers := []string{"ID", "Request", "Status", "Organization", "Created"}
	for col, h := range headers {
		v.table.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(t.TableHeader).
			SetBackgroundColor(t.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}
	for i, q := range v.items {
		row := i + 1
		statusColor := t.StatusOpen
		if q.Status == api.QuoteDone {
			statusColor = t.StatusDone
		}
		v.table.SetCell(row, 0, tview.NewTableCell(fmt.Sprintf("#%d", q.ID)).SetTextColor(t.TableRowMuted))
		v.table.SetCell(row, 1, tview.NewTableCell(truncate(q.QuoteRequestText, 50)).SetTextColor(t.TableRow).SetExpansion(2))
		v.table.SetCell(row, 2, tview.NewTableCell(string(q.Status)).SetTextColor(statusColor))
		v.table.SetCell(row, 3, tview.NewTableCell(q.Organization).SetTextColor(t.TableRowMuted))
		v.table.SetCell(row, 4, tview.NewTableCell(q.CreatedAt.Format("2006-01-02 15:04")).SetTextColor(t.TableRowMuted))
	}
	if v.table.GetRowCount() > 1 {
		v.table.Select(1, 0)
	}
}

func (v *quoteListView) applyTheme(t Theme) {
	v.table.SetSelectedStyle(tcell.StyleDefault.Background(t.SelectionBg).Foreground(t.SelectionFg))
	v.footer.SetBackgroundColor(t.Surface)
	v.renderTable()
}
