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

// caseListView is the searchable, filterable, paginated case table.
type caseListView struct {
	ui   *UI
	root *tview.Flex

	search *tview.InputField
	table  *tview.Table
	footer *tview.TextView

	list  *controller.ListController[api.Case]
	items []api.Case

	statusFilter   api.CaseStatus
	priorityFilter api.Priority
}

func newCaseListView(ui *UI) *caseListView {
	v := &caseListView{ui: ui}

	v.list = controller.NewListController(ui.ctx, v.fetch, ui.listOptions())
	v.list.OnUpdate(v.onPage)
	v.list.OnError(func(err error) { ui.reportError(err) })

	v.search = tview.NewInputField().SetLabel(" Search: ").SetFieldWidth(40)
	v.search.SetChangedFunc(func(text string) { v.list.SetSearch(text) })

	v.table = tview.NewTable().SetSelectable(true, false).SetFixed(1, 0)
	v.table.SetBorder(true).SetTitle(" Cases ")
	v.table.SetSelectedFunc(func(row, _ int) {
		if row >= 1 && row-1 < len(v.items) {
			v.ui.openCaseDetail(v.items[row-1].ID)
		}
	})
	v.table.SetInputCapture(v.handleKey)

	v.footer = tview.NewTextView().SetDynamicColors(true)

	v.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.search, 1, 0, false).
		AddItem(v.table, 0, 1, true).
		AddItem(v.footer, 1, 0, false)

	return v
}

// fetch adapts the generic criteria to the case list endpoint.
func (v *caseListView) fetch(ctx context.Context, crit controller.Criteria, page, pageSize int) (api.Page[api.Case], error) {
	filters := api.CaseFilters{
		Status:   api.CaseStatus(crit.Filters["status"]),
		Priority: api.Priority(crit.Filters["priority"]),
		Search:   crit.Search,
		Sort:     crit.Sort,
		Order:    crit.Order,
	}
	return v.ui.client.ListCases(ctx, filters, page, pageSize)
}

func (v *caseListView) activate() {
	v.list.Refresh()
	v.ui.app.SetFocus(v.table)
	v.ui.setStatusDirect("[%s]Enter: open  n: new case  s: status filter  r: priority filter  /: search  ←/→: page[-]", v.ui.theme.TagMuted)
}

func (v *caseListView) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyLeft:
		v.list.PrevPage()
		return nil
	case tcell.KeyRight:
		v.list.NextPage()
		return nil
	}
	switch event.Rune() {
	case '/':
		v.ui.app.SetFocus(v.search)
		return nil
	case 'n':
		v.ui.openCaseCreate()
		return nil
	case 's':
		v.cycleStatusFilter()
		return nil
	case 'r':
		v.cyclePriorityFilter()
		return nil
	case 'R':
		v.list.Refresh()
		return nil
	}
	return event
}

// cycleStatusFilter steps through all -> OPEN -> IN_PROGRESS -> DONE -> CANCEL.
func (v *caseListView) cycleStatusFilter() {
	order := []api.CaseStatus{"", api.CaseOpen, api.CaseInProgress, api.CaseDone, api.CaseCancel}
	for i, s := range order {
		if s == v.statusFilter {
			v.statusFilter = order[(i+1)%len(order)]
			break
		}
	}
	v.list.SetFilter("status", string(v.statusFilter))
}

func (v *caseListView) cyclePriorityFilter() {
	order := []api.Priority{"", api.PriorityHigh, api.PriorityMedium, api.PriorityLow}
	for i, p := range order {
		if p == v.priorityFilter {
			v.priorityFilter = order[(i+1)%len(order)]
			break
		}
	}
	v.list.SetFilter("priority", string(v.priorityFilter))
}

// onPage renders an applied page. Runs off the UI goroutine.
func (v *caseListView) onPage(items []api.Case, pg controller.PaginationState) {
	v.ui.app.QueueUpdateDraw(func() {
		v.items = items
		v.renderTable()
		v.renderFooter(pg)
	})
}

func (v *caseListView) renderTable() {
	t := v.ui.theme
	v.table.Clear()
	headers := []string{"ID", "Title", "Status", "Priority", "Requester", "Tags", "Created"}
	for col, h := range headers {
		v.table.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(t.TableHeader).
			SetBackgroundColor(t.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}
	for i, c := range v.items {
		row := i + 1
		v.table.SetCell(row, 0, tview.NewTableCell(fmt.Sprintf("#%d", c.ID)).SetTextColor(t.TableRowMuted))
		v.table.SetCell(row, 1, tview.NewTableCell(c.Title).SetTextColor(t.TableRow).SetExpansion(2))
		v.table.SetCell(row, 2, tview.NewTableCell(string(c.Status)).SetTextColor(v.statusColor(c.Status)))
		v.table.SetCell(row, 3, tview.NewTableCell(string(c.Priority)).SetTextColor(v.priorityColor(c.Priority)))
		v.table.SetCell(row, 4, tview.NewTableCell(c.Requester).SetTextColor(t.TableRow))
		v.table.SetCell(row, 5, tview.NewTableCell(strings.Join(c.Tags, ",")).SetTextColor(t.TableRowMuted))
		v.table.SetCell(row, 6, tview.NewTableCell(c.CreatedAt.Format("2006-01-02 15:04")).SetTextColor(t.TableRowMuted))
	}
	if v.table.GetRowCount() > 1 {
		v.table.Select(1, 0)
	}
}

func (v *caseListView) renderFooter(pg controller.PaginationState) {
	t := v.ui.theme
	filters := ""
	if v.statusFilter != "" {
		filters += fmt.Sprintf("  status=%s", v.statusFilter)
	}
	if v.priorityFilter != "" {
		filters += fmt.Sprintf("  priority=%s", v.priorityFilter)
	}
	v.footer.SetText(fmt.Sprintf(" [%s]Page %d/%d  (%d cases)%s[-]",
		t.TagMuted, pg.Page, pg.TotalPages, pg.Total, filters))
}

func (v *caseListView) statusColor(s api.CaseStatus) tcell.Color {
	t := v.ui.theme
	switch s {
	case api.CaseOpen:
		return t.StatusOpen
	case api.CaseInProgress:
		return t.StatusInProgress
	case api.CaseDone:
		return t.StatusDone
	case api.CaseCancel:
		return t.StatusCancel
	default:
		return t.TableRow
	}
}

func (v *caseListView) priorityColor(p api.Priority) tcell.Color {
	t := v.ui.theme
	switch p {
	case api.PriorityHigh:
		return t.Error
	case api.PriorityMedium:
		return t.Warning
	default:
		return t.TableRowMuted
	}
}

func (v *caseListView) applyTheme(t Theme) {
	v.search.SetFieldBackgroundColor(t.Surface).SetFieldTextColor(t.TextPrimary).SetLabelColor(t.TextMuted)
	v.table.SetSelectedStyle(tcell.StyleDefault.Background(t.SelectionBg).Foreground(t.SelectionFg))
	v.footer.SetBackgroundColor(t.Surface)
	v.renderTable()
}
