package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/csdesk/console-cs/internal/api"
)

// alertsView lists unread notifications. Enter marks one read and, when
// it references a case, jumps straight to that case.
type alertsView struct {
	ui   *UI
	root *tview.Flex

	table *tview.Table
	items []api.Notification
}

func newAlertsView(ui *UI) *alertsView {
	v := &alertsView{ui: ui}

	v.table = tview.NewTable().SetSelectable(true, false).SetFixed(1, 0)
	v.table.SetBorder(true).SetTitle(" Notifications ")
	v.table.SetSelectedFunc(func(row, _ int) {
		if row >= 1 && row-1 < len(v.items) {
			v.open(v.items[row-1])
		}
	})
	v.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'm':
			if row, _ := v.table.GetSelection(); row >= 1 && row-1 < len(v.items) {
				v.markRead(v.items[row-1].ID)
			}
			return nil
		case 'R':
			if v.ui.notifier != nil {
				v.ui.notifier.Kick()
			}
			return nil
		}
		return event
	})

	v.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.table, 0, 1, true)

	return v
}

func (v *alertsView) activate() {
	v.refresh()
	v.ui.app.SetFocus(v.table)
	v.ui.setStatusDirect("[%s]Enter: open & mark read  m: mark read  R: poll now[-]", v.ui.theme.TagMuted)
}

// refresh repaints from the notifier's current unread set. Runs on the UI
// goroutine.
func (v *alertsView) refresh() {
	if v.ui.notifier == nil {
		return
	}
	v.items = v.ui.notifier.Unread()
	v.renderTable()
}

func (v *alertsView) open(n api.Notification) {
	v.markRead(n.ID)
	if n.CaseID != nil {
		v.ui.openCaseDetail(*n.CaseID)
	}
}

func (v *alertsView) markRead(id int) {
	go func() {
		ctx, cancel := v.ui.requestCtx()
		defer cancel()
		if err := v.ui.notifier.MarkRead(ctx, id); err != nil {
			v.ui.reportError(err)
			return
		}
		v.ui.app.QueueUpdateDraw(v.refresh)
	}()
}

func (v *alertsView) renderTable() {
	t := v.ui.theme
	v.table.Clear()
	headers := []string{"Time", "Type", "Message"}
	for col, h := range headers {
		v.table.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(t.TableHeader).
			SetBackgroundColor(t.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}
	for i, n := range v.items {
		row := i + 1
		typeColor := t.Accent
		if n.Type == api.NotifyReminder {
			typeColor = t.Warning
		}
		v.table.SetCell(row, 0, tview.NewTableCell(n.CreatedAt.Format("01-02 15:04")).SetTextColor(t.TableRowMuted))
		v.table.SetCell(row, 1, tview.NewTableCell(string(n.Type)).SetTextColor(typeColor))
		v.table.SetCell(row, 2, tview.NewTableCell(n.Message).SetTextColor(t.TableRow).SetExpansion(2))
	}
	if len(v.items) == 0 {
		v.table.SetCell(1, 0, tview.NewTableCell(fmt.Sprintf("[%s]No unread notifications[-]", t.TagMuted)).SetSelectable(false))
	} else if v.table.GetRowCount() > 1 {
		v.table.Select(1, 0)
	}
}

func (v *alertsView) applyTheme(t Theme) {
	v.table.SetSelectedStyle(tcell.StyleDefault.Background(t.SelectionBg).Foreground(t.SelectionFg))
	v.renderTable()
}
