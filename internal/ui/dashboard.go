package ui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/csdesk/console-cs/internal/api"
)

// dashboardView shows the team statistics reports next to the signed-in
// user's own progress. Refreshed on every activation.
type dashboardView struct {
	ui   *UI
	root *tview.Flex

	team *tview.TextView
	mine *tview.TextView

	mu       sync.Mutex
	byStatus []api.StatByStatus
	byAssign []api.StatByAssignee
	byTime   *api.StatByTime
	progress *api.MyProgress
	loadErr  error
}

func newDashboardView(ui *UI) *dashboardView {
	v := &dashboardView{ui: ui}

	v.team = tview.NewTextView().SetDynamicColors(true)
	v.team.SetBorder(true).SetTitle(" Team statistics ")

	v.mine = tview.NewTextView().SetDynamicColors(true)
	v.mine.SetBorder(true).SetTitle(" My progress ")

	v.root = tview.NewFlex().
		AddItem(v.team, 0, 2, true).
		AddItem(v.mine, 0, 1, false)
	v.root.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == 'R' {
			go v.load()
			return nil
		}
		return event
	})

	return v
}

func (v *dashboardView) activate() {
	go v.load()
	v.ui.app.SetFocus(v.team)
	v.ui.setStatusDirect("[%s]R: refresh[-]", v.ui.theme.TagMuted)
}

// load fetches all four reports in parallel; a failed leg leaves its
// section blank rather than discarding the others.
func (v *dashboardView) load() {
	ctx, cancel := v.ui.requestCtx()
	defer cancel()

	var (
		wg       sync.WaitGroup
		byStatus []api.StatByStatus
		byAssign []api.StatByAssignee
		byTime   *api.StatByTime
		progress *api.MyProgress
		firstErr error
		errMu    sync.Mutex
	)
	record := func(err error) {
		if err == nil {
			return
		}
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	wg.Add(4)
	go func() {
		defer wg.Done()
		rows, err := v.ui.client.StatisticsByStatus(ctx)
		record(err)
		byStatus = rows
	}()
	go func() {
		defer wg.Done()
		rows, err := v.ui.client.StatisticsByAssignee(ctx)
		record(err)
		byAssign = rows
	}()
	go func() {
		defer wg.Done()
		t, err := v.ui.client.StatisticsByTime(ctx)
		record(err)
		byTime = t
	}()
	go func() {
		defer wg.Done()
		p, err := v.ui.client.GetMyProgress(ctx, "")
		record(err)
		progress = p
	}()
	wg.Wait()

	v.mu.Lock()
	v.byStatus = byStatus
	v.byAssign = byAssign
	v.byTime = byTime
	v.progress = progress
	v.loadErr = firstErr
	v.mu.Unlock()

	if firstErr != nil {
		v.ui.logger.Printf("Dashboard load failed: %v", firstErr)
	}
	v.ui.app.QueueUpdateDraw(v.render)
}

func (v *dashboardView) render() {
	v.mu.Lock()
	defer v.mu.Unlock()
	t := v.ui.theme

	var b strings.Builder
	if v.loadErr != nil {
		fmt.Fprintf(&b, "[%s]Some reports failed to load: %v[-]\n\n", t.TagWarning, v.loadErr)
	}
	fmt.Fprintf(&b, "[%s::b]Cases by status[-:-:-]\n", t.TagAccent)
	if len(v.byStatus) == 0 {
		fmt.Fprintf(&b, "  [%s]no data[-]\n", t.TagMuted)
	}
	for _, row := range v.byStatus {
		fmt.Fprintf(&b, "  %-12s %d\n", row.Status, row.Count)
	}

	fmt.Fprintf(&b, "\n[%s::b]Cases by assignee[-:-:-]\n", t.TagAccent)
	if len(v.byAssign) == 0 {
		fmt.Fprintf(&b, "  [%s]no data[-]\n", t.TagMuted)
	}
	for _, row := range v.byAssign {
		fmt.Fprintf(&b, "  %-20s [%s]open[-] %-4d [%s]in progress[-] %-4d [%s]done[-] %d\n",
			tview.Escape(row.AssigneeName),
			t.TagMuted, row.OpenCount, t.TagMuted, row.InProgressCount, t.TagMuted, row.DoneCount)
	}

	fmt.Fprintf(&b, "\n[%s::b]Resolution time[-:-:-]\n", t.TagAccent)
	if v.byTime == nil {
		fmt.Fprintf(&b, "  [%s]no data[-]\n", t.TagMuted)
	} else {
		if v.byTime.AvgHours != nil {
			fmt.Fprintf(&b, "  Average: %.1f hours\n", *v.byTime.AvgHours)
		} else {
			fmt.Fprintf(&b, "  Average: [%s]n/a[-]\n", t.TagMuted)
		}
		fmt.Fprintf(&b, "  Completed: %d\n", v.byTime.TotalCompleted)
	}
	v.team.SetText(b.String())

	var m strings.Builder
	if v.progress == nil {
		fmt.Fprintf(&m, "[%s]no data[-]\n", t.TagMuted)
	} else {
		fmt.Fprintf(&m, "[%s]Open:[-]        %d\n", t.TagMuted, v.progress.OpenCount)
		fmt.Fprintf(&m, "[%s]In progress:[-] %d\n", t.TagMuted, v.progress.InProgressCount)
		fmt.Fprintf(&m, "[%s]Done:[-]        %d\n", t.TagMuted, v.progress.DoneCount)
		fmt.Fprintf(&m, "[%s]Cancelled:[-]   %d\n", t.TagMuted, v.progress.CancelCount)
	}
	v.mine.SetText(m.String())
}

func (v *dashboardView) applyTheme(Theme) {
	v.render()
}
