// Package ui implements the terminal user interface: login screen, case
// browsing and editing, catalog, quote requests, admin user management,
// and the notification status line.
package ui

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/csdesk/console-cs/internal/api"
	"github.com/csdesk/console-cs/internal/controller"
	"github.com/csdesk/console-cs/internal/notify"
	"github.com/csdesk/console-cs/internal/session"
)

// Page names for the root pages container.
const (
	pageLogin     = "login"
	pageMain      = "main"
	viewCases     = "cases"
	viewCatalog   = "catalog"
	viewQuotes    = "quotes"
	viewUsers     = "users"
	viewAlerts    = "alerts"
	viewDashboard = "dashboard"
)

// UI represents the terminal user interface
type UI struct {
	app      *tview.Application
	client   *api.Client
	session  *session.Manager
	notifier *notify.Notifier
	logger   *log.Logger

	// Layout components
	pages     *tview.Pages
	mainPages *tview.Pages
	layout    *tview.Flex
	appTitle  *tview.TextView
	sidebar   *tview.List
	statusBar *tview.TextView

	// Views
	login     *loginView
	cases     *caseListView
	catalog   *catalogView
	quotes    *quoteListView
	users     *userListView
	alerts    *alertsView
	dashboard *dashboardView
	activeID  string

	// Theme state
	theme        Theme
	themeName    string
	hasTrueColor bool

	// List tuning handed to every list view's controller.
	pageSize       int
	searchDebounce time.Duration

	unreadCount int

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc
}

// Options configures the UI.
type Options struct {
	ThemeName      string
	PageSize       int
	SearchDebounce time.Duration
	Logger         *log.Logger
}

// NewUI creates a new terminal user interface wired to the given session
// and notifier. The session decides which page is visible; the UI never
// inspects the token itself.
func NewUI(ctx context.Context, client *api.Client, sess *session.Manager, notifier *notify.Notifier, opts Options) *UI {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[UI] ", log.LstdFlags)
	}

	uiCtx, cancel := context.WithCancel(ctx)

	ui := &UI{
		app:            tview.NewApplication(),
		client:         client,
		session:        sess,
		notifier:       notifier,
		logger:         logger,
		ctx:            uiCtx,
		cancel:         cancel,
		hasTrueColor:   detectTrueColor(),
		pageSize:       opts.PageSize,
		searchDebounce: opts.SearchDebounce,
	}
	ui.theme, ui.themeName = themeByName(opts.ThemeName)

	ui.setupLayout()
	ui.setupKeybindings()
	ui.applyTheme()

	sess.OnChange(ui.onSessionChange)
	if notifier != nil {
		notifier.OnUnreadChange(ui.onUnreadChange)
	}

	return ui
}

// Start runs the TUI event loop until the context is cancelled or the user
// quits. Blocking.
func (ui *UI) Start(ctx context.Context) error {
	ui.logger.Println("Starting TUI application")

	go func() {
		select {
		case <-ctx.Done():
		case <-ui.ctx.Done():
		}
		ui.app.QueueUpdateDraw(func() { ui.app.Stop() })
	}()

	ui.showForState(ui.session.State())
	return ui.app.SetRoot(ui.pages, true).EnableMouse(true).Run()
}

// Stop tears down the UI.
func (ui *UI) Stop() {
	ui.cancel()
	ui.app.Stop()
}

func (ui *UI) setupLayout() {
	ui.appTitle = tview.NewTextView().SetDynamicColors(true)
	ui.statusBar = tview.NewTextView().SetDynamicColors(true)
	ui.statusBar.SetBorder(false)

	ui.sidebar = tview.NewList().ShowSecondaryText(false)
	ui.sidebar.SetBorder(true).SetTitle(" Views ")

	ui.mainPages = tview.NewPages()

	ui.login = newLoginView(ui)
	ui.cases = newCaseListView(ui)
	ui.catalog = newCatalogView(ui)
	ui.quotes = newQuoteListView(ui)
	ui.alerts = newAlertsView(ui)
	ui.users = newUserListView(ui)
	ui.dashboard = newDashboardView(ui)

	ui.mainPages.AddPage(viewCases, ui.cases.root, true, true)
	ui.mainPages.AddPage(viewCatalog, ui.catalog.root, true, false)
	ui.mainPages.AddPage(viewQuotes, ui.quotes.root, true, false)
	ui.mainPages.AddPage(viewAlerts, ui.alerts.root, true, false)
	ui.mainPages.AddPage(viewUsers, ui.users.root, true, false)
	ui.mainPages.AddPage(viewDashboard, ui.dashboard.root, true, false)
	ui.activeID = viewCases

	body := tview.NewFlex().
		AddItem(ui.sidebar, 22, 0, false).
		AddItem(ui.mainPages, 0, 1, true)

	ui.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.appTitle, 1, 0, false).
		AddItem(body, 0, 1, true).
		AddItem(ui.statusBar, 1, 0, false)

	ui.pages = tview.NewPages()
	ui.pages.AddPage(pageLogin, ui.login.root, true, true)
	ui.pages.AddPage(pageMain, ui.layout, true, false)

	ui.rebuildSidebar()
	ui.updateTitle()
}

// rebuildSidebar fills the navigation list. The Users entry only exists
// for admins; the server enforces this too, the UI just avoids offering a
// dead door.
func (ui *UI) rebuildSidebar() {
	ui.sidebar.Clear()
	add := func(label, id string, shortcut rune) {
		ui.sidebar.AddItem(label, "", shortcut, func() { ui.switchView(id) })
	}
	add("Cases", viewCases, 'c')
	add("Products", viewCatalog, 'p')
	add("Quote Requests", viewQuotes, 'q')
	add("Notifications", viewAlerts, 'n')
	add("Dashboard", viewDashboard, 'd')
	if u := ui.session.User(); u != nil && u.IsAdmin() {
		add("Users", viewUsers, 'u')
	}
}

func (ui *UI) switchView(id string) {
	ui.activeID = id
	ui.mainPages.SwitchToPage(id)
	switch id {
	case viewCases:
		ui.cases.activate()
	case viewCatalog:
		ui.catalog.activate()
	case viewQuotes:
		ui.quotes.activate()
	case viewAlerts:
		ui.alerts.activate()
	case viewUsers:
		ui.users.activate()
	case viewDashboard:
		ui.dashboard.activate()
	}
}

func (ui *UI) setupKeybindings() {
	// Mouse input counts as activity too; without this a mouse-driven user
	// would be idle-logged-out mid-click.
	ui.app.SetMouseCapture(func(event *tcell.EventMouse, action tview.MouseAction) (*tcell.EventMouse, tview.MouseAction) {
		ui.session.Touch()
		return event, action
	})

	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// Every keystroke counts as activity for the idle logout timer.
		ui.session.Touch()

		if !ui.session.IsAuthenticated() {
			return event
		}

		switch event.Key() {
		case tcell.KeyCtrlL:
			ui.confirmLogout()
			return nil
		case tcell.KeyCtrlT:
			ui.toggleTheme()
			return nil
		}
		return event
	})
}

func (ui *UI) toggleTheme() {
	if ui.themeName == "dark" {
		ui.theme, ui.themeName = themeLight(), "light"
	} else {
		ui.theme, ui.themeName = themeDark(), "dark"
	}
	ui.applyTheme()
}

// SetTheme switches to the named theme from any goroutine. Unknown names
// fall back to the default, matching startup.
func (ui *UI) SetTheme(name string) {
	ui.app.QueueUpdateDraw(func() {
		ui.setThemeDirect(name)
	})
}

// setThemeDirect must run on the UI goroutine.
func (ui *UI) setThemeDirect(name string) {
	ui.theme, ui.themeName = themeByName(name)
	ui.applyTheme()
}

// SetSearchDebounce applies a new search quiet period to every list view.
func (ui *UI) SetSearchDebounce(d time.Duration) {
	if d <= 0 {
		return
	}
	ui.searchDebounce = d
	ui.cases.list.SetSearchDebounce(d)
	ui.catalog.list.SetSearchDebounce(d)
	ui.quotes.list.SetSearchDebounce(d)
	ui.users.list.SetSearchDebounce(d)
}

// listOptions returns the controller options shared by the list views.
func (ui *UI) listOptions() controller.ListOptions {
	return controller.ListOptions{
		PageSize:       ui.pageSize,
		SearchDebounce: ui.searchDebounce,
		Logger:         ui.logger,
	}
}

func (ui *UI) applyTheme() {
	t := ui.theme
	tview.Styles.PrimitiveBackgroundColor = t.Bg
	tview.Styles.ContrastBackgroundColor = t.Surface
	tview.Styles.BorderColor = t.Border
	tview.Styles.TitleColor = t.Header
	tview.Styles.PrimaryTextColor = t.TextPrimary
	tview.Styles.SecondaryTextColor = t.TextMuted

	ui.appTitle.SetBackgroundColor(t.TableHeaderBg)
	ui.statusBar.SetBackgroundColor(t.Surface)
	ui.sidebar.SetMainTextColor(t.TextPrimary).
		SetSelectedBackgroundColor(t.SelectionBg).
		SetSelectedTextColor(t.SelectionFg)

	ui.login.applyTheme(t)
	ui.cases.applyTheme(t)
	ui.catalog.applyTheme(t)
	ui.quotes.applyTheme(t)
	ui.alerts.applyTheme(t)
	ui.users.applyTheme(t)
	ui.dashboard.applyTheme(t)
	ui.updateTitle()
}

// onSessionChange reacts to auth transitions from any goroutine.
func (ui *UI) onSessionChange(state session.State, user *api.User) {
	ui.app.QueueUpdateDraw(func() {
		ui.showForState(state)
	})
}

func (ui *UI) showForState(state session.State) {
	switch state {
	case session.StateAuthenticated:
		ui.rebuildSidebar()
		ui.updateTitle()
		ui.pages.SwitchToPage(pageMain)
		ui.switchView(viewCases)
	case session.StateAnonymous:
		ui.login.reset()
		ui.pages.SwitchToPage(pageLogin)
		ui.app.SetFocus(ui.login.form)
	default:
		// loading / unknown: keep whatever is showing
	}
}

func (ui *UI) onUnreadChange(count int) {
	ui.app.QueueUpdateDraw(func() {
		ui.unreadCount = count
		ui.updateTitle()
	})
}

func (ui *UI) updateTitle() {
	who := ""
	if u := ui.session.User(); u != nil {
		who = fmt.Sprintf("  [%s]%s <%s>[-]", ui.theme.TagMuted, u.Name, u.Email)
	}
	badge := ""
	if ui.unreadCount > 0 {
		badge = fmt.Sprintf("  [%s]● %d unread[-]", ui.theme.TagWarning, ui.unreadCount)
	}
	ui.appTitle.SetText(fmt.Sprintf(" [%s::b]console-cs[-:-:-]%s%s", ui.theme.TagAccent, who, badge))
}

// Announce implements notify.Announcer: new notifications surface on the
// status bar without stealing focus.
func (ui *UI) Announce(n api.Notification) {
	ui.app.QueueUpdateDraw(func() {
		ui.setStatusDirect("[%s]● %s[-]", ui.theme.TagWarning, n.Message)
		ui.alerts.refresh()
	})
}

// setStatus updates the status bar from any goroutine.
func (ui *UI) setStatus(format string, args ...interface{}) {
	ui.app.QueueUpdateDraw(func() {
		ui.setStatusDirect(format, args...)
	})
}

// setStatusDirect must run on the UI goroutine.
func (ui *UI) setStatusDirect(format string, args ...interface{}) {
	ui.statusBar.SetText(" " + fmt.Sprintf(format, args...) + " ")
}

// reportError renders an error the way a support agent should read it:
// validation problems verbatim, transient problems as retry hints.
func (ui *UI) reportError(err error) {
	switch {
	case err == nil:
		return
	case api.IsTransient(err):
		ui.setStatus("[%s]Backend unreachable, retrying may help: %v[-]", ui.theme.TagWarning, err)
	default:
		if detail := api.ValidationDetail(err); detail != "" {
			ui.setStatus("[%s]%s[-]", ui.theme.TagError, detail)
			return
		}
		ui.setStatus("[%s]%v[-]", ui.theme.TagError, err)
	}
}

func (ui *UI) confirmLogout() {
	modal := tview.NewModal().
		SetText("Log out?").
		AddButtons([]string{"Cancel", "Log out"}).
		SetDoneFunc(func(_ int, label string) {
			ui.pages.RemovePage("logout-confirm")
			if label == "Log out" {
				go ui.session.Logout()
			}
		})
	ui.pages.AddPage("logout-confirm", modal, true, true)
}

// requestCtx returns a bounded context for one user-triggered request.
func (ui *UI) requestCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(ui.ctx, 30*time.Second)
}
