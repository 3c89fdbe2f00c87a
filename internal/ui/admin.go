package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/csdesk/console-cs/internal/api"
	"github.com/csdesk/console-cs/internal/controller"
)

// userListView is the admin-only user management table. The sidebar hides
// it for non-admins; the backend rejects the calls regardless.
type userListView struct {
	ui   *UI
	root *tview.Flex

	search *tview.InputField
	table  *tview.Table
	detail *tview.TextView
	footer *tview.TextView

	list   *controller.ListController[api.User]
	items  []api.User
	active *controller.UserDetail

	roleFilter api.Role
}

func newUserListView(ui *UI) *userListView {
	v := &userListView{ui: ui}

	v.list = controller.NewListController(ui.ctx, v.fetch, ui.listOptions())
	v.list.OnUpdate(v.onPage)
	v.list.OnError(func(err error) { ui.reportError(err) })

	v.search = tview.NewInputField().SetLabel(" Search: ").SetFieldWidth(40)
	v.search.SetChangedFunc(func(text string) { v.list.SetSearch(text) })

	v.table = tview.NewTable().SetSelectable(true, false).SetFixed(1, 0)
	v.table.SetBorder(true).SetTitle(" Users ")
	v.table.SetSelectionChangedFunc(func(row, _ int) {
		if row >= 1 && row-1 < len(v.items) {
			v.loadDetail(v.items[row-1].ID)
		}
	})
	v.table.SetInputCapture(v.handleKey)

	v.detail = tview.NewTextView().SetDynamicColors(true).SetWordWrap(true)
	v.detail.SetBorder(true).SetTitle(" User ")

	v.footer = tview.NewTextView().SetDynamicColors(true)

	body := tview.NewFlex().
		AddItem(v.table, 0, 2, true).
		AddItem(v.detail, 0, 1, false)

	v.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.search, 1, 0, false).
		AddItem(body, 0, 1, true).
		AddItem(v.footer, 1, 0, false)

	return v
}

func (v *userListView) fetch(ctx context.Context, crit controller.Criteria, page, pageSize int) (api.Page[api.User], error) {
	filters := api.UserFilters{
		Search: crit.Search,
		Role:   api.Role(crit.Filters["role"]),
	}
	return v.ui.client.ListUsers(ctx, filters, page, pageSize)
}

func (v *userListView) activate() {
	v.list.Refresh()
	v.ui.app.SetFocus(v.table)
	v.ui.setStatusDirect("[%s]n: new user  e: edit role  p: reset password  x: delete  f: role filter  /: search[-]", v.ui.theme.TagMuted)
}

func (v *userListView) handleKey(event *tcell.EventKey) *tcell.EventKey {
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
		v.promptNewUser()
		return nil
	case 'e':
		v.cycleSelectedRole()
		return nil
	case 'p':
		v.promptResetPassword()
		return nil
	case 'x':
		v.confirmDelete()
		return nil
	case 'f':
		v.cycleRoleFilter()
		return nil
	case 'R':
		v.list.Refresh()
		return nil
	}
	return event
}

func (v *userListView) selectedUser() *api.User {
	row, _ := v.table.GetSelection()
	if row >= 1 && row-1 < len(v.items) {
		return &v.items[row-1]
	}
	return nil
}

func (v *userListView) cycleRoleFilter() {
	order := []api.Role{"", api.RoleCS, api.RoleEngineer, api.RoleAdmin}
	for i, r := range order {
		if r == v.roleFilter {
			v.roleFilter = order[(i+1)%len(order)]
			break
		}
	}
	v.list.SetFilter("role", string(v.roleFilter))
}

func (v *userListView) loadDetail(id int) {
	detail := controller.NewUserDetail(v.ui.client, id, v.ui.logger)
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
			v.ui.logger.Printf("User detail load failed: %v", err)
		}
	}()
}

func (v *userListView) renderDetail(detail *controller.UserDetail) {
	t := v.ui.theme
	switch detail.State() {
	case controller.DetailLoading:
		v.detail.SetText(fmt.Sprintf("[%s]Loading...[-]", t.TagMuted))
		return
	case controller.DetailFailed:
		v.detail.SetText(fmt.Sprintf("[%s]Failed to load user: %v[-]", t.TagError, detail.Err()))
		return
	case controller.DetailDeleted:
		v.detail.SetText(fmt.Sprintf("[%s]Deactivated[-]", t.TagMuted))
		return
	}
	u := detail.User()
	if u == nil {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]%s[-:-:-]\n", t.TagTextPrimary, tview.Escape(u.Name))
	fmt.Fprintf(&b, "[%s]Email:[-] %s\n", t.TagMuted, tview.Escape(u.Email))
	fmt.Fprintf(&b, "[%s]Role:[-]  %s\n", t.TagMuted, u.Role)
	fmt.Fprintf(&b, "[%s]Since:[-] %s\n", t.TagMuted, u.CreatedAt.Format(time.DateOnly))
	v.detail.SetText(b.String())
}

// cycleSelectedRole promotes/demotes the selected user through the three
// roles, one keypress per step.
func (v *userListView) cycleSelectedRole() {
	u := v.selectedUser()
	detail := v.active
	if u == nil || detail == nil {
		return
	}
	order := []api.Role{api.RoleCS, api.RoleEngineer, api.RoleAdmin}
	next := order[0]
	for i, r := range order {
		if r == u.Role {
			next = order[(i+1)%len(order)]
			break
		}
	}
	id := u.ID
	go func() {
		ctx, cancel := v.ui.requestCtx()
		defer cancel()
		if err := detail.SetRole(ctx, next); err != nil {
			v.ui.reportError(err)
			return
		}
		v.ui.setStatus("[%s]User #%d is now %s[-]", v.ui.theme.TagSuccess, id, next)
		v.list.Refresh()
	}()
}

func (v *userListView) promptNewUser() {
	const pageName = "user-create"
	var name, email, password string
	role := api.RoleCS

	form := tview.NewForm().
		AddInputField("Name", "", 40, nil, func(t string) { name = t }).
		AddInputField("Email", "", 40, nil, func(t string) { email = t }).
		AddPasswordField("Password", "", 40, '*', func(t string) { password = t }).
		AddDropDown("Role", []string{string(api.RoleCS), string(api.RoleEngineer), string(api.RoleAdmin)}, 0,
			func(option string, _ int) { role = api.Role(option) })

	closeForm := func() { v.ui.pages.RemovePage(pageName) }
	form.AddButton("Create", func() {
		data := api.UserCreate{
			Name:     strings.TrimSpace(name),
			Email:    strings.TrimSpace(email),
			Password: password,
			Role:     role,
		}
		if data.Name == "" || data.Email == "" || data.Password == "" {
			v.ui.setStatusDirect("[%s]Name, email, and password are required[-]", v.ui.theme.TagWarning)
			return
		}
		closeForm()
		go func() {
			ctx, cancel := v.ui.requestCtx()
			defer cancel()
			created, err := v.ui.client.CreateUser(ctx, data)
			if err != nil {
				v.ui.reportError(err)
				return
			}
			v.ui.setStatus("[%s]User %s created[-]", v.ui.theme.TagSuccess, created.Email)
			v.list.Refresh()
		}()
	})
	form.AddButton("Cancel", closeForm)
	form.SetCancelFunc(closeForm)
	form.SetBorder(true).SetTitle(" New user ")

	v.ui.pages.AddPage(pageName, centered(form, 60, 13), true, true)
	v.ui.app.SetFocus(form)
}

func (v *userListView) promptResetPassword() {
	u := v.selectedUser()
	detail := v.active
	if u == nil || detail == nil {
		return
	}
	id := u.ID
	promptText(v.ui, fmt.Sprintf(" New password for %s ", u.Email), func(text string) {
		go func() {
			ctx, cancel := v.ui.requestCtx()
			defer cancel()
			if err := detail.ResetPassword(ctx, text); err != nil {
				v.ui.reportError(err)
				return
			}
			v.ui.setStatus("[%s]Password reset for user #%d[-]", v.ui.theme.TagSuccess, id)
		}()
	})
}

func (v *userListView) confirmDelete() {
	u := v.selectedUser()
	if u == nil {
		return
	}
	if me := v.ui.session.User(); me != nil && me.ID == u.ID {
		v.ui.setStatusDirect("[%s]You cannot delete your own account[-]", v.ui.theme.TagWarning)
		return
	}
	detail := v.active
	if detail == nil {
		return
	}
	id := u.ID
	modal := tview.NewModal().
		SetText(fmt.Sprintf("Delete user %s?", u.Email)).
		AddButtons([]string{"Cancel", "Delete"}).
		SetDoneFunc(func(_ int, label string) {
			v.ui.pages.RemovePage("user-delete-confirm")
			if label != "Delete" {
				return
			}
			go func() {
				ctx, cancel := v.ui.requestCtx()
				defer cancel()
				if err := detail.Delete(ctx); err != nil {
					v.ui.reportError(err)
					return
				}
				v.ui.setStatus("[%s]User #%d deleted[-]", v.ui.theme.TagSuccess, id)
				v.list.Refresh()
			}()
		})
	v.ui.pages.AddPage("user-delete-confirm", modal, true, true)
}

func (v *userListView) onPage(items []api.User, pg controller.PaginationState) {
	v.ui.app.QueueUpdateDraw(func() {
		v.items = items
		v.renderTable()
		v.footer.SetText(fmt.Sprintf(" [%s]Page %d/%d  (%d users)[-]",
			v.ui.theme.TagMuted, pg.Page, pg.TotalPages, pg.Total))
	})
}

func (v *userListView) renderTable() {
	t := v.ui.theme
	v.table.Clear()
	headers := []string{"ID", "Name", "Email", "Role", "Created"}
	for col, h := range headers {
		v.table.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(t.TableHeader).
			SetBackgroundColor(t.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}
	for i, u := range v.items {
		row := i + 1
		roleColor := t.TableRow
		if u.Role == api.RoleAdmin {
			roleColor = t.Warning
		}
		v.table.SetCell(row, 0, tview.NewTableCell(fmt.Sprintf("#%d", u.ID)).SetTextColor(t.TableRowMuted))
		v.table.SetCell(row, 1, tview.NewTableCell(u.Name).SetTextColor(t.TableRow).SetExpansion(1))
		v.table.SetCell(row, 2, tview.NewTableCell(u.Email).SetTextColor(t.TableRow).SetExpansion(1))
		v.table.SetCell(row, 3, tview.NewTableCell(string(u.Role)).SetTextColor(roleColor))
		v.table.SetCell(row, 4, tview.NewTableCell(u.CreatedAt.Format(time.DateOnly)).SetTextColor(t.TableRowMuted))
	}
	if v.table.GetRowCount() > 1 {
		v.table.Select(1, 0)
	}
}

func (v *userListView) applyTheme(t Theme) {
	v.search.SetFieldBackgroundColor(t.Surface).SetFieldTextColor(t.TextPrimary).SetLabelColor(t.TextMuted)
	v.table.SetSelectedStyle(tcell.StyleDefault.Background(t.SelectionBg).Foreground(t.SelectionFg))
	v.footer.SetBackgroundColor(t.Surface)
	v.renderTable()
}

// centered wraps a primitive in spacer flexes.
func centered(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(tview.NewBox(), 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(tview.NewBox(), 0, 1, false).
			AddItem(p, height, 0, true).
			AddItem(tview.NewBox(), 0, 1, false), width, 0, true).
		AddItem(tview.NewBox(), 0, 1, false)
}
