package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/csdesk/console-cs/internal/api"
)

// loginView is the email/password form shown while anonymous. A failed
// login keeps the email so only the password needs retyping.
type loginView struct {
	ui     *UI
	root   *tview.Flex
	form   *tview.Form
	notice *tview.TextView
}

func newLoginView(ui *UI) *loginView {
	v := &loginView{ui: ui}

	v.notice = tview.NewTextView().SetDynamicColors(true).SetTextAlign(tview.AlignCenter)

	v.form = tview.NewForm().
		AddInputField("Email", "", 40, nil, nil).
		AddPasswordField("Password", "", 40, '*', nil).
		AddButton("Sign in", v.submit).
		AddButton("Quit", func() { v.ui.Stop() })
	v.form.SetBorder(true).SetTitle(" console-cs sign in ")

	inner := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewBox(), 0, 1, false).
		AddItem(v.notice, 1, 0, false).
		AddItem(v.form, 11, 0, true).
		AddItem(tview.NewBox(), 0, 2, false)

	v.root = tview.NewFlex().
		AddItem(tview.NewBox(), 0, 1, false).
		AddItem(inner, 60, 0, true).
		AddItem(tview.NewBox(), 0, 1, false)

	return v
}

func (v *loginView) submit() {
	email := strings.TrimSpace(v.form.GetFormItemByLabel("Email").(*tview.InputField).GetText())
	password := v.form.GetFormItemByLabel("Password").(*tview.InputField).GetText()
	if email == "" || password == "" {
		v.setNoticeDirect("[%s]Email and password are required[-]", v.ui.theme.TagWarning)
		return
	}

	v.setNoticeDirect("[%s]Signing in...[-]", v.ui.theme.TagMuted)
	go func() {
		ctx, cancel := v.ui.requestCtx()
		defer cancel()
		_, err := v.ui.session.Login(ctx, email, password)
		v.ui.app.QueueUpdateDraw(func() {
			switch {
			case err == nil:
				// session.OnChange flips the page; nothing to do here
			case errors.Is(err, api.ErrInvalidCredentials):
				v.clearPassword()
				v.setNoticeDirect("[%s]Invalid email or password[-]", v.ui.theme.TagError)
			case api.IsTransient(err):
				v.setNoticeDirect("[%s]Cannot reach the server: %v[-]", v.ui.theme.TagWarning, err)
			default:
				v.setNoticeDirect("[%s]%v[-]", v.ui.theme.TagError, err)
			}
		})
	}()
}

func (v *loginView) reset() {
	v.clearPassword()
	v.notice.SetText("")
}

func (v *loginView) clearPassword() {
	v.form.GetFormItemByLabel("Password").(*tview.InputField).SetText("")
}

func (v *loginView) setNoticeDirect(format string, args ...interface{}) {
	v.notice.SetText(fmt.Sprintf(format, args...))
}

func (v *loginView) applyTheme(t Theme) {
	v.form.SetFieldBackgroundColor(t.Surface).
		SetFieldTextColor(t.TextPrimary).
		SetButtonBackgroundColor(t.SelectionBg).
		SetButtonTextColor(t.TextPrimary).
		SetLabelColor(t.TextMuted)
}
