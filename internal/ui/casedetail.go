package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/csdesk/console-cs/internal/api"
	"github.com/csdesk/console-cs/internal/controller"
	"github.com/csdesk/console-cs/internal/poll"
)

// openCaseDetail replaces the main view with a full-screen case detail
// page. Esc returns to the case list.
func (ui *UI) openCaseDetail(caseID int) {
	v := newCaseDetailView(ui, caseID)
	ui.pages.AddPage("case-detail", v.root, true, true)
	go func() {
		ctx, cancel := ui.requestCtx()
		defer cancel()
		if err := v.ctrl.Load(ctx); err != nil {
			ui.reportError(err)
		}
	}()
}

type caseDetailView struct {
	ui     *UI
	root   *tview.Flex
	caseID int

	ctrl *controller.CaseDetail

	info      *tview.TextView
	comments  *tview.TreeView
	checklist *tview.List
}

func newCaseDetailView(ui *UI, caseID int) *caseDetailView {
	v := &caseDetailView{ui: ui, caseID: caseID}
	v.ctrl = controller.NewCaseDetail(ui.client, caseID, ui.logger)
	v.ctrl.OnChange(func() { ui.app.QueueUpdateDraw(v.render) })

	v.info = tview.NewTextView().SetDynamicColors(true).SetWordWrap(true)
	v.info.SetBorder(true).SetTitle(fmt.Sprintf(" Case #%d ", caseID))

	rootNode := tview.NewTreeNode("Comments")
	v.comments = tview.NewTreeView().SetRoot(rootNode).SetCurrentNode(rootNode)
	v.comments.SetBorder(true).SetTitle(" Comments ")

	v.checklist = tview.NewList().ShowSecondaryText(false)
	v.checklist.SetBorder(true).SetTitle(" Checklist ")
	v.checklist.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		items := v.ctrl.Checklist()
		if index < len(items) {
			go v.toggleChecklist(items[index].ID)
		}
	})

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.comments, 0, 2, false).
		AddItem(v.checklist, 0, 1, false)

	body := tview.NewFlex().
		AddItem(v.info, 0, 1, true).
		AddItem(right, 0, 1, false)

	v.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, true)

	v.root.SetInputCapture(v.handleKey)
	return v
}

func (v *caseDetailView) close() {
	v.ui.pages.RemovePage("case-detail")
	v.ui.cases.list.Refresh()
}

func (v *caseDetailView) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() == tcell.KeyEscape {
		v.close()
		return nil
	}
	switch event.Rune() {
	case '1':
		go v.setStatus(api.CaseOpen)
		return nil
	case '2':
		go v.setStatus(api.CaseInProgress)
		return nil
	case '3':
		go v.setStatus(api.CaseDone)
		return nil
	case '4':
		go v.setStatus(api.CaseCancel)
		return nil
	case 'c':
		v.promptComment(nil)
		return nil
	case 'a':
		v.promptChecklistItem()
		return nil
	case 'x':
		if v.comments.HasFocus() {
			v.deleteSelectedComment()
			return nil
		}
	case 'S':
		go v.showSimilar()
		return nil
	case 'D':
		v.confirmDelete()
		return nil
	}
	switch event.Key() {
	case tcell.KeyTab:
		v.cycleFocus()
		return nil
	}
	return event
}

func (v *caseDetailView) cycleFocus() {
	switch {
	case v.info.HasFocus():
		v.ui.app.SetFocus(v.comments)
	case v.comments.HasFocus():
		v.ui.app.SetFocus(v.checklist)
	default:
		v.ui.app.SetFocus(v.info)
	}
}

func (v *caseDetailView) setStatus(status api.CaseStatus) {
	ctx, cancel := v.ui.requestCtx()
	defer cancel()
	if err := v.ctrl.SetStatus(ctx, status); err != nil {
		v.ui.reportError(err)
		return
	}
	v.ui.setStatus("[%s]Status set to %s[-]", v.ui.theme.TagSuccess, status)
}

func (v *caseDetailView) toggleChecklist(itemID int) {
	ctx, cancel := v.ui.requestCtx()
	defer cancel()
	if err := v.ctrl.ToggleChecklist(ctx, itemID); err != nil {
		v.ui.reportError(err)
	}
}

// showSimilar lists cases resembling this one on the status bar, so an
// agent can spot a duplicate before working it.
func (v *caseDetailView) showSimilar() {
	ctx, cancel := v.ui.requestCtx()
	defer cancel()
	matches, err := v.ui.client.SimilarCasesByID(ctx, v.caseID)
	if err != nil {
		v.ui.reportError(err)
		return
	}
	v.ui.app.QueueUpdateDraw(func() {
		if len(matches) == 0 {
			v.ui.setStatusDirect("[%s]No similar cases[-]", v.ui.theme.TagMuted)
			return
		}
		parts := make([]string, 0, len(matches))
		for _, m := range matches {
			parts = append(parts, fmt.Sprintf("#%d %s", m.ID, m.Title))
		}
		v.ui.setStatusDirect("[%s]Similar: %s[-]", v.ui.theme.TagMuted, strings.Join(parts, "  |  "))
	})
}

func (v *caseDetailView) promptComment(parentID *int) {
	title := " New comment "
	if parentID != nil {
		title = fmt.Sprintf(" Reply to #%d ", *parentID)
	}
	promptText(v.ui, title, func(content string) {
		go func() {
			ctx, cancel := v.ui.requestCtx()
			defer cancel()
			if err := v.ctrl.AddComment(ctx, content, parentID); err != nil {
				v.ui.reportError(err)
			}
		}()
	})
}

func (v *caseDetailView) promptChecklistItem() {
	promptText(v.ui, " New checklist item ", func(content string) {
		go func() {
			ctx, cancel := v.ui.requestCtx()
			defer cancel()
			if err := v.ctrl.AddChecklistItem(ctx, content); err != nil {
				v.ui.reportError(err)
			}
		}()
	})
}

func (v *caseDetailView) confirmDelete() {
	modal := tview.NewModal().
		SetText("Delete this case? This cannot be undone.").
		AddButtons([]string{"Cancel", "Delete"}).
		SetDoneFunc(func(_ int, label string) {
			v.ui.pages.RemovePage("case-delete-confirm")
			if label != "Delete" {
				return
			}
			go func() {
				ctx, cancel := v.ui.requestCtx()
				defer cancel()
				if err := v.ctrl.Delete(ctx); err != nil {
					v.ui.reportError(err)
					return
				}
				v.ui.app.QueueUpdateDraw(v.close)
			}()
		})
	v.ui.pages.AddPage("case-delete-confirm", modal, true, true)
}

// render repaints the three panes from controller state. Runs on the UI
// goroutine.
func (v *caseDetailView) render() {
	t := v.ui.theme
	switch v.ctrl.State() {
	case controller.DetailFailed:
		v.info.SetText(fmt.Sprintf("[%s]Failed to load case: %v[-]", t.TagError, v.ctrl.Err()))
		return
	case controller.DetailLoading:
		v.info.SetText(fmt.Sprintf("[%s]Loading...[-]", t.TagMuted))
		return
	case controller.DetailDeleted:
		return
	}
	c := v.ctrl.Case()
	if c == nil {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]%s[-:-:-]\n\n", t.TagTextPrimary, tview.Escape(c.Title))
	fmt.Fprintf(&b, "[%s]Status:[-] %s   [%s]Priority:[-] %s\n", t.TagMuted, c.Status, t.TagMuted, c.Priority)
	fmt.Fprintf(&b, "[%s]Requester:[-] %s\n", t.TagMuted, tview.Escape(c.Requester))
	if c.Organization != "" {
		fmt.Fprintf(&b, "[%s]Organization:[-] %s\n", t.TagMuted, tview.Escape(c.Organization))
	}
	if len(c.Tags) > 0 {
		fmt.Fprintf(&b, "[%s]Tags:[-] %s\n", t.TagMuted, strings.Join(c.Tags, ", "))
	}
	fmt.Fprintf(&b, "[%s]Created:[-] %s\n", t.TagMuted, c.CreatedAt.Format(time.RFC1123))
	if c.CompletedAt != nil {
		fmt.Fprintf(&b, "[%s]Completed:[-] %s\n", t.TagMuted, c.CompletedAt.Format(time.RFC1123))
	}
	fmt.Fprintf(&b, "\n%s\n", tview.Escape(c.Content))
	fmt.Fprintf(&b, "\n[%s]1-4: status  c: comment  x: delete comment  a: checklist  S: similar  D: delete case  Esc: back[-]", t.TagMuted)
	v.info.SetText(b.String())

	v.renderComments()
	v.renderChecklist()
}

func (v *caseDetailView) renderComments() {
	t := v.ui.theme
	root := tview.NewTreeNode(fmt.Sprintf("[%s]Comments[-]", t.TagMuted))
	var attach func(parent *tview.TreeNode, comments []api.Comment)
	attach = func(parent *tview.TreeNode, comments []api.Comment) {
		for i := range comments {
			c := comments[i]
			label := fmt.Sprintf("[%s]%s[-] [%s]%s[-]  %s",
				t.TagAccent, tview.Escape(c.AuthorName),
				t.TagMuted, c.CreatedAt.Format("01-02 15:04"),
				tview.Escape(c.Content))
			node := tview.NewTreeNode(label).SetReference(c).SetExpanded(true)
			parent.AddChild(node)
			attach(node, c.Replies)
		}
	}
	attach(root, v.ctrl.Comments())
	v.comments.SetRoot(root).SetCurrentNode(root)
	v.comments.SetSelectedFunc(func(node *tview.TreeNode) {
		if c, ok := node.GetReference().(api.Comment); ok {
			id := c.ID
			v.promptComment(&id)
		}
	})
}

// deleteSelectedComment removes the highlighted comment. Author-or-admin
// only; the backend enforces the same rule.
func (v *caseDetailView) deleteSelectedComment() {
	node := v.comments.GetCurrentNode()
	if node == nil {
		return
	}
	c, ok := node.GetReference().(api.Comment)
	if !ok {
		return
	}
	if !controller.CanDeleteComment(v.ui.session.User(), c) {
		v.ui.setStatusDirect("[%s]Only the author or an admin can delete this comment[-]", v.ui.theme.TagWarning)
		return
	}
	go func() {
		ctx, cancel := v.ui.requestCtx()
		defer cancel()
		if err := v.ctrl.DeleteComment(ctx, c.ID); err != nil {
			v.ui.reportError(err)
		}
	}()
}

func (v *caseDetailView) renderChecklist() {
	t := v.ui.theme
	v.checklist.Clear()
	for _, item := range v.ctrl.Checklist() {
		mark := "[ ]"
		color := t.TagTextPrimary
		if item.IsDone {
			mark = "[x]"
			color = t.TagMuted
		}
		v.checklist.AddItem(fmt.Sprintf("[%s]%s %s[-]", color, mark, tview.Escape(item.Content)), "", 0, nil)
	}
}

// promptText shows a one-field modal form and calls submit with the
// trimmed, non-empty value.
func promptText(ui *UI, title string, submit func(text string)) {
	const pageName = "text-prompt"
	input := tview.NewInputField().SetLabel(" > ").SetFieldWidth(60)
	form := tview.NewForm().AddFormItem(input)
	form.AddButton("Save", func() {
		text := strings.TrimSpace(input.GetText())
		ui.pages.RemovePage(pageName)
		if text != "" {
			submit(text)
		}
	})
	form.AddButton("Cancel", func() { ui.pages.RemovePage(pageName) })
	form.SetBorder(true).SetTitle(title)
	form.SetCancelFunc(func() { ui.pages.RemovePage(pageName) })

	modal := tview.NewFlex().
		AddItem(tview.NewBox(), 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(tview.NewBox(), 0, 1, false).
			AddItem(form, 7, 0, true).
			AddItem(tview.NewBox(), 0, 1, false), 70, 0, true).
		AddItem(tview.NewBox(), 0, 1, false)
	ui.pages.AddPage(pageName, modal, true, true)
	ui.app.SetFocus(input)
}

// openCaseCreate shows the new-case form. While the agent types, similar
// resolved cases and suggested tags appear beside the form so duplicate
// work surfaces before the case exists.
func (ui *UI) openCaseCreate() {
	const pageName = "case-create"

	similar := tview.NewTextView().SetDynamicColors(true).SetWordWrap(true)
	similar.SetBorder(true).SetTitle(" Similar cases ")

	var title, content, requester, organization, tags string
	priority := api.PriorityMedium

	refreshSimilar := poll.NewDebouncer(600*time.Millisecond, func(struct{}) {
		if title == "" && content == "" {
			return
		}
		ctx, cancel := ui.requestCtx()
		defer cancel()
		matches, err := ui.client.SimilarCases(ctx, title, content, nil)
		if err != nil {
			ui.logger.Printf("Similar case lookup failed: %v", err)
			return
		}
		suggested, err := ui.client.SuggestTags(ctx, title, content)
		if err != nil {
			ui.logger.Printf("Tag suggestion failed: %v", err)
		}
		ui.app.QueueUpdateDraw(func() {
			var b strings.Builder
			for _, m := range matches {
				fmt.Fprintf(&b, "[%s]#%d[-] %s [%s](%s)[-]\n",
					ui.theme.TagAccent, m.ID, tview.Escape(m.Title), ui.theme.TagMuted, m.Status)
			}
			if len(suggested) > 0 {
				fmt.Fprintf(&b, "\n[%s]Suggested tags:[-] %s", ui.theme.TagMuted, strings.Join(suggested, ", "))
			}
			if b.Len() == 0 {
				b.WriteString("No similar cases found")
			}
			similar.SetText(b.String())
		})
	})

	// Prefix completion for the tag the user is currently typing.
	completeTags := poll.NewDebouncer(300*time.Millisecond, func(prefix string) {
		if prefix == "" {
			return
		}
		ctx, cancel := ui.requestCtx()
		defer cancel()
		matches, err := ui.client.SearchTags(ctx, prefix)
		if err != nil || len(matches) == 0 {
			return
		}
		ui.app.QueueUpdateDraw(func() {
			ui.setStatusDirect("[%s]Tags: %s[-]", ui.theme.TagMuted, strings.Join(matches, ", "))
		})
	})

	form := tview.NewForm().
		AddInputField("Title", "", 50, nil, func(text string) {
			title = text
			refreshSimilar.Set(struct{}{})
		}).
		AddTextArea("Content", "", 50, 6, 0, func(text string) {
			content = text
			refreshSimilar.Set(struct{}{})
		}).
		AddInputField("Requester", "", 50, nil, func(text string) { requester = text }).
		AddInputField("Organization", "", 50, nil, func(text string) { organization = text }).
		AddDropDown("Priority", []string{string(api.PriorityHigh), string(api.PriorityMedium), string(api.PriorityLow)}, 1,
			func(option string, _ int) { priority = api.Priority(option) }).
		AddInputField("Tags (comma separated)", "", 50, nil, func(text string) {
			tags = text
			parts := strings.Split(text, ",")
			completeTags.Set(strings.TrimSpace(parts[len(parts)-1]))
		})

	closeForm := func() {
		refreshSimilar.Stop()
		completeTags.Stop()
		ui.pages.RemovePage(pageName)
	}

	form.AddButton("Create", func() {
		data := api.CaseCreate{
			Title:        strings.TrimSpace(title),
			Content:      strings.TrimSpace(content),
			Requester:    strings.TrimSpace(requester),
			Organization: strings.TrimSpace(organization),
			Priority:     priority,
			Tags:         splitTags(tags),
		}
		if data.Title == "" || data.Content == "" {
			ui.setStatusDirect("[%s]Title and content are required[-]", ui.theme.TagWarning)
			return
		}
		closeForm()
		go func() {
			ctx, cancel := ui.requestCtx()
			defer cancel()
			created, err := ui.client.CreateCase(ctx, data)
			if err != nil {
				ui.reportError(err)
				return
			}
			ui.setStatus("[%s]Case #%d created[-]", ui.theme.TagSuccess, created.ID)
			ui.cases.list.Refresh()
		}()
	})
	form.AddButton("Cancel", closeForm)
	form.SetCancelFunc(closeForm)
	form.SetBorder(true).SetTitle(" New case ")

	layout := tview.NewFlex().
		AddItem(form, 0, 2, true).
		AddItem(similar, 0, 1, false)
	ui.pages.AddPage(pageName, layout, true, true)
	ui.app.SetFocus(form)
}

func splitTags(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
