package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/csdesk/console-cs/internal/api"
	"github.com/csdesk/console-cs/internal/controller"
)

// catalogView is the paginated product table with a license/memo detail
// pane for the selected product.
type catalogView struct {
	ui   *UI
	root *tview.Flex

	search *tview.InputField
	table  *tview.Table
	detail *tview.TextView
	footer *tview.TextView

	list   *controller.ListController[api.Product]
	items  []api.Product
	active *controller.ProductDetail

	// Set while drilled into one license; memo actions target it then.
	activeLicense *controller.LicenseDetail
}

func newCatalogView(ui *UI) *catalogView {
	v := &catalogView{ui: ui}

	v.list = controller.NewListController(ui.ctx, v.fetch, ui.listOptions())
	v.list.OnUpdate(v.onPage)
	v.list.OnError(func(err error) { ui.reportError(err) })

	v.search = tview.NewInputField().SetLabel(" Search: ").SetFieldWidth(40)
	v.search.SetChangedFunc(func(text string) { v.list.SetSearch(text) })

	v.table = tview.NewTable().SetSelectable(true, false).SetFixed(1, 0)
	v.table.SetBorder(true).SetTitle(" Products ")
	v.table.SetSelectionChangedFunc(func(row, _ int) {
		if row >= 1 && row-1 < len(v.items) {
			v.loadDetail(v.items[row-1].ID)
		}
	})
	v.table.SetInputCapture(v.handleKey)

	v.detail = tview.NewTextView().SetDynamicColors(true).SetWordWrap(true)
	v.detail.SetBorder(true).SetTitle(" Licenses & memos ")

	v.footer = tview.NewTextView().SetDynamicColors(true)

	body := tview.NewFlex().
		AddItem(v.table, 0, 1, true).
		AddItem(v.detail, 0, 1, false)

	v.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.search, 1, 0, false).
		AddItem(body, 0, 1, true).
		AddItem(v.footer, 1, 0, false)

	return v
}

func (v *catalogView) fetch(ctx context.Context, crit controller.Criteria, page, pageSize int) (api.Page[api.Product], error) {
	return v.ui.client.ListProducts(ctx, crit.Search, page, pageSize)
}

func (v *catalogView) activate() {
	v.list.Refresh()
	v.ui.app.SetFocus(v.table)
	v.ui.setStatusDirect("[%s]n: new product  l: new license  o: open license  m: new memo  x: delete memo  /: search  ←/→: page[-]", v.ui.theme.TagMuted)
}

func (v *catalogView) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyLeft:
		v.list.PrevPage()
		return nil
	case tcell.KeyRight:
		v.list.NextPage()
		return nil
	case tcell.KeyEscape:
		if v.activeLicense != nil {
			v.activeLicense = nil
			if detail := v.active; detail != nil {
				v.renderDetail(detail)
			}
			return nil
		}
	}
	switch event.Rune() {
	case '/':
		v.ui.app.SetFocus(v.search)
		return nil
	case 'n':
		v.promptNewProduct()
		return nil
	case 'l':
		v.promptNewLicense()
		return nil
	case 'm':
		v.promptNewMemo()
		return nil
	case 'x':
		v.promptDeleteMemo()
		return nil
	case 'o':
		v.promptOpenLicense()
		return nil
	case 'R':
		v.list.Refresh()
		return nil
	}
	return event
}

func (v *catalogView) selectedProduct() *api.Product {
	row, _ := v.table.GetSelection()
	if row >= 1 && row-1 < len(v.items) {
		return &v.items[row-1]
	}
	return nil
}

func (v *catalogView) loadDetail(productID int) {
	detail := controller.NewProductDetail(v.ui.client, productID, v.ui.logger)
	v.active = detail
	v.activeLicense = nil
	detail.OnChange(func() {
		v.ui.app.QueueUpdateDraw(func() {
			// A slow response for a product the user has scrolled past
			// must not clobber the pane.
			if v.active == detail && v.activeLicense == nil {
				v.renderDetail(detail)
			}
		})
	})
	go func() {
		ctx, cancel := v.ui.requestCtx()
		defer cancel()
		if err := detail.Load(ctx); err != nil {
			v.ui.logger.Printf("Product detail load failed: %v", err)
		}
	}()
}

func (v *catalogView) renderDetail(detail *controller.ProductDetail) {
	t := v.ui.theme
	switch detail.State() {
	case controller.DetailLoading:
		v.detail.SetText(fmt.Sprintf("[%s]Loading...[-]", t.TagMuted))
		return
	case controller.DetailFailed:
		v.detail.SetText(fmt.Sprintf("[%s]Failed to load product: %v[-]", t.TagError, detail.Err()))
		return
	}
	p := detail.Product()
	if p == nil {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]%s[-:-:-]\n", t.TagTextPrimary, tview.Escape(p.Name))
	if p.Description != "" {
		fmt.Fprintf(&b, "%s\n", tview.Escape(p.Description))
	}
	fmt.Fprintf(&b, "\n[%s::b]Licenses[-:-:-]\n", t.TagAccent)
	licenses := detail.Licenses()
	if len(licenses) == 0 {
		fmt.Fprintf(&b, "[%s]none[-]\n", t.TagMuted)
	}
	for _, lic := range licenses {
		fmt.Fprintf(&b, "  [%s]#%d[-] %s\n", t.TagMuted, lic.ID, tview.Escape(lic.Name))
	}
	fmt.Fprintf(&b, "\n[%s::b]Memos[-:-:-]\n", t.TagAccent)
	memos := detail.Memos().Memos()
	if len(memos) == 0 {
		fmt.Fprintf(&b, "[%s]none[-]\n", t.TagMuted)
	}
	for _, m := range memos {
		fmt.Fprintf(&b, "  [%s]#%d %s %s:[-] %s\n",
			t.TagMuted, m.ID, m.CreatedAt.Format("2006-01-02"), tview.Escape(m.AuthorName), tview.Escape(m.Content))
	}
	v.detail.SetText(b.String())
}

func (v *catalogView) promptNewProduct() {
	promptText(v.ui, " New product (name | description) ", func(text string) {
		name, desc := splitPipe(text)
		go func() {
			ctx, cancel := v.ui.requestCtx()
			defer cancel()
			if _, err := v.ui.client.CreateProduct(ctx, name, desc); err != nil {
				v.ui.reportError(err)
				return
			}
			v.ui.setStatus("[%s]Product created[-]", v.ui.theme.TagSuccess)
			v.list.Refresh()
		}()
	})
}

func (v *catalogView) promptNewLicense() {
	p := v.selectedProduct()
	if p == nil {
		return
	}
	detail := v.active
	promptText(v.ui, fmt.Sprintf(" New license for %s (name | description) ", p.Name), func(text string) {
		name, desc := splitPipe(text)
		go func() {
			ctx, cancel := v.ui.requestCtx()
			defer cancel()
			if detail != nil && v.active == detail {
				if err := detail.AddLicense(ctx, name, desc); err != nil {
					v.ui.reportError(err)
				}
				return
			}
			if _, err := v.ui.client.CreateLicense(ctx, p.ID, name, desc); err != nil {
				v.ui.reportError(err)
			}
		}()
	})
}

// currentMemos resolves the memo panel the user is looking at: the
// drilled-into license when one is open, otherwise the selected product.
func (v *catalogView) currentMemos() (*controller.MemoPanel, string) {
	if lic := v.activeLicense; lic != nil {
		name := ""
		if l := lic.License(); l != nil {
			name = l.Name
		}
		return lic.Memos(), name
	}
	if v.active == nil {
		return nil, ""
	}
	p := v.selectedProduct()
	if p == nil {
		return nil, ""
	}
	return v.active.Memos(), p.Name
}

func (v *catalogView) promptNewMemo() {
	memos, owner := v.currentMemos()
	if memos == nil {
		return
	}
	promptText(v.ui, fmt.Sprintf(" New memo on %s ", owner), func(text string) {
		go func() {
			ctx, cancel := v.ui.requestCtx()
			defer cancel()
			if err := memos.Add(ctx, text); err != nil {
				v.ui.reportError(err)
			}
		}()
	})
}

// promptOpenLicense drills into a license by the number shown in the
// detail pane. Esc returns to the product.
func (v *catalogView) promptOpenLicense() {
	if v.active == nil {
		return
	}
	promptText(v.ui, " Open license (number) ", func(text string) {
		id, err := strconv.Atoi(strings.TrimPrefix(text, "#"))
		if err != nil {
			v.ui.setStatusDirect("[%s]Not a license number: %s[-]", v.ui.theme.TagWarning, text)
			return
		}
		detail := controller.NewLicenseDetail(v.ui.client, id, v.ui.logger)
		v.activeLicense = detail
		detail.OnChange(func() {
			v.ui.app.QueueUpdateDraw(func() {
				if v.activeLicense == detail {
					v.renderLicenseDetail(detail)
				}
			})
		})
		go func() {
			ctx, cancel := v.ui.requestCtx()
			defer cancel()
			if err := detail.Load(ctx); err != nil {
				v.ui.logger.Printf("License detail load failed: %v", err)
			}
		}()
	})
}

func (v *catalogView) renderLicenseDetail(detail *controller.LicenseDetail) {
	t := v.ui.theme
	switch detail.State() {
	case controller.DetailLoading:
		v.detail.SetText(fmt.Sprintf("[%s]Loading...[-]", t.TagMuted))
		return
	case controller.DetailFailed:
		v.detail.SetText(fmt.Sprintf("[%s]Failed to load license: %v[-]", t.TagError, detail.Err()))
		return
	}
	l := detail.License()
	if l == nil {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s::b]License: %s[-:-:-]\n", t.TagTextPrimary, tview.Escape(l.Name))
	if l.Description != "" {
		fmt.Fprintf(&b, "%s\n", tview.Escape(l.Description))
	}
	fmt.Fprintf(&b, "\n[%s::b]Memos[-:-:-]\n", t.TagAccent)
	memos := detail.Memos().Memos()
	if len(memos) == 0 {
		fmt.Fprintf(&b, "[%s]none[-]\n", t.TagMuted)
	}
	for _, m := range memos {
		fmt.Fprintf(&b, "  [%s]#%d %s %s:[-] %s\n",
			t.TagMuted, m.ID, m.CreatedAt.Format("2006-01-02"), tview.Escape(m.AuthorName), tview.Escape(m.Content))
	}
	fmt.Fprintf(&b, "\n[%s]Esc: back to product[-]", t.TagMuted)
	v.detail.SetText(b.String())
}

// promptDeleteMemo asks for the memo number shown in the detail pane.
// Author-or-admin only; the backend enforces the same rule.
func (v *catalogView) promptDeleteMemo() {
	memos, _ := v.currentMemos()
	if memos == nil {
		return
	}
	promptText(v.ui, " Delete memo (number) ", func(text string) {
		id, err := strconv.Atoi(strings.TrimPrefix(text, "#"))
		if err != nil {
			v.ui.setStatusDirect("[%s]Not a memo number: %s[-]", v.ui.theme.TagWarning, text)
			return
		}
		var target *api.Memo
		for _, m := range memos.Memos() {
			if m.ID == id {
				m := m
				target = &m
				break
			}
		}
		if target == nil {
			v.ui.setStatusDirect("[%s]No memo #%d here[-]", v.ui.theme.TagWarning, id)
			return
		}
		if !controller.CanDeleteMemo(v.ui.session.User(), *target) {
			v.ui.setStatusDirect("[%s]Only the author or an admin can delete this memo[-]", v.ui.theme.TagWarning)
			return
		}
		go func() {
			ctx, cancel := v.ui.requestCtx()
			defer cancel()
			if err := memos.Delete(ctx, id); err != nil {
				v.ui.reportError(err)
			}
		}()
	})
}

func (v *catalogView) onPage(items []api.Product, pg controller.PaginationState) {
	v.ui.app.QueueUpdateDraw(func() {
		v.items = items
		v.renderTable()
		v.footer.SetText(fmt.Sprintf(" [%s]Page %d/%d  (%d products)[-]",
			v.ui.theme.TagMuted, pg.Page, pg.TotalPages, pg.Total))
	})
}

func (v *catalogView) renderTable() {
	t := v.ui.theme
	v.table.Clear()
	headers := []string{"ID", "Name", "Description", "Created"}
	for col, h := range headers {
		v.table.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(t.TableHeader).
			SetBackgroundColor(t.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}
	for i, p := range v.items {
		row := i + 1
		v.table.SetCell(row, 0, tview.NewTableCell(fmt.Sprintf("#%d", p.ID)).SetTextColor(t.TableRowMuted))
		v.table.SetCell(row, 1, tview.NewTableCell(p.Name).SetTextColor(t.TableRow).SetExpansion(1))
		v.table.SetCell(row, 2, tview.NewTableCell(truncate(p.Description, 40)).SetTextColor(t.TableRowMuted).SetExpansion(2))
		v.table.SetCell(row, 3, tview.NewTableCell(p.CreatedAt.Format(time.DateOnly)).SetTextColor(t.TableRowMuted))
	}
	if v.table.GetRowCount() > 1 {
		v.table.Select(1, 0)
	}
}

func (v *catalogView) applyTheme(t Theme) {
	v.search.SetFieldBackgroundColor(t.Surface).SetFieldTextColor(t.TextPrimary).SetLabelColor(t.TextMuted)
	v.table.SetSelectedStyle(tcell.StyleDefault.Background(t.SelectionBg).Foreground(t.SelectionFg))
	v.footer.SetBackgroundColor(t.Surface)
	v.renderTable()
}

func splitPipe(text string) (string, string) {
	if i := strings.Index(text, "|"); i >= 0 {
		return strings.TrimSpace(text[:i]), strings.TrimSpace(text[i+1:])
	}
	return strings.TrimSpace(text), ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
