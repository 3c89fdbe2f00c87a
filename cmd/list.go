package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/csdesk/console-cs/internal/api"
	"github.com/csdesk/console-cs/internal/controller"
)

var (
	listPage     int
	listPageSize int
	listSearch   string
	listStatus   string
	listPriority string
	listRole     string
)

// listCmd groups the headless list subcommands. They drive the same list
// controller the TUI uses, just synchronously.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List entities without starting the TUI",
}

var listCasesCmd = &cobra.Command{
	Use:   "cases",
	Short: "List cases",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger("[list] ")
		st, client, err := openClient(logger)
		if err != nil {
			return err
		}
		defer st.Close()

		lc := controller.NewListController(cmd.Context(),
			func(ctx context.Context, crit controller.Criteria, page, pageSize int) (api.Page[api.Case], error) {
				return client.ListCases(ctx, api.CaseFilters{
					Status:   api.CaseStatus(crit.Filters["status"]),
					Priority: api.Priority(crit.Filters["priority"]),
					Search:   crit.Search,
				}, page, pageSize)
			},
			controller.ListOptions{PageSize: listPageSize, Logger: logger})
		defer lc.Close()

		applyListFlags(lc)
		items, pg, err := lc.Load(cmd.Context())
		if err != nil {
			return err
		}

		w := newTabWriter(cmd)
		fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tTITLE\tREQUESTER\tTAGS")
		for _, c := range items {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				c.ID, c.Status, c.Priority, c.Title, c.Requester, strings.Join(c.Tags, ","))
		}
		w.Flush()
		printFooter(cmd, pg)
		return nil
	},
}

var listProductsCmd = &cobra.Command{
	Use:   "products",
	Short: "List catalog products",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger("[list] ")
		st, client, err := openClient(logger)
		if err != nil {
			return err
		}
		defer st.Close()

		lc := controller.NewListController(cmd.Context(),
			func(ctx context.Context, crit controller.Criteria, page, pageSize int) (api.Page[api.Product], error) {
				return client.ListProducts(ctx, crit.Search, page, pageSize)
			},
			controller.ListOptions{PageSize: listPageSize, Logger: logger})
		defer lc.Close()

		applyListFlags(lc)
		items, pg, err := lc.Load(cmd.Context())
		if err != nil {
			return err
		}

		w := newTabWriter(cmd)
		fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
		for _, p := range items {
			fmt.Fprintf(w, "%d\t%s\t%s\n", p.ID, p.Name, p.Description)
		}
		w.Flush()
		printFooter(cmd, pg)
		return nil
	},
}

var listQuotesCmd = &cobra.Command{
	Use:   "quote-requests",
	Short: "List quote requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger("[list] ")
		st, client, err := openClient(logger)
		if err != nil {
			return err
		}
		defer st.Close()

		lc := controller.NewListController(cmd.Context(),
			func(ctx context.Context, crit controller.Criteria, page, pageSize int) (api.Page[api.QuoteRequest], error) {
				return client.ListQuoteRequests(ctx, api.QuoteFilters{
					Status: api.QuoteStatus(crit.Filters["status"]),
					Search: crit.Search,
				}, page, pageSize)
			},
			controller.ListOptions{PageSize: listPageSize, Logger: logger})
		defer lc.Close()

		applyListFlags(lc)
		items, pg, err := lc.Load(cmd.Context())
		if err != nil {
			return err
		}

		w := newTabWriter(cmd)
		fmt.Fprintln(w, "ID\tSTATUS\tORGANIZATION\tREQUEST")
		for _, q := range items {
			text := q.QuoteRequestText
			if len(text) > 60 {
				text = text[:60] + "..."
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", q.ID, q.Status, q.Organization, text)
		}
		w.Flush()
		printFooter(cmd, pg)
		return nil
	},
}

var listUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users (admin only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger("[list] ")
		st, client, err := openClient(logger)
		if err != nil {
			return err
		}
		defer st.Close()

		lc := controller.NewListController(cmd.Context(),
			func(ctx context.Context, crit controller.Criteria, page, pageSize int) (api.Page[api.User], error) {
				return client.ListUsers(ctx, api.UserFilters{
					Search: crit.Search,
					Role:   api.Role(crit.Filters["role"]),
				}, page, pageSize)
			},
			controller.ListOptions{PageSize: listPageSize, Logger: logger})
		defer lc.Close()

		applyListFlags(lc)
		items, pg, err := lc.Load(cmd.Context())
		if err != nil {
			return err
		}

		w := newTabWriter(cmd)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE")
		for _, u := range items {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role)
		}
		w.Flush()
		printFooter(cmd, pg)
		return nil
	},
}

// applyListFlags seeds a controller from the shared list flags. Search is
// applied through the criteria directly so the CLI does not wait out the
// interactive debounce.
func applyListFlags[T any](lc *controller.ListController[T]) {
	if listStatus != "" {
		lc.SetFilterNow("status", strings.ToUpper(listStatus))
	}
	if listPriority != "" {
		lc.SetFilterNow("priority", strings.ToUpper(listPriority))
	}
	if listRole != "" {
		lc.SetFilterNow("role", strings.ToUpper(listRole))
	}
	if listSearch != "" {
		lc.SetSearchNow(listSearch)
	}
	if listPage > 1 {
		lc.SetPage(listPage)
	}
}

func newTabWriter(cmd *cobra.Command) *tabwriter.Writer {
	return tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
}

func printFooter(cmd *cobra.Command, pg controller.PaginationState) {
	fmt.Fprintf(cmd.OutOrStdout(), "page %d/%d (%d total)\n", pg.Page, pg.TotalPages, pg.Total)
}

func init() {
	listCmd.PersistentFlags().IntVar(&listPage, "page", 1, "Page number")
	listCmd.PersistentFlags().IntVar(&listPageSize, "page-size", 20, "Items per page")
	listCmd.PersistentFlags().StringVar(&listSearch, "search", "", "Free-text search")
	listCmd.PersistentFlags().StringVar(&listStatus, "status", "", "Status filter")
	listCmd.PersistentFlags().StringVar(&listPriority, "priority", "", "Priority filter (cases)")
	listCmd.PersistentFlags().StringVar(&listRole, "role", "", "Role filter (users)")

	listCmd.AddCommand(listCasesCmd)
	listCmd.AddCommand(listProductsCmd)
	listCmd.AddCommand(listQuotesCmd)
	listCmd.AddCommand(listUsersCmd)
	rootCmd.AddCommand(listCmd)
}
