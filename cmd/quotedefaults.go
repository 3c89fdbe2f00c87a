package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// quoteDefaultsCmd reads or replaces the default assignee set for new
// quote requests. With no arguments it prints the current user IDs; with
// arguments it replaces the set.
var quoteDefaultsCmd = &cobra.Command{
	Use:   "quote-defaults [user-id...]",
	Short: "Show or set the default assignees for new quote requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger("[quote-defaults] ")
		st, client, err := openClient(logger)
		if err != nil {
			return err
		}
		defer st.Close()
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if len(args) > 0 {
			ids := make([]int, 0, len(args))
			for _, arg := range args {
				id, err := strconv.Atoi(arg)
				if err != nil {
					return fmt.Errorf("not a user ID: %q", arg)
				}
				ids = append(ids, id)
			}
			if err := client.SetDefaultAssignees(ctx, ids); err != nil {
				return err
			}
			fmt.Fprintf(out, "Default assignees set to %v\n", ids)
			return nil
		}

		ids, err := client.GetDefaultAssignees(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(out, "No default assignees configured")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintf(out, "%d\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(quoteDefaultsCmd)
}
