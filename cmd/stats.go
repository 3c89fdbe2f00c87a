package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsDate string

// statsCmd prints the case statistics the dashboard renders, for use in
// scripts and cron summaries.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show case statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger("[stats] ")
		st, client, err := openClient(logger)
		if err != nil {
			return err
		}
		defer st.Close()
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		byStatus, err := client.StatisticsByStatus(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "By status:")
		for _, s := range byStatus {
			fmt.Fprintf(out, "  %-12s %d\n", s.Status, s.Count)
		}

		byAssignee, err := client.StatisticsByAssignee(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "By assignee:")
		for _, s := range byAssignee {
			fmt.Fprintf(out, "  %-20s open=%d in_progress=%d done=%d\n",
				s.AssigneeName, s.OpenCount, s.InProgressCount, s.DoneCount)
		}

		byTime, err := client.StatisticsByTime(ctx)
		if err != nil {
			return err
		}
		if byTime.AvgHours != nil {
			fmt.Fprintf(out, "Avg resolution: %.1fh over %d completed cases\n", *byTime.AvgHours, byTime.TotalCompleted)
		} else {
			fmt.Fprintf(out, "Avg resolution: n/a (%d completed cases)\n", byTime.TotalCompleted)
		}

		progress, err := client.GetMyProgress(ctx, statsDate)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "My progress: %d open, %d in progress, %d done, %d cancelled\n",
			progress.OpenCount, progress.InProgressCount, progress.DoneCount, progress.CancelCount)
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsDate, "date", "", "Target date for my-progress (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(statsCmd)
}
