package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run registry",
	}
	runsCmd.AddCommand(newRunsListCommand(ctx))
	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent pipeline runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				ended := "-"
				if run.EndedAt != nil {
					ended = formatTimestamp(*run.EndedAt)
				}
				rows = append(rows, []string{
					run.RunID,
					run.Stage,
					string(run.Status),
					formatTimestamp(run.StartedAt),
					ended,
					run.Notes,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]tableColumn{
					{Title: "Run ID"},
					{Title: "Stage"},
					{Title: "Status"},
					{Title: "Started (UTC)"},
					{Title: "Ended (UTC)"},
					{Title: "Notes"},
				},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum runs to display")
	return cmd
}
