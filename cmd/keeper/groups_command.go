package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newGroupsCommand(ctx *commandContext) *cobra.Command {
	groupsCmd := &cobra.Command{
		Use:   "groups",
		Short: "Inspect the hash-group table",
	}
	groupsCmd.AddCommand(newGroupsStatsCommand(ctx))
	return groupsCmd
}

func newGroupsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize hash groups, canonicals, and duplicates",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !isTerminal(out) {
				fmt.Fprintf(out, "groups=%d members=%d with_canonical=%d duplicates=%d\n",
					stats.Groups, stats.Members, stats.WithCanonical, stats.Duplicates)
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]tableColumn{{Title: "Metric"}, {Title: "Count", Numeric: true}},
				[][]string{
					{"Hash groups", strconv.Itoa(stats.Groups)},
					{"Members", strconv.Itoa(stats.Members)},
					{"Groups with canonical", strconv.Itoa(stats.WithCanonical)},
					{"Duplicates", strconv.Itoa(stats.Duplicates)},
				},
			))
			return nil
		},
	}
}
