package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"keeper/internal/catalog"
	"keeper/internal/hashgroup"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var (
		inputPath    string
		resolvedPath string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Assign verified rows to hash groups and select canonicals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if resolvedPath == "" {
				resolvedPath = filepath.Join(cfg.Paths.StateDir, "resolved.csv")
			}

			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.BeginRun(cmd.Context(), "resolve")
			if err != nil {
				return err
			}

			resolver := hashgroup.NewResolver(store, cfg.Paths.ArchiveRoot, logger)
			summary, runErr := resolver.ResolveManifest(cmd.Context(), inputPath, resolvedPath)

			status := catalog.RunOK
			notes := ""
			if runErr != nil {
				status = catalog.RunFailed
				notes = runErr.Error()
			}
			if endErr := store.EndRun(cmd.Context(), run.RunID, status, notes); endErr != nil && runErr == nil {
				runErr = endErr
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processed %d rows: %d kept, %d duplicate, %d pending canonical, %d errors\n",
				summary.Processed, summary.Kept, summary.Duplicate, summary.Pending, summary.Errors)
			fmt.Fprintf(out, "Classified manifest written to %s\n", resolvedPath)
			return runErr
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Verified manifest to classify")
	cmd.Flags().StringVar(&resolvedPath, "resolved-out", "", "Classified manifest output path")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}
