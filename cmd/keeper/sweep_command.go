package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"keeper/internal/catalog"
	"keeper/internal/preflight"
	"keeper/internal/sweep"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var (
		inputPath     string
		keepPath      string
		dupesPath     string
		statePath     string
		expectedRunID string
		scope         string
		limit         int
		offset        int
		fresh         bool
		dryRun        bool
		deleteFlag    bool
		confirmDelete bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Quarantine or delete duplicate copies from a verified manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if err := requirePreflight(preflight.RunSweep(cfg)); err != nil {
				return err
			}

			stateDir := cfg.Paths.StateDir
			if keepPath == "" {
				keepPath = filepath.Join(stateDir, "keeps.csv")
			}
			if dupesPath == "" {
				dupesPath = filepath.Join(stateDir, "dupes.csv")
			}
			if statePath == "" {
				statePath = filepath.Join(stateDir, "sweep.state")
			}
			if !cmd.Flags().Changed("limit") {
				limit = cfg.Sweep.BatchLimit
			}

			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.BeginRun(cmd.Context(), sweep.Stage)
			if err != nil {
				return err
			}

			executor := sweep.New(cfg, store, logger)
			summary, runErr := executor.Run(cmd.Context(), sweep.Options{
				ManifestPath:      inputPath,
				KeepPath:          keepPath,
				DupesPath:         dupesPath,
				StatePath:         statePath,
				ExpectedRunID:     expectedRunID,
				Limit:             limit,
				Offset:            offset,
				Fresh:             fresh,
				Scope:             scope,
				DryRun:            dryRun,
				DeletePermanently: deleteFlag,
				ConfirmDelete:     confirmDelete,
			})

			status := catalog.RunOK
			notes := ""
			if runErr != nil {
				status = catalog.RunFailed
				notes = runErr.Error()
			}
			if endErr := store.EndRun(cmd.Context(), run.RunID, status, notes); endErr != nil && runErr == nil {
				runErr = endErr
			}

			if summary != nil {
				printSweepSummary(cmd, summary, dryRun)
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Verified manifest to sweep")
	cmd.Flags().StringVar(&keepPath, "keep-out", "", "Keep manifest output path")
	cmd.Flags().StringVar(&dupesPath, "dupes-out", "", "Dupes manifest output path")
	cmd.Flags().StringVar(&statePath, "state-file", "", "Resume state file path")
	cmd.Flags().StringVar(&expectedRunID, "expected-run-id", sweep.RunIDAuto,
		"Verification run id this manifest must carry ("+sweep.RunIDAuto+" binds to the embedded id)")
	cmd.Flags().StringVar(&scope, "scope", "", "Restrict action to one archive partition (e.g. a year)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows to process this invocation")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip ahead to this manifest offset")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Discard prior resume state and start over")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Decide and record actions without touching the filesystem")
	cmd.Flags().BoolVar(&deleteFlag, "delete-permanently", false, "Delete duplicates instead of quarantining them")
	cmd.Flags().BoolVar(&confirmDelete, "yes-really-delete", false, "Second confirmation required for permanent deletion")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func printSweepSummary(cmd *cobra.Command, summary *sweep.Summary, dryRun bool) {
	out := cmd.OutOrStdout()
	prefix := ""
	if dryRun {
		prefix = "[dry-run] "
	}
	fmt.Fprintf(out, "%sRun %s: processed %d rows (%d kept, %d quarantined, %d deleted, %d errors, %d out of scope), %s reclaimed\n",
		prefix, summary.RunID, summary.Processed, summary.Kept, summary.Quarantined,
		summary.Deleted, summary.Errors, summary.Skipped, formatBytes(summary.BytesFreed))
	if summary.Downgraded {
		fmt.Fprintln(out, "Warning: permanent deletion was requested without --yes-really-delete; duplicates were quarantined instead")
	}
}
