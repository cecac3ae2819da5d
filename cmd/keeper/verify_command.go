package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"keeper/internal/catalog"
	"keeper/internal/preflight"
	"keeper/internal/verify"
)

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	var (
		inputPath      string
		verifiedPath   string
		unverifiedPath string
		statePath      string
		limit          int
		offset         int
		workers        int
		fresh          bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify that manifest rows have byte-identical archive copies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if err := requirePreflight(preflight.RunVerify(cfg)); err != nil {
				return err
			}

			stateDir := cfg.Paths.StateDir
			if verifiedPath == "" {
				verifiedPath = filepath.Join(stateDir, "verified.csv")
			}
			if unverifiedPath == "" {
				unverifiedPath = filepath.Join(stateDir, "unverified.csv")
			}
			if statePath == "" {
				statePath = filepath.Join(stateDir, "verify.state")
			}
			if !cmd.Flags().Changed("limit") {
				limit = cfg.Verify.BatchLimit
			}
			if !cmd.Flags().Changed("workers") {
				workers = cfg.Verify.Workers
			}

			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.BeginRun(cmd.Context(), verify.Stage)
			if err != nil {
				return err
			}

			engine := verify.New(cfg, logger)
			summary, runErr := engine.Run(cmd.Context(), run.RunID, verify.Options{
				ManifestPath:   inputPath,
				VerifiedPath:   verifiedPath,
				UnverifiedPath: unverifiedPath,
				StatePath:      statePath,
				Limit:          limit,
				Offset:         offset,
				Fresh:          fresh,
				Workers:        workers,
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
				printVerifySummary(cmd, summary)
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input manifest of pending rows")
	cmd.Flags().StringVar(&verifiedPath, "verified-out", "", "Verified manifest output path")
	cmd.Flags().StringVar(&unverifiedPath, "unverified-out", "", "Unverified manifest output path")
	cmd.Flags().StringVar(&statePath, "state-file", "", "Resume state file path")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows to process this invocation")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip ahead to this manifest offset")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel hashing workers")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Discard prior resume state and start over")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func printVerifySummary(cmd *cobra.Command, summary *verify.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: processed %d rows (%d verified, %d unverified, %d errors), %s verified\n",
		summary.RunID, summary.Processed, summary.Verified, summary.Unverified,
		summary.Errors, formatBytes(summary.BytesVerified))

	if len(summary.Reasons) == 0 {
		return
	}
	reasons := make([]string, 0, len(summary.Reasons))
	for reason := range summary.Reasons {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	if !isTerminal(out) {
		for _, reason := range reasons {
			fmt.Fprintf(out, "reason %s=%d\n", reason, summary.Reasons[reason])
		}
		return
	}
	rows := make([][]string, 0, len(reasons))
	for _, reason := range reasons {
		rows = append(rows, []string{reason, strconv.Itoa(summary.Reasons[reason])})
	}
	fmt.Fprintln(out, renderTable(
		[]tableColumn{{Title: "Reason"}, {Title: "Rows", Numeric: true}},
		rows,
	))
}
