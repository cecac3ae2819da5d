// Package sweep implements the deletion/quarantine stage. It consumes a
// verified manifest bound to a specific verification run, consults the
// hash-group table for canonical designations, and moves redundant copies
// into quarantine. Permanent deletion requires explicit double
// confirmation; without it any delete request is downgraded to quarantine.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"keeper/internal/config"
	"keeper/internal/cursor"
	"keeper/internal/fileutil"
	"keeper/internal/hashgroup"
	"keeper/internal/logging"
	"keeper/internal/manifest"
	"keeper/internal/pipeline"
)

// Stage is the registry name for sweep runs.
const Stage = "sweep"

// RunIDAuto binds the invocation to the run identifier embedded in the
// supplied manifest instead of requiring it up front.
const RunIDAuto = "auto"

// Keep reasons recorded on rows that stay on disk.
const (
	KeepCanonical   = "canonical"
	KeepNoGroup     = "no-group"
	KeepNoCanonical = "no-canonical"
)

const downgradeNote = "permanent delete downgraded to quarantine: confirmation flag not set"

// Options bound one sweep invocation.
type Options struct {
	ManifestPath string
	KeepPath     string
	DupesPath    string
	StatePath    string

	// ExpectedRunID must match every row's run_id, or be RunIDAuto to
	// bind to the manifest's embedded run. Mismatch aborts with zero
	// side effects.
	ExpectedRunID string

	// Limit caps how many rows this invocation processes. Zero or
	// negative means run to the end of the manifest.
	Limit int
	// Offset skips ahead of the resume cursor when larger than it.
	Offset int
	// Fresh discards prior resume state instead of continuing from it.
	Fresh bool

	// Scope restricts action to rows whose archive path sits under the
	// named top-level partition of the archive root (typically a year).
	// Out-of-scope rows are passed over untouched.
	Scope string

	// DryRun runs the full decision pipeline and writes output manifests
	// without touching the filesystem.
	DryRun bool
	// DeletePermanently requests real deletion instead of quarantine.
	// It only takes effect when ConfirmDelete is also set.
	DeletePermanently bool
	// ConfirmDelete is the second gate for permanent deletion.
	ConfirmDelete bool
}

// Summary reports what one invocation did.
type Summary struct {
	RunID       string
	Processed   int
	Kept        int
	Quarantined int
	Deleted     int
	Errors      int
	Skipped     int
	Downgraded  bool
	BytesFreed  int64
}

// Executor applies quarantine and deletion decisions.
type Executor struct {
	cfg    *config.Config
	groups hashgroup.Store
	logger *slog.Logger
}

// New builds an executor over the given hash-group store.
func New(cfg *config.Config, groups hashgroup.Store, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{cfg: cfg, groups: groups, logger: logger}
}

// Run processes one batch of the verified manifest. The run-id check and
// manifest drift check both happen before any filesystem mutation.
func (e *Executor) Run(ctx context.Context, opts Options) (*Summary, error) {
	fingerprint, err := manifest.Fingerprint(opts.ManifestPath)
	if err != nil {
		return nil, pipeline.Wrap(pipeline.ErrIO, Stage, "fingerprint manifest", opts.ManifestPath, err)
	}

	boundRunID, err := e.validateRunID(opts.ManifestPath, opts.ExpectedRunID)
	if err != nil {
		return nil, err
	}
	logger := logging.WithStage(e.logger, Stage, boundRunID)

	if opts.DeletePermanently && !opts.ConfirmDelete {
		logger.Warn(downgradeNote)
	}

	handle, err := cursor.Acquire(opts.StatePath, Stage, fingerprint, cursor.Options{Fresh: opts.Fresh})
	if err != nil {
		return nil, err
	}
	defer func() { _ = handle.Release() }()

	start := handle.NextOffset()
	if opts.Offset > start {
		start = opts.Offset
	}

	reader, err := manifest.OpenReader(opts.ManifestPath, manifest.SchemaVerification)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if err := reader.Skip(start); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	keepOut, err := manifest.OpenWriter(opts.KeepPath, manifest.SchemaSweep)
	if err != nil {
		return nil, err
	}
	defer keepOut.Close()

	dupesOut, err := manifest.OpenWriter(opts.DupesPath, manifest.SchemaSweep)
	if err != nil {
		return nil, err
	}
	defer dupesOut.Close()

	summary := &Summary{RunID: boundRunID}
	logger.Info("sweep batch starting",
		logging.String("manifest", opts.ManifestPath),
		logging.Int("start_offset", start),
		logging.Bool("dry_run", opts.DryRun),
		logging.String("scope", opts.Scope),
	)

	for opts.Limit <= 0 || summary.Processed+summary.Skipped < opts.Limit {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		row, offset, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, err
		}

		if opts.Scope != "" && !e.inScope(row, opts.Scope) {
			summary.Skipped++
			if err := handle.Advance(offset, true); err != nil {
				return summary, err
			}
			continue
		}

		row = e.sweepRow(ctx, row, opts, summary, logger, offset)

		writer := keepOut
		if row.ActionTaken != manifest.ActionKept {
			writer = dupesOut
		}
		if err := writer.Write(row); err != nil {
			return summary, err
		}
		if err := handle.Advance(offset, row.ActionTaken != manifest.ActionError); err != nil {
			return summary, err
		}
		summary.Processed++
	}

	logger.Info("sweep batch finished",
		logging.Int("processed", summary.Processed),
		logging.Int("kept", summary.Kept),
		logging.Int("quarantined", summary.Quarantined),
		logging.Int("deleted", summary.Deleted),
		logging.Int("skipped", summary.Skipped),
		logging.Int("errors", summary.Errors),
	)
	if summary.Errors > 0 {
		return summary, pipeline.Wrap(pipeline.ErrIO, Stage, "batch",
			"one or more rows could not be processed", nil)
	}
	return summary, nil
}

// validateRunID streams the manifest once before any mutation. Every row
// must carry the expected run identifier; with RunIDAuto the first row's
// identifier is adopted and the rest must match it.
func (e *Executor) validateRunID(path, expected string) (string, error) {
	reader, err := manifest.OpenReader(path, manifest.SchemaVerification)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	bound := strings.TrimSpace(expected)
	if bound == "" {
		return "", pipeline.Wrap(pipeline.ErrRunIDMismatch, Stage, "validate run id",
			"expected run id is required; pass the verification run id or "+RunIDAuto, nil)
	}

	for {
		row, offset, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if row.RunID == "" {
			return "", pipeline.Wrap(pipeline.ErrRunIDMismatch, Stage, "validate run id",
				fmt.Sprintf("row %d carries no run id", offset), nil)
		}
		if bound == RunIDAuto {
			bound = row.RunID
			continue
		}
		if row.RunID != bound {
			return "", pipeline.Wrap(pipeline.ErrRunIDMismatch, Stage, "validate run id",
				fmt.Sprintf("row %d was produced by run %s, expected %s; re-run verification or supply the matching run id", offset, row.RunID, bound), nil)
		}
	}

	if bound == RunIDAuto {
		return "", pipeline.Wrap(pipeline.ErrRunIDMismatch, Stage, "validate run id",
			"manifest is empty; nothing to bind "+RunIDAuto+" against", nil)
	}
	return bound, nil
}

// inScope reports whether the row's on-disk file falls under the named
// top-level partition of the archive root.
func (e *Executor) inScope(row manifest.Row, scope string) bool {
	rel, ok := e.archiveRelative(diskPath(row))
	if !ok {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	return len(parts) > 0 && parts[0] == scope
}

// sweepRow decides and applies the action for one row. Failures never
// propagate; the row is marked errored and the batch continues.
func (e *Executor) sweepRow(ctx context.Context, row manifest.Row, opts Options, summary *Summary, logger *slog.Logger, offset int) manifest.Row {
	row.ProcessedAt = time.Now().UTC()

	fail := func(note string) manifest.Row {
		row.Status = manifest.StatusError
		row.ActionTaken = manifest.ActionError
		row.Notes = note
		summary.Errors++
		logger.Warn("row failed",
			logging.Int(logging.FieldRow, offset),
			logging.String("path", diskPath(row)),
			logging.String("note", note),
		)
		return row
	}
	keep := func(reason string) manifest.Row {
		row.Status = manifest.StatusKept
		row.ActionTaken = manifest.ActionKept
		row.Notes = reason
		summary.Kept++
		return row
	}

	if row.Status != manifest.StatusVerified {
		return fail(pipeline.Wrap(pipeline.ErrInvalidRowState, Stage, "precondition",
			"row is "+string(row.Status)+", expected verified", nil).Error())
	}
	if row.ContentDigest == "" {
		return fail("row carries no content digest")
	}

	group, err := e.groups.GetByDigest(ctx, row.ContentDigest)
	if err != nil {
		return fail("look up hash group: " + err.Error())
	}
	if group == nil {
		return keep(KeepNoGroup)
	}
	if !group.HasCanonical() {
		return keep(KeepNoCanonical)
	}
	if group.CanonicalPath == diskPath(row) {
		return keep(KeepCanonical)
	}

	// Duplicate: quarantine by default, delete only under double
	// confirmation.
	path := diskPath(row)
	deleting := opts.DeletePermanently && opts.ConfirmDelete
	downgraded := opts.DeletePermanently && !opts.ConfirmDelete

	if opts.DryRun {
		if deleting {
			row.Status = manifest.StatusDeleted
			row.ActionTaken = manifest.ActionDeleted
		} else {
			row.Status = manifest.StatusQuarantined
			row.ActionTaken = manifest.ActionQuarantined
			row.QuarantinePath = filepath.Join(e.cfg.Paths.QuarantineRoot, e.quarantineRel(path))
		}
		row.Notes = joinNotes("dry-run: no filesystem changes", downgradeIf(downgraded))
		if deleting {
			summary.Deleted++
		} else {
			summary.Quarantined++
		}
		summary.Downgraded = summary.Downgraded || downgraded
		summary.BytesFreed += row.SizeBytes
		return row
	}

	if deleting {
		if err := os.Remove(path); err != nil {
			return fail("delete: " + err.Error())
		}
		row.Status = manifest.StatusDeleted
		row.ActionTaken = manifest.ActionDeleted
		summary.Deleted++
		summary.BytesFreed += row.SizeBytes
		logger.Info("duplicate deleted", logging.String("path", path))
		return row
	}

	target, err := fileutil.UniquePath(filepath.Join(e.cfg.Paths.QuarantineRoot, e.quarantineRel(path)))
	if err != nil {
		return fail("allocate quarantine path: " + err.Error())
	}
	if err := fileutil.MoveFile(path, target); err != nil {
		return fail("quarantine: " + err.Error())
	}
	row.Status = manifest.StatusQuarantined
	row.ActionTaken = manifest.ActionQuarantined
	row.QuarantinePath = target
	row.Notes = downgradeIf(downgraded)
	summary.Quarantined++
	summary.Downgraded = summary.Downgraded || downgraded
	summary.BytesFreed += row.SizeBytes
	logger.Info("duplicate quarantined",
		logging.String("path", path),
		logging.String("quarantine_path", target),
	)
	return row
}

// quarantineRel maps a file to its location under the quarantine root.
// With scope "year" archive files keep their archive-relative structure;
// "global" flattens everything to one level. Files from outside the
// archive land under an "unknown" partition either way.
func (e *Executor) quarantineRel(path string) string {
	if rel, ok := e.archiveRelative(path); ok {
		if e.cfg.Sweep.Scope == "global" {
			return filepath.Base(path)
		}
		return rel
	}
	return filepath.Join("unknown", filepath.Base(path))
}

func (e *Executor) archiveRelative(path string) (string, bool) {
	root := e.cfg.Paths.ArchiveRoot
	if root == "" {
		return "", false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return rel, true
}

// diskPath returns the file a row refers to on disk: the archive copy when
// recorded, otherwise the source original.
func diskPath(row manifest.Row) string {
	if row.ArchivePath != "" {
		return row.ArchivePath
	}
	return row.SourcePath
}

func downgradeIf(downgraded bool) string {
	if downgraded {
		return downgradeNote
	}
	return ""
}

func joinNotes(parts ...string) string {
	kept := parts[:0]
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, "; ")
}
