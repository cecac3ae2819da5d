// Package verify implements the manifest verification stage. Each pending
// row is checked for a byte-identical archive counterpart by size and
// content digest, and the results are partitioned into verified and
// unverified output manifests. Progress persists through a resume cursor
// so an interrupted batch loses at most its in-flight rows.
package verify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"keeper/internal/config"
	"keeper/internal/cursor"
	"keeper/internal/hasher"
	"keeper/internal/logging"
	"keeper/internal/manifest"
	"keeper/internal/pipeline"
)

// Stage is the registry name for verification runs.
const Stage = "verify"

// Mismatch reasons recorded on unverified rows.
const (
	ReasonMissingInArchive = "missing-in-archive"
	ReasonMissingAtSource  = "missing-at-source"
	ReasonSizeMismatch     = "size-mismatch"
	ReasonDigestMismatch   = "digest-mismatch"
)

// Options bound one verification invocation.
type Options struct {
	ManifestPath   string
	VerifiedPath   string
	UnverifiedPath string
	StatePath      string

	// Limit caps how many rows this invocation processes. Zero or
	// negative means run to the end of the manifest.
	Limit int
	// Offset skips ahead of the resume cursor when larger than it.
	Offset int
	// Fresh discards prior resume state instead of continuing from it.
	Fresh bool
	// Workers bounds parallel hashing. Values below one run sequentially.
	Workers int
}

// Summary reports what one invocation did.
type Summary struct {
	RunID         string
	Processed     int
	Verified      int
	Unverified    int
	Errors        int
	BytesVerified int64
	Reasons       map[string]int
}

// Engine verifies manifest rows against the archive.
type Engine struct {
	cfg    *config.Config
	hasher *hasher.Hasher
	logger *slog.Logger
}

// New builds an engine from the resolved configuration.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		hasher: hasher.New(cfg.ChunkSizeBytes()),
		logger: logger,
	}
}

// job pairs a manifest row with its offset for the worker pool.
type job struct {
	offset int
	row    manifest.Row
}

// outcome is a fully classified row ready to commit in manifest order.
type outcome struct {
	offset int
	row    manifest.Row
	ok     bool
}

// Run processes one batch of the input manifest under runID. Fatal
// conditions (drift, concurrent run) return before any output is written;
// row-level failures are recorded and never abort the batch.
func (e *Engine) Run(ctx context.Context, runID string, opts Options) (*Summary, error) {
	logger := logging.WithStage(e.logger, Stage, runID)

	fingerprint, err := manifest.Fingerprint(opts.ManifestPath)
	if err != nil {
		return nil, pipeline.Wrap(pipeline.ErrIO, Stage, "fingerprint manifest", opts.ManifestPath, err)
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

	reader, err := manifest.OpenReader(opts.ManifestPath, manifest.SchemaInput)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if err := reader.Skip(start); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	verifiedOut, err := manifest.OpenWriter(opts.VerifiedPath, manifest.SchemaVerification)
	if err != nil {
		return nil, err
	}
	defer verifiedOut.Close()

	unverifiedOut, err := manifest.OpenWriter(opts.UnverifiedPath, manifest.SchemaVerification)
	if err != nil {
		return nil, err
	}
	defer unverifiedOut.Close()

	summary := &Summary{RunID: runID, Reasons: make(map[string]int)}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	logger.Info("verification batch starting",
		logging.String("manifest", opts.ManifestPath),
		logging.Int("start_offset", start),
		logging.Int("workers", workers),
	)

	commit := func(out outcome) error {
		writer := verifiedOut
		if out.row.Status != manifest.StatusVerified {
			writer = unverifiedOut
		}
		if err := writer.Write(out.row); err != nil {
			return err
		}
		if err := handle.Advance(out.offset, out.ok); err != nil {
			return err
		}
		summary.Processed++
		switch out.row.Status {
		case manifest.StatusVerified:
			summary.Verified++
			summary.BytesVerified += out.row.SizeBytes
		case manifest.StatusError:
			summary.Errors++
		default:
			summary.Unverified++
			summary.Reasons[out.row.Reason]++
		}
		return nil
	}

	var runErr error
	if workers == 1 {
		runErr = e.runSequential(ctx, runID, reader, opts.Limit, commit, logger)
	} else {
		runErr = e.runParallel(ctx, runID, reader, opts.Limit, workers, start, commit, logger)
	}
	if runErr != nil {
		return summary, runErr
	}

	logger.Info("verification batch finished",
		logging.Int("processed", summary.Processed),
		logging.Int("verified", summary.Verified),
		logging.Int("unverified", summary.Unverified),
		logging.Int("errors", summary.Errors),
	)
	if summary.Errors > 0 {
		return summary, pipeline.Wrap(pipeline.ErrIO, Stage, "batch",
			"one or more rows could not be verified due to read errors", nil)
	}
	return summary, nil
}

func (e *Engine) runSequential(ctx context.Context, runID string, reader *manifest.Reader, limit int, commit func(outcome) error, logger *slog.Logger) error {
	processed := 0
	for limit <= 0 || processed < limit {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, offset, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := commit(e.verifyRow(ctx, runID, row, offset, logger)); err != nil {
			return err
		}
		processed++
	}
	return nil
}

// runParallel hashes rows across a bounded pool. Workers may finish out of
// order but outcomes are committed strictly in manifest order, so the
// persisted cursor only ever covers a contiguous processed prefix.
func (e *Engine) runParallel(ctx context.Context, runID string, reader *manifest.Reader, limit, workers, start int, commit func(outcome) error, logger *slog.Logger) error {
	jobs := make(chan job, workers)
	results := make(chan outcome, workers)

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var readErr error
	go func() {
		defer close(jobs)
		dispatched := 0
		for limit <= 0 || dispatched < limit {
			if readCtx.Err() != nil {
				return
			}
			row, offset, err := reader.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				readErr = err
				return
			}
			select {
			case jobs <- job{offset: offset, row: row}:
			case <-readCtx.Done():
				return
			}
			dispatched++
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case results <- e.verifyRow(readCtx, runID, j.row, j.offset, logger):
				case <-readCtx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	pending := make(map[int]outcome)
	next := start
	for out := range results {
		pending[out.offset] = out
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if err := commit(ready); err != nil {
				cancel()
				for range results {
					// Drain so the workers can exit.
				}
				return err
			}
			next++
		}
	}

	if readErr != nil {
		return readErr
	}
	return ctx.Err()
}

// verifyRow classifies one row. IO failures during hashing mark the row
// error rather than failing the batch.
func (e *Engine) verifyRow(ctx context.Context, runID string, row manifest.Row, offset int, logger *slog.Logger) outcome {
	row.RunID = runID
	row.VerifiedAt = time.Now().UTC()

	classify := func(status manifest.Status, reason string) outcome {
		row.Status = status
		row.Reason = reason
		ok := status == manifest.StatusVerified
		if !ok {
			logger.Warn("row not verified",
				logging.Int(logging.FieldRow, offset),
				logging.String("source_path", row.SourcePath),
				logging.String("reason", reason),
			)
		}
		return outcome{offset: offset, row: row, ok: ok}
	}

	srcInfo, err := os.Stat(row.SourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return classify(manifest.StatusUnverified, ReasonMissingAtSource)
		}
		return classify(manifest.StatusError, "stat source: "+err.Error())
	}

	if row.ArchivePath == "" {
		return classify(manifest.StatusUnverified, ReasonMissingInArchive)
	}
	archInfo, err := os.Stat(row.ArchivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return classify(manifest.StatusUnverified, ReasonMissingInArchive)
		}
		return classify(manifest.StatusError, "stat archive: "+err.Error())
	}

	if srcInfo.Size() != archInfo.Size() {
		return classify(manifest.StatusUnverified, ReasonSizeMismatch)
	}

	srcDigest, err := e.hasher.SumFile(ctx, row.SourcePath)
	if err != nil {
		return classify(manifest.StatusError, "hash source: "+err.Error())
	}
	archDigest, err := e.hasher.SumFile(ctx, row.ArchivePath)
	if err != nil {
		return classify(manifest.StatusError, "hash archive: "+err.Error())
	}

	row.SizeBytes = srcInfo.Size()
	row.ContentDigest = srcDigest
	if srcDigest != archDigest {
		return classify(manifest.StatusUnverified, ReasonDigestMismatch)
	}
	return classify(manifest.StatusVerified, "")
}
