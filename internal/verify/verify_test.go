package verify_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"keeper/internal/config"
	"keeper/internal/manifest"
	"keeper/internal/testsupport"
	"keeper/internal/verify"
)

type fixture struct {
	cfg        *config.Config
	manifest   string
	verified   string
	unverified string
	state      string
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	return &fixture{
		cfg:        cfg,
		manifest:   filepath.Join(cfg.Paths.StateDir, "input.csv"),
		verified:   filepath.Join(cfg.Paths.StateDir, "verified.csv"),
		unverified: filepath.Join(cfg.Paths.StateDir, "unverified.csv"),
		state:      filepath.Join(cfg.Paths.StateDir, "verify.state"),
	}
}

func (f *fixture) options() verify.Options {
	return verify.Options{
		ManifestPath:   f.manifest,
		VerifiedPath:   f.verified,
		UnverifiedPath: f.unverified,
		StatePath:      f.state,
	}
}

// matchedRow creates identical source and archive files and returns the
// manifest row pointing at both.
func matchedRow(t *testing.T, cfg *config.Config, name string, content []byte) manifest.Row {
	t.Helper()
	src := filepath.Join(testsupport.BaseDir(cfg), "source", name)
	arch := filepath.Join(cfg.Paths.ArchiveRoot, name)
	testsupport.WriteContent(t, src, content)
	testsupport.WriteContent(t, arch, content)
	return manifest.Row{SourcePath: src, ArchivePath: arch, SizeBytes: int64(len(content))}
}

func TestRunVerifiesMatchingRows(t *testing.T) {
	f := newFixture(t)
	rows := []manifest.Row{
		matchedRow(t, f.cfg, "a.mkv", []byte("alpha")),
		matchedRow(t, f.cfg, "b.mkv", []byte("beta")),
	}
	testsupport.WriteManifest(t, f.manifest, manifest.SchemaInput, rows)

	engine := verify.New(f.cfg, nil)
	summary, err := engine.Run(context.Background(), "run-1", f.options())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Processed != 2 || summary.Verified != 2 {
		t.Fatalf("summary = %+v, want 2 processed, 2 verified", summary)
	}

	out, err := manifest.ReadAll(f.verified, manifest.SchemaVerification)
	if err != nil {
		t.Fatalf("read verified manifest: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("verified manifest has %d rows, want 2", len(out))
	}
	for _, row := range out {
		if row.Status != manifest.StatusVerified {
			t.Errorf("row %s status = %q, want verified", row.SourcePath, row.Status)
		}
		if row.RunID != "run-1" {
			t.Errorf("row %s run_id = %q, want run-1", row.SourcePath, row.RunID)
		}
		if row.ContentDigest == "" {
			t.Errorf("row %s has empty digest", row.SourcePath)
		}
		if row.VerifiedAt.IsZero() {
			t.Errorf("row %s has zero verified_at", row.SourcePath)
		}
	}
}

func TestRunRecordsMismatchReasons(t *testing.T) {
	f := newFixture(t)
	base := testsupport.BaseDir(f.cfg)

	// Archive copy absent.
	missingSrc := filepath.Join(base, "source", "missing.mkv")
	testsupport.WriteContent(t, missingSrc, []byte("orphan"))
	// Sizes differ.
	shortSrc := filepath.Join(base, "source", "short.mkv")
	shortArch := filepath.Join(f.cfg.Paths.ArchiveRoot, "short.mkv")
	testsupport.WriteContent(t, shortSrc, []byte("full content"))
	testsupport.WriteContent(t, shortArch, []byte("trunc"))
	// Same size, different bytes.
	corruptSrc := filepath.Join(base, "source", "corrupt.mkv")
	corruptArch := filepath.Join(f.cfg.Paths.ArchiveRoot, "corrupt.mkv")
	testsupport.WriteContent(t, corruptSrc, []byte("aaaa"))
	testsupport.WriteContent(t, corruptArch, []byte("bbbb"))
	// Source vanished after discovery.
	goneSrc := filepath.Join(base, "source", "gone.mkv")
	goneArch := filepath.Join(f.cfg.Paths.ArchiveRoot, "gone.mkv")
	testsupport.WriteContent(t, goneArch, []byte("still here"))

	rows := []manifest.Row{
		{SourcePath: missingSrc, ArchivePath: filepath.Join(f.cfg.Paths.ArchiveRoot, "missing.mkv")},
		{SourcePath: shortSrc, ArchivePath: shortArch},
		{SourcePath: corruptSrc, ArchivePath: corruptArch},
		{SourcePath: goneSrc, ArchivePath: goneArch},
	}
	testsupport.WriteManifest(t, f.manifest, manifest.SchemaInput, rows)

	engine := verify.New(f.cfg, nil)
	summary, err := engine.Run(context.Background(), "run-1", f.options())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Unverified != 4 {
		t.Fatalf("summary = %+v, want 4 unverified", summary)
	}

	out, err := manifest.ReadAll(f.unverified, manifest.SchemaVerification)
	if err != nil {
		t.Fatalf("read unverified manifest: %v", err)
	}
	reasons := make(map[string]string, len(out))
	for _, row := range out {
		reasons[filepath.Base(row.SourcePath)] = row.Reason
	}
	want := map[string]string{
		"missing.mkv": verify.ReasonMissingInArchive,
		"short.mkv":   verify.ReasonSizeMismatch,
		"corrupt.mkv": verify.ReasonDigestMismatch,
		"gone.mkv":    verify.ReasonMissingAtSource,
	}
	for name, reason := range want {
		if reasons[name] != reason {
			t.Errorf("%s reason = %q, want %q", name, reasons[name], reason)
		}
	}
}

func TestRunResumesAfterInterruption(t *testing.T) {
	f := newFixture(t)

	const total = 50
	rows := make([]manifest.Row, 0, total)
	for i := 0; i < total; i++ {
		content := []byte(fmt.Sprintf("content-%03d", i))
		rows = append(rows, matchedRow(t, f.cfg, fmt.Sprintf("f%03d.mkv", i), content))
	}
	testsupport.WriteManifest(t, f.manifest, manifest.SchemaInput, rows)

	engine := verify.New(f.cfg, nil)

	// First invocation stops partway, like a killed process whose cursor
	// survived.
	opts := f.options()
	opts.Limit = 20
	summary, err := engine.Run(context.Background(), "run-1", opts)
	if err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}
	if summary.Processed != 20 {
		t.Fatalf("first batch processed %d rows, want 20", summary.Processed)
	}

	// Second invocation picks up at the next unprocessed offset.
	summary, err = engine.Run(context.Background(), "run-2", f.options())
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if summary.Processed != total-20 {
		t.Fatalf("second batch processed %d rows, want %d", summary.Processed, total-20)
	}

	out, err := manifest.ReadAll(f.verified, manifest.SchemaVerification)
	if err != nil {
		t.Fatalf("read verified manifest: %v", err)
	}
	if len(out) != total {
		t.Fatalf("verified manifest has %d rows, want %d", len(out), total)
	}
	seen := make(map[string]bool, total)
	for _, row := range out {
		if seen[row.SourcePath] {
			t.Fatalf("row %s appears twice in output", row.SourcePath)
		}
		seen[row.SourcePath] = true
	}
}

func TestRunExhaustedStateProcessesNothing(t *testing.T) {
	f := newFixture(t)
	rows := []manifest.Row{matchedRow(t, f.cfg, "a.mkv", []byte("alpha"))}
	testsupport.WriteManifest(t, f.manifest, manifest.SchemaInput, rows)

	engine := verify.New(f.cfg, nil)
	if _, err := engine.Run(context.Background(), "run-1", f.options()); err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}

	summary, err := engine.Run(context.Background(), "run-2", f.options())
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if summary.Processed != 0 {
		t.Fatalf("exhausted state processed %d rows, want 0", summary.Processed)
	}
}

func TestRunRefusesResumeAfterManifestDrift(t *testing.T) {
	f := newFixture(t)
	rows := []manifest.Row{
		matchedRow(t, f.cfg, "a.mkv", []byte("alpha")),
		matchedRow(t, f.cfg, "b.mkv", []byte("beta")),
	}
	testsupport.WriteManifest(t, f.manifest, manifest.SchemaInput, rows)

	engine := verify.New(f.cfg, nil)
	opts := f.options()
	opts.Limit = 1
	if _, err := engine.Run(context.Background(), "run-1", opts); err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}

	// The manifest grows between invocations; the cursor no longer
	// describes this input.
	extra := matchedRow(t, f.cfg, "c.mkv", []byte("gamma"))
	testsupport.WriteManifest(t, f.manifest, manifest.SchemaInput, []manifest.Row{extra})

	if _, err := engine.Run(context.Background(), "run-2", f.options()); err == nil {
		t.Fatal("Run resumed against a drifted manifest")
	}
}

func TestRunParallelPreservesOutputOrderAndCursor(t *testing.T) {
	f := newFixture(t, testsupport.WithWorkers(4))

	const total = 30
	rows := make([]manifest.Row, 0, total)
	for i := 0; i < total; i++ {
		content := []byte(fmt.Sprintf("parallel-%03d", i))
		rows = append(rows, matchedRow(t, f.cfg, fmt.Sprintf("p%03d.mkv", i), content))
	}
	testsupport.WriteManifest(t, f.manifest, manifest.SchemaInput, rows)

	engine := verify.New(f.cfg, nil)
	opts := f.options()
	opts.Workers = f.cfg.Verify.Workers
	summary, err := engine.Run(context.Background(), "run-1", opts)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Verified != total {
		t.Fatalf("summary = %+v, want %d verified", summary, total)
	}

	out, err := manifest.ReadAll(f.verified, manifest.SchemaVerification)
	if err != nil {
		t.Fatalf("read verified manifest: %v", err)
	}
	if len(out) != total {
		t.Fatalf("verified manifest has %d rows, want %d", len(out), total)
	}
	for i, row := range out {
		want := fmt.Sprintf("p%03d.mkv", i)
		if filepath.Base(row.SourcePath) != want {
			t.Fatalf("output row %d = %s, want %s (manifest order violated)", i, filepath.Base(row.SourcePath), want)
		}
	}
}
