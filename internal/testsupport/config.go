package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"keeper/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// All four roots exist on return so stage code can use them immediately.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ArchiveRoot = filepath.Join(base, "archive")
	cfg.Paths.QuarantineRoot = filepath.Join(base, "quarantine")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, dir := range []string{
		cfg.Paths.ArchiveRoot,
		cfg.Paths.QuarantineRoot,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithWorkers overrides the verify worker count on the test config.
func WithWorkers(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Verify.Workers = n
	}
}

// WithSweepScope overrides the sweep scope on the test config.
func WithSweepScope(scope string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Sweep.Scope = scope
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ArchiveRoot)
}
