package testsupport

import (
	"testing"

	"keeper/internal/catalog"
	"keeper/internal/config"
	"keeper/internal/manifest"
)

// MustOpenCatalog opens a catalog.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg.Paths.StateDir)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// WriteManifest appends rows to path under the given schema, writing the
// header when the file is new.
func WriteManifest(t testing.TB, path string, schema manifest.Schema, rows []manifest.Row) {
	t.Helper()

	writer, err := manifest.OpenWriter(path, schema)
	if err != nil {
		t.Fatalf("manifest.OpenWriter: %v", err)
	}
	for i, row := range rows {
		if err := writer.Write(row); err != nil {
			t.Fatalf("write manifest row %d: %v", i, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close manifest writer: %v", err)
	}
}
