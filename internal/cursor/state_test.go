package cursor_test

import (
	"errors"
	"path/filepath"
	"testing"

	"keeper/internal/cursor"
	"keeper/internal/pipeline"
)

func TestAcquireFreshAndAdvance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verify.state")

	handle, err := cursor.Acquire(path, "verify", "fp-1", cursor.Options{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if handle.NextOffset() != 0 {
		t.Fatalf("fresh cursor should start at 0, got %d", handle.NextOffset())
	}

	if err := handle.Advance(0, true); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if err := handle.Advance(1, false); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if err := handle.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	resumed, err := cursor.Acquire(path, "verify", "fp-1", cursor.Options{})
	if err != nil {
		t.Fatalf("re-Acquire failed: %v", err)
	}
	defer resumed.Release()

	if resumed.NextOffset() != 2 {
		t.Fatalf("expected resume at offset 2, got %d", resumed.NextOffset())
	}
	counts := resumed.State().Counts
	if counts.Processed != 2 || counts.OK != 1 || counts.Errors != 1 {
		t.Fatalf("counts did not survive resume: %+v", counts)
	}
}

func TestAcquireDetectsConcurrentRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verify.state")

	first, err := cursor.Acquire(path, "verify", "fp-1", cursor.Options{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer first.Release()

	_, err = cursor.Acquire(path, "verify", "fp-1", cursor.Options{})
	if !errors.Is(err, pipeline.ErrConcurrentRun) {
		t.Fatalf("expected ErrConcurrentRun, got %v", err)
	}
}

func TestAcquireDetectsManifestDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verify.state")

	handle, err := cursor.Acquire(path, "verify", "fp-1", cursor.Options{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := handle.Advance(0, true); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if err := handle.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	_, err = cursor.Acquire(path, "verify", "fp-2", cursor.Options{})
	if !errors.Is(err, pipeline.ErrManifestDrift) {
		t.Fatalf("expected ErrManifestDrift, got %v", err)
	}

	// An explicit fresh start is allowed and resets the offset.
	fresh, err := cursor.Acquire(path, "verify", "fp-2", cursor.Options{Fresh: true})
	if err != nil {
		t.Fatalf("fresh Acquire failed: %v", err)
	}
	defer fresh.Release()
	if fresh.NextOffset() != 0 {
		t.Fatalf("fresh cursor should reset to 0, got %d", fresh.NextOffset())
	}
}

func TestAcquireDetectsStageMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.state")

	handle, err := cursor.Acquire(path, "verify", "fp-1", cursor.Options{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := handle.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	_, err = cursor.Acquire(path, "sweep", "fp-1", cursor.Options{})
	if !errors.Is(err, pipeline.ErrManifestDrift) {
		t.Fatalf("expected ErrManifestDrift for stage mismatch, got %v", err)
	}
}

func TestAdvanceNeverMovesBackward(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verify.state")

	handle, err := cursor.Acquire(path, "verify", "fp-1", cursor.Options{})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer handle.Release()

	if err := handle.Advance(5, true); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if err := handle.Advance(3, true); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if handle.NextOffset() != 6 {
		t.Fatalf("cursor moved backward: %d", handle.NextOffset())
	}
}
