package cursor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"keeper/internal/pipeline"
)

// Counts tracks per-stage row totals.
type Counts struct {
	Processed int `json:"processed"`
	OK        int `json:"ok"`
	Errors    int `json:"errors"`
}

// State is the persisted key-value structure backing a resume cursor.
type State struct {
	Stage            string `json:"stage"`
	InputFingerprint string `json:"input_fingerprint"`
	LastOffset       int    `json:"last_offset"`
	Counts           Counts `json:"counts"`
	GenerationToken  string `json:"generation_token"`
	UpdatedAtUTC     string `json:"updated_at_utc"`
}

// Handle owns a state file for the duration of one stage invocation.
type Handle struct {
	path  string
	lock  *flock.Flock
	state State
}

// Options control how a cursor is acquired.
type Options struct {
	// Fresh discards any existing state instead of resuming from it.
	Fresh bool
}

// Acquire locks and loads the state file at path for the given stage and
// input fingerprint. A held lock returns ErrConcurrentRun. Existing state
// recorded against a different fingerprint (or stage) returns
// ErrManifestDrift unless opts.Fresh is set.
func Acquire(path, stage, inputFingerprint string, opts Options) (*Handle, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, pipeline.Wrap(pipeline.ErrIO, stage, "create state dir", dir, err)
		}
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, pipeline.Wrap(pipeline.ErrIO, stage, "acquire state lock", path, err)
	}
	if !locked {
		return nil, pipeline.Wrap(pipeline.ErrConcurrentRun, stage, "acquire state lock",
			fmt.Sprintf("state file %s is owned by another running instance", path), nil)
	}

	handle := &Handle{
		path: path,
		lock: lock,
		state: State{
			Stage:            stage,
			InputFingerprint: inputFingerprint,
			GenerationToken:  uuid.NewString(),
		},
	}

	existing, err := load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run against this state file.
	case err != nil:
		_ = lock.Unlock()
		return nil, err
	case opts.Fresh:
		// Caller explicitly discarded prior progress.
	case existing.Stage != stage || existing.InputFingerprint != inputFingerprint:
		_ = lock.Unlock()
		return nil, pipeline.Wrap(pipeline.ErrManifestDrift, stage, "resume",
			fmt.Sprintf("state file %s was recorded against a different input manifest; rerun with a fresh state file or --fresh", path), nil)
	default:
		handle.state.LastOffset = existing.LastOffset
		handle.state.Counts = existing.Counts
	}

	return handle, nil
}

// State returns a copy of the current cursor state.
func (h *Handle) State() State {
	return h.state
}

// NextOffset returns the first unprocessed manifest offset.
func (h *Handle) NextOffset() int {
	return h.state.LastOffset
}

// Advance records that the row at offset finished (ok or errored) and
// persists the cursor. Offsets only move forward; the persisted value is
// always a contiguous processed prefix.
func (h *Handle) Advance(offset int, ok bool) error {
	if offset+1 > h.state.LastOffset {
		h.state.LastOffset = offset + 1
	}
	h.state.Counts.Processed++
	if ok {
		h.state.Counts.OK++
	} else {
		h.state.Counts.Errors++
	}
	return h.save()
}

// Release persists final state and drops the lock.
func (h *Handle) Release() error {
	if h == nil {
		return nil
	}
	saveErr := h.save()
	unlockErr := h.lock.Unlock()
	if saveErr != nil {
		return saveErr
	}
	return unlockErr
}

func (h *Handle) save() error {
	h.state.UpdatedAtUTC = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(h.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return pipeline.Wrap(pipeline.ErrIO, h.state.Stage, "write state", tmp, err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return pipeline.Wrap(pipeline.ErrIO, h.state.Stage, "replace state", h.path, err)
	}
	return nil
}

func load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, fs.ErrNotExist
		}
		return State{}, pipeline.Wrap(pipeline.ErrIO, "", "read state", path, err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parse state %s: %w", path, err)
	}
	return state, nil
}
