package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIO marks a row-level read or write failure. The affected row is
	// recorded as errored and the batch continues.
	ErrIO = errors.New("io error")
	// ErrManifestDrift marks a stage-level mismatch between the input
	// manifest and the fingerprint recorded in resume state.
	ErrManifestDrift = errors.New("manifest drift")
	// ErrInvalidRowState marks a row that is not in the status a stage
	// requires as a precondition.
	ErrInvalidRowState = errors.New("invalid row state")
	// ErrRunIDMismatch marks a manifest whose run identifier does not match
	// the expected run. Fatal before any disk mutation.
	ErrRunIDMismatch = errors.New("run id mismatch")
	// ErrConcurrentRun marks a state file already owned by another running
	// stage instance.
	ErrConcurrentRun = errors.New("concurrent run")
)

// Exit codes distinguish "refused to run" from "ran with row errors".
const (
	ExitOK        = 0
	ExitRefused   = 1
	ExitRowErrors = 2
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided sentinel for later classification.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether an error must abort the stage before any further
// filesystem mutation.
func IsFatal(err error) bool {
	return errors.Is(err, ErrManifestDrift) ||
		errors.Is(err, ErrRunIDMismatch) ||
		errors.Is(err, ErrConcurrentRun)
}

// FailureExitCode maps a stage error to the process exit code the CLI
// should return. Only row-level failures report ExitRowErrors; anything
// else, a bad flag or config included, means the batch never ran and is a
// refusal.
func FailureExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, ErrIO) || errors.Is(err, ErrInvalidRowState) {
		return ExitRowErrors
	}
	return ExitRefused
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "stage failure"
	}
	return strings.Join(parts, ": ")
}
