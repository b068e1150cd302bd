package engine

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned when a generation is triggered for a session
// that already has a run in flight. Two runs must never interleave artifact
// writes against the same session state.
var ErrRunInProgress = errors.New("generation already in progress for this session")

// ErrBadOutput marks an LLM response that failed structural parsing or
// sanity checks. It is recoverable: the agent falls back to templates, the
// same as for a provider failure.
var ErrBadOutput = errors.New("llm output failed validation")

// FatalStageError is the only error that escapes the agent boundary: the
// template fallback itself failed, or a required upstream artifact is
// missing or malformed. It halts the orchestrator and marks the run failed.
type FatalStageError struct {
	Stage Stage
	Err   error
}

func (e *FatalStageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *FatalStageError) Unwrap() error { return e.Err }

// Fatal wraps err as a FatalStageError for the given stage. Wrapping an
// already-fatal error keeps the innermost stage attribution.
func Fatal(stage Stage, err error) *FatalStageError {
	var fe *FatalStageError
	if errors.As(err, &fe) {
		return fe
	}
	return &FatalStageError{Stage: stage, Err: err}
}
