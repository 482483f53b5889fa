package pipeline

import (
	"errors"
	"fmt"
)

// Stage identifies the pipeline step a failure surfaced from.
type Stage string

const (
	StageStaging       Stage = "staging"
	StageTranscription Stage = "transcription"
	StageExtraction    Stage = "extraction"
	StagePersistence   Stage = "persistence"
)

// ErrInvalidCapture is returned for requests missing a payload or a booth
// identifier before any stage runs.
var ErrInvalidCapture = errors.New("invalid capture request")

// StageError wraps a failure with the stage it occurred in. The underlying
// error keeps the capability or storage diagnostics intact.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageError(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
