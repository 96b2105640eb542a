package services

import (
	"errors"
	"fmt"
)

// Pipeline stages, in execution order.
const (
	StageLoadParams    = "load_params"
	StageGenerate      = "generate"
	StageEncode        = "encode"
	StagePrepareOutput = "prepare_output"
	StageUpload        = "upload"
	StageMakePublic    = "make_public"
	StageDatabase      = "database"
)

// StageError records which pipeline stage failed. Callers still answer every
// failure the same way; the stage is for logs and metrics.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the failed stage of err, or "unknown".
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return "unknown"
}
