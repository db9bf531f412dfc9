package pipeline

import (
	"errors"
	"fmt"
)

// Stage names the part of the pipeline that failed.
type Stage string

const (
	StageModelLoad  Stage = "model_load"
	StageConversion Stage = "conversion"
	StageInference  Stage = "inference"
)

var (
	// ErrModelLoad is fatal for the process: the model is never reloaded.
	ErrModelLoad  = errors.New("inference model could not be loaded")
	ErrConversion = errors.New("audio conversion failed")
	ErrInference  = errors.New("speech recognition failed")
)

func (s Stage) sentinel() error {
	switch s {
	case StageModelLoad:
		return ErrModelLoad
	case StageConversion:
		return ErrConversion
	case StageInference:
		return ErrInference
	default:
		return nil
	}
}

// Error is the single failure type returned by Transcribe. errors.Is matches
// the sentinel of the failed stage; errors.As reaches the underlying cause.
type Error struct {
	Stage     Stage
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	if sentinel := e.Stage.sentinel(); sentinel != nil {
		return fmt.Sprintf("%v: %v", sentinel, e.Err)
	}
	return fmt.Sprintf("transcription failed in stage %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	sentinel := e.Stage.sentinel()
	return sentinel != nil && target == sentinel
}

// CleanupWarning reports a scratch file that could not be removed. It is
// logged and counted but never returned from Transcribe.
type CleanupWarning struct {
	Path string
	Err  error
}

func (w *CleanupWarning) Error() string {
	return fmt.Sprintf("remove normalized audio %s: %v", w.Path, w.Err)
}

func (w *CleanupWarning) Unwrap() error {
	return w.Err
}

var (
	errNoLoader = errors.New("no model loader configured")
	errNilModel = errors.New("model loader returned no model")
)
