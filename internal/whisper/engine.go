package whisper

import "context"

type TranscriptionRequest struct {
	AudioPath string
	ModelPath string
	// Language is a language code; empty or "auto" lets the engine detect it.
	Language string
}

type Engine interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
}
