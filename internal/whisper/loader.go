package whisper

import (
	"context"
	"fmt"
	"os"

	"github.com/fmueller/moji/internal/download"
	"go.uber.org/zap"
)

// Model is a ready-to-use model file paired with the engine that runs it.
// It holds no mutable state and may be shared between requests.
type Model struct {
	Name   string
	Path   string
	Engine Engine
}

func (m *Model) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	return m.Engine.Transcribe(ctx, TranscriptionRequest{
		AudioPath: audioPath,
		ModelPath: m.Path,
		Language:  language,
	})
}

type LoadOptions struct {
	Model        string
	ModelDir     string
	AutoDownload bool
	NoProgress   bool
	Logger       *zap.Logger

	// NewEngine and Download default to NewBundledEngine and download.DownloadFile.
	NewEngine func(*zap.Logger) (Engine, error)
	Download  func(context.Context, download.Options) error
}

// Load locates the engine and makes sure the model file is on disk,
// downloading a named model when allowed.
func Load(ctx context.Context, opts LoadOptions) (*Model, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	newEngine := opts.NewEngine
	if newEngine == nil {
		newEngine = func(l *zap.Logger) (Engine, error) { return NewBundledEngine(l) }
	}

	fetch := opts.Download
	if fetch == nil {
		fetch = download.DownloadFile
	}

	engine, err := newEngine(logger)
	if err != nil {
		return nil, err
	}

	if opts.ModelDir != "" {
		if err := os.MkdirAll(opts.ModelDir, 0o755); err != nil {
			return nil, fmt.Errorf("create model directory %s: %w", opts.ModelDir, err)
		}
	}

	resolved, err := ResolveModel(opts.Model, opts.ModelDir)
	if err != nil {
		return nil, err
	}

	if resolved.NeedsDownload {
		if !opts.AutoDownload {
			return nil, fmt.Errorf("model %q is missing at %s; run `moji setup --model %s` or use --auto-download=true", resolved.Name, resolved.Path, resolved.Name)
		}

		logger.Info("model not found, downloading", zap.String("model", resolved.Name), zap.String("destination", resolved.Path))
		if err := fetch(ctx, download.Options{
			URL:            resolved.URL,
			Destination:    resolved.Path,
			ExpectedSHA256: resolved.SHA256,
			NoProgress:     opts.NoProgress,
			Logger:         logger,
		}); err != nil {
			return nil, fmt.Errorf("download model %q: %w", resolved.Name, err)
		}
	}

	logger.Info("model ready", zap.String("model", resolved.Name), zap.String("path", resolved.Path))
	return &Model{Name: resolved.Name, Path: resolved.Path, Engine: engine}, nil
}
