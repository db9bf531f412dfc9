// Package pipeline turns an uploaded audio file into transcript text: it makes
// sure the model is loaded, normalizes the audio, runs inference and removes
// the intermediate file on every exit path.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/fmueller/moji/internal/audio"
	"github.com/fmueller/moji/internal/convert"
	"github.com/fmueller/moji/internal/language"
	"github.com/fmueller/moji/internal/progress"
	"go.uber.org/zap"
)

const (
	StagePreparing    = "preparing model"
	StageConverting   = convert.StageLabel
	StageTranscribing = "transcribing"
	StageDone         = "done"

	// DefaultSilenceDBFS is the silence gate threshold when none is configured.
	DefaultSilenceDBFS = -45.0
)

const (
	modelReadyFraction = 0.2
	convertedFraction  = 0.6

	scratchFilePattern = "moji-*.wav"

	outcomeSuccess = "success"
	outcomeSilent  = "silent"

	stageMetricModel   = "model"
	stageMetricConvert = "convert"
	stageMetricInfer   = "inference"
)

// Request is one transcription job. SourcePath belongs to the caller and is
// only ever read.
type Request struct {
	ID         string
	SourcePath string
	Language   language.Hint
}

// Normalizer converts arbitrary audio into 16 kHz mono 16-bit PCM WAV.
type Normalizer interface {
	Normalize(ctx context.Context, inputPath, outputPath string, sink progress.Sink) error
}

// Observer receives pipeline measurements. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveStage(stage string, elapsed time.Duration)
	ObserveOutcome(outcome string)
	ObserveCleanupFailure()
	ObserveAudioDuration(d time.Duration)
	TrackInFlight() func()
}

type Options struct {
	Models     *ModelCache
	Normalizer Normalizer
	// WorkDir holds scratch files. Empty means os.TempDir().
	WorkDir  string
	Logger   *zap.Logger
	Observer Observer

	// SilenceGate skips inference when the normalized audio stays below
	// SilenceThresholdDBFS and returns an empty transcript instead.
	SilenceGate          bool
	SilenceThresholdDBFS float64
}

type Orchestrator struct {
	models     *ModelCache
	normalizer Normalizer
	workDir    string
	logger     *zap.Logger
	observer   Observer

	silenceGate      bool
	silenceThreshold float64

	remove func(string) error
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Models == nil {
		return nil, errors.New("model cache is required")
	}
	if opts.Normalizer == nil {
		return nil, errors.New("normalizer is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var observer Observer = nopObserver{}
	if opts.Observer != nil {
		observer = opts.Observer
	}
	threshold := opts.SilenceThresholdDBFS
	if threshold == 0 {
		threshold = DefaultSilenceDBFS
	}

	return &Orchestrator{
		models:           opts.Models,
		normalizer:       opts.Normalizer,
		workDir:          opts.WorkDir,
		logger:           logger,
		observer:         observer,
		silenceGate:      opts.SilenceGate,
		silenceThreshold: threshold,
		remove:           os.Remove,
	}, nil
}

// Models exposes the shared model cache, e.g. for health reporting.
func (o *Orchestrator) Models() *ModelCache {
	return o.models
}

// Transcribe runs one request to completion. Progress goes to sink as
// (0, preparing) → (0.2, preparing) → (0.2, converting) → (0.4, converting)
// → (0.6, transcribing) → (1.0, done); 1.0 is reported only on success.
// Every failure is a *Error. The scratch file is gone by the time it returns.
func (o *Orchestrator) Transcribe(ctx context.Context, req Request, sink progress.Sink) (string, error) {
	progressSink := progress.NewMonotonic(sink)
	log := o.logger.With(
		zap.String("request_id", req.ID),
		zap.String("source", req.SourcePath),
		zap.Stringer("language", req.Language),
	)
	defer o.observer.TrackInFlight()()

	progressSink.Report(0, StagePreparing)
	started := time.Now()
	model, err := o.models.Get(ctx)
	o.observer.ObserveStage(stageMetricModel, time.Since(started))
	if err != nil {
		return "", o.fail(log, req, StageModelLoad, err)
	}
	progressSink.Report(modelReadyFraction, StagePreparing)

	scratch, err := o.acquireScratch()
	if err != nil {
		return "", o.fail(log, req, StageConversion, err)
	}
	defer o.release(log, scratch)

	progressSink.Report(modelReadyFraction, StageConverting)
	started = time.Now()
	err = o.normalizer.Normalize(ctx, req.SourcePath, scratch, progressSink)
	o.observer.ObserveStage(stageMetricConvert, time.Since(started))
	if err != nil {
		return "", o.fail(log, req, StageConversion, err)
	}
	progressSink.Report(convertedFraction, StageTranscribing)

	if o.silent(log, scratch) {
		progressSink.Report(1, StageDone)
		o.observer.ObserveOutcome(outcomeSilent)
		return "", nil
	}

	started = time.Now()
	text, err := model.Transcribe(ctx, scratch, req.Language.Code())
	o.observer.ObserveStage(stageMetricInfer, time.Since(started))
	if err != nil {
		return "", o.fail(log, req, StageInference, err)
	}

	progressSink.Report(1, StageDone)
	o.observer.ObserveOutcome(outcomeSuccess)
	log.Info("transcription finished", zap.Int("characters", len([]rune(text))))
	return text, nil
}

func (o *Orchestrator) fail(log *zap.Logger, req Request, stage Stage, err error) error {
	o.observer.ObserveOutcome(string(stage))
	log.Error("transcription failed", zap.String("stage", string(stage)), zap.Error(err))
	return &Error{Stage: stage, RequestID: req.ID, Err: err}
}

func (o *Orchestrator) acquireScratch() (string, error) {
	f, err := os.CreateTemp(o.workDir, scratchFilePattern)
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close scratch file: %w", err)
	}
	return path, nil
}

func (o *Orchestrator) release(log *zap.Logger, path string) {
	err := o.remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return
	}
	warning := &CleanupWarning{Path: path, Err: err}
	o.observer.ObserveCleanupFailure()
	log.Warn("scratch file cleanup failed", zap.Error(warning))
}

// silent reports whether the gate is on and the normalized audio is silent.
// Inspection errors fall through to inference.
func (o *Orchestrator) silent(log *zap.Logger, scratch string) bool {
	format, err := audio.ReadWAVFormat(scratch)
	if err == nil {
		o.observer.ObserveAudioDuration(format.Duration())
	}
	if !o.silenceGate {
		return false
	}

	silent, levels, err := audio.IsSilentWAV(scratch, o.silenceThreshold)
	if err != nil {
		log.Debug("silence check skipped", zap.Error(err))
		return false
	}
	if silent {
		log.Info("audio is silent, skipping inference",
			zap.Float64("rms_dbfs", levels.RMSdBFS),
			zap.Float64("peak_dbfs", levels.PeakdBFS))
	}
	return silent
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, time.Duration) {}
func (nopObserver) ObserveOutcome(string)              {}
func (nopObserver) ObserveCleanupFailure()             {}
func (nopObserver) ObserveAudioDuration(time.Duration) {}
func (nopObserver) TrackInFlight() func()              { return func() {} }
