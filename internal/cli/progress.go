package cli

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/fmueller/moji/internal/pipeline"
	"github.com/fmueller/moji/internal/progress"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// progressSink is a progress.Sink that owns terminal state.
type progressSink interface {
	progress.Sink
	Close()
}

func newProgressSink(enabled bool, logger *zap.Logger) progressSink {
	if !enabled {
		return &logSink{logger: logger}
	}
	return newBarSink(os.Stderr)
}

const barThrottle = 65 * time.Millisecond

type barSink struct {
	once sync.Once
	bar  *progressbar.ProgressBar
}

func newBarSink(w io.Writer) *barSink {
	bar := progressbar.NewOptions(
		100,
		progressbar.OptionSetDescription(""),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionThrottle(barThrottle),
		progressbar.OptionClearOnFinish(),
	)
	return &barSink{bar: bar}
}

// Report stays quiet while the model is being prepared so a model download
// can draw its own bar on the same terminal.
func (s *barSink) Report(fraction float64, stage string) {
	if stage == pipeline.StagePreparing {
		return
	}
	s.bar.Describe(stage)
	_ = s.bar.Set(int(fraction * 100))
}

func (s *barSink) Close() {
	s.once.Do(func() {
		_ = s.bar.Clear()
	})
}

// logSink reports stage changes as debug logs when no terminal is attached.
type logSink struct {
	logger *zap.Logger
	stage  string
}

func (s *logSink) Report(fraction float64, stage string) {
	if stage == s.stage {
		return
	}
	s.stage = stage
	if s.logger != nil {
		s.logger.Debug(stage, zap.Float64("progress", fraction))
	}
}

func (s *logSink) Close() {}
