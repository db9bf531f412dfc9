// Package logging builds the zap loggers used by every moji command.
package logging

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const samplingTick = time.Second

type Options struct {
	Verbose bool
	// JSON selects the production JSON encoder; otherwise a compact console
	// encoder without timestamps is used.
	JSON bool
	// Writer defaults to os.Stderr.
	Writer io.Writer
}

func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	var writer zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	if opts.Writer != nil {
		writer = zapcore.Lock(zapcore.AddSync(opts.Writer))
	}

	core := zapcore.NewCore(encoder(opts.JSON), writer, zap.NewAtomicLevelAt(level))

	zapOpts := []zap.Option{zap.ErrorOutput(writer)}
	if opts.Verbose {
		zapOpts = append(zapOpts, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	}
	if opts.JSON {
		zapOpts = append(zapOpts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewSamplerWithOptions(c, samplingTick, 100, 100)
		}))
	}

	return zap.New(core, zapOpts...), nil
}

func encoder(json bool) zapcore.Encoder {
	if json {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(cfg)
	}

	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = ""
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}
