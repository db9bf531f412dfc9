package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/fmueller/moji/internal/audio"
	"github.com/fmueller/moji/internal/progress"
	"go.uber.org/zap"
)

const (
	SampleRate = 16000
	Channels   = 1
	Codec      = "pcm_s16le"

	// ConvertedFraction is reported once ffmpeg has exited successfully.
	// Conversion is the cheaper of the two stages, so it gets the smaller share.
	ConvertedFraction = 0.4
	StageLabel        = "converting audio"
)

// ConversionError is returned when ffmpeg could not be started, exited
// non-zero, or produced something other than 16 kHz mono 16-bit PCM.
type ConversionError struct {
	Input  string
	Output string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("convert %s: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("convert %s: %v (%s)", e.Input, e.Err, e.Output)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

type Normalizer struct {
	Executable string
	Logger     *zap.Logger
}

// NewNormalizer uses MOJI_FFMPEG_PATH when set, otherwise ffmpeg from PATH.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}

	executable := "ffmpeg"
	if override := strings.TrimSpace(os.Getenv("MOJI_FFMPEG_PATH")); override != "" {
		executable = override
	}

	return &Normalizer{Executable: executable, Logger: logger}
}

// Available reports whether the ffmpeg executable can be found.
func (n *Normalizer) Available() bool {
	_, err := exec.LookPath(n.executable())
	return err == nil
}

// Normalize decodes inputPath and writes it to outputPath as a 16 kHz mono
// signed 16-bit little-endian WAV file, overwriting outputPath. On error the
// contents of outputPath are undefined.
func (n *Normalizer) Normalize(ctx context.Context, inputPath, outputPath string, sink progress.Sink) error {
	if strings.TrimSpace(inputPath) == "" {
		return &ConversionError{Input: inputPath, Err: errors.New("input path is required")}
	}
	if strings.TrimSpace(outputPath) == "" {
		return &ConversionError{Input: inputPath, Err: errors.New("output path is required")}
	}
	if sink == nil {
		sink = progress.Discard
	}

	args := Args(inputPath, outputPath)
	cmd := exec.CommandContext(ctx, n.executable(), args...)

	n.log().Debug("running ffmpeg", zap.String("ffmpeg", n.executable()), zap.Strings("args", args))
	out, err := cmd.CombinedOutput()
	diagnostics := strings.TrimSpace(string(out))
	if err != nil {
		n.log().Debug("ffmpeg failed", zap.Error(err), zap.String("output", diagnostics))
		return &ConversionError{Input: inputPath, Output: diagnostics, Err: err}
	}

	format, err := audio.ReadWAVFormat(outputPath)
	if err != nil {
		return &ConversionError{Input: inputPath, Output: diagnostics, Err: fmt.Errorf("inspect converted audio: %w", err)}
	}
	if !format.IsPCM16Mono(SampleRate) {
		return &ConversionError{
			Input:  inputPath,
			Output: diagnostics,
			Err: fmt.Errorf("converted audio has unexpected format: %d Hz, %d channel(s), %d-bit",
				format.SampleRate, format.Channels, format.BitsPerSample),
		}
	}

	n.log().Debug("audio normalized", zap.String("output", outputPath), zap.Duration("duration", format.Duration()))
	sink.Report(ConvertedFraction, StageLabel)
	return nil
}

// Args returns the ffmpeg arguments for one normalization.
func Args(inputPath, outputPath string) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-i", inputPath,
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-c:a", Codec,
		"-y",
		outputPath,
	}
}

func (n *Normalizer) executable() string {
	if n == nil || strings.TrimSpace(n.Executable) == "" {
		return "ffmpeg"
	}
	return n.Executable
}

func (n *Normalizer) log() *zap.Logger {
	if n == nil || n.Logger == nil {
		return zap.NewNop()
	}
	return n.Logger
}
