package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fmueller/moji/internal/language"
	"github.com/fmueller/moji/internal/pipeline"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file",
		Long: "Transcribe an audio file (mp3, wav, m4a, flac, ogg, aac, wma or anything else ffmpeg decodes)\n" +
			"and print the transcript to stdout.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transcribeFn := app.transcribeFn
			if transcribeFn == nil {
				transcribeFn = app.transcribeFile
			}

			transcript, err := transcribeFn(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), transcript)
			if isBlankTranscript(transcript) {
				app.log().Warn(noSpeechHint())
			}
			if output != "" {
				if err := writeTranscriptFile(output, transcript); err != nil {
					return err
				}
				app.log().Info("transcript saved", zap.String("path", output))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&app.language, "language", app.language, "Spoken language: auto, a code (ja|en|zh|...) or a name (Japanese, 日本語, ...)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Also write the transcript to this file")
	bindPipelineFlags(cmd, app)
	return cmd
}

func (a *appState) transcribeFile(ctx context.Context, audioPath string) (string, error) {
	audioPath = filepath.Clean(audioPath)
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("audio file not found: %w", err)
	}

	hint, err := language.Parse(a.language)
	if err != nil {
		return "", err
	}

	orchestrator, err := a.newOrchestrator(nil)
	if err != nil {
		return "", err
	}

	req := pipeline.Request{ID: uuid.NewString(), SourcePath: audioPath, Language: hint}
	a.log().Info("transcribing...", zap.String("audio", audioPath), zap.String("model", a.model), zap.Stringer("language", hint))

	sink := newProgressSink(a.progressEnabled(), a.log())
	started := time.Now()
	transcript, err := orchestrator.Transcribe(ctx, req, sink)
	sink.Close()
	if err != nil {
		return "", err
	}
	a.log().Info("transcription finished", zap.Duration("elapsed", time.Since(started)))

	return transcript, nil
}
