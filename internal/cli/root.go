package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fmueller/moji/internal/convert"
	"github.com/fmueller/moji/internal/download"
	"github.com/fmueller/moji/internal/logging"
	"github.com/fmueller/moji/internal/pipeline"
	"github.com/fmueller/moji/internal/platform"
	"github.com/fmueller/moji/internal/version"
	"github.com/fmueller/moji/internal/whisper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

type appState struct {
	verbose      bool
	jsonLogs     bool
	noProgress   bool
	model        string
	modelDir     string
	workDir      string
	language     string
	autoDownload bool
	silenceGate  bool
	silenceDBFS  float64

	logger *zap.Logger

	loadModelFn  pipeline.Loader
	normalizer   pipeline.Normalizer
	transcribeFn func(ctx context.Context, audioPath string) (string, error)
	downloadFn   func(ctx context.Context, opts download.Options) error
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(newAppState())
}

func newAppState() *appState {
	app := &appState{
		model:        whisper.DefaultModel,
		language:     "auto",
		autoDownload: true,
		silenceDBFS:  pipeline.DefaultSilenceDBFS,
	}
	app.transcribeFn = app.transcribeFile
	return app
}

func newRootCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "moji",
		Short:         "Transcribe audio files to text with a local whisper engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(logging.Options{
				Verbose: app.verbose,
				JSON:    app.jsonLogs,
				Writer:  cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger
			return nil
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	flags.BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
	flags.BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
	flags.StringVar(&app.model, "model", app.model, "Model name or model file path")
	flags.StringVar(&app.modelDir, "model-dir", app.modelDir, "Directory where models are stored")
	flags.BoolVar(&app.autoDownload, "auto-download", app.autoDownload, "Automatically download missing models")

	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newLanguagesCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindPipelineFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.workDir, "work-dir", app.workDir, "Directory for temporary normalized audio")
	cmd.Flags().BoolVar(&app.silenceGate, "silence-gate", app.silenceGate, "Skip inference when the normalized audio is near-silent")
	cmd.Flags().Float64Var(&app.silenceDBFS, "silence-threshold-dbfs", app.silenceDBFS, "Silence gate threshold in dBFS")
}

// newOrchestrator wires the model cache, ffmpeg normalizer and observer into
// a pipeline. The model is not loaded until the first transcription.
func (a *appState) newOrchestrator(observer pipeline.Observer) (*pipeline.Orchestrator, error) {
	workDir, err := platform.ResolveWorkDir(a.workDir)
	if err != nil {
		return nil, err
	}

	loader := a.loadModelFn
	if loader == nil {
		loader, err = a.whisperLoader()
		if err != nil {
			return nil, err
		}
	}

	return pipeline.New(pipeline.Options{
		Models:               pipeline.NewModelCache(loader, a.log().Named("model")),
		Normalizer:           a.pipelineNormalizer(),
		WorkDir:              workDir,
		Logger:               a.log().Named("pipeline"),
		Observer:             observer,
		SilenceGate:          a.silenceGate,
		SilenceThresholdDBFS: a.silenceDBFS,
	})
}

func (a *appState) pipelineNormalizer() pipeline.Normalizer {
	if a.normalizer != nil {
		return a.normalizer
	}
	return convert.NewNormalizer(a.log().Named("ffmpeg"))
}

func (a *appState) whisperLoader() (pipeline.Loader, error) {
	modelDir, err := platform.ResolveModelDir(a.modelDir)
	if err != nil {
		return nil, err
	}

	opts := whisper.LoadOptions{
		Model:        a.model,
		ModelDir:     modelDir,
		AutoDownload: a.autoDownload,
		NoProgress:   !a.progressEnabled(),
		Logger:       a.log().Named("whisper"),
	}
	return func(ctx context.Context) (pipeline.Model, error) {
		model, err := whisper.Load(ctx, opts)
		if err != nil {
			return nil, err
		}
		return model, nil
	}, nil
}

func (a *appState) modelStorageDir() (string, error) {
	dir, err := platform.ResolveModelDir(a.modelDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
