package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fmueller/moji/internal/metrics"
	"github.com/fmueller/moji/internal/pipeline"
	"github.com/fmueller/moji/internal/platform"
	"github.com/fmueller/moji/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type serveOptions struct {
	addr      string
	maxUpload int64
	preload   bool
}

func newServeCmd(app *appState) *cobra.Command {
	opts := serveOptions{addr: server.DefaultAddr, maxUpload: server.DefaultMaxUploadBytes}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the transcription API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := app.newServer(ctx, opts)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "Listen address")
	cmd.Flags().Int64Var(&opts.maxUpload, "max-upload-bytes", opts.maxUpload, "Maximum accepted upload size in bytes")
	cmd.Flags().BoolVar(&opts.preload, "preload", opts.preload, "Load the model at startup instead of on the first request")
	bindPipelineFlags(cmd, app)
	return cmd
}

func (a *appState) newServer(ctx context.Context, opts serveOptions) (*server.Server, error) {
	if !a.verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	uploadDir, err := platform.ResolveWorkDir(a.workDir)
	if err != nil {
		return nil, err
	}

	if checker, ok := a.pipelineNormalizer().(interface{ Available() bool }); ok && !checker.Available() {
		a.log().Warn("ffmpeg not found, uploads will fail conversion until it is installed or MOJI_FFMPEG_PATH is set")
	}

	// Downloads in a service never draw a terminal bar.
	a.noProgress = true
	orchestrator, err := a.newOrchestrator(m)
	if err != nil {
		return nil, err
	}
	models := orchestrator.Models()

	var states []string
	for _, state := range pipeline.ModelStates() {
		states = append(states, state.String())
	}
	m.WatchModelState(states, func() string { return models.State().String() })

	if opts.preload {
		go func() {
			if _, err := models.Get(ctx); err != nil {
				a.log().Error("model preload failed", zap.Error(err))
			}
		}()
	}

	return server.New(server.Config{
		Addr:           opts.addr,
		MaxUploadBytes: opts.maxUpload,
		UploadDir:      uploadDir,
	}, server.Deps{
		Transcriber: orchestrator,
		Models:      models,
		Metrics:     m,
		Gatherer:    registry,
		Logger:      a.log().Named("http"),
	})
}
