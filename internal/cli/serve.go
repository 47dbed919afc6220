package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/audio"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/config"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/metrics"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/server"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/transcribe"
)

// ServeCmd creates the serve command.
func ServeCmd(env *Env) *cobra.Command {
	var (
		addr       string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the transcription HTTP API",
		Long: `Start the HTTP API: multipart uploads in, job state and a websocket
progress stream out. Prometheus metrics are exposed on /metrics unless
disabled in the config.

The server shuts down gracefully on SIGINT/SIGTERM, cancelling any running
transcription job first.`,
		Example: `  vegvisr-audio serve
  vegvisr-audio serve --addr :9000 --config ./config.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, env, addr, configPath)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&configPath, "config", "", "Config file path")

	return cmd
}

// runServe wires the shared pipeline pieces into the HTTP server and runs it
// until the context is cancelled. Unlike the one-shot commands, a broken
// config is fatal here: a daemon must not start on silently degraded settings.
func runServe(cmd *cobra.Command, env *Env, addr, configPath string) error {
	cfg, err := env.ConfigLoader.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.ListenAddr = addr
	}

	token := cfg.Transcription.Token
	if token == "" {
		return fmt.Errorf("%w (set it with: export %s=...)",
			transcribe.ErrIdentityMissing, config.EnvToken)
	}

	log := config.NewLogger(cfg.Logging)

	ffmpegPath, ffprobePath := resolveBinaries(env)

	client, err := env.TranscriberFactory.NewTranscriber(cfg.Transcription.Endpoint, token,
		transcribe.WithModel(cfg.Transcription.Model),
		transcribe.WithTimeout(cfg.Transcription.Timeout()),
	)
	if err != nil {
		return err
	}

	prober := env.AudioFactory.NewProber(ffprobePath)
	decoder := env.AudioFactory.NewDecoder(ffmpegPath, ffprobePath, cfg.Audio.SampleRate)

	var m *metrics.Metrics
	if cfg.Server.MetricsEnabled {
		m = metrics.New(nil)
	}

	// Each job gets its own orchestrator so the server's per-job hooks can be
	// attached; the prober, decoder and client are shared.
	pipeline := server.PipelineFunc(func(ctx context.Context, src audio.Source, language string, hooks server.Hooks) (*transcribe.Job, error) {
		opts := []transcribe.OrchestratorOption{
			transcribe.WithChunkDuration(cfg.Audio.ChunkDuration()),
			transcribe.WithLogger(log),
			transcribe.WithMetrics(m),
			transcribe.WithStatusFunc(hooks.Status),
			transcribe.WithProgressFunc(hooks.Progress),
			transcribe.WithSegmentFunc(hooks.Segment),
		}
		if cfg.Transcription.MaxRetries > 0 {
			opts = append(opts, transcribe.WithChunkRetries(cfg.Transcription.MaxRetries))
		}
		return env.PipelineFactory.NewPipeline(prober, decoder, client, opts...).Run(ctx, src, language)
	})

	srv, err := env.ServerFactory.NewServer(server.Options{
		Config:   cfg.Server,
		Log:      log,
		Pipeline: pipeline,
		Metrics:  m,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Listen)
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			fmt.Fprintln(env.Stderr, "Shutting down...")
		}
		return srv.Shutdown()
	})
	return g.Wait()
}
