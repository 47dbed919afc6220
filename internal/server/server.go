// Package server exposes the transcription pipeline over HTTP: uploads go
// in, job state and live events come out. Fiber carries the routes, a
// websocket per job streams progress, and Prometheus metrics are served
// when enabled.
package server

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/audio"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/config"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/metrics"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/transcribe"
)

const shutdownTimeout = 10 * time.Second

// Hooks carries the per-job callbacks the server wires into a pipeline run.
type Hooks struct {
	Status   transcribe.StatusFunc
	Progress transcribe.ProgressFunc
	Segment  transcribe.SegmentFunc
}

// Pipeline runs one transcription from source bytes to a finished job.
type Pipeline interface {
	Run(ctx context.Context, src audio.Source, language string, hooks Hooks) (*transcribe.Job, error)
}

// PipelineFunc adapts a function to the Pipeline interface.
type PipelineFunc func(ctx context.Context, src audio.Source, language string, hooks Hooks) (*transcribe.Job, error)

func (f PipelineFunc) Run(ctx context.Context, src audio.Source, language string, hooks Hooks) (*transcribe.Job, error) {
	return f(ctx, src, language, hooks)
}

// Options configures a Server.
type Options struct {
	Config   config.ServerConfig
	Log      *logrus.Logger
	Pipeline Pipeline
	// Metrics instruments HTTP traffic when set.
	Metrics *metrics.Metrics
	// Gatherer backs the /metrics endpoint. Defaults to the global
	// Prometheus gatherer.
	Gatherer prometheus.Gatherer
}

// Server is the HTTP front end for transcription jobs.
type Server struct {
	cfg      config.ServerConfig
	app      *fiber.App
	log      logrus.FieldLogger
	pipeline Pipeline
	registry *Registry
	metrics  *metrics.Metrics
	validate *validator.Validate

	// baseCtx parents every job; Shutdown cancels it.
	baseCtx   context.Context
	cancel    context.CancelFunc
	jobs      sync.WaitGroup
	startTime time.Time
}

// New builds a Server with its routes registered.
func New(opts Options) (*Server, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("server: pipeline is required")
	}

	log := logrus.FieldLogger(opts.Log)
	if opts.Log == nil {
		silent := logrus.New()
		silent.SetOutput(io.Discard)
		log = silent
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       opts.Config,
		log:       log,
		pipeline:  opts.Pipeline,
		registry:  NewRegistry(),
		metrics:   opts.Metrics,
		validate:  validator.New(),
		baseCtx:   baseCtx,
		cancel:    cancel,
		startTime: time.Now(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "vegvisr-audio",
		BodyLimit:             opts.Config.BodyLimit(),
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(RequestLogger(log))
	if opts.Metrics != nil {
		app.Use(MetricsMiddleware(opts.Metrics))
	}

	app.Get("/healthz", s.handleHealth)

	api := app.Group("/api")
	api.Post("/transcriptions", s.handleCreate)
	api.Get("/transcriptions", s.handleList)
	api.Get("/transcriptions/:id", s.handleGet)

	app.Use("/api/transcriptions/:id/events", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/api/transcriptions/:id/events", websocket.New(s.handleEvents))

	if opts.Config.MetricsEnabled {
		gatherer := opts.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	s.app = app
	return s, nil
}

// Listen serves until the listener fails or Shutdown is called.
func (s *Server) Listen() error {
	s.log.WithField("addr", s.cfg.ListenAddr).Info("server listening")
	return s.app.Listen(s.cfg.ListenAddr)
}

// Shutdown stops accepting requests, cancels running jobs and waits for
// them to wind down.
func (s *Server) Shutdown() error {
	s.cancel()
	s.jobs.Wait()
	return s.app.ShutdownWithTimeout(shutdownTimeout)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
