package cli

import (
	"context"
	"io"
	"os"

	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/audio"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/config"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/ffmpeg"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/server"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/transcribe"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have production defaults via DefaultEnv(). Tests override
// specific fields using the With* options or by creating a custom Env.
//
// Env must not be nil when passed to command functions. Use DefaultEnv()
// or NewEnv() to create a valid instance.
type Env struct {
	// I/O
	Stdout io.Writer
	Stderr io.Writer

	// Factories for domain objects
	ConfigLoader       ConfigLoader
	BinaryResolver     BinaryResolver
	AudioFactory       AudioFactory
	TranscriberFactory TranscriberFactory
	PipelineFactory    PipelineFactory
	ServerFactory      ServerFactory
}

// ConfigLoader loads configuration from a file path (empty = default path).
type ConfigLoader interface {
	Load(path string) (config.Config, error)
}

// BinaryResolver locates the ffmpeg and ffprobe binaries.
type BinaryResolver interface {
	ResolveFFmpeg() (string, error)
	ResolveFFprobe() (string, error)
}

// AudioFactory creates probers and decoders bound to resolved binaries.
type AudioFactory interface {
	NewProber(ffprobePath string) transcribe.Prober
	NewDecoder(ffmpegPath, ffprobePath string, sampleRate int) audio.Decoder
}

// TranscriberFactory creates transcription clients.
type TranscriberFactory interface {
	NewTranscriber(endpoint, token string, opts ...transcribe.ClientOption) (transcribe.Transcriber, error)
}

// Pipeline runs one source end to end.
type Pipeline interface {
	Run(ctx context.Context, src audio.Source, language string) (*transcribe.Job, error)
}

// PipelineFactory assembles the transcription pipeline.
type PipelineFactory interface {
	NewPipeline(prober transcribe.Prober, decoder audio.Decoder, client transcribe.Transcriber, opts ...transcribe.OrchestratorOption) Pipeline
}

// HTTPServer is the serve command's view of the API server.
type HTTPServer interface {
	Listen() error
	Shutdown() error
}

// ServerFactory creates the HTTP API server.
type ServerFactory interface {
	NewServer(opts server.Options) (HTTPServer, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) { e.Stdout = w }
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) { e.Stderr = w }
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) { e.ConfigLoader = l }
}

// WithBinaryResolver sets the ffmpeg binary resolver.
func WithBinaryResolver(r BinaryResolver) EnvOption {
	return func(e *Env) { e.BinaryResolver = r }
}

// WithAudioFactory sets the audio factory.
func WithAudioFactory(f AudioFactory) EnvOption {
	return func(e *Env) { e.AudioFactory = f }
}

// WithTranscriberFactory sets the transcriber factory.
func WithTranscriberFactory(f TranscriberFactory) EnvOption {
	return func(e *Env) { e.TranscriberFactory = f }
}

// WithPipelineFactory sets the pipeline factory.
func WithPipelineFactory(f PipelineFactory) EnvOption {
	return func(e *Env) { e.PipelineFactory = f }
}

// WithServerFactory sets the server factory.
func WithServerFactory(f ServerFactory) EnvOption {
	return func(e *Env) { e.ServerFactory = f }
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:             os.Stdout,
		Stderr:             os.Stderr,
		ConfigLoader:       &defaultConfigLoader{},
		BinaryResolver:     &defaultBinaryResolver{},
		AudioFactory:       &defaultAudioFactory{},
		TranscriberFactory: &defaultTranscriberFactory{},
		PipelineFactory:    &defaultPipelineFactory{},
		ServerFactory:      &defaultServerFactory{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

type defaultConfigLoader struct{}

func (defaultConfigLoader) Load(path string) (config.Config, error) {
	return config.Load(path)
}

type defaultBinaryResolver struct{}

func (defaultBinaryResolver) ResolveFFmpeg() (string, error) {
	return ffmpeg.NewResolver().Resolve()
}

func (defaultBinaryResolver) ResolveFFprobe() (string, error) {
	return ffmpeg.NewResolver().ResolveProbe()
}

type defaultAudioFactory struct{}

func (defaultAudioFactory) NewProber(ffprobePath string) transcribe.Prober {
	return audio.NewProber(ffprobePath)
}

func (defaultAudioFactory) NewDecoder(ffmpegPath, ffprobePath string, sampleRate int) audio.Decoder {
	return audio.NewFFmpegDecoder(ffmpegPath, ffprobePath, audio.WithSampleRate(sampleRate))
}

type defaultTranscriberFactory struct{}

func (defaultTranscriberFactory) NewTranscriber(endpoint, token string, opts ...transcribe.ClientOption) (transcribe.Transcriber, error) {
	return transcribe.NewClient(endpoint, token, opts...)
}

type defaultPipelineFactory struct{}

func (defaultPipelineFactory) NewPipeline(prober transcribe.Prober, decoder audio.Decoder, client transcribe.Transcriber, opts ...transcribe.OrchestratorOption) Pipeline {
	return transcribe.NewOrchestrator(prober, decoder, client, opts...)
}

type defaultServerFactory struct{}

func (defaultServerFactory) NewServer(opts server.Options) (HTTPServer, error) {
	return server.New(opts)
}

// Compile-time interface verification.
var (
	_ ConfigLoader       = (*defaultConfigLoader)(nil)
	_ BinaryResolver     = (*defaultBinaryResolver)(nil)
	_ AudioFactory       = (*defaultAudioFactory)(nil)
	_ TranscriberFactory = (*defaultTranscriberFactory)(nil)
	_ PipelineFactory    = (*defaultPipelineFactory)(nil)
	_ ServerFactory      = (*defaultServerFactory)(nil)
	_ Pipeline           = (*transcribe.Orchestrator)(nil)
	_ HTTPServer         = (*server.Server)(nil)
)
