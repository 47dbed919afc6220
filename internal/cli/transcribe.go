package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/audio"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/config"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/interrupt"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/lang"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/transcribe"
)

// supportedFormats lists audio container extensions the pipeline accepts.
// Anything ffmpeg can decode works for chunking; this list gates what we are
// willing to send to the transcription endpoint as-is.
var supportedFormats = map[string]bool{
	".ogg":  true,
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".flac": true,
	".mp4":  true,
	".mpeg": true,
	".mpga": true,
	".webm": true,
}

// supportedFormatsList returns a sorted, comma-separated list for error messages.
func supportedFormatsList() string {
	formats := make([]string, 0, len(supportedFormats))
	for ext := range supportedFormats {
		formats = append(formats, strings.TrimPrefix(ext, "."))
	}
	slices.Sort(formats)
	return strings.Join(formats, ", ")
}

// transcribeOptions carries the transcribe command's flag values.
type transcribeOptions struct {
	InputPath     string
	Output        string
	Language      string
	ChunkDuration time.Duration
	Endpoint      string
	Model         string
	ConfigPath    string
}

// TranscribeCmd creates the transcribe command.
// The env parameter provides injectable dependencies for testing.
func TranscribeCmd(env *Env) *cobra.Command {
	var opts transcribeOptions

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file",
		Long: `Transcribe an audio file through the remote Whisper endpoint.

Long files are decoded with ffmpeg, split into fixed-duration chunks and
transcribed chunk by chunk; each chunk's text is prefixed with its time range.
Short files are sent whole in a single request. If chunking fails (for
example because ffmpeg is not installed), the whole file is sent as-is.

The transcript is written to stdout unless --output is given. A first Ctrl+C
stops after the current chunk and prints the partial transcript; a second
Ctrl+C aborts immediately.

Supported formats: ` + supportedFormatsList(),
		Example: `  vegvisr-audio transcribe lecture.mp3
  vegvisr-audio transcribe lecture.mp3 -o lecture.txt
  vegvisr-audio transcribe interview.m4a -l no
  vegvisr-audio transcribe podcast.ogg --chunk-duration 90s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.InputPath = args[0]
			return runTranscribe(cmd, env, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVarP(&opts.Language, "language", "l", "", "Audio language hint (ISO 639-1 code, e.g. en, no, pt-BR)")
	cmd.Flags().DurationVar(&opts.ChunkDuration, "chunk-duration", 0, "Chunk length for long files (default: 2m)")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "Transcription endpoint URL (overrides config)")
	cmd.Flags().StringVar(&opts.Model, "model", "", "Transcription model (overrides config)")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "Config file path")

	return cmd
}

// runTranscribe executes the transcription pipeline.
// Validation order: file exists -> format -> config -> language -> token
func runTranscribe(cmd *cobra.Command, env *Env, opts transcribeOptions) error {
	// 1. File exists
	if _, err := os.Stat(opts.InputPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, opts.InputPath)
		}
		return fmt.Errorf("cannot access input file: %w", err)
	}

	// 2. Format supported
	ext := strings.ToLower(filepath.Ext(opts.InputPath))
	if !supportedFormats[ext] {
		return fmt.Errorf("unsupported format %q (supported: %s): %w",
			ext, supportedFormatsList(), ErrUnsupportedFormat)
	}

	// 3. Config; flags win over environment and file
	cfg, err := loadConfig(env, opts.ConfigPath)
	if err != nil {
		return err
	}

	language := cfg.Transcription.Language
	if opts.Language != "" {
		language = opts.Language
	}
	endpoint := cfg.Transcription.Endpoint
	if opts.Endpoint != "" {
		endpoint = opts.Endpoint
	}
	model := cfg.Transcription.Model
	if opts.Model != "" {
		model = opts.Model
	}
	chunkDuration := cfg.Audio.ChunkDuration()
	if opts.ChunkDuration > 0 {
		chunkDuration = opts.ChunkDuration
	}

	// 4. Language hint valid
	if err := lang.Validate(language); err != nil {
		return err
	}

	// 5. Caller identity present
	token := cfg.Transcription.Token
	if token == "" {
		return fmt.Errorf("%w (set it with: export %s=...)",
			transcribe.ErrIdentityMissing, config.EnvToken)
	}

	var outputPath string
	if opts.Output != "" {
		outputPath = config.ResolveOutputPath(opts.Output, config.ExpandPath(cfg.Output.Dir), "")
	}

	// === SETUP ===

	ffmpegPath, ffprobePath := resolveBinaries(env)

	data, err := os.ReadFile(opts.InputPath) // #nosec G304 -- user-specified input file
	if err != nil {
		return fmt.Errorf("cannot read input file: %w", err)
	}
	src := audio.Source{Name: filepath.Base(opts.InputPath), Data: data}

	client, err := env.TranscriberFactory.NewTranscriber(endpoint, token,
		transcribe.WithModel(model),
		transcribe.WithTimeout(cfg.Transcription.Timeout()),
	)
	if err != nil {
		return err
	}

	orchOpts := []transcribe.OrchestratorOption{
		transcribe.WithChunkDuration(chunkDuration),
		transcribe.WithStatusFunc(func(_ transcribe.Status, message string) {
			fmt.Fprintln(env.Stderr, message)
		}),
	}
	if cfg.Transcription.MaxRetries > 0 {
		orchOpts = append(orchOpts, transcribe.WithChunkRetries(cfg.Transcription.MaxRetries))
	}

	pipeline := env.PipelineFactory.NewPipeline(
		env.AudioFactory.NewProber(ffprobePath),
		env.AudioFactory.NewDecoder(ffmpegPath, ffprobePath, cfg.Audio.SampleRate),
		client,
		orchOpts...,
	)

	// === TRANSCRIPTION ===

	// First Ctrl+C cancels the job context, second one force quits.
	handler, ctx := interrupt.NewHandler(cmd.Context())
	defer handler.Stop()

	job, err := pipeline.Run(ctx, src, language)
	if err != nil {
		// An interrupted job may still hold finished chunks worth keeping.
		if handler.WasInterrupted() && job != nil && len(job.Segments) > 0 {
			fmt.Fprintf(env.Stderr, "Interrupted: partial transcript (%d of %d chunks)\n",
				len(job.Segments), job.Total)
			if werr := emitTranscript(env, outputPath, job.Result().Text); werr != nil {
				return werr
			}
		}
		return err
	}

	result := job.Result()
	fmt.Fprintf(env.Stderr, "Detected language: %s\n", result.Language)
	return emitTranscript(env, outputPath, result.Text)
}

// loadConfig loads configuration for a command. A broken explicitly-given
// file is fatal; an implicit load failure degrades to defaults with a warning
// so the CLI stays usable without any config file.
func loadConfig(env *Env, path string) (config.Config, error) {
	cfg, err := env.ConfigLoader.Load(path)
	if err != nil {
		if path != "" {
			return config.Config{}, err
		}
		fmt.Fprintf(env.Stderr, "Warning: failed to load config: %v\n", err)
		return config.Default(), nil
	}
	return cfg, nil
}

// resolveBinaries locates ffmpeg and ffprobe. A missing binary is not fatal:
// probing degrades to "duration unknown" and a failed decode falls back to
// sending the original bytes whole.
func resolveBinaries(env *Env) (ffmpegPath, ffprobePath string) {
	var err error
	if ffmpegPath, err = env.BinaryResolver.ResolveFFmpeg(); err != nil {
		fmt.Fprintf(env.Stderr, "Warning: %v (large files cannot be chunked)\n", err)
	}
	if ffprobePath, err = env.BinaryResolver.ResolveFFprobe(); err != nil {
		fmt.Fprintf(env.Stderr, "Warning: %v (duration detection disabled)\n", err)
	}
	return ffmpegPath, ffprobePath
}
