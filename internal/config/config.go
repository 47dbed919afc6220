// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/audio"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/transcribe"
)

// ErrInvalid marks any configuration failure: an unreadable file, bad YAML
// or a value that fails validation.
var ErrInvalid = errors.New("invalid configuration")

// DefaultEndpoint is the transcription proxy used when none is configured.
const DefaultEndpoint = "https://api.vegvisr.org/transcribe"

// Environment variable overrides. Each one, when set and non-empty, wins over
// the config file.
const (
	EnvToken      = "VEGVISR_API_TOKEN"
	EnvEndpoint   = "VEGVISR_ENDPOINT"
	EnvModel      = "VEGVISR_MODEL"
	EnvLanguage   = "VEGVISR_LANGUAGE"
	EnvListenAddr = "VEGVISR_LISTEN_ADDR"
	EnvLogLevel   = "VEGVISR_LOG_LEVEL"
	EnvOutputDir  = "VEGVISR_OUTPUT_DIR"
)

// Config is the complete service configuration.
type Config struct {
	Transcription TranscriptionConfig `yaml:"transcription"`
	Audio         AudioConfig         `yaml:"audio"`
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	Output        OutputConfig        `yaml:"output"`
}

// TranscriptionConfig configures the remote Whisper endpoint.
type TranscriptionConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Token          string `yaml:"token"`
	Model          string `yaml:"model"`
	Language       string `yaml:"language"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// AudioConfig configures decoding and chunking.
type AudioConfig struct {
	SampleRate           int `yaml:"sample_rate"`
	ChunkDurationSeconds int `yaml:"chunk_duration_seconds"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	BodyLimitMB    int    `yaml:"body_limit_mb"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// OutputConfig configures where the CLI writes transcripts.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() Config {
	return Config{
		Transcription: TranscriptionConfig{
			Endpoint:       DefaultEndpoint,
			Model:          transcribe.DefaultModel,
			TimeoutSeconds: 300,
			MaxRetries:     0,
		},
		Audio: AudioConfig{
			SampleRate:           audio.DefaultSampleRate,
			ChunkDurationSeconds: int(audio.DefaultChunkDuration / time.Second),
		},
		Server: ServerConfig{
			ListenAddr:     ":8090",
			BodyLimitMB:    100,
			MetricsEnabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file, then
// environment overrides, then validation.
//
// With an empty path the default location is tried and a missing file is not
// an error. An explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = defaultPath()
	}

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- config path comes from the operator
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("%w: failed to parse config file %s: %v", ErrInvalid, path, err)
			}
		case os.IsNotExist(err) && !explicit:
			// No config file is fine; defaults and environment apply.
		default:
			return Config{}, fmt.Errorf("%w: failed to read config file %s: %v", ErrInvalid, path, err)
		}
	}

	cfg.applyEnv(envLookup(os.Getenv))

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}

// envLookup adapts a Getenv-style function for applyEnv.
type envLookup func(key string) string

func (c *Config) applyEnv(getenv envLookup) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Transcription.Token, EnvToken)
	set(&c.Transcription.Endpoint, EnvEndpoint)
	set(&c.Transcription.Model, EnvModel)
	set(&c.Transcription.Language, EnvLanguage)
	set(&c.Server.ListenAddr, EnvListenAddr)
	set(&c.Logging.Level, EnvLogLevel)
	set(&c.Output.Dir, EnvOutputDir)
}

// defaultPath returns the default config file location. Uses XDG_CONFIG_HOME
// if set, otherwise ~/.config/vegvisr-audio. Empty when no home directory can
// be determined.
func defaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vegvisr-audio", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "vegvisr-audio", "config.yaml")
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate validates the transcription section. The token is deliberately not
// required here: commands that never call the endpoint must work without one.
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	if t.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if t.TimeoutSeconds < 1 {
		return fmt.Errorf("timeout_seconds must be at least 1, got %d", t.TimeoutSeconds)
	}
	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}
	return nil
}

// Validate validates the audio section.
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 {
		return fmt.Errorf("sample_rate must be at least 8000 Hz, got %d", a.SampleRate)
	}
	if a.ChunkDurationSeconds < 1 {
		return fmt.Errorf("chunk_duration_seconds must be at least 1, got %d", a.ChunkDurationSeconds)
	}
	return nil
}

// Validate validates the server section.
func (s *ServerConfig) Validate() error {
	if s.ListenAddr == "" {
		return fmt.Errorf("listen_addr cannot be empty")
	}
	if s.BodyLimitMB < 1 {
		return fmt.Errorf("body_limit_mb must be at least 1, got %d", s.BodyLimitMB)
	}
	return nil
}

// Validate validates the logging section.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "warning": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [trace, debug, info, warn, error], got %q", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got %q", l.Format)
	}
	return nil
}

// Timeout returns the per-request timeout as a time.Duration.
func (t *TranscriptionConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// ChunkDuration returns the chunk length as a time.Duration.
func (a *AudioConfig) ChunkDuration() time.Duration {
	return time.Duration(a.ChunkDurationSeconds) * time.Second
}

// BodyLimit returns the server body limit in bytes.
func (s *ServerConfig) BodyLimit() int {
	return s.BodyLimitMB << 20
}

// ResolveOutputPath resolves the final transcript path using the following
// precedence:
//  1. If output is absolute, use it as-is
//  2. If output is relative and outputDir is set, join them
//  3. If output is empty, use defaultName in outputDir (or cwd if no outputDir)
func ResolveOutputPath(output, outputDir, defaultName string) string {
	if output != "" && filepath.IsAbs(output) {
		return filepath.Clean(output)
	}

	if output != "" {
		if outputDir != "" {
			return filepath.Clean(filepath.Join(outputDir, output))
		}
		return filepath.Clean(output)
	}

	if outputDir != "" {
		return filepath.Clean(filepath.Join(outputDir, defaultName))
	}
	return filepath.Clean(defaultName)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[2:])
	}
	return p
}
