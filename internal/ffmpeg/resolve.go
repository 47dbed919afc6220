package ffmpeg

import (
	"fmt"
)

// Environment variables for custom binary paths.
const (
	envFFmpegPath  = "FFMPEG_PATH"
	envFFprobePath = "FFPROBE_PATH"
)

// ---------------------------------------------------------------------------
// Resolver - testable binary resolution with dependency injection
// ---------------------------------------------------------------------------

// Resolver locates the ffmpeg and ffprobe binaries.
type Resolver struct {
	reader fileReader
	env    envProvider
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithFileReader sets the file reader implementation.
func WithFileReader(r fileReader) ResolverOption {
	return func(res *Resolver) { res.reader = r }
}

// WithEnvProvider sets the environment provider implementation.
func WithEnvProvider(e envProvider) ResolverOption {
	return func(res *Resolver) { res.env = e }
}

// NewResolver creates a Resolver with the given options.
// Uses production defaults if no options are provided.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		reader: osFileReader{},
		env:    osEnvProvider{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds ffmpeg using the following precedence:
//  1. FFMPEG_PATH environment variable (error if set but invalid)
//  2. System PATH
func (r *Resolver) Resolve() (string, error) {
	return r.resolve("ffmpeg", envFFmpegPath)
}

// ResolveProbe finds ffprobe using the following precedence:
//  1. FFPROBE_PATH environment variable (error if set but invalid)
//  2. System PATH
//
// ffprobe ships alongside ffmpeg in every distribution we care about, so a
// missing ffprobe almost always means a missing ffmpeg install.
func (r *Resolver) ResolveProbe() (string, error) {
	return r.resolve("ffprobe", envFFprobePath)
}

func (r *Resolver) resolve(binary, envKey string) (string, error) {
	if envPath := r.env.Getenv(envKey); envPath != "" {
		if _, err := r.reader.Stat(envPath); err != nil {
			return "", fmt.Errorf("%w: %s is set to %q but binary not found (unset to search PATH)",
				ErrNotFound, envKey, envPath)
		}
		return envPath, nil
	}

	path, err := r.env.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s not in PATH (install FFmpeg or set %s)",
			ErrNotFound, binary, envKey)
	}
	return path, nil
}
