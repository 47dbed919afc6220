package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
)

// ---------------------------------------------------------------------------
// Executor - testable FFmpeg execution with dependency injection
// ---------------------------------------------------------------------------

// runStdoutFn is the function type for running a command and capturing stdout.
type runStdoutFn func(ctx context.Context, path string, args []string) ([]byte, error)

// Executor runs FFmpeg suite commands with injectable dependencies.
type Executor struct {
	runStdout runStdoutFn
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRunStdout sets a custom runStdout function (for testing).
func WithRunStdout(fn runStdoutFn) ExecutorOption {
	return func(e *Executor) { e.runStdout = fn }
}

// NewExecutor creates an Executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		runStdout: defaultRunStdout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunStdout executes the binary and captures its stdout.
// This is the data channel for both ffprobe JSON output and raw PCM streams
// decoded to pipe:1; diagnostics stay on stderr and surface only in errors.
func (e *Executor) RunStdout(ctx context.Context, path string, args []string) ([]byte, error) {
	return e.runStdout(ctx, path, args)
}

// defaultRunStdout is the production implementation.
func defaultRunStdout(ctx context.Context, path string, args []string) ([]byte, error) {
	// #nosec G204 -- path comes from Resolver, args are built internally
	cmd := exec.CommandContext(ctx, path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w\nOutput: %s", filepath.Base(path), err, stderr.String())
	}
	return stdout.Bytes(), nil
}
