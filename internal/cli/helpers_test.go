package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"

	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/config"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// Compile-time check that syncBuffer implements io.Writer.
var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// testMocks - all mocked dependencies plus the captured output streams
// ---------------------------------------------------------------------------

type testMocks struct {
	stdout *syncBuffer
	stderr *syncBuffer

	configLoader   *mockConfigLoader
	binaryResolver *mockBinaryResolver
	audioFactory   *mockAudioFactory
	transcriber    *mockTranscriberFactory
	pipeline       *mockPipelineFactory
	server         *mockServerFactory
}

func newTestMocks() *testMocks {
	return &testMocks{
		stdout:         &syncBuffer{},
		stderr:         &syncBuffer{},
		configLoader:   &mockConfigLoader{},
		binaryResolver: &mockBinaryResolver{},
		audioFactory:   &mockAudioFactory{},
		transcriber:    &mockTranscriberFactory{},
		pipeline:       &mockPipelineFactory{},
		server:         &mockServerFactory{},
	}
}

// testEnv creates a test Env with all dependencies mocked.
// Returns the Env and the mocks for assertions.
func testEnv() (*Env, *testMocks) {
	mocks := newTestMocks()

	env := &Env{
		Stdout:             mocks.stdout,
		Stderr:             mocks.stderr,
		ConfigLoader:       mocks.configLoader,
		BinaryResolver:     mocks.binaryResolver,
		AudioFactory:       mocks.audioFactory,
		TranscriberFactory: mocks.transcriber,
		PipelineFactory:    mocks.pipeline,
		ServerFactory:      mocks.server,
	}

	return env, mocks
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// createTestCmd creates a bare cobra.Command carrying ctx, for run functions
// that read cmd.Context().
func createTestCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	return cmd
}

// testConfig returns the default config with an API token filled in, the
// minimum most commands need to get past validation.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.Transcription.Token = "test-token"
	return cfg
}

// staticConfig returns a LoadFunc that always yields cfg.
func staticConfig(cfg config.Config) func(string) (config.Config, error) {
	return func(string) (config.Config, error) {
		return cfg, nil
	}
}

// createTestAudioFile creates a temporary audio file for testing.
// Returns the file path. The file is automatically cleaned up after the test.
func createTestAudioFile(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)

	// Write minimal content to make the file non-empty
	if err := os.WriteFile(path, []byte("fake audio content"), 0644); err != nil {
		t.Fatalf("failed to create test audio file: %v", err)
	}
	return path
}
