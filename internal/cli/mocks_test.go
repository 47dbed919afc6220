package cli

import (
	"context"
	"sync"

	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/audio"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/config"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/server"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/transcribe"
)

// ---------------------------------------------------------------------------
// Mock ConfigLoader
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	LoadFunc func(path string) (config.Config, error)

	mu        sync.Mutex
	loadCalls []string // paths passed
}

func (m *mockConfigLoader) Load(path string) (config.Config, error) {
	m.mu.Lock()
	m.loadCalls = append(m.loadCalls, path)
	m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc(path)
	}
	return config.Default(), nil
}

func (m *mockConfigLoader) LoadCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loadCalls...)
}

// ---------------------------------------------------------------------------
// Mock BinaryResolver
// ---------------------------------------------------------------------------

type mockBinaryResolver struct {
	ResolveFFmpegFunc  func() (string, error)
	ResolveFFprobeFunc func() (string, error)

	mu           sync.Mutex
	ffmpegCalls  int
	ffprobeCalls int
}

func (m *mockBinaryResolver) ResolveFFmpeg() (string, error) {
	m.mu.Lock()
	m.ffmpegCalls++
	m.mu.Unlock()

	if m.ResolveFFmpegFunc != nil {
		return m.ResolveFFmpegFunc()
	}
	return "/usr/bin/ffmpeg", nil
}

func (m *mockBinaryResolver) ResolveFFprobe() (string, error) {
	m.mu.Lock()
	m.ffprobeCalls++
	m.mu.Unlock()

	if m.ResolveFFprobeFunc != nil {
		return m.ResolveFFprobeFunc()
	}
	return "/usr/bin/ffprobe", nil
}

func (m *mockBinaryResolver) FFmpegCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ffmpegCalls
}

func (m *mockBinaryResolver) FFprobeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ffprobeCalls
}

// ---------------------------------------------------------------------------
// Mock AudioFactory + Prober + Decoder
// ---------------------------------------------------------------------------

type mockAudioFactory struct {
	NewProberFunc  func(ffprobePath string) transcribe.Prober
	NewDecoderFunc func(ffmpegPath, ffprobePath string, sampleRate int) audio.Decoder

	mu           sync.Mutex
	proberCalls  []string // ffprobe paths passed
	decoderCalls []decoderCall
	mockProber   *mockProber
	mockDecoder  *mockDecoder
}

type decoderCall struct {
	FFmpegPath  string
	FFprobePath string
	SampleRate  int
}

func (m *mockAudioFactory) NewProber(ffprobePath string) transcribe.Prober {
	m.mu.Lock()
	m.proberCalls = append(m.proberCalls, ffprobePath)
	m.mu.Unlock()

	if m.NewProberFunc != nil {
		return m.NewProberFunc(ffprobePath)
	}
	if m.mockProber != nil {
		return m.mockProber
	}
	return &mockProber{}
}

func (m *mockAudioFactory) NewDecoder(ffmpegPath, ffprobePath string, sampleRate int) audio.Decoder {
	m.mu.Lock()
	m.decoderCalls = append(m.decoderCalls, decoderCall{
		FFmpegPath:  ffmpegPath,
		FFprobePath: ffprobePath,
		SampleRate:  sampleRate,
	})
	m.mu.Unlock()

	if m.NewDecoderFunc != nil {
		return m.NewDecoderFunc(ffmpegPath, ffprobePath, sampleRate)
	}
	if m.mockDecoder != nil {
		return m.mockDecoder
	}
	return &mockDecoder{}
}

func (m *mockAudioFactory) ProberCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.proberCalls...)
}

func (m *mockAudioFactory) DecoderCalls() []decoderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]decoderCall, len(m.decoderCalls))
	copy(result, m.decoderCalls)
	return result
}

type mockProber struct {
	ProbeFunc func(ctx context.Context, src audio.Source) audio.Info

	mu         sync.Mutex
	probeCalls []string // source names
}

func (m *mockProber) Probe(ctx context.Context, src audio.Source) audio.Info {
	m.mu.Lock()
	m.probeCalls = append(m.probeCalls, src.Name)
	m.mu.Unlock()

	if m.ProbeFunc != nil {
		return m.ProbeFunc(ctx, src)
	}
	// Duration unknown by default, like a missing ffprobe.
	return audio.Info{}
}

func (m *mockProber) ProbeCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.probeCalls...)
}

type mockDecoder struct {
	DecodeFunc func(ctx context.Context, src audio.Source) (audio.DecodedAudio, error)

	mu          sync.Mutex
	decodeCalls []string // source names
}

func (m *mockDecoder) Decode(ctx context.Context, src audio.Source) (audio.DecodedAudio, error) {
	m.mu.Lock()
	m.decodeCalls = append(m.decodeCalls, src.Name)
	m.mu.Unlock()

	if m.DecodeFunc != nil {
		return m.DecodeFunc(ctx, src)
	}
	// One second of silence by default.
	return audio.DecodedAudio{
		SampleRate: audio.DefaultSampleRate,
		Channels:   [][]float32{make([]float32, audio.DefaultSampleRate)},
	}, nil
}

func (m *mockDecoder) DecodeCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.decodeCalls...)
}

// ---------------------------------------------------------------------------
// Mock TranscriberFactory + Transcriber
// ---------------------------------------------------------------------------

type mockTranscriberFactory struct {
	NewTranscriberFunc func(endpoint, token string, opts ...transcribe.ClientOption) (transcribe.Transcriber, error)
	NewTranscriberErr  error // Error to return from NewTranscriber

	mu                  sync.Mutex
	newTranscriberCalls []transcriberCall
	mockTranscriber     *mockTranscriber
}

type transcriberCall struct {
	Endpoint string
	Token    string
}

func (m *mockTranscriberFactory) NewTranscriber(endpoint, token string, opts ...transcribe.ClientOption) (transcribe.Transcriber, error) {
	m.mu.Lock()
	m.newTranscriberCalls = append(m.newTranscriberCalls, transcriberCall{Endpoint: endpoint, Token: token})
	m.mu.Unlock()

	if m.NewTranscriberErr != nil {
		return nil, m.NewTranscriberErr
	}
	if m.NewTranscriberFunc != nil {
		return m.NewTranscriberFunc(endpoint, token, opts...)
	}
	if m.mockTranscriber != nil {
		return m.mockTranscriber, nil
	}
	return &mockTranscriber{}, nil
}

func (m *mockTranscriberFactory) NewTranscriberCalls() []transcriberCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]transcriberCall, len(m.newTranscriberCalls))
	copy(result, m.newTranscriberCalls)
	return result
}

type mockTranscriber struct {
	TranscribeFunc func(ctx context.Context, data []byte, fileName, language string) (transcribe.Result, error)

	mu              sync.Mutex
	transcribeCalls []transcribeRequest
}

type transcribeRequest struct {
	FileName string
	Language string
	Size     int
}

func (m *mockTranscriber) Transcribe(ctx context.Context, data []byte, fileName, language string) (transcribe.Result, error) {
	m.mu.Lock()
	m.transcribeCalls = append(m.transcribeCalls, transcribeRequest{
		FileName: fileName,
		Language: language,
		Size:     len(data),
	})
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, data, fileName, language)
	}
	return transcribe.Result{Text: "transcribed text", Language: "en"}, nil
}

func (m *mockTranscriber) TranscribeCalls() []transcribeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]transcribeRequest, len(m.transcribeCalls))
	copy(result, m.transcribeCalls)
	return result
}

// ---------------------------------------------------------------------------
// Mock PipelineFactory + Pipeline
// ---------------------------------------------------------------------------

type mockPipelineFactory struct {
	NewPipelineFunc func(prober transcribe.Prober, decoder audio.Decoder, client transcribe.Transcriber, opts ...transcribe.OrchestratorOption) Pipeline

	mu               sync.Mutex
	newPipelineCalls int
	mockPipeline     *mockPipeline
}

func (m *mockPipelineFactory) NewPipeline(prober transcribe.Prober, decoder audio.Decoder, client transcribe.Transcriber, opts ...transcribe.OrchestratorOption) Pipeline {
	m.mu.Lock()
	m.newPipelineCalls++
	m.mu.Unlock()

	if m.NewPipelineFunc != nil {
		return m.NewPipelineFunc(prober, decoder, client, opts...)
	}
	if m.mockPipeline != nil {
		return m.mockPipeline
	}
	return &mockPipeline{}
}

func (m *mockPipelineFactory) NewPipelineCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newPipelineCalls
}

type mockPipeline struct {
	RunFunc func(ctx context.Context, src audio.Source, language string) (*transcribe.Job, error)

	mu       sync.Mutex
	runCalls []pipelineRun
}

type pipelineRun struct {
	SourceName string
	Language   string
}

func (m *mockPipeline) Run(ctx context.Context, src audio.Source, language string) (*transcribe.Job, error) {
	m.mu.Lock()
	m.runCalls = append(m.runCalls, pipelineRun{SourceName: src.Name, Language: language})
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, src, language)
	}
	// A finished single-shot job by default.
	return &transcribe.Job{
		FileName: src.Name,
		Mode:     transcribe.ModeSingle,
		Status:   transcribe.StatusDone,
		Current:  1,
		Total:    1,
		Segments: []transcribe.Segment{{Text: "transcribed text", Language: "en"}},
	}, nil
}

func (m *mockPipeline) RunCalls() []pipelineRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]pipelineRun, len(m.runCalls))
	copy(result, m.runCalls)
	return result
}

// ---------------------------------------------------------------------------
// Mock ServerFactory + HTTPServer
// ---------------------------------------------------------------------------

type mockServerFactory struct {
	NewServerFunc func(opts server.Options) (HTTPServer, error)
	NewServerErr  error // Error to return from NewServer

	mu             sync.Mutex
	newServerCalls []server.Options
	mockServer     *mockHTTPServer
}

func (m *mockServerFactory) NewServer(opts server.Options) (HTTPServer, error) {
	m.mu.Lock()
	m.newServerCalls = append(m.newServerCalls, opts)
	m.mu.Unlock()

	if m.NewServerErr != nil {
		return nil, m.NewServerErr
	}
	if m.NewServerFunc != nil {
		return m.NewServerFunc(opts)
	}
	if m.mockServer != nil {
		return m.mockServer, nil
	}
	return &mockHTTPServer{}, nil
}

func (m *mockServerFactory) NewServerCalls() []server.Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]server.Options, len(m.newServerCalls))
	copy(result, m.newServerCalls)
	return result
}

// mockHTTPServer blocks in Listen until Shutdown is called, mirroring how a
// real listener behaves under the serve command's errgroup.
type mockHTTPServer struct {
	ListenFunc   func() error
	ShutdownFunc func() error

	mu            sync.Mutex
	stop          chan struct{}
	listenCalls   int
	shutdownCalls int
}

func (m *mockHTTPServer) Listen() error {
	m.mu.Lock()
	m.listenCalls++
	if m.stop == nil {
		m.stop = make(chan struct{})
	}
	stop := m.stop
	m.mu.Unlock()

	if m.ListenFunc != nil {
		return m.ListenFunc()
	}
	<-stop
	return nil
}

func (m *mockHTTPServer) Shutdown() error {
	m.mu.Lock()
	m.shutdownCalls++
	if m.stop == nil {
		m.stop = make(chan struct{})
	}
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
	m.mu.Unlock()

	if m.ShutdownFunc != nil {
		return m.ShutdownFunc()
	}
	return nil
}

func (m *mockHTTPServer) ListenCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listenCalls
}

func (m *mockHTTPServer) ShutdownCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdownCalls
}

// ---------------------------------------------------------------------------
// Compile-time interface verification
// ---------------------------------------------------------------------------

var (
	_ ConfigLoader           = (*mockConfigLoader)(nil)
	_ BinaryResolver         = (*mockBinaryResolver)(nil)
	_ AudioFactory           = (*mockAudioFactory)(nil)
	_ transcribe.Prober      = (*mockProber)(nil)
	_ audio.Decoder          = (*mockDecoder)(nil)
	_ TranscriberFactory     = (*mockTranscriberFactory)(nil)
	_ transcribe.Transcriber = (*mockTranscriber)(nil)
	_ PipelineFactory        = (*mockPipelineFactory)(nil)
	_ Pipeline               = (*mockPipeline)(nil)
	_ ServerFactory          = (*mockServerFactory)(nil)
	_ HTTPServer             = (*mockHTTPServer)(nil)
)
