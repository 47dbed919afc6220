package transcribe_test

// Notes:
// - Orchestration is tested against scripted fakes for the prober, decoder
//   and transcription client; no process execution and no network.
// - Decoded fixtures use tiny sample rates (10 Hz) so chunk math stays easy
//   to read: 120s chunks at 10 Hz are 1200 samples.
// - Merged transcript assertions pin the exact label format.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/audio"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/metrics"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/transcribe"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeProber struct {
	info audio.Info
}

func (f *fakeProber) Probe(_ context.Context, _ audio.Source) audio.Info {
	return f.info
}

type fakeDecoder struct {
	decoded audio.DecodedAudio
	err     error
	calls   int
}

func (f *fakeDecoder) Decode(_ context.Context, _ audio.Source) (audio.DecodedAudio, error) {
	f.calls++
	if f.err != nil {
		return audio.DecodedAudio{}, f.err
	}
	return f.decoded, nil
}

type transcribeCall struct {
	DataLen  int
	FileName string
	Language string
}

// fakeTranscriber replays scripted results and errors in call order. Entries
// past the script succeed with an empty result.
type fakeTranscriber struct {
	mu      sync.Mutex
	calls   []transcribeCall
	results []transcribe.Result
	errors  []error

	// onCall, when set, runs before each scripted reply (used to cancel the
	// context mid-run).
	onCall func(call int)
}

func (f *fakeTranscriber) Transcribe(_ context.Context, data []byte, fileName, language string) (transcribe.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := len(f.calls)
	f.calls = append(f.calls, transcribeCall{DataLen: len(data), FileName: fileName, Language: language})

	if f.onCall != nil {
		f.onCall(idx)
	}
	if idx < len(f.errors) && f.errors[idx] != nil {
		return transcribe.Result{}, f.errors[idx]
	}
	if idx < len(f.results) {
		return f.results[idx], nil
	}
	return transcribe.Result{}, nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTranscriber) call(t *testing.T, i int) transcribeCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.calls) {
		t.Fatalf("call(%d): only %d calls recorded", i, len(f.calls))
	}
	return f.calls[i]
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

// knownDuration builds probe info with a known duration.
func knownDuration(d time.Duration) audio.Info {
	return audio.Info{Duration: d, DurationKnown: true}
}

// monoFixture builds mono decoded audio of the given duration at 10 Hz.
func monoFixture(duration time.Duration) audio.DecodedAudio {
	const rate = 10
	n := int(duration/time.Second) * rate
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(i%100) / 200
	}
	return audio.DecodedAudio{SampleRate: rate, Channels: [][]float32{samples}}
}

func sourceFixture(name string, size int) audio.Source {
	return audio.Source{Name: name, Data: make([]byte, size)}
}

// ---------------------------------------------------------------------------
// Split decision
// ---------------------------------------------------------------------------

func TestRun_ShortAudioGoesSingleShot(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{info: knownDuration(90 * time.Second)}
	decoder := &fakeDecoder{}
	client := &fakeTranscriber{results: []transcribe.Result{{Text: "short and sweet", Language: "en"}}}

	orch := transcribe.NewOrchestrator(prober, decoder, client)
	src := sourceFixture("memo.ogg", 2048)

	job, err := orch.Run(context.Background(), src, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if job.Mode != transcribe.ModeSingle {
		t.Errorf("Mode = %q, want single", job.Mode)
	}
	if job.Status != transcribe.StatusDone {
		t.Errorf("Status = %q, want done", job.Status)
	}
	if decoder.calls != 0 {
		t.Errorf("decoder called %d times, want 0 (no chunking)", decoder.calls)
	}
	if client.callCount() != 1 {
		t.Fatalf("transcriber called %d times, want 1", client.callCount())
	}

	call := client.call(t, 0)
	if call.FileName != "memo.ogg" {
		t.Errorf("file name = %q, want original name", call.FileName)
	}
	if call.DataLen != 2048 {
		t.Errorf("sent %d bytes, want the original 2048", call.DataLen)
	}

	result := job.Result()
	if result.Text != "short and sweet" {
		t.Errorf("Text = %q, want unlabeled transcript", result.Text)
	}
	if result.Language != "en" {
		t.Errorf("Language = %q, want %q", result.Language, "en")
	}
}

func TestRun_UnknownDurationDecidesBySize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		size     int
		wantMode transcribe.Mode
	}{
		{"small file stays single", 4 << 20, transcribe.ModeSingle},
		{"threshold is not crossed at exactly 8MiB", transcribe.ChunkThresholdBytes, transcribe.ModeSingle},
		{"large file gets chunked", transcribe.ChunkThresholdBytes + 1, transcribe.ModeChunked},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			prober := &fakeProber{} // DurationKnown false
			decoder := &fakeDecoder{decoded: monoFixture(300 * time.Second)}
			client := &fakeTranscriber{}

			orch := transcribe.NewOrchestrator(prober, decoder, client)
			job, err := orch.Run(context.Background(), sourceFixture("big.mp3", tt.size), "")
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if job.Mode != tt.wantMode {
				t.Errorf("Mode = %q, want %q", job.Mode, tt.wantMode)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Chunked pipeline
// ---------------------------------------------------------------------------

func TestRun_ChunkedTranscription(t *testing.T) {
	t.Parallel()

	// 300s at the default 120s chunk length: chunks of 120s, 120s and 60s.
	prober := &fakeProber{info: knownDuration(300 * time.Second)}
	decoder := &fakeDecoder{decoded: monoFixture(300 * time.Second)}
	client := &fakeTranscriber{results: []transcribe.Result{
		{Text: "first part", Language: "en"},
		{Text: "second part", Language: "en"},
		{Text: "third part", Language: "en"},
	}}

	var progress []string
	orch := transcribe.NewOrchestrator(prober, decoder, client,
		transcribe.WithProgressFunc(func(cur, total int) {
			progress = append(progress, fmt.Sprintf("%d/%d", cur, total))
		}),
	)

	job, err := orch.Run(context.Background(), sourceFixture("lecture.mp3", 9<<20), "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if job.Mode != transcribe.ModeChunked {
		t.Errorf("Mode = %q, want chunked", job.Mode)
	}
	if job.Total != 3 {
		t.Errorf("Total = %d, want 3", job.Total)
	}
	if client.callCount() != 3 {
		t.Fatalf("transcriber called %d times, want 3", client.callCount())
	}

	// Chunk payloads are WAV files named after the source.
	for i := 0; i < 3; i++ {
		call := client.call(t, i)
		wantName := fmt.Sprintf("lecture_chunk_%d.wav", i)
		if call.FileName != wantName {
			t.Errorf("chunk %d file name = %q, want %q", i, call.FileName, wantName)
		}
	}

	wantProgress := []string{"1/3", "2/3", "3/3"}
	if strings.Join(progress, " ") != strings.Join(wantProgress, " ") {
		t.Errorf("progress = %v, want %v", progress, wantProgress)
	}

	result := job.Result()
	wantText := "[00:00 - 02:00] first part\n\n" +
		"[02:00 - 04:00] second part\n\n" +
		"[04:00 - 05:00] third part"
	if result.Text != wantText {
		t.Errorf("Text = %q, want %q", result.Text, wantText)
	}
	if result.Language != "en" {
		t.Errorf("Language = %q, want unanimous %q", result.Language, "en")
	}
}

func TestRun_ChunkPayloadsAreDecodableWAV(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{info: knownDuration(300 * time.Second)}
	decoder := &fakeDecoder{decoded: monoFixture(300 * time.Second)}

	var payloads [][]byte
	client := &recordingTranscriber{onData: func(data []byte) {
		buf := make([]byte, len(data))
		copy(buf, data)
		payloads = append(payloads, buf)
	}}

	orch := transcribe.NewOrchestrator(prober, decoder, client)
	if _, err := orch.Run(context.Background(), sourceFixture("talk.m4a", 1<<20), ""); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(payloads) != 3 {
		t.Fatalf("got %d payloads, want 3", len(payloads))
	}

	wantSamples := []int{1200, 1200, 600} // 120s, 120s, 60s at 10 Hz
	for i, payload := range payloads {
		channels, rate, err := audio.DecodeWAV(payload)
		if err != nil {
			t.Fatalf("chunk %d is not valid WAV: %v", i, err)
		}
		if rate != 10 {
			t.Errorf("chunk %d sample rate = %d, want 10", i, rate)
		}
		if len(channels) != 1 || len(channels[0]) != wantSamples[i] {
			t.Errorf("chunk %d has %d samples, want %d", i, len(channels[0]), wantSamples[i])
		}
	}
}

// recordingTranscriber hands every payload to onData and succeeds.
type recordingTranscriber struct {
	onData func(data []byte)
}

func (r *recordingTranscriber) Transcribe(_ context.Context, data []byte, _, _ string) (transcribe.Result, error) {
	if r.onData != nil {
		r.onData(data)
	}
	return transcribe.Result{Text: "ok", Language: "en"}, nil
}

func TestRun_SingleChunkHasNoLabel(t *testing.T) {
	t.Parallel()

	// Big enough to trigger chunking by size, but the decoded audio fits in
	// one chunk. The merged transcript must read like a single-shot one.
	prober := &fakeProber{}
	decoder := &fakeDecoder{decoded: monoFixture(60 * time.Second)}
	client := &fakeTranscriber{results: []transcribe.Result{{Text: "all of it", Language: "nb"}}}

	orch := transcribe.NewOrchestrator(prober, decoder, client)
	job, err := orch.Run(context.Background(), sourceFixture("clip.mp3", 9<<20), "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if job.Mode != transcribe.ModeChunked {
		t.Fatalf("Mode = %q, want chunked", job.Mode)
	}
	if job.Total != 1 {
		t.Fatalf("Total = %d, want 1", job.Total)
	}

	result := job.Result()
	if result.Text != "all of it" {
		t.Errorf("Text = %q, want plain transcript without time label", result.Text)
	}
	if result.Language != "nb" {
		t.Errorf("Language = %q, want %q", result.Language, "nb")
	}
}

// ---------------------------------------------------------------------------
// Failure isolation and fallback
// ---------------------------------------------------------------------------

func TestRun_FailedChunkLeavesMarkerAndContinues(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{info: knownDuration(300 * time.Second)}
	decoder := &fakeDecoder{decoded: monoFixture(300 * time.Second)}
	client := &fakeTranscriber{
		results: []transcribe.Result{
			{Text: "first part", Language: "en"},
			{}, // failed
			{Text: "third part", Language: "en"},
		},
		errors: []error{
			nil,
			transcribe.NewRequestError(500, []byte(`{"error":"upstream busy"}`)),
			nil,
		},
	}

	orch := transcribe.NewOrchestrator(prober, decoder, client)
	job, err := orch.Run(context.Background(), sourceFixture("lecture.mp3", 1<<20), "")
	if err != nil {
		t.Fatalf("Run() error = %v, chunk failures must not fail the job", err)
	}

	if job.Status != transcribe.StatusDone {
		t.Errorf("Status = %q, want done", job.Status)
	}
	if client.callCount() != 3 {
		t.Errorf("transcriber called %d times, want all 3 chunks attempted", client.callCount())
	}

	result := job.Result()
	wantText := "[00:00 - 02:00] first part\n\n" +
		"[02:00 - 04:00] [Error: HTTP 500: upstream busy]\n\n" +
		"[04:00 - 05:00] third part"
	if result.Text != wantText {
		t.Errorf("Text = %q, want %q", result.Text, wantText)
	}

	// Consensus only counts successful chunks.
	if result.Language != "en" {
		t.Errorf("Language = %q, want %q", result.Language, "en")
	}
}

func TestRun_MixedLanguagesMergeToAuto(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{info: knownDuration(300 * time.Second)}
	decoder := &fakeDecoder{decoded: monoFixture(300 * time.Second)}
	client := &fakeTranscriber{results: []transcribe.Result{
		{Text: "hello", Language: "en"},
		{Text: "hallo", Language: "no"},
		{Text: "hei", Language: "no"},
	}}

	orch := transcribe.NewOrchestrator(prober, decoder, client)
	job, err := orch.Run(context.Background(), sourceFixture("mixed.mp3", 1<<20), "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := job.Result().Language; got != "auto" {
		t.Errorf("Language = %q, want %q for disagreeing chunks", got, "auto")
	}
	if got := job.Languages(); len(got) != 2 {
		t.Errorf("Languages() = %v, want two distinct codes", got)
	}
}

func TestRun_ChunkingFailureFallsBackToSingleShot(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{info: knownDuration(300 * time.Second)}
	decoder := &fakeDecoder{err: errors.New("ffmpeg exploded")}
	client := &fakeTranscriber{results: []transcribe.Result{{Text: "whole file", Language: "en"}}}

	var statuses []string
	orch := transcribe.NewOrchestrator(prober, decoder, client,
		transcribe.WithStatusFunc(func(_ transcribe.Status, msg string) {
			statuses = append(statuses, msg)
		}),
	)

	src := sourceFixture("broken.mp3", 12345)
	job, err := orch.Run(context.Background(), src, "")
	if err != nil {
		t.Fatalf("Run() error = %v, fallback should succeed", err)
	}

	if job.Mode != transcribe.ModeSingle {
		t.Errorf("Mode = %q, want single after fallback", job.Mode)
	}
	if job.Status != transcribe.StatusDone {
		t.Errorf("Status = %q, want done", job.Status)
	}

	call := client.call(t, 0)
	if call.DataLen != 12345 || call.FileName != "broken.mp3" {
		t.Errorf("fallback sent (%d bytes, %q), want the original file", call.DataLen, call.FileName)
	}

	joined := strings.Join(statuses, "\n")
	if !strings.Contains(joined, "Chunking failed") {
		t.Errorf("statuses %v should mention the fallback", statuses)
	}
}

func TestRun_SingleShotFailureFailsJob(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{info: knownDuration(30 * time.Second)}
	decoder := &fakeDecoder{}
	wantErr := transcribe.NewRequestError(401, []byte(`{"error":"bad token"}`))
	client := &fakeTranscriber{errors: []error{wantErr}}

	orch := transcribe.NewOrchestrator(prober, decoder, client)
	job, err := orch.Run(context.Background(), sourceFixture("memo.ogg", 100), "")

	if !errors.As(err, new(*transcribe.RequestError)) {
		t.Errorf("Run() error = %v, want the request error", err)
	}
	if job.Status != transcribe.StatusFailed {
		t.Errorf("Status = %q, want failed", job.Status)
	}
}

// ---------------------------------------------------------------------------
// Cancellation and retries
// ---------------------------------------------------------------------------

func TestRun_CancellationStopsChunkLoop(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{info: knownDuration(300 * time.Second)}
	decoder := &fakeDecoder{decoded: monoFixture(300 * time.Second)}

	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeTranscriber{
		results: []transcribe.Result{{Text: "first"}},
		onCall: func(call int) {
			if call == 0 {
				cancel()
			}
		},
	}

	orch := transcribe.NewOrchestrator(prober, decoder, client)
	job, err := orch.Run(ctx, sourceFixture("lecture.mp3", 1<<20), "")

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if job.Status != transcribe.StatusFailed {
		t.Errorf("Status = %q, want failed", job.Status)
	}
	if got := client.callCount(); got > 2 {
		t.Errorf("transcriber called %d times after cancellation, want at most 2", got)
	}
}

func TestRun_RetriesTransientChunkFailure(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{info: knownDuration(150 * time.Second)}
	decoder := &fakeDecoder{decoded: monoFixture(150 * time.Second)}
	client := &fakeTranscriber{
		results: []transcribe.Result{
			{}, // first attempt of chunk 0 fails
			{Text: "recovered", Language: "en"},
			{Text: "tail", Language: "en"},
		},
		errors: []error{
			transcribe.NewRequestError(503, nil),
			nil,
			nil,
		},
	}

	orch := transcribe.NewOrchestrator(prober, decoder, client,
		transcribe.WithChunkRetries(2),
		transcribe.WithRetryDelays(time.Millisecond, 5*time.Millisecond),
	)

	job, err := orch.Run(context.Background(), sourceFixture("talk.mp3", 1<<20), "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Chunk 0 took two attempts, chunk 1 one.
	if client.callCount() != 3 {
		t.Errorf("transcriber called %d times, want 3", client.callCount())
	}
	for _, seg := range job.Segments {
		if seg.Failed {
			t.Errorf("segment %d failed, want retry to recover it", seg.Index)
		}
	}
}

func TestRun_LanguageHintReachesEveryChunk(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{info: knownDuration(300 * time.Second)}
	decoder := &fakeDecoder{decoded: monoFixture(300 * time.Second)}
	client := &fakeTranscriber{}

	orch := transcribe.NewOrchestrator(prober, decoder, client)
	if _, err := orch.Run(context.Background(), sourceFixture("x.mp3", 1<<20), "nb"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for i := 0; i < client.callCount(); i++ {
		if got := client.call(t, i).Language; got != "nb" {
			t.Errorf("chunk %d language hint = %q, want %q", i, got, "nb")
		}
	}
}

// ---------------------------------------------------------------------------
// Instrumentation
// ---------------------------------------------------------------------------

func TestRun_RecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	prober := &fakeProber{info: knownDuration(300 * time.Second)}
	decoder := &fakeDecoder{decoded: monoFixture(300 * time.Second)}
	client := &fakeTranscriber{
		errors: []error{nil, transcribe.NewRequestError(500, nil), nil},
	}

	orch := transcribe.NewOrchestrator(prober, decoder, client, transcribe.WithMetrics(m))
	if _, err := orch.Run(context.Background(), sourceFixture("x.mp3", 1<<20), ""); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := testutil.ToFloat64(m.JobsStarted); got != 1 {
		t.Errorf("JobsStarted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.JobsCompleted.WithLabelValues("chunked")); got != 1 {
		t.Errorf("JobsCompleted[chunked] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ChunksTranscribed); got != 2 {
		t.Errorf("ChunksTranscribed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ChunksFailed); got != 1 {
		t.Errorf("ChunksFailed = %v, want 1", got)
	}
}
