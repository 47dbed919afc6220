package transcribe

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/audio"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/metrics"
)

// ChunkThresholdBytes decides for chunking when the probe cannot tell the
// duration: anything over 8 MiB is assumed to be too long for one request.
const ChunkThresholdBytes = 8 << 20

// Prober reports duration metadata for an audio source.
type Prober interface {
	Probe(ctx context.Context, src audio.Source) audio.Info
}

// Compile-time interface compliance checks.
var (
	_ Prober        = (*audio.Prober)(nil)
	_ audio.Decoder = (*audio.FFmpegDecoder)(nil)
)

// ProgressFunc is called with (current, total) before each chunk dispatch.
type ProgressFunc func(current, total int)

// StatusFunc is called on every phase change with the job's status and a
// human-readable message.
type StatusFunc func(status Status, message string)

// SegmentFunc is called with each finished segment, failed ones included.
type SegmentFunc func(seg Segment)

// Orchestrator drives one audio source through probe, chunking and
// transcription. Chunks are sent strictly one at a time in timeline order so
// the endpoint never sees concurrent requests for the same file.
type Orchestrator struct {
	prober  Prober
	decoder audio.Decoder
	client  Transcriber

	chunkDuration time.Duration
	maxRetries    int
	baseDelay     time.Duration
	maxDelay      time.Duration

	onProgress ProgressFunc
	onStatus   StatusFunc
	onSegment  SegmentFunc
	log        logrus.FieldLogger
	metrics    *metrics.Metrics
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithChunkDuration overrides the chunk length (default 2 minutes). The same
// value is the duration threshold above which a source gets chunked.
func WithChunkDuration(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.chunkDuration = d
		}
	}
}

// WithChunkRetries enables up to n retries per failed chunk request. The
// default is 0: a failed chunk is marked and the job moves on.
func WithChunkRetries(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

// WithRetryDelays overrides the backoff delays used when retries are enabled.
func WithRetryDelays(base, max time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if base > 0 {
			o.baseDelay = base
		}
		if max > 0 {
			o.maxDelay = max
		}
	}
}

// WithProgressFunc registers a chunk progress callback.
func WithProgressFunc(fn ProgressFunc) OrchestratorOption {
	return func(o *Orchestrator) { o.onProgress = fn }
}

// WithStatusFunc registers a status message callback.
func WithStatusFunc(fn StatusFunc) OrchestratorOption {
	return func(o *Orchestrator) { o.onStatus = fn }
}

// WithSegmentFunc registers a per-segment callback.
func WithSegmentFunc(fn SegmentFunc) OrchestratorOption {
	return func(o *Orchestrator) { o.onSegment = fn }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logrus.FieldLogger) OrchestratorOption {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator wires a prober, a decoder and a transcription client into a
// pipeline.
func NewOrchestrator(prober Prober, decoder audio.Decoder, client Transcriber, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		prober:        prober,
		decoder:       decoder,
		client:        client,
		chunkDuration: audio.DefaultChunkDuration,
		baseDelay:     defaultBaseDelay,
		maxDelay:      defaultMaxDelay,
		log:           discardLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes src end to end and returns the finished job.
//
// Individual chunk failures do not fail the job: each leaves an error marker
// in the transcript and the job still reaches StatusDone. The returned error
// is non-nil only when no transcript could be produced at all, in which case
// the job is StatusFailed.
func (o *Orchestrator) Run(ctx context.Context, src audio.Source, language string) (*Job, error) {
	start := time.Now()
	o.metrics.RecordJobStarted()

	job := &Job{FileName: src.Name, Mode: ModeSingle, Status: StatusPending}
	logger := o.log.WithFields(logrus.Fields{
		"file": src.Name,
		"size": src.Size(),
	})

	o.setStatus(job, StatusDeciding, "Analyzing audio...")
	info := o.prober.Probe(ctx, src)
	if info.DurationKnown {
		logger = logger.WithField("duration", info.Duration.Round(time.Millisecond))
	}
	if err := ctx.Err(); err != nil {
		return o.fail(job, err)
	}

	if !o.shouldChunk(info, src) {
		logger.Info("transcribing in a single request")
		job, err := o.singleShot(ctx, job, src, info, language)
		o.observeOutcome(job, start)
		return job, err
	}

	job.Mode = ModeChunked
	logger.WithField("chunk_duration", o.chunkDuration).Info("chunking audio")
	o.setStatus(job, StatusChunking, "Chunking audio...")

	slicer, err := o.prepareChunks(ctx, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return o.fail(job, ctxErr)
		}
		// Chunking trouble never kills the job outright: the original bytes
		// are still good for a single request.
		logger.WithError(err).Warn("chunking failed, falling back to a single request")
		o.metrics.RecordFallback()
		o.status(job, "Chunking failed, transcribing whole file...")

		job.Mode = ModeSingle
		job, err := o.singleShot(ctx, job, src, info, language)
		o.observeOutcome(job, start)
		return job, err
	}

	job, err = o.runChunks(ctx, job, slicer, src, language, logger)
	o.observeOutcome(job, start)
	return job, err
}

// shouldChunk applies the split decision: a known duration wins over size,
// size decides only when the probe came back empty.
func (o *Orchestrator) shouldChunk(info audio.Info, src audio.Source) bool {
	if info.DurationKnown {
		return info.Duration > o.chunkDuration
	}
	return src.Size() > ChunkThresholdBytes
}

func (o *Orchestrator) prepareChunks(ctx context.Context, src audio.Source) (*audio.Slicer, error) {
	decoded, err := o.decoder.Decode(ctx, src)
	if err != nil {
		return nil, err
	}
	return audio.NewSlicer(decoded, o.chunkDuration)
}

func (o *Orchestrator) runChunks(ctx context.Context, job *Job, slicer *audio.Slicer, src audio.Source, language string, logger logrus.FieldLogger) (*Job, error) {
	total := slicer.Total()
	job.Total = total
	o.setStatus(job, StatusTranscribing, fmt.Sprintf("Transcribing %d chunks...", total))

	base := src.BaseName()
	rate := slicer.SampleRate()

	for {
		slice, ok := slicer.Next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return o.fail(job, err)
		}

		current := slice.Index + 1
		job.Current = current
		o.progress(current, total)
		o.status(job, fmt.Sprintf("Transcribing chunk %d/%d...", current, total))

		seg := Segment{Index: slice.Index, Start: slice.Start, End: slice.End}

		text, detected, err := o.transcribeSlice(ctx, slice, rate, base, language)
		switch {
		case err != nil && ctx.Err() != nil:
			return o.fail(job, ctx.Err())
		case err != nil:
			logger.WithError(err).WithField("chunk", slice.Index).Warn("chunk transcription failed")
			seg.Failed = true
			seg.Text = err.Error()
			o.status(job, fmt.Sprintf("Chunk %d/%d failed, continuing...", current, total))
		default:
			seg.Text = text
			seg.Language = detected
		}

		job.Segments = append(job.Segments, seg)
		o.segment(seg)
	}

	job.Status = StatusDone
	o.status(job, "Transcription complete")
	return job, nil
}

// transcribeSlice encodes one slice as WAV and sends it. An encoding failure
// counts as a chunk failure like any request error would.
func (o *Orchestrator) transcribeSlice(ctx context.Context, slice audio.Slice, rate int, base, language string) (string, string, error) {
	wav, err := audio.EncodeWAV(slice.Channels, rate)
	if err != nil {
		return "", "", err
	}

	start := time.Now()
	res, err := o.transcribeWithRetry(ctx, wav, ChunkFileName(base, slice.Index), language)
	if err != nil {
		o.metrics.RecordChunkFailed(time.Since(start).Seconds())
		return "", "", err
	}
	o.metrics.RecordChunkTranscribed(time.Since(start).Seconds())
	return res.Text, res.Language, nil
}

func (o *Orchestrator) transcribeWithRetry(ctx context.Context, data []byte, fileName, language string) (Result, error) {
	if o.maxRetries <= 0 {
		return o.client.Transcribe(ctx, data, fileName, language)
	}

	policy := retryPolicy{
		MaxRetries: o.maxRetries,
		BaseDelay:  o.baseDelay,
		MaxDelay:   o.maxDelay,
	}
	return sendWithRetry(ctx, policy, func() (Result, error) {
		return o.client.Transcribe(ctx, data, fileName, language)
	})
}

// singleShot sends the original bytes unmodified in one request.
func (o *Orchestrator) singleShot(ctx context.Context, job *Job, src audio.Source, info audio.Info, language string) (*Job, error) {
	job.Current, job.Total = 1, 1
	o.setStatus(job, StatusTranscribing, "Transcribing audio...")
	o.progress(1, 1)

	res, err := o.transcribeWithRetry(ctx, src.Data, src.Name, language)
	if err != nil {
		return o.fail(job, err)
	}

	var end time.Duration
	if info.DurationKnown {
		end = info.Duration
	}
	seg := Segment{Start: 0, End: end, Text: res.Text, Language: res.Language}
	job.Segments = append(job.Segments, seg)
	o.segment(seg)

	job.Status = StatusDone
	o.status(job, "Transcription complete")
	return job, nil
}

// ChunkFileName names the WAV payload for one chunk of file base.
func ChunkFileName(base string, index int) string {
	return fmt.Sprintf("%s_chunk_%d.wav", base, index)
}

func (o *Orchestrator) fail(job *Job, err error) (*Job, error) {
	job.Status = StatusFailed
	o.status(job, "Transcription failed")
	return job, err
}

func (o *Orchestrator) observeOutcome(job *Job, start time.Time) {
	if job.Status == StatusDone {
		o.metrics.RecordJobCompleted(string(job.Mode), time.Since(start).Seconds())
		return
	}
	o.metrics.RecordJobFailed()
}

func (o *Orchestrator) progress(current, total int) {
	if o.onProgress != nil {
		o.onProgress(current, total)
	}
}

func (o *Orchestrator) status(job *Job, msg string) {
	if o.onStatus != nil {
		o.onStatus(job.Status, msg)
	}
}

func (o *Orchestrator) setStatus(job *Job, st Status, msg string) {
	job.Status = st
	o.status(job, msg)
}

func (o *Orchestrator) segment(seg Segment) {
	if o.onSegment != nil {
		o.onSegment(seg)
	}
}

func discardLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
