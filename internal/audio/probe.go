package audio

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/ffmpeg"
)

// Info is what probing could learn about a source without decoding it.
// DurationKnown is false when the container hides its length (streamed
// uploads, broken indexes); callers then fall back to size heuristics.
type Info struct {
	Duration      time.Duration
	DurationKnown bool
	Format        string // container name reported by ffprobe, e.g. "mp3"
}

// Prober inspects audio metadata via ffprobe. Probing is strictly
// best-effort: every failure degrades to "duration unknown" instead of an
// error.
type Prober struct {
	ffprobePath string
	exec        *ffmpeg.Executor
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithProbeExecutor sets a custom command executor (for testing).
func WithProbeExecutor(e *ffmpeg.Executor) ProberOption {
	return func(p *Prober) { p.exec = e }
}

// NewProber creates a Prober using the given ffprobe binary.
func NewProber(ffprobePath string, opts ...ProberOption) *Prober {
	p := &Prober{
		ffprobePath: ffprobePath,
		exec:        ffmpeg.NewExecutor(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe reports duration and container format for src. WAV sources are read
// directly from their header, skipping the ffprobe round trip.
func (p *Prober) Probe(ctx context.Context, src Source) Info {
	if IsWAV(src.Data) {
		if d, err := WAVDuration(src.Data); err == nil {
			return Info{Duration: d, DurationKnown: true, Format: "wav"}
		}
		// Corrupt WAV header: fall through, ffprobe is more forgiving.
	}

	path, cleanup, err := writeTemp(src)
	if err != nil {
		return Info{}
	}
	defer cleanup()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	}
	out, err := p.exec.RunStdout(ctx, p.ffprobePath, args)
	if err != nil {
		return Info{}
	}

	var result struct {
		Format struct {
			FormatName string `json:"format_name"`
			Duration   string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &result); err != nil {
		return Info{}
	}

	info := Info{Format: result.Format.FormatName}
	if secs, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil && secs > 0 {
		info.Duration = time.Duration(secs * float64(time.Second))
		info.DurationKnown = true
	}
	return info
}
