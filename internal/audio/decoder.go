package audio

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/ffmpeg"
)

// DefaultSampleRate is the PCM rate sources are decoded at. Whisper-family
// endpoints resample to 16 kHz internally, so decoding higher only inflates
// chunk uploads.
const DefaultSampleRate = 16000

// maxChannels caps decoding at stereo; FFmpeg downmixes anything wider.
const maxChannels = 2

// DecodedAudio is PCM audio decoded to float32 samples, one slice per channel.
// All channels have the same length.
type DecodedAudio struct {
	SampleRate int
	Channels   [][]float32
}

// TotalSamples returns the per-channel sample count.
func (d DecodedAudio) TotalSamples() int {
	if len(d.Channels) == 0 {
		return 0
	}
	return len(d.Channels[0])
}

// Duration returns the playing time of the decoded audio.
func (d DecodedAudio) Duration() time.Duration {
	if d.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(d.TotalSamples()) * int64(time.Second) / int64(d.SampleRate))
}

// Decoder turns compressed audio bytes into PCM samples.
type Decoder interface {
	Decode(ctx context.Context, src Source) (DecodedAudio, error)
}

// Compile-time interface verification.
var _ Decoder = (*FFmpegDecoder)(nil)

// FFmpegDecoder implements Decoder by piping the source through ffmpeg into
// raw little-endian float32 PCM on stdout.
type FFmpegDecoder struct {
	ffmpegPath  string
	ffprobePath string
	sampleRate  int
	exec        *ffmpeg.Executor
}

// DecoderOption configures an FFmpegDecoder.
type DecoderOption func(*FFmpegDecoder)

// WithSampleRate overrides the decode sample rate.
func WithSampleRate(rate int) DecoderOption {
	return func(d *FFmpegDecoder) { d.sampleRate = rate }
}

// WithExecutor sets a custom command executor (for testing).
func WithExecutor(e *ffmpeg.Executor) DecoderOption {
	return func(d *FFmpegDecoder) { d.exec = e }
}

// NewFFmpegDecoder creates a decoder using the given ffmpeg and ffprobe
// binaries.
func NewFFmpegDecoder(ffmpegPath, ffprobePath string, opts ...DecoderOption) *FFmpegDecoder {
	d := &FFmpegDecoder{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		sampleRate:  DefaultSampleRate,
		exec:        ffmpeg.NewExecutor(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.sampleRate <= 0 {
		d.sampleRate = DefaultSampleRate
	}
	return d
}

// Decode decodes src into per-channel float32 samples at the configured rate.
// The source's channel layout is preserved up to stereo.
func (d *FFmpegDecoder) Decode(ctx context.Context, src Source) (DecodedAudio, error) {
	if len(src.Data) == 0 {
		return DecodedAudio{}, fmt.Errorf("%w: empty source", ErrDecode)
	}

	path, cleanup, err := writeTemp(src)
	if err != nil {
		return DecodedAudio{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer cleanup()

	channels := d.probeChannels(ctx, path)

	args := []string{
		"-v", "error",
		"-i", path,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(d.sampleRate),
		"pipe:1",
	}
	raw, err := d.exec.RunStdout(ctx, d.ffmpegPath, args)
	if err != nil {
		return DecodedAudio{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return deinterleaveF32LE(raw, channels, d.sampleRate)
}

// probeChannels asks ffprobe for the channel count of the first audio stream.
// Defaults to mono when probing fails; ffmpeg downmixes accordingly.
func (d *FFmpegDecoder) probeChannels(ctx context.Context, path string) int {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		path,
	}
	out, err := d.exec.RunStdout(ctx, d.ffprobePath, args)
	if err != nil {
		return 1
	}

	var result struct {
		Streams []struct {
			Channels int `json:"channels"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &result); err != nil || len(result.Streams) == 0 {
		return 1
	}

	ch := result.Streams[0].Channels
	if ch < 1 {
		return 1
	}
	if ch > maxChannels {
		return maxChannels
	}
	return ch
}

// deinterleaveF32LE splits an interleaved little-endian float32 stream into
// per-channel buffers. A trailing partial frame is dropped.
func deinterleaveF32LE(raw []byte, numChannels, sampleRate int) (DecodedAudio, error) {
	if numChannels < 1 {
		return DecodedAudio{}, fmt.Errorf("%w: %d channels", ErrDecode, numChannels)
	}
	frameBytes := numChannels * 4
	frames := len(raw) / frameBytes
	if frames == 0 {
		return DecodedAudio{}, fmt.Errorf("%w: decoder produced no frames", ErrNoSamples)
	}

	channels := make([][]float32, numChannels)
	for c := range channels {
		channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		base := i * frameBytes
		for c := 0; c < numChannels; c++ {
			bits := binary.LittleEndian.Uint32(raw[base+c*4:])
			channels[c][i] = math.Float32frombits(bits)
		}
	}
	return DecodedAudio{SampleRate: sampleRate, Channels: channels}, nil
}
