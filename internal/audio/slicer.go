package audio

import (
	"fmt"
	"time"
)

// DefaultChunkDuration is the target length of each transcription chunk.
const DefaultChunkDuration = 2 * time.Minute

// Slice is one chunk of decoded audio, carrying its position on the source
// timeline. End of slice i equals start of slice i+1 exactly; the last slice
// ends at the source duration.
type Slice struct {
	Index    int
	Start    time.Duration
	End      time.Duration
	Channels [][]float32
}

// Duration returns the playing time of the slice.
func (s Slice) Duration() time.Duration {
	return s.End - s.Start
}

// Slicer walks decoded audio in fixed-duration chunks. Each call to Next
// copies one chunk's samples out of the source buffers, so at most one chunk
// is materialized at a time regardless of source length.
type Slicer struct {
	audio        DecodedAudio
	chunkSamples int
	total        int
	next         int
}

// NewSlicer prepares chunking of audio into chunkDuration pieces.
// A non-positive chunkDuration falls back to DefaultChunkDuration.
// Returns ErrNoSamples for empty or degenerate audio.
func NewSlicer(audio DecodedAudio, chunkDuration time.Duration) (*Slicer, error) {
	if audio.TotalSamples() == 0 {
		return nil, ErrNoSamples
	}
	if audio.SampleRate <= 0 {
		return nil, fmt.Errorf("%w (sample rate %d)", ErrNoSamples, audio.SampleRate)
	}
	if chunkDuration <= 0 {
		chunkDuration = DefaultChunkDuration
	}

	chunkSamples := int(int64(chunkDuration) * int64(audio.SampleRate) / int64(time.Second))
	if chunkSamples < 1 {
		chunkSamples = 1
	}

	total := (audio.TotalSamples() + chunkSamples - 1) / chunkSamples

	return &Slicer{
		audio:        audio,
		chunkSamples: chunkSamples,
		total:        total,
	}, nil
}

// Total returns the number of chunks the slicer will produce. Always at
// least 1: a source shorter than the chunk duration yields a single chunk
// covering the whole file.
func (s *Slicer) Total() int {
	return s.total
}

// SampleRate returns the sample rate of the sliced audio. Chunks must be
// re-encoded at this rate to keep their timeline positions accurate.
func (s *Slicer) SampleRate() int {
	return s.audio.SampleRate
}

// Next returns the next chunk in timeline order. The boolean is false once
// all chunks have been produced.
func (s *Slicer) Next() (Slice, bool) {
	if s.next >= s.total {
		return Slice{}, false
	}
	i := s.next
	s.next++

	startSample := i * s.chunkSamples
	endSample := startSample + s.chunkSamples
	if endSample > s.audio.TotalSamples() {
		endSample = s.audio.TotalSamples()
	}

	channels := make([][]float32, len(s.audio.Channels))
	for c, ch := range s.audio.Channels {
		seg := make([]float32, endSample-startSample)
		copy(seg, ch[startSample:endSample])
		channels[c] = seg
	}

	return Slice{
		Index:    i,
		Start:    sampleTime(startSample, s.audio.SampleRate),
		End:      sampleTime(endSample, s.audio.SampleRate),
		Channels: channels,
	}, true
}

// sampleTime converts a sample offset to its position on the timeline.
// Integer arithmetic keeps adjacent chunk boundaries exactly equal.
func sampleTime(sample, rate int) time.Duration {
	return time.Duration(int64(sample) * int64(time.Second) / int64(rate))
}
