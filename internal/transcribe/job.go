package transcribe

import (
	"fmt"
	"strings"
	"time"

	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/format"
	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/lang"
)

// Mode says how a job's audio was submitted.
type Mode string

const (
	// ModeSingle sends the original bytes in one request.
	ModeSingle Mode = "single"
	// ModeChunked decodes, slices and sends the audio chunk by chunk.
	ModeChunked Mode = "chunked"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusPending      Status = "pending"
	StatusDeciding     Status = "deciding"
	StatusChunking     Status = "chunking"
	StatusTranscribing Status = "transcribing"
	StatusDone         Status = "done"
	StatusFailed       Status = "failed"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Segment is the outcome of one chunk, or of the whole file in single mode.
// When Failed is set, Text holds the error message instead of a transcript.
type Segment struct {
	Index    int           `json:"index"`
	Start    time.Duration `json:"start"`
	End      time.Duration `json:"end"`
	Text     string        `json:"text"`
	Language string        `json:"language,omitempty"`
	Failed   bool          `json:"failed,omitempty"`
}

// Job tracks one transcription from intake to final transcript.
type Job struct {
	FileName string    `json:"file_name"`
	Mode     Mode      `json:"mode"`
	Status   Status    `json:"status"`
	Segments []Segment `json:"segments,omitempty"`

	// Current is the 1-based index of the chunk last dispatched; Total is the
	// chunk count, 0 until chunking has finished.
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Languages returns the distinct language codes detected across successful
// segments, normalized and sorted.
func (j *Job) Languages() []string {
	return lang.Distinct(j.detectedLanguages())
}

// Result merges the job's segments into the final transcript.
//
// Chunked jobs prefix every segment with its time range and leave an error
// marker in place of each failed chunk's text. A chunked job that produced a
// single chunk reads exactly like a single-shot one: no label. The merged
// language is the consensus across successful segments, "auto" unless they
// all agree.
func (j *Job) Result() Result {
	labeled := j.Mode == ModeChunked && len(j.Segments) > 1

	parts := make([]string, 0, len(j.Segments))
	for _, seg := range j.Segments {
		parts = append(parts, seg.render(labeled))
	}

	return Result{
		Text:     strings.Join(parts, "\n\n"),
		Language: lang.Consensus(j.detectedLanguages()),
	}
}

func (j *Job) detectedLanguages() []string {
	var codes []string
	for _, seg := range j.Segments {
		if !seg.Failed {
			codes = append(codes, seg.Language)
		}
	}
	return codes
}

func (s Segment) render(labeled bool) string {
	switch {
	case labeled && s.Failed:
		return fmt.Sprintf("%s [Error: %s]", format.TimeRange(s.Start, s.End), s.Text)
	case labeled:
		return fmt.Sprintf("%s %s", format.TimeRange(s.Start, s.End), s.Text)
	case s.Failed:
		return fmt.Sprintf("[Error: %s]", s.Text)
	default:
		return s.Text
	}
}
