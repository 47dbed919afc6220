package transcribe

import (
	"errors"
	"fmt"
)

// Sentinel errors for transcription failures. Wrap with %w so callers can use
// errors.Is.
var (
	// ErrIdentityMissing indicates no caller identity token was provided.
	// Construction fails on this so a request can never leave without one.
	ErrIdentityMissing = errors.New("caller identity token not set")

	// ErrTranscription indicates the remote endpoint failed or rejected a
	// request.
	ErrTranscription = errors.New("transcription request failed")

	// ErrTimeout indicates a transcription request timed out.
	ErrTimeout = errors.New("transcription request timed out")
)

// RequestError is a non-2xx reply from the transcription endpoint. It keeps
// the status code so the retry policy can tell transient server trouble from
// permanent rejection.
type RequestError struct {
	StatusCode int
	Detail     string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Detail)
}

func (e *RequestError) Unwrap() error {
	return ErrTranscription
}
