package audio

import "errors"

// ErrDecode indicates FFmpeg could not decode the source into PCM samples.
var ErrDecode = errors.New("audio decode failed")

// ErrEncode indicates WAV encoding was handed malformed sample buffers.
var ErrEncode = errors.New("wav encode failed")

// ErrNoSamples indicates decoded audio is empty or degenerate, so there is
// nothing to slice into chunks.
var ErrNoSamples = errors.New("decoded audio has no samples")

// ErrInvalidWAV indicates WAV data could not be parsed.
var ErrInvalidWAV = errors.New("invalid wav data")
