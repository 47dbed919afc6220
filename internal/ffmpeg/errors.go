package ffmpeg

import "errors"

// ErrNotFound indicates an FFmpeg suite binary is not installed.
var ErrNotFound = errors.New("ffmpeg not found")
