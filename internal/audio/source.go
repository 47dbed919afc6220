package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source is an in-memory audio input: the raw container bytes plus the
// metadata the upload or filesystem gave us. Inputs top out at tens of
// megabytes, so keeping them in memory avoids temp-file bookkeeping until
// FFmpeg actually needs a path.
type Source struct {
	Name string // original file name, drives chunk naming
	MIME string // declared content type, informational only
	Data []byte
}

// Size returns the byte length of the source.
func (s Source) Size() int64 {
	return int64(len(s.Data))
}

// BaseName returns the file name without directory or extension.
// Falls back to "audio" for nameless sources.
func (s Source) BaseName() string {
	base := filepath.Base(s.Name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		return "audio"
	}
	return base
}

// writeTemp materializes src into a temp file. FFmpeg needs a seekable input
// for most containers, so piping the bytes directly is not an option. The
// returned cleanup removes the file.
func writeTemp(src Source) (string, func(), error) {
	f, err := os.CreateTemp("", "vegvisr-*"+safeExt(src.Name))
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := f.Write(src.Data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return path, cleanup, nil
}

// safeExt returns the extension of name if it is a plain alphanumeric suffix,
// empty otherwise. The extension is only a demuxer hint for FFmpeg; anything
// unusual is safer left off the temp file name.
func safeExt(name string) string {
	ext := filepath.Ext(name)
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !alnum {
			return ""
		}
	}
	return strings.ToLower(ext)
}
