package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	wavHeaderSize    = 44
	wavBitsPerSample = 16
	wavFormatPCM     = 1
)

// wavHeader mirrors the canonical 44-byte RIFF/WAVE header for PCM audio.
// Field order matters: the struct is serialized directly with binary.Write.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // 36 + data size
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 = PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample/8
	BlockAlign    uint16  // NumChannels * BitsPerSample/8
	BitsPerSample uint16  // 16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // data size
}

// WAVInfo describes a parsed WAV file.
type WAVInfo struct {
	AudioFormat   int
	NumChannels   int
	SampleRate    int
	BitsPerSample int
	DataBytes     int
}

// EncodeWAV serializes per-channel float32 samples as a 16-bit PCM WAV file.
// Channels are interleaved frame by frame in channel order. Samples are
// clamped to [-1, 1] and quantized with a truncating cast, so encoding the
// same buffers always yields byte-identical output.
func EncodeWAV(channels [][]float32, sampleRate int) ([]byte, error) {
	if len(channels) == 0 || len(channels[0]) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrEncode)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrEncode, sampleRate)
	}
	frames := len(channels[0])
	for i, ch := range channels[1:] {
		if len(ch) != frames {
			return nil, fmt.Errorf("%w: channel %d has %d samples, want %d",
				ErrEncode, i+1, len(ch), frames)
		}
	}

	numChannels := len(channels)
	blockAlign := numChannels * wavBitsPerSample / 8
	dataSize := frames * blockAlign

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + dataSize),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   wavFormatPCM,
		NumChannels:   uint16(numChannels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: wavBitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(dataSize),
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataSize))
	if err := binary.Write(buf, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: write header: %v", ErrEncode, err)
	}

	data := make([]byte, dataSize)
	off := 0
	for i := 0; i < frames; i++ {
		for c := 0; c < numChannels; c++ {
			s := quantizeSample(channels[c][i])
			binary.LittleEndian.PutUint16(data[off:], uint16(s))
			off += 2
		}
	}
	buf.Write(data)

	return buf.Bytes(), nil
}

// quantizeSample clamps v to [-1, 1] and converts to 16-bit PCM.
// The cast truncates toward zero; 1.0 maps to 32767 and -1.0 to -32767.
func quantizeSample(v float32) int16 {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int16(v * 32767)
}

// DecodeWAV parses 16-bit PCM WAV data back into per-channel float32 samples.
// Only the encoding this package produces is supported; compressed or
// non-16-bit WAV variants are rejected.
func DecodeWAV(data []byte) ([][]float32, int, error) {
	info, pcm, err := parseWAV(data)
	if err != nil {
		return nil, 0, err
	}
	if info.AudioFormat != wavFormatPCM {
		return nil, 0, fmt.Errorf("%w: audio format %d, want PCM", ErrInvalidWAV, info.AudioFormat)
	}
	if info.BitsPerSample != wavBitsPerSample {
		return nil, 0, fmt.Errorf("%w: %d bits per sample, want %d",
			ErrInvalidWAV, info.BitsPerSample, wavBitsPerSample)
	}

	frameBytes := info.NumChannels * 2
	frames := len(pcm) / frameBytes
	channels := make([][]float32, info.NumChannels)
	for c := range channels {
		channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		base := i * frameBytes
		for c := 0; c < info.NumChannels; c++ {
			s := int16(binary.LittleEndian.Uint16(pcm[base+c*2:]))
			channels[c][i] = float32(s) / 32767
		}
	}
	return channels, info.SampleRate, nil
}

// WAVDuration reads the playing time of WAV data from its header without
// touching the sample stream.
func WAVDuration(data []byte) (time.Duration, error) {
	info, pcm, err := parseWAV(data)
	if err != nil {
		return 0, err
	}
	byteRate := info.SampleRate * info.NumChannels * info.BitsPerSample / 8
	if byteRate <= 0 {
		return 0, fmt.Errorf("%w: zero byte rate", ErrInvalidWAV)
	}
	return time.Duration(int64(len(pcm)) * int64(time.Second) / int64(byteRate)), nil
}

// IsWAV reports whether data begins with a RIFF/WAVE signature.
func IsWAV(data []byte) bool {
	return len(data) >= 12 &&
		bytes.Equal(data[0:4], []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WAVE"))
}

// parseWAV walks the RIFF chunk list and extracts format info plus the PCM
// payload. Unknown chunks (LIST, cue, bext...) are skipped, so files from
// editors that write extra metadata still parse.
func parseWAV(data []byte) (WAVInfo, []byte, error) {
	if !IsWAV(data) {
		return WAVInfo{}, nil, fmt.Errorf("%w: missing RIFF/WAVE signature", ErrInvalidWAV)
	}

	var info WAVInfo
	var pcm []byte
	haveFmt := false
	havePCM := false

	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		if size < 0 {
			return WAVInfo{}, nil, fmt.Errorf("%w: negative chunk size", ErrInvalidWAV)
		}
		body := data[off+8:]
		if size > len(body) {
			// Truncated chunk: clip to what is actually present.
			size = len(body)
		}
		body = body[:size]

		switch id {
		case "fmt ":
			if len(body) < 16 {
				return WAVInfo{}, nil, fmt.Errorf("%w: fmt chunk too short", ErrInvalidWAV)
			}
			info.AudioFormat = int(binary.LittleEndian.Uint16(body[0:2]))
			info.NumChannels = int(binary.LittleEndian.Uint16(body[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			haveFmt = true
		case "data":
			pcm = body
			info.DataBytes = len(body)
			havePCM = true
		}

		// Chunks are word-aligned: odd sizes carry a padding byte.
		off += 8 + size + size%2
	}

	if !haveFmt || !havePCM {
		return WAVInfo{}, nil, fmt.Errorf("%w: missing fmt or data chunk", ErrInvalidWAV)
	}
	if info.NumChannels < 1 || info.SampleRate <= 0 {
		return WAVInfo{}, nil, fmt.Errorf("%w: %d channels at %d Hz",
			ErrInvalidWAV, info.NumChannels, info.SampleRate)
	}
	return info, pcm, nil
}
