// Package pcm decodes raw signed 16-bit little-endian PCM, as returned by
// speech synthesis, into normalized float samples ready for playback.
//
// The payload carries no header: sample rate and channel count come from the
// Format the caller expects.
package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// L16Mono24K represents audio/L16; rate=24000; channels=1
	L16Mono24K Format = iota
	// L16Mono16K represents audio/L16; rate=16000; channels=1
	L16Mono16K
)

// ErrOddLength is returned when a payload does not hold a whole number of
// 16-bit samples.
var ErrOddLength = errors.New("pcm: payload length is not a multiple of 2")

// Format represents an audio format configuration.
type Format int

// SampleRate returns the sample rate in Hz for this format.
func (f Format) SampleRate() int {
	switch f {
	case L16Mono24K:
		return 24000
	case L16Mono16K:
		return 16000
	}
	panic("pcm: invalid audio type")
}

// Channels returns the number of audio channels for this format.
func (f Format) Channels() int {
	switch f {
	case L16Mono24K, L16Mono16K:
		return 1
	}
	panic("pcm: invalid audio type")
}

// Depth returns the bit depth for this format.
func (f Format) Depth() int {
	switch f {
	case L16Mono24K, L16Mono16K:
		return 16
	}
	panic("pcm: invalid audio type")
}

// Duration returns the playback duration of n samples.
func (f Format) Duration(samples int) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate())
}

func (f Format) String() string {
	switch f {
	case L16Mono24K:
		return "audio/L16; rate=24000; channels=1"
	case L16Mono16K:
		return "audio/L16; rate=16000; channels=1"
	}
	panic("pcm: invalid audio type")
}

// Buffer is a decoded mono buffer with samples in [-1.0, 1.0).
type Buffer struct {
	Format  Format
	Samples []float32
}

// Duration returns how long the buffer plays.
func (b *Buffer) Duration() time.Duration {
	return b.Format.Duration(len(b.Samples))
}

// Int16 converts the samples back to signed 16-bit values. The conversion is
// exact for buffers produced by Decode.
func (b *Buffer) Int16() []int16 {
	out := make([]int16, len(b.Samples))
	for i, s := range b.Samples {
		v := math.Round(float64(s) * 32768)
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}

// Samples reinterprets little-endian bytes as signed 16-bit samples.
func Samples(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, ErrOddLength
	}
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return out, nil
}

// Normalize maps each sample to s/32768.
func Normalize(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Decode turns raw PCM16 bytes into a Buffer of the given format.
func Decode(data []byte, f Format) (*Buffer, error) {
	samples, err := Samples(data)
	if err != nil {
		return nil, err
	}
	return &Buffer{Format: f, Samples: Normalize(samples)}, nil
}

// DecodeBase64 decodes a base64 PCM16 payload.
func DecodeBase64(payload string, f Format) (*Buffer, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("pcm: decoding base64: %w", err)
	}
	return Decode(data, f)
}

// Encode is the inverse of Decode for int16 samples.
func Encode(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}
