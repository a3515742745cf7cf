package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/selkane/auxilium/internal/audio/pcm"
	"github.com/selkane/auxilium/internal/observability"
)

// WAVDir "plays" each buffer by writing it as a WAV file into a directory.
// Playback ends when the file is flushed.
type WAVDir struct {
	dir string

	mu   sync.Mutex
	next int
	last string
}

// NewWAVDir creates dir if needed.
func NewWAVDir(dir string) (*WAVDir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audio dir: %w", err)
	}
	return &WAVDir{dir: dir}, nil
}

// WAVDirFactory returns a Factory for NewWAVDir(dir).
func WAVDirFactory(dir string) Factory {
	return func() (Output, error) {
		return NewWAVDir(dir)
	}
}

// LastPath is the file written by the most recent Play call.
func (o *WAVDir) LastPath() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

func (o *WAVDir) Play(buf *pcm.Buffer, onEnded func()) error {
	if buf == nil || len(buf.Samples) == 0 {
		return ErrEmptyBuffer
	}

	o.mu.Lock()
	o.next++
	path := filepath.Join(o.dir, fmt.Sprintf("utterance-%04d.wav", o.next))
	o.last = path
	o.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	go func() {
		defer onEnded()
		if err := writeWAV(f, buf); err != nil {
			observability.Logger().Error("writing wav failed", "path", path, "error", err)
		}
	}()
	return nil
}

func writeWAV(f *os.File, buf *pcm.Buffer) error {
	defer f.Close()

	samples := buf.Int16()
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	rate := buf.Format.SampleRate()
	channels := buf.Format.Channels()
	enc := wav.NewEncoder(f, rate, buf.Format.Depth(), channels, 1)
	ib := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: buf.Format.Depth(),
	}
	if err := enc.Write(ib); err != nil {
		return err
	}
	return enc.Close()
}
