package output

import (
	"sync"

	"github.com/selkane/auxilium/internal/audio/pcm"
)

// Memory keeps played buffers in memory. Playback only ends when Finish is
// called, unless AutoFinish is set.
type Memory struct {
	AutoFinish bool

	mu      sync.Mutex
	played  []*pcm.Buffer
	pending []func()
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Play(buf *pcm.Buffer, onEnded func()) error {
	if buf == nil || len(buf.Samples) == 0 {
		return ErrEmptyBuffer
	}
	m.mu.Lock()
	m.played = append(m.played, buf)
	auto := m.AutoFinish
	if !auto {
		m.pending = append(m.pending, onEnded)
	}
	m.mu.Unlock()

	if auto {
		onEnded()
	}
	return nil
}

// Finish ends every playback in flight.
func (m *Memory) Finish() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// Played returns the buffers played so far.
func (m *Memory) Played() []*pcm.Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*pcm.Buffer(nil), m.played...)
}
