// Package output provides the audio output contexts decoded speech is played
// through.
package output

import (
	"errors"

	"github.com/selkane/auxilium/internal/audio/pcm"
)

var ErrEmptyBuffer = errors.New("output: empty buffer")

// Output plays decoded buffers. Play returns as soon as playback started;
// onEnded is called exactly once when playback finished on its own.
type Output interface {
	Play(buf *pcm.Buffer, onEnded func()) error
}

// Factory creates an Output. Players call it lazily, once per session.
type Factory func() (Output, error)
