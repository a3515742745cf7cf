// Package voice turns model replies into speech and tracks which message is
// being played.
package voice

import (
	"context"
	"errors"
	"sync"

	"github.com/selkane/auxilium/internal/audio/output"
	"github.com/selkane/auxilium/internal/audio/pcm"
	"github.com/selkane/auxilium/internal/domain"
	"github.com/selkane/auxilium/internal/events"
	"github.com/selkane/auxilium/internal/observability"
)

type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StatePlaying    State = "playing"
)

// Format is the format of the synthesized payloads.
const Format = pcm.L16Mono24K

// Player synthesizes a message and plays it on a lazily created output.
// At most one message id is marked as playing.
type Player struct {
	speech  domain.SpeechClient
	factory output.Factory
	pub     events.Publisher

	outOnce sync.Once
	out     output.Output
	outErr  error

	mu      sync.Mutex
	playing domain.MessageID
	state   State
}

func NewPlayer(speech domain.SpeechClient, factory output.Factory, pub events.Publisher) *Player {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Player{
		speech:  speech,
		factory: factory,
		pub:     pub,
		state:   StateIdle,
	}
}

// Playing returns the id of the message being voiced, or "".
func (p *Player) Playing() domain.MessageID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// ErrNoOutput is returned when the player was built without an output
// factory.
var ErrNoOutput = errors.New("voice: no audio output configured")

// Play voices text under id. It returns once playback started; the marker
// goes back to idle when the output reports the end. A request for the
// message already playing is ignored. Synthesis, decoding and playback
// failures are logged and clear the marker; they are not returned.
func (p *Player) Play(ctx context.Context, text string, id domain.MessageID) error {
	if p.factory == nil {
		return ErrNoOutput
	}
	log := observability.LoggerFromContext(ctx).With("message_id", id)

	p.mu.Lock()
	if p.playing == id && p.state != StateIdle {
		p.mu.Unlock()
		return nil
	}
	p.playing = id
	p.state = StateRequesting
	p.mu.Unlock()
	p.publish(id, StateRequesting)

	payload, err := p.speech.Synthesize(ctx, text)
	if err != nil {
		log.Error("speech synthesis failed", "error", err)
		p.finish(id)
		return nil
	}
	if payload == "" {
		log.Warn("speech synthesis returned no audio")
		p.finish(id)
		return nil
	}

	buf, err := pcm.DecodeBase64(payload, Format)
	if err != nil {
		log.Error("decoding speech failed", "error", err)
		p.finish(id)
		return nil
	}

	out, err := p.output()
	if err != nil {
		log.Error("opening audio output failed", "error", err)
		p.finish(id)
		return nil
	}

	// A newer request may own the marker by now; id still plays, it just
	// does not report itself.
	p.mu.Lock()
	current := p.playing == id
	if current {
		p.state = StatePlaying
	}
	p.mu.Unlock()
	if current {
		p.publish(id, StatePlaying)
	}

	log.Info("playing speech", "duration_ms", buf.Duration().Milliseconds(), "current", current)
	if err := out.Play(buf, func() { p.finish(id) }); err != nil {
		log.Error("audio playback failed", "error", err)
		p.finish(id)
	}
	return nil
}

func (p *Player) output() (output.Output, error) {
	p.outOnce.Do(func() {
		p.out, p.outErr = p.factory()
	})
	return p.out, p.outErr
}

// finish clears the marker if it still names id.
func (p *Player) finish(id domain.MessageID) {
	p.mu.Lock()
	if p.playing != id {
		p.mu.Unlock()
		return
	}
	p.playing = ""
	p.state = StateIdle
	p.mu.Unlock()
	p.publish(id, StateIdle)
}

func (p *Player) publish(id domain.MessageID, st State) {
	p.pub.Publish(events.Event{
		Type:      events.TypePlaybackChanged,
		MessageID: id,
		Playback:  string(st),
	})
}
