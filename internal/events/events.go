// Package events distributes conversation state changes to the presentation
// side over a watermill go-channel bus.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/selkane/auxilium/internal/domain"
	"github.com/selkane/auxilium/internal/observability"
)

// Topic is the topic every state change is published on.
const Topic = "auxilium.state"

type Type string

const (
	TypeMessageAppended    Type = "message_appended"
	TypeRequestStarted     Type = "request_started"
	TypeRequestCompleted   Type = "request_completed"
	TypeRequestFailed      Type = "request_failed"
	TypeErrorDismissed     Type = "error_dismissed"
	TypeGreetingReset      Type = "greeting_reset"
	TypeAttachmentAdded    Type = "attachment_added"
	TypeAttachmentRemoved  Type = "attachment_removed"
	TypeAttachmentsCleared Type = "attachments_cleared"
	TypePlaybackChanged    Type = "playback_changed"
)

// Event is the JSON payload of a state change message.
type Event struct {
	Type      Type             `json:"type"`
	SessionID domain.SessionID `json:"session_id,omitempty"`
	MessageID domain.MessageID `json:"message_id,omitempty"`
	Error     string           `json:"error,omitempty"`
	Playback  string           `json:"playback,omitempty"`
	Count     int              `json:"count,omitempty"`
}

// Publisher receives state changes. Publish must return promptly.
type Publisher interface {
	Publish(Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(Event) {}

// Bus publishes events to a watermill go-channel pub/sub.
type Bus struct {
	pubsub    *gochannel.GoChannel
	sessionID domain.SessionID

	mu       sync.Mutex
	sequence uint64
}

var _ Publisher = (*Bus)(nil)

func NewBus(sessionID domain.SessionID) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer:            64,
				BlockPublishUntilSubscriberAck: true,
			},
			watermill.NopLogger{},
		),
		sessionID: sessionID,
	}
}

// Publish serializes the event to JSON and sends it on Topic. It returns
// once every subscriber received the event, so subscribers see events in
// publish order. Failures are logged and otherwise ignored.
func (b *Bus) Publish(ev Event) {
	if ev.SessionID == "" {
		ev.SessionID = b.sessionID
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		observability.Logger().Error("failed to marshal event", "type", ev.Type, "error", err)
		return
	}

	// sequence numbers and delivery share one order
	b.mu.Lock()
	defer b.mu.Unlock()
	seq := b.sequence
	b.sequence++

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", string(ev.Type))
	msg.Metadata.Set("sequence_number", strconv.FormatUint(seq, 10))

	if err := b.pubsub.Publish(Topic, msg); err != nil {
		observability.Logger().Warn("failed to publish event", "topic", Topic, "type", ev.Type, "error", err)
	}
}

// Subscribe returns decoded events until ctx is done or the bus is closed.
// Messages are acked as soon as they are decoded.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, error) {
	msgs, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, err
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		for msg := range msgs {
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				observability.Logger().Warn("dropping malformed event", "uuid", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}
