package conversation

import (
	"errors"
	"sync"

	"github.com/selkane/auxilium/internal/domain"
	"github.com/selkane/auxilium/internal/events"
)

var ErrRequestInFlight = errors.New("a request is already in flight")

// Store holds the conversation state of a session. All mutations go through
// its transitions; readers get deep copies.
type Store struct {
	sessionID domain.SessionID
	pub       events.Publisher

	mu    sync.RWMutex
	state domain.ConversationState
	// outstanding is the sequence number of the request in flight, 0 if none.
	outstanding uint64
	lastSeq     uint64
}

// NewStore starts a conversation with the given greeting as only message.
func NewStore(sessionID domain.SessionID, greeting *domain.Message, pub events.Publisher) *Store {
	if pub == nil {
		pub = events.Nop{}
	}
	s := &Store{sessionID: sessionID, pub: pub}
	if greeting != nil {
		s.state.Messages = []*domain.Message{greeting}
	}
	return s
}

func (s *Store) SessionID() domain.SessionID {
	return s.sessionID
}

// State returns a snapshot of the conversation.
func (s *Store) State() domain.ConversationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsLoading
}

// Recent returns copies of the last n messages (all when n <= 0).
func (s *Store) Recent(n int) []*domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.state.Messages
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]*domain.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Clone())
	}
	return out
}

// Append pushes msg to the end of the conversation.
func (s *Store) Append(msg *domain.Message) {
	s.mu.Lock()
	s.state.Messages = append(s.state.Messages, msg.Clone())
	s.mu.Unlock()

	s.pub.Publish(events.Event{Type: events.TypeMessageAppended, MessageID: msg.ID})
}

// BeginRequest marks a request as outstanding and clears the error. It
// returns the request's sequence number, or ErrRequestInFlight without
// touching the state.
func (s *Store) BeginRequest() (uint64, error) {
	s.mu.Lock()
	if s.state.IsLoading {
		s.mu.Unlock()
		return 0, ErrRequestInFlight
	}
	s.lastSeq++
	seq := s.lastSeq
	s.outstanding = seq
	s.state.IsLoading = true
	s.state.Error = nil
	s.mu.Unlock()

	s.pub.Publish(events.Event{Type: events.TypeRequestStarted})
	return seq, nil
}

// CompleteRequest appends the reply of request seq and ends loading. A
// resolution for any other sequence is stale and ignored.
func (s *Store) CompleteRequest(seq uint64, reply *domain.Message) bool {
	s.mu.Lock()
	if !s.state.IsLoading || seq != s.outstanding {
		s.mu.Unlock()
		return false
	}
	s.state.Messages = append(s.state.Messages, reply.Clone())
	s.state.IsLoading = false
	s.outstanding = 0
	s.mu.Unlock()

	s.pub.Publish(events.Event{Type: events.TypeRequestCompleted, MessageID: reply.ID})
	return true
}

// FailRequest ends loading with errText. No message is appended so the
// user's turn stays in history.
func (s *Store) FailRequest(seq uint64, errText string) bool {
	s.mu.Lock()
	if !s.state.IsLoading || seq != s.outstanding {
		s.mu.Unlock()
		return false
	}
	s.state.IsLoading = false
	s.state.Error = &errText
	s.outstanding = 0
	s.mu.Unlock()

	s.pub.Publish(events.Event{Type: events.TypeRequestFailed, Error: errText})
	return true
}

func (s *Store) DismissError() {
	s.mu.Lock()
	had := s.state.Error != nil
	s.state.Error = nil
	s.mu.Unlock()

	if had {
		s.pub.Publish(events.Event{Type: events.TypeErrorDismissed})
	}
}

// ResetGreeting replaces the greeting text, but only while the greeting is
// still the only message.
func (s *Store) ResetGreeting(text string) bool {
	s.mu.Lock()
	msgs := s.state.Messages
	if len(msgs) != 1 || msgs[0].ID != domain.GreetingID {
		s.mu.Unlock()
		return false
	}
	g := msgs[0].Clone()
	g.Content = text
	s.state.Messages = []*domain.Message{g}
	s.mu.Unlock()

	s.pub.Publish(events.Event{Type: events.TypeGreetingReset, MessageID: domain.GreetingID})
	return true
}

// Restore replaces the history with msgs, e.g. from a saved transcript.
func (s *Store) Restore(msgs []*domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsLoading {
		return ErrRequestInFlight
	}
	restored := make([]*domain.Message, 0, len(msgs))
	for _, m := range msgs {
		restored = append(restored, m.Clone())
	}
	s.state.Messages = restored
	s.state.Error = nil
	return nil
}
