package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/selkane/auxilium/internal/domain"
)

// TranscriptStore keeps transcripts in process memory.
type TranscriptStore struct {
	mu          sync.RWMutex
	transcripts map[domain.SessionID]*domain.Transcript
}

var _ domain.TranscriptRepository = (*TranscriptStore)(nil)

func NewTranscriptStore() *TranscriptStore {
	return &TranscriptStore{
		transcripts: make(map[domain.SessionID]*domain.Transcript),
	}
}

func (s *TranscriptStore) SaveTranscript(_ context.Context, t *domain.Transcript) error {
	if t == nil || t.SessionID == "" {
		return errors.New("transcript without session id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcripts[t.SessionID] = cloneTranscript(t)
	return nil
}

func (s *TranscriptStore) LoadTranscript(_ context.Context, id domain.SessionID) (*domain.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transcripts[id]
	if !ok {
		return nil, domain.ErrTranscriptNotFound
	}
	return cloneTranscript(t), nil
}

func cloneTranscript(t *domain.Transcript) *domain.Transcript {
	c := *t
	c.Messages = make([]*domain.Message, 0, len(t.Messages))
	for _, m := range t.Messages {
		c.Messages = append(c.Messages, m.Clone())
	}
	return &c
}
