package conversation

import (
	"time"

	"github.com/selkane/auxilium/internal/app/attachments"
	"github.com/selkane/auxilium/internal/domain"
	"github.com/selkane/auxilium/internal/events"
)

// NewSession builds the store, pending list and service of a fresh session
// greeted in lang. transcripts and pub may be nil.
func NewSession(
	id domain.SessionID,
	lang domain.Language,
	llm domain.CompletionClient,
	transcripts domain.TranscriptRepository,
	pub events.Publisher,
) *Service {
	greetings := DefaultGreetings()
	store := NewStore(id, greetings.Message(lang, time.Now()), pub)
	svc := NewService(llm, store, attachments.NewPending(pub), transcripts)
	svc.language = lang
	return svc
}
