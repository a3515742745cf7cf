package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/selkane/auxilium/internal/app/attachments"
	"github.com/selkane/auxilium/internal/domain"
	"github.com/selkane/auxilium/internal/observability"
)

const (
	DefaultHistoryWindow = 10

	// fallbackErrorText is shown when a failed request carries no message.
	fallbackErrorText = "CRITICAL CORE ERROR."
)

var ErrEmptyInput = errors.New("nothing to send: text and attachments are empty")

// RequestError is a failed completion call. Its message is what the user sees.
type RequestError struct {
	Message string
	Err     error
}

func (e *RequestError) Error() string { return e.Message }
func (e *RequestError) Unwrap() error { return e.Err }

// PerfStats is the rolling performance readout of the session.
type PerfStats struct {
	Latency  time.Duration `json:"latency"`
	Tokens   int           `json:"tokens"`
	Requests int           `json:"requests"`
}

// Service composes requests to the model and drives the Store through a
// request's lifecycle. It owns the draft text, the pending attachments and
// the module and language selection of the session.
type Service struct {
	llm         domain.CompletionClient
	store       *Store
	pending     *attachments.Pending
	transcripts domain.TranscriptRepository
	greetings   Greetings
	ids         *domain.IDGenerator
	now         func() time.Time

	historyWindow int

	mu       sync.Mutex
	draft    string
	module   domain.ModuleID
	language domain.Language
	stats    PerfStats
}

// NewService wires a session. transcripts may be nil.
func NewService(
	llm domain.CompletionClient,
	store *Store,
	pending *attachments.Pending,
	transcripts domain.TranscriptRepository,
) *Service {
	return &Service{
		llm:           llm,
		store:         store,
		pending:       pending,
		transcripts:   transcripts,
		greetings:     DefaultGreetings(),
		ids:           domain.NewIDGenerator(time.Now),
		now:           time.Now,
		historyWindow: DefaultHistoryWindow,
		module:        domain.ModuleKnowledge,
		language:      domain.LanguageAuto,
	}
}

// SetHistoryWindow sets how many past messages are sent as context.
func (s *Service) SetHistoryWindow(n int) {
	if n > 0 {
		s.historyWindow = n
	}
}

func (s *Service) Store() *Store                  { return s.store }
func (s *Service) Pending() *attachments.Pending { return s.pending }

func (s *Service) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

func (s *Service) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *Service) SelectModule(id domain.ModuleID) error {
	if !id.Valid() {
		_, err := domain.ParseModuleID(string(id))
		return err
	}
	s.mu.Lock()
	s.module = id
	s.mu.Unlock()
	return nil
}

func (s *Service) Module() domain.ModuleID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.module
}

// SetLanguage changes the answer language. Before any exchange happened the
// greeting is re-rendered in the new language.
func (s *Service) SetLanguage(lang domain.Language) {
	s.mu.Lock()
	s.language = lang
	s.mu.Unlock()

	s.store.ResetGreeting(s.greetings.Welcome(lang))
}

func (s *Service) Language() domain.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

func (s *Service) Stats() PerfStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Service) DismissError() {
	s.store.DismissError()
}

// CanSend reports whether a send would do anything. The presentation side
// disables its send action when this is false.
func (s *Service) CanSend() bool {
	if s.store.IsLoading() {
		return false
	}
	return strings.TrimSpace(s.Draft()) != "" || s.pending.Len() > 0
}

type SendInput struct {
	Text     string
	Module   domain.ModuleID
	Language domain.Language
}

type SendOutput struct {
	UserMessage  *domain.Message
	ModelMessage *domain.Message
}

// Submit sends the current draft with the selected module and language.
func (s *Service) Submit(ctx context.Context) (*SendOutput, error) {
	return s.Send(ctx, SendInput{
		Text:     s.Draft(),
		Module:   s.Module(),
		Language: s.Language(),
	})
}

// Send runs one turn: the user message is recorded before the model is
// called, then the reply or the failure is applied. ErrEmptyInput and
// ErrRequestInFlight leave the state untouched. A failed completion call is
// returned as *RequestError after being stored in the conversation error.
func (s *Service) Send(ctx context.Context, in SendInput) (*SendOutput, error) {
	if in.Module == "" {
		in.Module = s.Module()
	}
	if in.Language == "" {
		in.Language = domain.LanguageAuto
	}

	log := observability.LoggerFromContext(ctx).With(
		"session_id", s.store.SessionID(),
		"module", in.Module,
		"language", in.Language,
	)

	if strings.TrimSpace(in.Text) == "" && s.pending.Len() == 0 {
		return nil, ErrEmptyInput
	}
	if s.store.IsLoading() {
		return nil, ErrRequestInFlight
	}

	start := s.now()

	atts, err := s.takeAttachments(in.Text)
	if err != nil {
		return nil, err
	}
	seq, err := s.store.BeginRequest()
	if err != nil {
		s.pending.Restore(atts)
		return nil, err
	}

	history := s.store.Recent(s.historyWindow)

	userMsg := &domain.Message{
		ID:        s.ids.Next(),
		Role:      domain.RoleUser,
		Content:   in.Text,
		Timestamp: start,
		ModuleID:  in.Module,
	}
	if len(atts) > 0 {
		userMsg.Attachments = atts
	}
	s.store.Append(userMsg)
	s.clearDraft()

	log.Info("sending message", "attachments", len(atts), "history", len(history))

	resp, err := s.llm.Generate(ctx, domain.CompletionRequest{
		Prompt:      in.Language.Decorate(in.Text),
		Module:      in.Module,
		History:     history,
		Attachments: atts,
	})
	if err != nil {
		text := errorText(err)
		log.Error("completion failed", "error", err)
		if !s.store.FailRequest(seq, text) {
			log.Warn("discarding stale failure", "seq", seq)
		}
		s.persist(ctx)
		return &SendOutput{UserMessage: userMsg}, &RequestError{Message: text, Err: err}
	}

	modelMsg := &domain.Message{
		ID:          s.ids.Next(),
		Role:        domain.RoleModel,
		Content:     resp.Text,
		Timestamp:   s.now(),
		ModuleID:    in.Module,
		Attachments: resp.Attachments,
	}
	if !s.store.CompleteRequest(seq, modelMsg) {
		log.Warn("discarding stale reply", "seq", seq)
		return &SendOutput{UserMessage: userMsg}, nil
	}

	latency := s.now().Sub(start)
	s.mu.Lock()
	s.stats.Latency = latency
	s.stats.Tokens += len(resp.Text) / 4
	s.stats.Requests++
	s.mu.Unlock()

	log.Info("send message completed", "elapsed_ms", latency.Milliseconds())
	s.persist(ctx)

	return &SendOutput{
		UserMessage:  userMsg,
		ModelMessage: modelMsg,
	}, nil
}

// Resume loads a saved transcript into the store.
func (s *Service) Resume(ctx context.Context) error {
	if s.transcripts == nil {
		return nil
	}
	t, err := s.transcripts.LoadTranscript(ctx, s.store.SessionID())
	if err != nil {
		return err
	}
	if err := s.store.Restore(t.Messages); err != nil {
		return err
	}

	s.mu.Lock()
	if t.Module.Valid() {
		s.module = t.Module
	}
	if t.Language != "" {
		s.language = t.Language
	}
	s.mu.Unlock()
	return nil
}

// takeAttachments claims the pending attachments for a send. Another send
// may have claimed them since the emptiness check, so it is repeated on what
// was actually taken.
func (s *Service) takeAttachments(text string) ([]domain.Attachment, error) {
	atts := s.pending.Take()
	if strings.TrimSpace(text) == "" && len(atts) == 0 {
		return nil, ErrEmptyInput
	}
	return atts, nil
}

func (s *Service) clearDraft() {
	s.mu.Lock()
	s.draft = ""
	s.mu.Unlock()
}

func (s *Service) persist(ctx context.Context) {
	if s.transcripts == nil {
		return
	}
	state := s.store.State()
	t := &domain.Transcript{
		SessionID: s.store.SessionID(),
		Module:    s.Module(),
		Language:  s.Language(),
		Messages:  state.Messages,
		UpdatedAt: s.now(),
	}
	if err := s.transcripts.SaveTranscript(ctx, t); err != nil {
		observability.LoggerFromContext(ctx).Error("failed to save transcript", "session_id", t.SessionID, "error", err)
	}
}

func errorText(err error) string {
	if err == nil {
		return fallbackErrorText
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fallbackErrorText
}
