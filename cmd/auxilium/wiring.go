package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/selkane/auxilium/internal/adapters/llm"
	firestorestore "github.com/selkane/auxilium/internal/adapters/storage/firestore"
	memstore "github.com/selkane/auxilium/internal/adapters/storage/memory"
	"github.com/selkane/auxilium/internal/app/attachments"
	"github.com/selkane/auxilium/internal/app/conversation"
	"github.com/selkane/auxilium/internal/app/voice"
	"github.com/selkane/auxilium/internal/audio/output"
	"github.com/selkane/auxilium/internal/config"
	"github.com/selkane/auxilium/internal/domain"
	"github.com/selkane/auxilium/internal/events"
	"github.com/selkane/auxilium/internal/observability"
)

// session bundles everything one conversation needs.
type session struct {
	svc      *conversation.Service
	ingestor *attachments.Ingestor
	player   *voice.Player
	bus      *events.Bus
	speech   domain.SpeechClient

	closers []func() error
}

func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

type speechCompletionClient interface {
	domain.CompletionClient
	domain.SpeechClient
}

func newModelClient(ctx context.Context, cfg *config.Config) (speechCompletionClient, error) {
	log := observability.Logger()
	switch cfg.LLMBackend {
	case "mock":
		log.Info("using mock llm client")
		return llm.NewMockClient(), nil
	default:
		log.Info("using genai llm client", "backend", cfg.LLMBackend, "model", cfg.ModelName)
		return llm.NewGeminiClient(ctx, llm.Config{
			Backend:     cfg.LLMBackend,
			APIKey:      cfg.APIKey,
			Project:     cfg.GCPProjectID,
			Location:    cfg.GCPLocation,
			Model:       cfg.ModelName,
			SpeechModel: cfg.SpeechModel,
			Voice:       cfg.Voice,
		})
	}
}

func newTranscriptRepository(ctx context.Context, cfg *config.Config) (domain.TranscriptRepository, func() error, error) {
	log := observability.Logger()
	switch cfg.StorageBackend {
	case "firestore":
		log.Info("using firestore storage", "project", cfg.GCPProjectID)
		fs, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs.Close, nil
	default:
		log.Info("using in-memory storage")
		return memstore.NewTranscriptStore(), func() error { return nil }, nil
	}
}

// openSession builds a session. With a non-empty id the saved transcript is
// resumed when there is one.
func openSession(ctx context.Context, cfg *config.Config, id domain.SessionID, lang domain.Language) (*session, error) {
	resume := id != ""
	if !resume {
		id = domain.NewSessionID()
	}

	client, err := newModelClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	repo, closeRepo, err := newTranscriptRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus(id)
	svc := conversation.NewSession(id, lang, client, repo, bus)
	svc.SetHistoryWindow(cfg.HistoryWindow)

	if resume {
		if err := svc.Resume(ctx); err != nil && !errors.Is(err, domain.ErrTranscriptNotFound) {
			_ = bus.Close()
			_ = closeRepo()
			return nil, fmt.Errorf("resuming session %s: %w", id, err)
		}
	}

	observability.Logger().Info("session opened", "session_id", id, "resumed", resume)

	return &session{
		svc:      svc,
		ingestor: attachments.NewIngestor(svc.Pending()),
		player:   voice.NewPlayer(client, output.WAVDirFactory(cfg.AudioDir), bus),
		bus:      bus,
		speech:   client,
		closers:  []func() error{closeRepo, bus.Close},
	}, nil
}
