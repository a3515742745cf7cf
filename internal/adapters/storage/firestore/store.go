package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/selkane/auxilium/internal/domain"
)

// Store persists transcripts as sessions/{id} documents with a messages
// subcollection.
type Store struct {
	client *firestore.Client
}

var _ domain.TranscriptRepository = (*Store)(nil)

// NewStore creates a Firestore store for projectID.
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) sessionDoc(id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol().Doc(string(id))
}

func (s *Store) messagesCol(sessionID domain.SessionID) *firestore.CollectionRef {
	return s.sessionDoc(sessionID).Collection("messages")
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type sessionDoc struct {
	Module    string    `firestore:"module"`
	Language  string    `firestore:"language"`
	Count     int       `firestore:"message_count"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

type attachmentDoc struct {
	MIMEType string `firestore:"mime_type"`
	Data     string `firestore:"data"`
	Name     string `firestore:"name"`
}

type messageDoc struct {
	Position    int             `firestore:"position"`
	Role        string          `firestore:"role"`
	Content     string          `firestore:"content"`
	ModuleID    string          `firestore:"module_id"`
	Timestamp   time.Time       `firestore:"timestamp"`
	Attachments []attachmentDoc `firestore:"attachments"`
}

func toMessageDoc(pos int, m *domain.Message) messageDoc {
	doc := messageDoc{
		Position:  pos,
		Role:      string(m.Role),
		Content:   m.Content,
		ModuleID:  string(m.ModuleID),
		Timestamp: m.Timestamp,
	}
	for _, a := range m.Attachments {
		doc.Attachments = append(doc.Attachments, attachmentDoc{
			MIMEType: a.MIMEType,
			Data:     a.Data,
			Name:     a.Name,
		})
	}
	return doc
}

func fromMessageDoc(id string, doc messageDoc) *domain.Message {
	m := &domain.Message{
		ID:        domain.MessageID(id),
		Role:      domain.Role(doc.Role),
		Content:   doc.Content,
		ModuleID:  domain.ModuleID(doc.ModuleID),
		Timestamp: doc.Timestamp,
	}
	for _, a := range doc.Attachments {
		att := domain.Attachment{MIMEType: a.MIMEType, Data: a.Data, Name: a.Name}
		// previews are derived, not stored
		if att.IsImage() {
			att.PreviewURL = "data:" + att.MIMEType + ";base64," + att.Data
		}
		m.Attachments = append(m.Attachments, att)
	}
	return m
}

// ─────────────────────────────────────────
// TranscriptRepository implementation
// ─────────────────────────────────────────

func (s *Store) SaveTranscript(ctx context.Context, t *domain.Transcript) error {
	if t == nil || t.SessionID == "" {
		return errors.New("transcript without session id")
	}

	doc := sessionDoc{
		Module:    string(t.Module),
		Language:  string(t.Language),
		Count:     len(t.Messages),
		UpdatedAt: t.UpdatedAt,
	}
	if _, err := s.sessionDoc(t.SessionID).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore SaveTranscript: %w", err)
	}

	for i, m := range t.Messages {
		ref := s.messagesCol(t.SessionID).Doc(string(m.ID))
		if _, err := ref.Set(ctx, toMessageDoc(i, m)); err != nil {
			return fmt.Errorf("firestore SaveTranscript message %s: %w", m.ID, err)
		}
	}
	return nil
}

func (s *Store) LoadTranscript(ctx context.Context, id domain.SessionID) (*domain.Transcript, error) {
	snap, err := s.sessionDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrTranscriptNotFound
		}
		return nil, fmt.Errorf("firestore LoadTranscript: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore LoadTranscript decode: %w", err)
	}

	iter := s.messagesCol(id).OrderBy("position", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var msgs []*domain.Message
	for {
		msnap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore LoadTranscript messages: %w", err)
		}

		var md messageDoc
		if err := msnap.DataTo(&md); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}
		msgs = append(msgs, fromMessageDoc(msnap.Ref.ID, md))
	}

	return &domain.Transcript{
		SessionID: id,
		Module:    domain.ModuleID(doc.Module),
		Language:  domain.Language(doc.Language),
		Messages:  msgs,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}
