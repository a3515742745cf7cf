package firestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/selkane/auxilium/internal/domain"
)

func TestMessageDocRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := &domain.Message{
		ID:        "1740830400000",
		Role:      domain.RoleUser,
		Content:   "look",
		Timestamp: now,
		ModuleID:  domain.ModuleVision,
		Attachments: []domain.Attachment{
			{MIMEType: "image/png", Data: "AAAA", Name: "a.png", PreviewURL: "data:image/png;base64,AAAA"},
			{MIMEType: "application/pdf", Data: "BBBB", Name: "b.pdf"},
		},
	}

	doc := toMessageDoc(3, msg)
	assert.Equal(t, 3, doc.Position)
	assert.Len(t, doc.Attachments, 2)

	assert.Equal(t, msg, fromMessageDoc(string(msg.ID), doc))
}

func TestNewStoreRequiresProject(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	assert.Error(t, err)
}
