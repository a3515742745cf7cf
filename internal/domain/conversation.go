package domain

import "strings"

// Attachment is a user supplied file, base64 encoded for transport.
type Attachment struct {
	MIMEType   string `json:"mime_type"`
	Data       string `json:"data"`
	PreviewURL string `json:"preview_url,omitempty"`
	Name       string `json:"name,omitempty"`
}

// IsImage reports whether the attachment can be rendered inline.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.MIMEType, "image/")
}

// Message represents one turn of the conversation (user or model).
type Message struct {
	ID          MessageID    `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Timestamp   Timestamp    `json:"timestamp"`
	ModuleID    ModuleID     `json:"module_id,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Clone returns a copy that shares no slices with m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	if m.Attachments != nil {
		c.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	return &c
}

// ConversationState is the single source of truth rendered by the
// presentation side.
type ConversationState struct {
	Messages  []*Message `json:"messages"`
	IsLoading bool       `json:"is_loading"`
	Error     *string    `json:"error"`
}

// Clone deep copies the state.
func (s ConversationState) Clone() ConversationState {
	out := ConversationState{
		Messages:  make([]*Message, 0, len(s.Messages)),
		IsLoading: s.IsLoading,
	}
	for _, m := range s.Messages {
		out.Messages = append(out.Messages, m.Clone())
	}
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	return out
}

// Transcript is the persisted form of a session's conversation.
type Transcript struct {
	SessionID SessionID
	Module    ModuleID
	Language  Language
	Messages  []*Message
	UpdatedAt Timestamp
}
