package domain

import "context"

// CompletionRequest is everything the remote model needs for one turn.
type CompletionRequest struct {
	Prompt      string
	Module      ModuleID
	History     []*Message
	Attachments []Attachment
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	Text        string
	Attachments []Attachment
}

// CompletionClient defines how the core interacts with the remote model.
// Errors carry a human readable message that is shown to the user as is.
type CompletionClient interface {
	Generate(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// SpeechClient synthesizes text into base64 encoded PCM16 (24 kHz mono).
// An empty string means no audio was produced.
type SpeechClient interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// TranscriptRepository persists conversation transcripts.
type TranscriptRepository interface {
	SaveTranscript(ctx context.Context, t *Transcript) error
	LoadTranscript(ctx context.Context, id SessionID) (*Transcript, error)
}
