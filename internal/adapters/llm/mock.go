package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"

	"github.com/selkane/auxilium/internal/audio/pcm"
	"github.com/selkane/auxilium/internal/domain"
)

// MockClient answers locally without calling any remote service.
type MockClient struct{}

var (
	_ domain.CompletionClient = (*MockClient)(nil)
	_ domain.SpeechClient     = (*MockClient)(nil)
)

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Generate(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := fmt.Sprintf("[%s] Received %q", req.Module, req.Prompt)
	if n := len(req.Attachments); n > 0 {
		text += fmt.Sprintf(" with %d attachment(s)", n)
	}
	return &domain.CompletionResponse{Text: text}, nil
}

// Synthesize returns a short 440 Hz tone whose length grows with the text.
func (m *MockClient) Synthesize(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if text == "" {
		return "", nil
	}
	return base64.StdEncoding.EncodeToString(pcm.Encode(Tone(440, len(text)))), nil
}

// Tone returns chars*10ms of a sine at freq Hz, capped at two seconds.
func Tone(freq float64, chars int) []int16 {
	f := pcm.L16Mono24K
	n := chars * f.SampleRate() / 100
	if limit := 2 * f.SampleRate(); n > limit {
		n = limit
	}
	out := make([]int16, n)
	for i := range out {
		v := 0.3 * math.Sin(2*math.Pi*freq*float64(i)/float64(f.SampleRate()))
		out[i] = int16(v * math.MaxInt16)
	}
	return out
}
