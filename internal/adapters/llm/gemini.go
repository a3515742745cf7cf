package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"

	"github.com/selkane/auxilium/internal/domain"
)

const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"
)

// Config selects the genai backend and models.
type Config struct {
	Backend     string
	APIKey      string
	Project     string
	Location    string
	Model       string
	SpeechModel string
	Voice       string
}

// GeminiClient implements domain.CompletionClient and domain.SpeechClient
// on top of the Gemini API or Vertex AI.
type GeminiClient struct {
	client      *genai.Client
	model       string
	speechModel string
	voice       string
}

var (
	_ domain.CompletionClient = (*GeminiClient)(nil)
	_ domain.SpeechClient     = (*GeminiClient)(nil)
)

func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	cc := &genai.ClientConfig{}
	switch cfg.Backend {
	case BackendGemini, "":
		if cfg.APIKey == "" {
			return nil, errors.New("gemini backend requires an API key")
		}
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	case BackendVertex:
		if cfg.Project == "" || cfg.Location == "" {
			return nil, errors.New("vertex backend requires a project and a location")
		}
		cc.Project = cfg.Project
		cc.Location = cfg.Location
		cc.Backend = genai.BackendVertexAI
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		model:       cfg.Model,
		speechModel: cfg.SpeechModel,
		voice:       cfg.Voice,
	}, nil
}

// Generate implements domain.CompletionClient. The returned error carries
// the service's own message so it can be shown as is.
func (g *GeminiClient) Generate(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	contents, err := BuildContents(req)
	if err != nil {
		return nil, err
	}

	temp := float32(0.7)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(BuildSystemInstruction(req.Module), genai.RoleUser),
		Temperature:       &temp,
	}

	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, unwrapAPIError(err)
	}

	return &domain.CompletionResponse{
		Text:        res.Text(),
		Attachments: ResponseAttachments(res),
	}, nil
}

// Synthesize implements domain.SpeechClient. It returns base64 PCM16 mono
// 24 kHz audio, or "" when the model produced none.
func (g *GeminiClient) Synthesize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.voice},
			},
		},
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	res, err := g.client.Models.GenerateContent(ctx, g.speechModel, contents, cfg)
	if err != nil {
		return "", unwrapAPIError(err)
	}
	return speechAudio(res), nil
}

func unwrapAPIError(err error) error {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if inner := apiErr.Unwrap(); inner != nil {
			return inner
		}
	}
	return err
}
