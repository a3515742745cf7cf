package llm

import (
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/selkane/auxilium/internal/domain"
)

const baseSystemInstruction = `
/// CORE KERNEL: MY AUXILIUM ///
IDENTITY: You are "My Auxilium", a multilingual assistant built by Louaï Selkane.

Languages:
1. You master every major language (Arabic, French, English, Spanish, Chinese, Japanese...).
2. You translate in real time and keep slang and cultural nuances.
3. Always answer in the language used by the user unless a [PRIORITY_LANGUAGE] marker says otherwise or you are asked to translate.
4. Your Arabic, both classical and Moroccan Darija, is precise and natural.
`

// BuildSystemInstruction returns the identity prompt followed by the
// instruction fragment of the module.
func BuildSystemInstruction(module domain.ModuleID) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(baseSystemInstruction))
	if m := module.Module(); m.Instruction != "" {
		sb.WriteString("\n\n")
		sb.WriteString(m.Instruction)
	}
	return sb.String()
}

func role(r domain.Role) genai.Role {
	if r == domain.RoleModel {
		return genai.RoleModel
	}
	return genai.RoleUser
}

// BuildContents turns the history and the new turn into genai contents.
// Attachments are sent as inline data next to the prompt text.
func BuildContents(req domain.CompletionRequest) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		parts, err := messageParts(m.Content, m.Attachments)
		if err != nil {
			return nil, fmt.Errorf("history message %s: %w", m.ID, err)
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, genai.NewContentFromParts(parts, role(m.Role)))
	}

	parts, err := messageParts(req.Prompt, req.Attachments)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		parts = []*genai.Part{genai.NewPartFromText("")}
	}
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
	return contents, nil
}

func messageParts(text string, atts []domain.Attachment) ([]*genai.Part, error) {
	var parts []*genai.Part
	for _, a := range atts {
		data, err := base64.StdEncoding.DecodeString(a.Data)
		if err != nil {
			return nil, fmt.Errorf("attachment %q: decoding base64: %w", a.Name, err)
		}
		parts = append(parts, genai.NewPartFromBytes(data, a.MIMEType))
	}
	if text != "" {
		parts = append(parts, genai.NewPartFromText(text))
	}
	return parts, nil
}

// ResponseAttachments collects inline data parts of a reply, e.g. generated
// images.
func ResponseAttachments(res *genai.GenerateContentResponse) []domain.Attachment {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return nil
	}
	var out []domain.Attachment
	for _, p := range res.Candidates[0].Content.Parts {
		if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
			continue
		}
		a := domain.Attachment{
			MIMEType: p.InlineData.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(p.InlineData.Data),
		}
		if a.IsImage() {
			a.PreviewURL = "data:" + a.MIMEType + ";base64," + a.Data
		}
		out = append(out, a)
	}
	return out
}

// speechAudio returns the first inline audio payload of a TTS reply as
// base64, or "" when there is none.
func speechAudio(res *genai.GenerateContentResponse) string {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return ""
	}
	for _, p := range res.Candidates[0].Content.Parts {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return base64.StdEncoding.EncodeToString(p.InlineData.Data)
		}
	}
	return ""
}
