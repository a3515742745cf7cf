package conversation

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/selkane/auxilium/internal/domain"
)

//go:embed greetings.yaml
var greetingsYAML []byte

const fallbackGreetingLanguage = "fr"

// Greetings maps a language code to its welcome text.
type Greetings map[string]string

// DefaultGreetings returns the embedded catalog.
func DefaultGreetings() Greetings {
	g, err := ParseGreetings(greetingsYAML)
	if err != nil {
		panic(err)
	}
	return g
}

func ParseGreetings(data []byte) (Greetings, error) {
	var g Greetings
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing greetings: %w", err)
	}
	if g[fallbackGreetingLanguage] == "" {
		return nil, fmt.Errorf("greetings: missing %q entry", fallbackGreetingLanguage)
	}
	return g, nil
}

// Welcome returns the welcome text for lang.
func (g Greetings) Welcome(lang domain.Language) string {
	if text, ok := g[string(lang)]; ok && lang != domain.LanguageAuto {
		return text
	}
	return g[fallbackGreetingLanguage]
}

// Message builds the initial greeting turn.
func (g Greetings) Message(lang domain.Language, now time.Time) *domain.Message {
	return &domain.Message{
		ID:        domain.GreetingID,
		Role:      domain.RoleModel,
		Content:   g.Welcome(lang),
		Timestamp: now,
		ModuleID:  domain.ModuleKnowledge,
	}
}
