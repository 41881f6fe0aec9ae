package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/sarvesh-official/lumo/internal/provider"
	"github.com/sarvesh-official/lumo/pkg/types"
)

// TitleMaxTokens caps the title generation call.
const TitleMaxTokens = 20

// Synthesizer derives short session titles from a seed message. Failures
// never block session creation; callers fall back to the default title.
type Synthesizer struct {
	registry *provider.Registry
	model    string
}

// NewSynthesizer creates a title synthesizer using the given model.
func NewSynthesizer(registry *provider.Registry, model string) *Synthesizer {
	return &Synthesizer{registry: registry, model: model}
}

// Synthesize runs one bounded generation call and cleans up the output.
func (t *Synthesizer) Synthesize(ctx context.Context, seed string) (string, error) {
	prov, err := t.registry.Get()
	if err != nil {
		return "", fmt.Errorf("provider unavailable: %w", err)
	}

	prompt := fmt.Sprintf("Based on this message: %s\n\n"+
		"Generate a concise chat title using 3-6 words. Return ONLY the title text "+
		"with no quotes, punctuation, or formatting. Example format: Learning Python Basics", seed)

	text, err := prov.Complete(ctx, provider.Request{
		Model:     t.model,
		Messages:  []types.Message{NewUserMessage(prompt)},
		MaxTokens: TitleMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("title generation: %w", err)
	}

	return CleanTitle(text), nil
}

// CleanTitle strips the decoration models wrap titles in: surrounding
// quotes, backticks and backslashes, then escaped inner quotes.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, "\"'`\\")
	title = strings.ReplaceAll(title, `\"`, `"`)
	return strings.TrimSpace(title)
}
