package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/team-of-2/novelize/notes/provider"
	"go.uber.org/zap"
)

// Summarizer compresses a character's actions to a word budget.
type Summarizer struct {
	Client    provider.Invoker
	MaxTokens int
	Logger    *zap.Logger
}

// Summarize joins actions with ActionDelimiter. When the joined text fits budget words it is returned
// without a model call. Otherwise the model compresses it; on failure the joined text is returned
// together with the error so the caller can keep it.
func (s Summarizer) Summarize(ctx context.Context, name string, actions []string, budget int) (string, error) {
	joined := strings.Join(actions, ActionDelimiter)
	if countWords(joined) <= budget {
		return joined, nil
	}
	if s.Client == nil {
		return joined, errors.New("Summarize: client is nil")
	}

	text, err := s.Client.Invoke(ctx, provider.NewUserRequest(SummarizationPrompt(name, joined, budget), s.MaxTokens))
	if err != nil {
		s.logger().Warn("summarize failed, keeping joined notes",
			zap.String("character", name),
			zap.Int("words", countWords(joined)),
			zap.String("notes", provider.Excerpt(joined)),
			zap.Error(err))
		return joined, fmt.Errorf("Summarize %s: %w", name, err)
	}
	return strings.TrimSpace(text), nil
}

func (s Summarizer) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
