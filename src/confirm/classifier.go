package confirm

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/elee1766/dextra/src/aisdk"
)

// Classifier decides whether a free-text reply agrees to a pending request.
type Classifier interface {
	ClassifyAffirmative(ctx context.Context, text string) (bool, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, text string) (bool, error)

func (f ClassifierFunc) ClassifyAffirmative(ctx context.Context, text string) (bool, error) {
	return f(ctx, text)
}

const classifierPrompt = `
- you will generate a boolean response based on a user's message content
- only return true or false
- if an explicit affirmative response cannot be determined, return false`

// ModelClassifier asks a model for a true/false answer. Only an exact "true"
// counts as agreement.
type ModelClassifier struct {
	Model  aisdk.ModelClient
	Logger *slog.Logger
}

func (c *ModelClassifier) ClassifyAffirmative(ctx context.Context, text string) (bool, error) {
	if c.Model == nil {
		return false, errors.New("classifier model is not configured")
	}
	resp, err := c.Model.CreateChatCompletion(ctx, &aisdk.ChatCompletionRequest{
		Messages: []*aisdk.Message{
			{Role: aisdk.RoleSystem, Content: classifierPrompt},
			{Role: aisdk.RoleUser, Content: text},
		},
	})
	if err != nil {
		return false, err
	}
	if len(resp.Choices) == 0 {
		return false, errors.New("classifier returned no choices")
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if c.Logger != nil {
		c.Logger.DebugContext(ctx, "classified reply", "answer", answer)
	}
	return answer == "true", nil
}
