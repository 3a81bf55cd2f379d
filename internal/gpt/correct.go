package gpt

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/hammamikhairi/filosofo/internal/domain"
)

// Compile-time interface check.
var _ domain.Corrector = (*Client)(nil)

// correctionTemperature keeps corrections predictable.
const correctionTemperature = 0.1

// Correct fixes grammar and spelling of Spanish text. Empty input yields
// "". On failure the original text is returned together with the error so
// callers never lose what the user wrote.
func (c *Client) Correct(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: correctionTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: CorrectionPrompt(text)},
		},
	})
	if err != nil {
		c.log.Error("correct: %v", err)
		return text, fmt.Errorf("gpt: correct: %w", err)
	}
	if len(resp.Choices) == 0 {
		return text, fmt.Errorf("gpt: correct: empty response (no choices)")
	}

	corrected := trimQuotes(strings.TrimSpace(resp.Choices[0].Message.Content))
	c.log.Debug("correct: %q -> %q", truncate(text, 60), truncate(corrected, 60))
	return corrected, nil
}

// trimQuotes drops one leading and one trailing double quote, which the
// model sometimes wraps its answer in.
func trimQuotes(s string) string {
	s = strings.TrimPrefix(s, `"`)
	return strings.TrimSuffix(s, `"`)
}
