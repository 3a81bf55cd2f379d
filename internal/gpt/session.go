package gpt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/hammamikhairi/filosofo/internal/domain"
	"github.com/hammamikhairi/filosofo/internal/logger"
)

// Compile-time interface check.
var _ domain.ModelSession = (*Session)(nil)

// Session is one continuous conversation with the model. The system
// instruction is fixed at creation; exchanges are added to the context
// only once their reply streamed to completion, so a failed request leaves
// the context as it was before the request.
type Session struct {
	client *Client
	log    *logger.Logger

	mu      sync.Mutex
	history []openai.ChatCompletionMessage
}

// NewSession opens a conversation governed by systemInstruction.
func (c *Client) NewSession(systemInstruction string) *Session {
	s := &Session{client: c, log: c.log.Named("session")}
	if systemInstruction != "" {
		s.history = append(s.history, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemInstruction,
		})
	}
	return s
}

// Len returns the number of messages in the committed context, including
// the system instruction.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// SendStream sends message with the conversation so far and returns the
// streamed reply.
func (s *Session) SendStream(ctx context.Context, message string) (domain.ChunkStream, error) {
	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message}

	s.mu.Lock()
	msgs := make([]openai.ChatCompletionMessage, 0, len(s.history)+1)
	msgs = append(msgs, s.history...)
	msgs = append(msgs, user)
	s.mu.Unlock()

	req := openai.ChatCompletionRequest{
		Model:       s.client.model,
		Messages:    msgs,
		Temperature: s.client.temperature,
		Stream:      true,
	}

	s.log.Debug("stream: %d messages, model=%s, input=%q", len(msgs), req.Model, truncate(message, 80))
	stream, err := s.client.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("gpt: open stream: %w", err)
	}

	return &chunkStream{
		session: s,
		stream:  stream,
		user:    user,
		started: time.Now(),
	}, nil
}

func (s *Session) commit(user openai.ChatCompletionMessage, reply string) {
	s.mu.Lock()
	s.history = append(s.history, user, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: reply,
	})
	n := len(s.history)
	s.mu.Unlock()
	s.log.Debug("committed exchange (context=%d messages)", n)
}

// chunkStream adapts a go-openai stream to domain.ChunkStream.
type chunkStream struct {
	session *Session
	stream  *openai.ChatCompletionStream
	user    openai.ChatCompletionMessage
	started time.Time

	reply  strings.Builder
	chunks int
	done   bool
}

func (c *chunkStream) Recv() (string, error) {
	if c.done {
		return "", io.EOF
	}
	for {
		resp, err := c.stream.Recv()
		if errors.Is(err, io.EOF) {
			c.done = true
			c.session.commit(c.user, c.reply.String())
			c.session.log.Debug("stream: done (%d chunks, %d chars, %s)",
				c.chunks, c.reply.Len(), time.Since(c.started).Round(time.Millisecond))
			return "", io.EOF
		}
		if err != nil {
			c.done = true
			return "", fmt.Errorf("gpt: receive chunk: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		text := resp.Choices[0].Delta.Content
		if text == "" {
			continue
		}
		c.chunks++
		c.reply.WriteString(text)
		return text, nil
	}
}

func (c *chunkStream) Close() error {
	c.stream.Close()
	return nil
}
