// Package gpt talks to the hosted language model through an
// OpenAI-compatible chat-completions API. By default it targets Gemini's
// OpenAI-compatible endpoint.
package gpt

import (
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/hammamikhairi/filosofo/internal/logger"
)

// Defaults for the hosted model.
const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	DefaultModel   = "gemini-2.5-flash"
)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithModel overrides the default model name.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithBaseURL points the client at another OpenAI-compatible endpoint.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = url }
}

// WithTemperature overrides the sampling temperature used for chat.
func WithTemperature(t float32) ClientOption {
	return func(c *Client) { c.temperature = t }
}

// WithHTTPTimeout sets the HTTP client timeout. Zero disables it, which
// is the default because streamed replies can take long.
func WithHTTPTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// Client creates conversation sessions and one-shot completions.
type Client struct {
	api         *openai.Client
	baseURL     string
	model       string
	temperature float32
	timeout     time.Duration
	log         *logger.Logger
}

// NewClient creates a model client authenticated with apiKey.
func NewClient(apiKey string, log *logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		log:     log.Named("gpt"),
	}
	for _, o := range opts {
		o(c)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = &http.Client{Timeout: c.timeout}
	c.api = openai.NewClientWithConfig(cfg)
	return c
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
