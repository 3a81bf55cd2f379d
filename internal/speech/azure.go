package speech

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hammamikhairi/filosofo/internal/logger"
)

// AzureOption configures the Azure TTS client.
type AzureOption func(*AzureClient)

// WithVoice sets the TTS voice.
func WithVoice(voice string) AzureOption {
	return func(c *AzureClient) { c.voice = voice }
}

// WithLanguage sets the SSML language tag.
func WithLanguage(lang string) AzureOption {
	return func(c *AzureClient) { c.lang = lang }
}

// WithEndpoint overrides the synthesis URL, which is otherwise derived
// from the region.
func WithEndpoint(url string) AzureOption {
	return func(c *AzureClient) { c.endpoint = url }
}

// WithHTTPTimeout sets the HTTP client timeout for TTS requests.
func WithHTTPTimeout(d time.Duration) AzureOption {
	return func(c *AzureClient) { c.httpClient.Timeout = d }
}

// AzureClient synthesizes speech through Azure Cognitive Services.
type AzureClient struct {
	subscriptionKey string
	endpoint        string
	voice           string
	lang            string
	format          string
	httpClient      *http.Client
	log             *logger.Logger
}

// NewAzureClient creates an Azure TTS client with the given credentials.
func NewAzureClient(key, region string, log *logger.Logger, opts ...AzureOption) *AzureClient {
	c := &AzureClient{
		subscriptionKey: key,
		endpoint:        fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region),
		voice:           DefaultVoice,
		lang:            DefaultLanguage,
		format:          DefaultAudioFormat,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		log:             log.Named("azure"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Voice returns the configured voice name.
func (c *AzureClient) Voice() string { return c.voice }

// Synthesize converts text to WAV audio.
func (c *AzureClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ssml, err := c.buildSSML(text)
	if err != nil {
		return nil, err
	}
	c.log.Debug("synthesizing %d chars with voice %s", len(text), c.voice)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("azure: create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", c.format)
	req.Header.Set("User-Agent", "Filosofo/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("azure: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("azure: read audio: %w", err)
	}
	c.log.Debug("got %d bytes of audio", len(audio))
	return audio, nil
}

// buildSSML wraps text in a speak/voice envelope. The text is escaped,
// so replies quoting "<" or "&" cannot break the document.
func (c *AzureClient) buildSSML(text string) (string, error) {
	var esc bytes.Buffer
	if err := xml.EscapeText(&esc, []byte(text)); err != nil {
		return "", fmt.Errorf("azure: escape text: %w", err)
	}
	return fmt.Sprintf(
		`<speak version='1.0' xml:lang='%s'><voice xml:lang='%s' name='%s'>%s</voice></speak>`,
		c.lang, c.lang, c.voice, esc.String(),
	), nil
}
