// Package llm requests chat completions from an OpenAI-compatible endpoint.
// The default endpoint is Gemini's OpenAI compatibility layer.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"talk-bridge/internal/domain"
)

const (
	DefaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultModel       = "gemini-1.5-flash"
	DefaultMaxTokens   = 1200
	DefaultTemperature = 0.7
	defaultTimeout     = 30 * time.Second
)

// ErrCompletion indicates no usable reply was produced.
var ErrCompletion = errors.New("llm: completion failed")

// Client is a focused chat-completion client.
type Client struct {
	api         openai.Client
	model       string
	maxTokens   int64
	temperature float64

	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if u := strings.TrimSpace(baseURL); u != "" {
			c.baseURL = strings.TrimRight(u, "/") + "/"
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = m
		}
	}
}

func WithMaxTokens(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("llm: api key must not be empty")
	}
	c := &Client{
		model:       DefaultModel,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		baseURL:     DefaultBaseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.api = openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(c.baseURL),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(0),
	)
	return c, nil
}

// Complete sends the conversation and returns the trimmed reply. Every
// failure, including an empty reply, is returned as an error wrapping
// ErrCompletion.
func (c *Client) Complete(ctx context.Context, history []domain.ChatMessage) (string, error) {
	messages, err := buildMessages(history)
	if err != nil {
		return "", err
	}

	res, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: unexpected status %d: %w", ErrCompletion, apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("%w: request failed: %w", ErrCompletion, err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrCompletion)
	}
	reply := strings.TrimSpace(res.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", ErrCompletion)
	}
	return reply, nil
}
