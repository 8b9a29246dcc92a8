package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"aura-rag/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

var ErrEmptyResponse = errors.New("model returned no choices")

// Client sends chat requests to the configured model.
type Client struct {
	model   llms.Model
	timeout time.Duration
}

// NewClient creates a chat client. Gemini is reached through its
// OpenAI-compatible endpoint.
func NewClient(cfg *config.LLMConfig) (*Client, error) {
	log.Debug().Str("provider", cfg.Provider).Str("model", cfg.Model).Str("base_url", cfg.BaseURL).Msg("creating chat client")

	var (
		model llms.Model
		err   error
	)
	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err = ollama.New(opts...)
	case "", "openai", "gemini":
		model, err = openai.New(
			openai.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unknown chat provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewClientWithModel(model, cfg.Timeout), nil
}

// NewClientWithModel wraps an existing model. A zero timeout means none.
func NewClientWithModel(model llms.Model, timeout time.Duration) *Client {
	return &Client{model: model, timeout: timeout}
}

// GenerateContent sends messages, offering tools when any are given, and
// returns the first choice.
func (c *Client) GenerateContent(ctx context.Context, tools []llms.Tool, messages []llms.MessageContent) (*llms.ContentChoice, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var opts []llms.CallOption
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
	}
	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp.Choices[0], nil
}

// Ask sends a single system + user exchange and returns the reply text.
func (c *Client) Ask(ctx context.Context, system, prompt string) (string, error) {
	var messages []llms.MessageContent
	if system != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	choice, err := c.GenerateContent(ctx, nil, messages)
	if err != nil {
		return "", err
	}
	return choice.Content, nil
}
