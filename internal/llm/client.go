// Package llm wraps the OpenAI-compatible endpoints the rest of the
// system consumes as black boxes: chat completion (plain and streamed)
// and text embedding.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/knowdeck/internal/config"
)

// ErrEmptyResponse is returned when the model answers with no content.
var ErrEmptyResponse = errors.New("llm: empty response")

// Client is the language model gateway.
type Client struct {
	api    *openai.Client
	model  string
	logger *zap.Logger
}

// NewClient builds a gateway from configuration. BaseURL is optional and
// supports OpenAI-compatible providers.
func NewClient(cfg config.OpenAIConfig, logger *zap.Logger) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:    openai.NewClientWithConfig(apiCfg),
		model:  cfg.LLMModel,
		logger: logger,
	}
}

// Generate runs a single-turn completion and returns the trimmed text.
func (c *Client) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// GenerateStream runs a completion and delivers text fragments to sink
// as they arrive. It returns the concatenated full text. A sink error
// aborts the stream and is returned unchanged.
func (c *Client) GenerateStream(ctx context.Context, prompt string, temperature float32, sink func(fragment string) error) (string, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		Stream:      true,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion stream: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("chat completion stream recv: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		fragment := resp.Choices[0].Delta.Content
		if fragment == "" {
			continue
		}
		full.WriteString(fragment)
		if sink != nil {
			if err := sink(fragment); err != nil {
				return "", err
			}
		}
	}

	text := strings.TrimSpace(full.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
