package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/landing-chat/internal/config"
	"github.com/comigor/landing-chat/internal/logger"
	"github.com/comigor/landing-chat/internal/models"
)

// ErrNoChoices is returned when the backend answers without any choice.
var ErrNoChoices = errors.New("llm: completion returned no choices")

// NewClient creates a new OpenAI-compatible client (Groq by default).
func NewClient(cfg config.LLMConfig) *openai.Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return openai.NewClientWithConfig(config)
}

// Completer turns a conversation into a single reply string.
type Completer struct {
	client       Client
	model        string
	systemPrompt string
}

// NewCompleter binds client to the configured model and optional system prompt.
func NewCompleter(client Client, cfg config.LLMConfig) *Completer {
	return &Completer{
		client:       client,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
	}
}

// Complete sends the turns in order and returns the first choice's content.
func (c *Completer) Complete(ctx context.Context, turns []models.Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if c.systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.systemPrompt,
		})
	}
	for _, t := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(t.Role),
			Content: t.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	logger.L.Debug("LLM response received", "model", resp.Model, "finish_reason", resp.Choices[0].FinishReason, "total_tokens", resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}
