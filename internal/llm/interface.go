package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// Client is the single go-openai call the Completer makes. *openai.Client
// satisfies it, and tests swap in a stub returning canned responses.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var _ Client = (*openai.Client)(nil)
