package agent

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultChatModel is used when no model is configured.
const DefaultChatModel = "gpt-4o"

// OpenAICompleter implements Completer against an OpenAI-compatible endpoint.
type OpenAICompleter struct {
	client openai.Client
	model  string
}

// CompleterOption configures an OpenAICompleter.
type CompleterOption func(*OpenAICompleter)

// WithChatModel overrides the model name.
func WithChatModel(model string) CompleterOption {
	return func(c *OpenAICompleter) {
		if model != "" {
			c.model = model
		}
	}
}

// NewOpenAICompleter creates a completer. An empty apiKey falls back to the
// client's environment handling; an empty baseURL means the standard OpenAI
// endpoint.
func NewOpenAICompleter(apiKey, baseURL string, opts ...CompleterOption) *OpenAICompleter {
	var reqOpts []option.RequestOption
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}

	c := &OpenAICompleter{
		client: openai.NewClient(reqOpts...),
		model:  DefaultChatModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends the conversation and returns the model's reply.
func (c *OpenAICompleter) Complete(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}
