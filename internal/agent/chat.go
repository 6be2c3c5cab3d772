package agent

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ChatConfig captures client and model settings for an OpenAI-compatible
// chat endpoint.
type ChatConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}

// OpenAIChat implements ChatCompleter over the chat completions endpoint.
type OpenAIChat struct {
	client *openai.Client
	cfg    ChatConfig
}

// NewOpenAIChat creates an OpenAIChat.
func NewOpenAIChat(cfg ChatConfig) *OpenAIChat {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIChat{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}
}

// Complete sends one system and one user message and returns the reply text.
func (c *OpenAIChat) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
