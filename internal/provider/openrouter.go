package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenRouterModel   = "deepseek/deepseek-chat-v3.1:free"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// openRouterGenerator speaks the OpenAI-compatible chat completion API
// exposed by OpenRouter. It serves as the backup backend.
type openRouterGenerator struct {
	client *openai.Client
	model  string
}

func newOpenRouterGenerator(apiKey, model, baseURL string) (Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openrouter api key is required", ErrNotConfigured)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultOpenRouterModel
	}
	if baseURL = strings.TrimSpace(baseURL); baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL

	return &openRouterGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// GenerateContent sends the prompt as a single-turn chat completion and
// returns the produced messages.
func (g *openRouterGenerator) GenerateContent(ctx context.Context, prompt string) (Reply, error) {
	if g == nil || g.client == nil {
		return Reply{}, errors.New("openrouter generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Reply{}, errors.New("prompt must not be empty")
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return Reply{}, fmt.Errorf("chat completion: %w", err)
	}

	messages := make([]Message, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		content := strings.TrimSpace(choice.Message.Content)
		if content == "" {
			continue
		}
		messages = append(messages, Message{
			Role:    choice.Message.Role,
			Content: content,
		})
	}

	if len(messages) == 0 {
		return Reply{}, errors.New("openrouter api returned empty response")
	}

	return MessagesReply(messages), nil
}

func (g *openRouterGenerator) Name() ID {
	return OpenRouter
}

func (g *openRouterGenerator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}
