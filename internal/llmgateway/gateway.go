// Package llmgateway is the chat-completion boundary: it sends the prompt
// pair, counts tokens, and turns the model's YAML reply into GeneratedTests
// without ever raising on a malformed reply.
package llmgateway

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/covergen/covergen/internal/config"
)

// Known OpenAI-compatible endpoints, selected by the provider tag.
const (
	DefaultDeepSeekBaseURL = "https://api.deepseek.com/v1"
	DefaultMiniMaxBaseURL  = "https://api.minimax.chat/v1"
)

// Messages is the system/user prompt pair sent per call.
type Messages struct {
	System string
	User   string
}

// Reply is one raw model response plus its token accounting.
type Reply struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Gateway sends one chat-completion request. It is stateless and retry-free
// at this layer; the iteration controller's bounds are the only retry
// discipline.
type Gateway interface {
	Call(ctx context.Context, msgs Messages, maxTokens int) (*Reply, error)
}

// OpenAIGateway backs Gateway with any OpenAI-compatible chat-completions
// endpoint (OpenAI, DeepSeek, MiniMax).
type OpenAIGateway struct {
	client      *openai.Client
	model       string
	temperature float32
}

// New builds the gateway for the configured provider. The provider tag
// picks the default base URL; an explicit endpoint always wins.
func New(cfg config.LLMConfig) (*OpenAIGateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llmgateway: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llmgateway: model is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	switch {
	case cfg.Endpoint != "":
		clientCfg.BaseURL = cfg.Endpoint
	case cfg.Provider == "deepseek":
		clientCfg.BaseURL = DefaultDeepSeekBaseURL
	case cfg.Provider == "minimax":
		clientCfg.BaseURL = DefaultMiniMaxBaseURL
	}

	temperature := float32(cfg.Temperature)
	if temperature <= 0 {
		temperature = 0.7
	}

	return &OpenAIGateway{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: temperature,
	}, nil
}

// Call implements Gateway.
func (g *OpenAIGateway) Call(ctx context.Context, msgs Messages, maxTokens int) (*Reply, error) {
	var chat []openai.ChatCompletionMessage
	if msgs.System != "" {
		chat = append(chat, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: msgs.System,
		})
	}
	chat = append(chat, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: msgs.User,
	})

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    chat,
		Temperature: g.temperature,
	}
	if maxTokens > 0 {
		req.MaxTokens = maxTokens
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llmgateway: empty choice list in response")
	}

	return &Reply{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
