// Package llm wraps the chat-completion boundary. Failures are reported as
// descriptive text rather than errors so downstream consumers can surface
// them verbatim.
package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

// Message is one role-tagged chat message. Role is "system", "user" or
// "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config holds the generation parameters passed on every call.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Model is the langchaingo surface the client depends on; any of its chat
// model implementations satisfies it.
type Model interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Client issues chat completions.
type Client struct {
	model  Model
	cfg    Config
	logger *zap.Logger
}

// New builds a Client. Zero config fields get the service defaults.
func New(model Model, cfg Config, logger *zap.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "mistral-large-latest"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4000
	}
	return &Client{model: model, cfg: cfg, logger: logger}
}

// Chat sends the messages and returns the generated text. Any failure is
// returned as a human-readable string, never as an error: callers display
// whatever comes back.
func (c *Client) Chat(ctx context.Context, messages []Message) string {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.TextParts(roleFor(msg.Role), msg.Content))
	}

	resp, err := c.model.GenerateContent(ctx, content,
		llms.WithModel(c.cfg.Model),
		llms.WithTemperature(c.cfg.Temperature),
		llms.WithMaxTokens(c.cfg.MaxTokens),
	)
	if err != nil {
		c.logger.Warn("chat completion failed", zap.Error(err))
		return fmt.Sprintf("Erreur lors de l'appel au modèle: %v", err)
	}
	if len(resp.Choices) == 0 {
		return "Erreur: le modèle n'a renvoyé aucune réponse."
	}
	return resp.Choices[0].Content
}

func roleFor(role string) schema.ChatMessageType {
	switch role {
	case "system":
		return schema.ChatMessageTypeSystem
	case "assistant":
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}
