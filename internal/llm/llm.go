// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides the chat-completion clients used for ranking and
// summarization: an OpenAI-compatible HTTP client (DeepSeek by default) and
// a local Ollama client.
package llm

import (
	"context"
	"fmt"

	"github.com/pdiddy/paper-digest/pkg/types"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	defaultTemperature = 0.7
	defaultMaxTokens   = 4096
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client sends a conversation and returns the assistant reply.
type Client interface {
	Complete(ctx context.Context, messages []Message, opts ...Option) (string, error)
	Model() string
}

type settings struct {
	temperature float64
	maxTokens   int
}

// Option adjusts a single completion call.
type Option func(*settings)

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(s *settings) { s.temperature = t }
}

// WithMaxTokens bounds the reply length.
func WithMaxTokens(n int) Option {
	return func(s *settings) { s.maxTokens = n }
}

func applyOptions(temperature float64, opts []Option) settings {
	s := settings{temperature: temperature, maxTokens: defaultMaxTokens}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// New builds the client selected by cfg.Provider.
func New(cfg types.AIConfig) (Client, error) {
	switch cfg.Provider {
	case types.ProviderOpenAI, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai api key: %w", types.ErrMissingCredential)
		}
		return NewOpenAIClient(cfg), nil
	case types.ProviderOllama:
		return NewOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// System and User build messages.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message   { return Message{Role: RoleUser, Content: content} }
