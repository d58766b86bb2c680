// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/pdiddy/paper-digest/pkg/types"
)

const defaultOllamaModel = "llama3.1"

// OllamaClient talks to a local Ollama server.
type OllamaClient struct {
	client      *api.Client
	model       string
	temperature float64
}

// NewOllamaClient creates a client for cfg.BaseURL, or for OLLAMA_HOST when
// no base URL is configured.
func NewOllamaClient(cfg types.AIConfig) (*OllamaClient, error) {
	var (
		client *api.Client
		err    error
	)
	if cfg.BaseURL != "" {
		u, perr := url.Parse(cfg.BaseURL)
		if perr != nil {
			return nil, fmt.Errorf("parsing ollama base url: %w", perr)
		}
		client = api.NewClient(u, http.DefaultClient)
	} else {
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("creating ollama client: %w", err)
		}
	}

	c := &OllamaClient{client: client, model: cfg.Model, temperature: cfg.Temperature}
	if c.model == "" {
		c.model = defaultOllamaModel
	}
	if c.temperature == 0 {
		c.temperature = defaultTemperature
	}
	return c, nil
}

func (c *OllamaClient) Model() string { return c.model }

// Complete runs a non-streaming chat request.
func (c *OllamaClient) Complete(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	s := applyOptions(c.temperature, opts)

	msgs := make([]api.Message, len(messages))
	for i, m := range messages {
		msgs[i] = api.Message{Role: m.Role, Content: m.Content}
	}
	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: msgs,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": s.temperature,
			"num_predict": s.maxTokens,
		},
	}

	var out strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w: %w", types.ErrRemoteService, err)
	}
	return strings.TrimSpace(out.String()), nil
}
