// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// openAIBaseURL is the default OpenAI-compatible endpoint. Package-level var
// for test substitution.
var openAIBaseURL = "https://api.deepseek.com"

const defaultOpenAIModel = "deepseek-chat"

// OpenAIClient calls an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	APIKey      string
	BaseURL     string
	model       string
	Temperature float64
	MaxRetries  int
	Client      *http.Client
}

// NewOpenAIClient creates a client from cfg, applying defaults.
func NewOpenAIClient(cfg types.AIConfig) *OpenAIClient {
	c := &OpenAIClient{
		APIKey:      cfg.APIKey,
		BaseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxRetries:  cfg.MaxRetries,
		Client:      &http.Client{Timeout: 10 * time.Minute},
	}
	if c.BaseURL == "" {
		c.BaseURL = openAIBaseURL
	}
	if c.model == "" {
		c.model = defaultOpenAIModel
	}
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

func (c *OpenAIClient) Model() string { return c.model }

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends messages to /chat/completions and returns the first
// choice's content, trimmed.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	s := applyOptions(c.Temperature, opts)

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := httputil.DoWithRetry(ctx, c.Client, req, c.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("calling chat API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("chat API returned %d: %s: %w", resp.StatusCode, string(b), types.ErrRemoteService)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if cr.Error != nil {
		return "", fmt.Errorf("chat API error: %s: %w", cr.Error.Message, types.ErrRemoteService)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices: %w", types.ErrRemoteService)
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}
