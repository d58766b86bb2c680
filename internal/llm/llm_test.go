// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/pkg/types"
)

func TestOpenAIClient_Complete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deepseek-chat", req.Model)
		assert.Equal(t, 0.7, req.Temperature)
		assert.Equal(t, 100, req.MaxTokens)
		assert.False(t, req.Stream)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, RoleSystem, req.Messages[0].Role)
			assert.Equal(t, "hello", req.Messages[1].Content)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"  [1, 2, 3]\n"}}]}`)
	}))
	defer ts.Close()

	c := NewOpenAIClient(types.AIConfig{APIKey: "sk-test", BaseURL: ts.URL + "/"})
	got, err := c.Complete(context.Background(), []Message{System("sys"), User("hello")}, WithMaxTokens(100))
	require.NoError(t, err)
	assert.Equal(t, "[1, 2, 3]", got)
	assert.Equal(t, "deepseek-chat", c.Model())
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "http error", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key"}}`},
		{name: "api error", status: http.StatusOK, body: `{"error":{"message":"overloaded"}}`},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()

			c := NewOpenAIClient(types.AIConfig{APIKey: "k", BaseURL: ts.URL})
			_, err := c.Complete(context.Background(), []Message{User("x")})
			assert.ErrorIs(t, err, types.ErrRemoteService)
		})
	}
}

func TestOllamaClient_Complete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen2.5", req["model"])
		assert.Equal(t, false, req["stream"])
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"qwen2.5","message":{"role":"assistant","content":"brief "},"done":true}`)
	}))
	defer ts.Close()

	c, err := NewOllamaClient(types.AIConfig{Provider: types.ProviderOllama, BaseURL: ts.URL, Model: "qwen2.5"})
	require.NoError(t, err)
	got, err := c.Complete(context.Background(), []Message{User("summarize")})
	require.NoError(t, err)
	assert.Equal(t, "brief", got)
}

func TestNew(t *testing.T) {
	_, err := New(types.AIConfig{Provider: types.ProviderOpenAI})
	assert.ErrorIs(t, err, types.ErrMissingCredential)

	c, err := New(types.AIConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = New(types.AIConfig{Provider: types.ProviderOllama, BaseURL: "http://127.0.0.1:11434"})
	require.NoError(t, err)
	assert.Equal(t, defaultOllamaModel, c.Model())

	_, err = New(types.AIConfig{Provider: "bard"})
	assert.Error(t, err)
}
