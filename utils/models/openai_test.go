package models

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupportsModel(t *testing.T) {
	provider := NewOpenAIProvider()

	tests := []struct {
		name     string
		model    string
		expected bool
	}{
		// GPT models
		{"gpt-4", "gpt-4", true},
		{"gpt-3.5-turbo", "gpt-3.5-turbo", true},

		// O-series models
		{"o1", "o1", true},
		{"o1-pro", "o1-pro", true},
		{"o1-preview-2024-09-12", "o1-preview-2024-09-12", true},
		{"o3-mini", "o3-mini", true},
		{"o4-mini-2025-04-16", "o4-mini-2025-04-16", true},

		// GPT-4O variants
		{"gpt-4o-mini", "gpt-4o-mini", true},
		{"gpt-4.1-nano", "gpt-4.1-nano", true},

		// Invalid models
		{"empty string", "", false},
		{"invalid prefix", "invalid-model", false},
		{"o5 prefix", "o5-model", false},
		{"o1 lookalike", "o1x", false},
		{"partial match", "not-gpt-4", false},
		{"ollama", "ollama/llama3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, provider.SupportsModel(tt.model))
		})
	}
}

func TestIsNewModelSeries(t *testing.T) {
	provider := NewOpenAIProvider()

	tests := []struct {
		model     string
		newSeries bool
		reasoning bool
	}{
		{"o4-mini", true, true},
		{"o1-pro", true, true},
		{"o3-mini", true, true},
		{"gpt-4o-mini", true, false},
		{"gpt-4", false, false},
		{"gpt-3.5-turbo", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.newSeries, provider.isNewModelSeries(tt.model))
			assert.Equal(t, tt.reasoning, provider.isReasoningModel(tt.model))
		})
	}
}

func TestCreateChatCompletionRequest(t *testing.T) {
	provider := NewOpenAIProvider()
	provider.SetConfig(ModelConfig{Temperature: 0.2, MaxTokens: 100, TopP: 0.9})

	legacy := provider.createChatCompletionRequest("gpt-4", nil)
	assert.Equal(t, 100, legacy.MaxTokens)
	assert.Equal(t, 0, legacy.MaxCompletionTokens)
	assert.InDelta(t, 0.2, legacy.Temperature, 1e-6)

	omni := provider.createChatCompletionRequest("gpt-4o", nil)
	assert.Equal(t, 100, omni.MaxCompletionTokens)
	assert.Equal(t, 0, omni.MaxTokens)
	assert.InDelta(t, 0.2, omni.Temperature, 1e-6)

	reasoning := provider.createChatCompletionRequest("o3-mini", nil)
	assert.Equal(t, 100, reasoning.MaxCompletionTokens)
	assert.InDelta(t, 1.0, reasoning.Temperature, 1e-6)
}

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, reply string, seen *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]interface{}{{"index": 0, "message": map[string]string{"role": "assistant", "content": reply}}},
		})
	}))
}

func TestOpenAICompatibleSendPrompt(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, "## Approach:\nGroup by region", &seen)
	defer srv.Close()

	provider := NewDeepSeekProvider()
	provider.SetBaseURL(srv.URL + "/v1/")
	require.NoError(t, provider.Configure("test-key"))

	resp, err := provider.SendPrompt(context.Background(), "deepseek-chat", "Analyze sales")
	require.NoError(t, err)
	assert.Equal(t, "## Approach:\nGroup by region", resp)
	assert.Equal(t, "deepseek-chat", seen.Model)
	assert.InDelta(t, DefaultTemperature, seen.Temperature, 1e-6)
	require.Len(t, seen.Messages, 1)
	assert.Equal(t, "user", seen.Messages[0].Role)
}

func TestOllamaStripsPrefixWithoutKey(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, "ok", &seen)
	defer srv.Close()

	provider := NewOllamaProvider()
	provider.SetBaseURL(srv.URL + "/v1")
	require.NoError(t, provider.Configure(""))

	_, err := provider.SendPrompt(context.Background(), "ollama/llama3", "hi")
	require.NoError(t, err)
	assert.Equal(t, "llama3", seen.Model)
}

func TestOpenAIAttachmentUsesImagePart(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, "The bars rise", &seen)
	defer srv.Close()

	provider := NewOpenAIProvider()
	provider.SetBaseURL(srv.URL + "/v1")
	require.NoError(t, provider.Configure("k"))

	resp, err := provider.SendPromptWithAttachment(context.Background(), "gpt-4o", "Describe", Attachment{MIME: "image/png", Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, "The bars rise", resp)

	require.Len(t, seen.Messages, 1)
	var parts []map[string]interface{}
	require.NoError(t, json.Unmarshal(seen.Messages[0].Content, &parts))
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0]["type"])
	assert.Equal(t, "image_url", parts[1]["type"])
	image := parts[1]["image_url"].(map[string]interface{})
	assert.Equal(t, "data:image/png;base64,AQID", image["url"])
}

func TestOpenAIEmptyResponse(t *testing.T) {
	srv := chatServer(t, "   ", nil)
	defer srv.Close()

	provider := NewOpenAIProvider()
	provider.SetBaseURL(srv.URL + "/v1")
	require.NoError(t, provider.Configure("k"))

	_, err := provider.SendPrompt(context.Background(), "gpt-4", "hi")
	assert.True(t, errors.Is(err, ErrEmptyResponse))
	var perr *ProviderError
	assert.True(t, errors.As(err, &perr))
}

func TestOpenAIRequiresKey(t *testing.T) {
	provider := NewOpenAIProvider()
	assert.Error(t, provider.Configure(""))

	_, err := provider.SendPrompt(context.Background(), "gpt-4", "hi")
	assert.True(t, errors.Is(err, ErrNotConfigured))
}
