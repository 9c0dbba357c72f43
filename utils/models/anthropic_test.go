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

func TestAnthropicSendPrompt(t *testing.T) {
	var seen anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Plan: "},{"type":"text","text":"segment customers"}]}`))
	}))
	defer srv.Close()

	provider := NewAnthropicProvider()
	provider.SetBaseURL(srv.URL + "/v1")
	require.NoError(t, provider.Configure("secret"))

	resp, err := provider.SendPrompt(context.Background(), "claude-3-5-sonnet", "Plan it")
	require.NoError(t, err)
	assert.Equal(t, "Plan: segment customers", resp)
	assert.Equal(t, "claude-3-5-sonnet", seen.Model)
	assert.InDelta(t, DefaultTemperature, seen.Temperature, 1e-9)
	require.Len(t, seen.Messages, 1)
	assert.Equal(t, "Plan it", seen.Messages[0].Content[0].Text)
}

func TestAnthropicAttachmentImagePart(t *testing.T) {
	var seen anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	provider := NewAnthropicProvider()
	provider.SetBaseURL(srv.URL)
	require.NoError(t, provider.Configure("k"))

	_, err := provider.SendPromptWithAttachment(context.Background(), "claude-3-haiku", "Describe", Attachment{MIME: "image/png", Data: []byte("png")})
	require.NoError(t, err)

	parts := seen.Messages[0].Content
	require.Len(t, parts, 2)
	assert.Equal(t, "image", parts[1].Type)
	require.NotNil(t, parts[1].Source)
	assert.Equal(t, "base64", parts[1].Source.Type)
	assert.Equal(t, "image/png", parts[1].Source.MediaType)
	assert.Equal(t, "cG5n", parts[1].Source.Data)
}

func TestAnthropicErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("x-api-key") {
		case "bad":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"invalid x-api-key"}}`))
		default:
			_, _ = w.Write([]byte(`{"content":[]}`))
		}
	}))
	defer srv.Close()

	provider := NewAnthropicProvider()
	provider.SetBaseURL(srv.URL)

	require.NoError(t, provider.Configure("bad"))
	_, err := provider.SendPrompt(context.Background(), "claude-3-haiku", "x")
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, err.Error(), "invalid x-api-key")

	require.NoError(t, provider.Configure("good"))
	_, err = provider.SendPrompt(context.Background(), "claude-3-haiku", "x")
	assert.True(t, errors.Is(err, ErrEmptyResponse))

	_, err = provider.SendPrompt(context.Background(), "gpt-4", "x")
	assert.Error(t, err)
}
