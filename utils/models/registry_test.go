package models

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryFindProvider(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		model    string
		provider string
	}{
		{"gemini-2.5-flash-preview-04-17", "google"},
		{"gpt-4o", "openai"},
		{"o3-mini", "openai"},
		{"claude-3-5-sonnet", "anthropic"},
		{"grok-2", "xai"},
		{"deepseek-chat", "deepseek"},
		{"ollama/llama3", "ollama"},
		{"mistral-large", ""},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.provider, r.ProviderNameForModel(tt.model))
			p := r.FindProvider(tt.model)
			if tt.provider == "" {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.Equal(t, tt.provider, p.Name())
			assert.True(t, p.SupportsModel(tt.model))
		})
	}
}

func TestRegistryListing(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"anthropic", "deepseek", "google", "ollama", "openai", "xai"}, r.ListRegisteredProviders())

	available := r.GetAvailableProviders()
	require.NotEmpty(t, available)
	assert.Equal(t, "google", available[0].Name)
	assert.Equal(t, "ollama", available[len(available)-1].Name)

	assert.NotNil(t, r.GetProviderByName("openai"))
	assert.Nil(t, r.GetProviderByName("nope"))
}

func TestRegisterProviderDuplicate(t *testing.T) {
	r := NewRegistry()
	meta := ProviderMetadata{Name: "mock", ModelPrefixes: []string{"mock"}}
	factory := NewProviderFactory(func() Provider { return NewMockProvider("hi") }, meta)

	require.NoError(t, r.RegisterProvider("mock", factory))
	assert.Error(t, r.RegisterProvider("mock", factory))
}

func TestResolve(t *testing.T) {
	r := DefaultRegistry()
	keys := map[string]string{"google": "g-key"}
	cfg := ModelConfig{Temperature: 0.5, MaxTokens: 10, TopP: 1}

	p, err := r.Resolve("gemini-2.0-flash", ResolveOptions{
		APIKey: func(name string) string { return keys[name] },
		Config: &cfg,
	})
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())
	assert.Equal(t, cfg, p.(Configurable).GetConfig())

	_, err = r.Resolve("gpt-4", ResolveOptions{APIKey: func(name string) string { return keys[name] }})
	assert.True(t, errors.Is(err, ErrNotConfigured))

	_, err = r.Resolve("unknown-model", ResolveOptions{})
	assert.True(t, errors.Is(err, ErrNoProvider))

	local, err := r.Resolve("ollama/llama3", ResolveOptions{
		BaseURL: func(name string) string {
			if name == "ollama" {
				return "http://gpu-box:11434/v1"
			}
			return ""
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434/v1", local.(*OpenAIProvider).baseURL)
}

func TestMockProvider(t *testing.T) {
	m := NewMockProvider("first", "second")
	ctx := context.Background()

	a, err := m.SendPrompt(ctx, "mock", "p1")
	require.NoError(t, err)
	b, _ := m.SendPrompt(ctx, "mock", "p2")
	c, _ := m.SendPromptWithAttachment(ctx, "mock", "p3", Attachment{MIME: "image/png"})

	assert.Equal(t, []string{"first", "second", "second"}, []string{a, b, c})
	assert.Equal(t, []string{"p1", "p2", "p3"}, m.Prompts())
	assert.Len(t, m.Attachments(), 1)

	m.FailWith(errors.New("boom"))
	_, err = m.SendPrompt(ctx, "mock", "p4")
	assert.EqualError(t, err, "boom")
}
