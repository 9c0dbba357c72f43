package models

// OllamaPrefix selects a local Ollama model, e.g. "ollama/llama3"
const OllamaPrefix = "ollama/"

const (
	xaiBaseURL      = "https://api.x.ai/v1"
	deepseekBaseURL = "https://api.deepseek.com/v1"
	ollamaBaseURL   = "http://localhost:11434/v1"
)

// NewXAIProvider creates a provider for X.AI Grok models
func NewXAIProvider() *OpenAIProvider {
	return &OpenAIProvider{
		name:     "xai",
		label:    "X.AI",
		baseURL:  xaiBaseURL,
		prefixes: []string{"grok-"},
		config:   DefaultModelConfig(),
	}
}

// NewDeepSeekProvider creates a provider for DeepSeek models
func NewDeepSeekProvider() *OpenAIProvider {
	return &OpenAIProvider{
		name:     "deepseek",
		label:    "DeepSeek",
		baseURL:  deepseekBaseURL,
		prefixes: []string{"deepseek-"},
		config:   DefaultModelConfig(),
	}
}

// NewOllamaProvider creates a provider for models served by a local Ollama.
// The "ollama/" prefix is removed before the request is sent.
func NewOllamaProvider() *OpenAIProvider {
	return &OpenAIProvider{
		name:        "ollama",
		label:       "Ollama",
		baseURL:     ollamaBaseURL,
		prefixes:    []string{OllamaPrefix},
		stripPrefix: OllamaPrefix,
		keyOptional: true,
		config:      DefaultModelConfig(),
	}
}
