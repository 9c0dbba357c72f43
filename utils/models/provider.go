package models

import (
	"context"
	"errors"
	"fmt"
)

// DefaultTemperature keeps persona replies consistent between runs
const DefaultTemperature = 0.2

// ModelConfig represents configuration options for model calls
type ModelConfig struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// DefaultModelConfig returns the generation settings used for every persona call
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Temperature: DefaultTemperature,
		MaxTokens:   8192,
		TopP:        1.0,
	}
}

// Provider represents a model provider (e.g., Google, OpenAI)
type Provider interface {
	Name() string
	SupportsModel(modelName string) bool
	SendPrompt(ctx context.Context, modelName string, prompt string) (string, error)
	Configure(apiKey string) error
	SetVerbose(verbose bool)
}

// Attachment is binary content sent alongside a prompt, such as a plot image
type Attachment struct {
	MIME string
	Data []byte
}

// AttachmentSender is implemented by providers that accept an image with the prompt
type AttachmentSender interface {
	SendPromptWithAttachment(ctx context.Context, modelName string, prompt string, att Attachment) (string, error)
}

// Configurable is implemented by providers whose generation settings can change
type Configurable interface {
	SetConfig(config ModelConfig)
	GetConfig() ModelConfig
}

// BaseURLSetter is implemented by providers that can target another endpoint
type BaseURLSetter interface {
	SetBaseURL(url string)
}

var (
	// ErrEmptyResponse is returned when a model answers with no text
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrNoProvider is returned when no registered provider serves a model name
	ErrNoProvider = errors.New("no provider found for model")
	// ErrNotConfigured is returned when a provider is used without its API key
	ErrNotConfigured = errors.New("provider not configured")
)

// ProviderError wraps a failure reported by a model API
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func apiError(provider string, err error) error {
	return &ProviderError{Provider: provider, Err: err}
}

func emptyResponse(provider string) error {
	return &ProviderError{Provider: provider, Err: ErrEmptyResponse}
}
