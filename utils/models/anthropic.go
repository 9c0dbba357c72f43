package models

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// AnthropicProvider handles Anthropic family of models
type AnthropicProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	config     ModelConfig
	verbose    bool
}

// NewAnthropicProvider creates a new Anthropic provider instance
func NewAnthropicProvider() *AnthropicProvider {
	return &AnthropicProvider{
		baseURL:    anthropicBaseURL,
		httpClient: &http.Client{},
		config:     DefaultModelConfig(),
	}
}

// debugf prints debug information if verbose mode is enabled
func (a *AnthropicProvider) debugf(format string, args ...interface{}) {
	if a.verbose {
		log.Debug().Str("provider", "anthropic").Msgf(format, args...)
	}
}

// Name returns the provider name
func (a *AnthropicProvider) Name() string {
	return "anthropic"
}

// SupportsModel checks if the given model name is supported by Anthropic
func (a *AnthropicProvider) SupportsModel(modelName string) bool {
	return strings.HasPrefix(strings.ToLower(modelName), "claude-")
}

// Configure sets up the provider with necessary credentials
func (a *AnthropicProvider) Configure(apiKey string) error {
	a.debugf("Configuring Anthropic provider")
	if apiKey == "" {
		return fmt.Errorf("API key is required for Anthropic provider")
	}
	a.apiKey = apiKey
	return nil
}

// SetBaseURL points the provider at another messages endpoint root
func (a *AnthropicProvider) SetBaseURL(url string) {
	a.baseURL = strings.TrimRight(url, "/")
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	TopP        float64            `json:"top_p,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// SendPrompt sends a prompt to the specified model and returns the response
func (a *AnthropicProvider) SendPrompt(ctx context.Context, modelName string, prompt string) (string, error) {
	return a.send(ctx, modelName, []anthropicContent{{Type: "text", Text: prompt}})
}

// SendPromptWithAttachment sends a prompt with an image or PDF as a base64 part
func (a *AnthropicProvider) SendPromptWithAttachment(ctx context.Context, modelName string, prompt string, att Attachment) (string, error) {
	var content []anthropicContent
	switch {
	case strings.HasPrefix(att.MIME, "image/"), att.MIME == "application/pdf":
		partType := "image"
		if att.MIME == "application/pdf" {
			partType = "document"
		}
		content = []anthropicContent{
			{Type: "text", Text: prompt},
			{Type: partType, Source: &anthropicSource{
				Type:      "base64",
				MediaType: att.MIME,
				Data:      base64.StdEncoding.EncodeToString(att.Data),
			}},
		}
	default:
		content = []anthropicContent{{
			Type: "text",
			Text: fmt.Sprintf("File content:\n%s\n\nUser prompt: %s", string(att.Data), prompt),
		}}
	}
	return a.send(ctx, modelName, content)
}

func (a *AnthropicProvider) send(ctx context.Context, modelName string, content []anthropicContent) (string, error) {
	a.debugf("Preparing to send prompt to model: %s", modelName)

	if a.apiKey == "" {
		return "", fmt.Errorf("%w: Anthropic provider missing API key", ErrNotConfigured)
	}
	if !a.SupportsModel(modelName) {
		return "", fmt.Errorf("invalid Anthropic model: %s", modelName)
	}

	a.debugf("Using configuration: Temperature=%.2f, MaxTokens=%d, TopP=%.2f",
		a.config.Temperature, a.config.MaxTokens, a.config.TopP)

	reqBody := anthropicRequest{
		Model:       modelName,
		Messages:    []anthropicMessage{{Role: "user", Content: content}},
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
		TopP:        a.config.TopP,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", apiError("Anthropic", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", apiError("Anthropic", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
		}
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if response.Error != nil {
		return "", apiError("Anthropic", fmt.Errorf("%s", response.Error.Message))
	}
	if resp.StatusCode != http.StatusOK {
		return "", apiError("Anthropic", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var result strings.Builder
	for _, c := range response.Content {
		if c.Type == "" || c.Type == "text" {
			result.WriteString(c.Text)
		}
	}
	if strings.TrimSpace(result.String()) == "" {
		return "", emptyResponse("Anthropic")
	}

	a.debugf("API call completed, response length: %d characters", result.Len())
	return result.String(), nil
}

// SetConfig updates the provider configuration
func (a *AnthropicProvider) SetConfig(config ModelConfig) {
	a.config = config
}

// GetConfig returns the current provider configuration
func (a *AnthropicProvider) GetConfig() ModelConfig {
	return a.config
}

// SetVerbose enables or disables verbose mode
func (a *AnthropicProvider) SetVerbose(verbose bool) {
	a.verbose = verbose
}
