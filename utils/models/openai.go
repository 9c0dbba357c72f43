package models

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider handles OpenAI models and any endpoint speaking the OpenAI
// chat completions protocol.
type OpenAIProvider struct {
	name        string
	label       string
	baseURL     string
	prefixes    []string
	stripPrefix string
	keyOptional bool
	apiKey      string
	config      ModelConfig
	verbose     bool
}

// NewOpenAIProvider creates a new OpenAI provider instance
func NewOpenAIProvider() *OpenAIProvider {
	return &OpenAIProvider{
		name:     "openai",
		label:    "OpenAI",
		prefixes: []string{"gpt-", "o1", "o3", "o4"},
		config:   DefaultModelConfig(),
	}
}

// Name returns the provider name
func (o *OpenAIProvider) Name() string {
	return o.name
}

// debugf prints debug information if verbose mode is enabled
func (o *OpenAIProvider) debugf(format string, args ...interface{}) {
	if o.verbose {
		log.Debug().Str("provider", o.name).Msgf(format, args...)
	}
}

// SupportsModel checks if the given model name is supported by this endpoint
func (o *OpenAIProvider) SupportsModel(modelName string) bool {
	modelName = strings.ToLower(modelName)
	for _, prefix := range o.prefixes {
		if !strings.HasPrefix(modelName, prefix) {
			continue
		}
		// o-series names are "o1", "o3-mini", "o4-mini-2025-04-16"
		rest := modelName[len(prefix):]
		if len(prefix) == 2 && prefix[0] == 'o' && rest != "" && rest[0] != '-' {
			continue
		}
		o.debugf("Model %s is supported (matches prefix %s)", modelName, prefix)
		return true
	}
	o.debugf("Model %s is not supported (no matching prefix)", modelName)
	return false
}

// Configure sets up the provider with necessary credentials
func (o *OpenAIProvider) Configure(apiKey string) error {
	o.debugf("Configuring %s provider", o.label)
	if apiKey == "" && !o.keyOptional {
		return fmt.Errorf("API key is required for %s provider", o.label)
	}
	o.apiKey = apiKey
	return nil
}

// SetBaseURL points the client at another OpenAI compatible endpoint
func (o *OpenAIProvider) SetBaseURL(url string) {
	o.baseURL = strings.TrimRight(url, "/")
}

// isNewModelSeries checks if the model is part of the newer series (4o or o-series)
func (o *OpenAIProvider) isNewModelSeries(modelName string) bool {
	modelName = strings.ToLower(modelName)
	return strings.Contains(modelName, "4o") || o.isReasoningModel(modelName)
}

// isReasoningModel reports o-series models, which only accept default sampling
func (o *OpenAIProvider) isReasoningModel(modelName string) bool {
	modelName = strings.ToLower(modelName)
	for _, p := range []string{"o1", "o3", "o4"} {
		if modelName == p || strings.HasPrefix(modelName, p+"-") {
			return true
		}
	}
	return false
}

func (o *OpenAIProvider) client() *openai.Client {
	key := o.apiKey
	if key == "" {
		key = o.name
	}
	if o.baseURL == "" {
		return openai.NewClient(key)
	}
	cfg := openai.DefaultConfig(key)
	cfg.BaseURL = o.baseURL
	return openai.NewClientWithConfig(cfg)
}

// createChatCompletionRequest creates a ChatCompletionRequest with the appropriate parameters
func (o *OpenAIProvider) createChatCompletionRequest(modelName string, messages []openai.ChatCompletionMessage) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:    strings.TrimPrefix(modelName, o.stripPrefix),
		Messages: messages,
	}

	switch {
	case o.isReasoningModel(modelName):
		req.MaxCompletionTokens = o.config.MaxTokens
		req.Temperature = 1.0
		req.TopP = 1.0
		o.debugf("Using fixed parameters for reasoning model: Temperature=1.0, TopP=1.0")
	case o.isNewModelSeries(modelName):
		req.MaxCompletionTokens = o.config.MaxTokens
		req.Temperature = float32(o.config.Temperature)
		req.TopP = float32(o.config.TopP)
	default:
		req.MaxTokens = o.config.MaxTokens
		req.Temperature = float32(o.config.Temperature)
		req.TopP = float32(o.config.TopP)
		o.debugf("Using configured parameters: Temperature=%.2f, TopP=%.2f", o.config.Temperature, o.config.TopP)
	}

	return req
}

// SendPrompt sends a prompt to the specified model and returns the response
func (o *OpenAIProvider) SendPrompt(ctx context.Context, modelName string, prompt string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		},
	}
	return o.complete(ctx, modelName, messages)
}

// SendPromptWithAttachment sends a prompt with an image as a data URI part.
// Non-image attachments are inlined into the prompt text.
func (o *OpenAIProvider) SendPromptWithAttachment(ctx context.Context, modelName string, prompt string, att Attachment) (string, error) {
	if !strings.HasPrefix(att.MIME, "image/") {
		combined := fmt.Sprintf("File content:\n%s\n\nUser prompt: %s", string(att.Data), prompt)
		return o.SendPrompt(ctx, modelName, combined)
	}

	dataURI := fmt.Sprintf("data:%s;base64,%s", att.MIME, base64.StdEncoding.EncodeToString(att.Data))
	messages := []openai.ChatCompletionMessage{
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeText,
					Text: prompt,
				},
				{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: dataURI},
				},
			},
		},
	}
	return o.complete(ctx, modelName, messages)
}

func (o *OpenAIProvider) complete(ctx context.Context, modelName string, messages []openai.ChatCompletionMessage) (string, error) {
	o.debugf("Preparing to send prompt to model: %s", modelName)

	if o.apiKey == "" && !o.keyOptional {
		return "", fmt.Errorf("%w: %s provider missing API key", ErrNotConfigured, o.label)
	}
	if !o.SupportsModel(modelName) {
		return "", fmt.Errorf("invalid %s model: %s", o.label, modelName)
	}

	req := o.createChatCompletionRequest(modelName, messages)
	resp, err := o.client().CreateChatCompletion(ctx, req)
	if err != nil {
		return "", apiError(o.label, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", emptyResponse(o.label)
	}

	response := resp.Choices[0].Message.Content
	o.debugf("API call completed, response length: %d characters", len(response))
	return response, nil
}

// SetConfig updates the provider configuration
func (o *OpenAIProvider) SetConfig(config ModelConfig) {
	o.debugf("New config: Temperature=%.2f, MaxTokens=%d, TopP=%.2f",
		config.Temperature, config.MaxTokens, config.TopP)
	o.config = config
}

// GetConfig returns the current provider configuration
func (o *OpenAIProvider) GetConfig() ModelConfig {
	return o.config
}

// SetVerbose enables or disables verbose mode
func (o *OpenAIProvider) SetVerbose(verbose bool) {
	o.verbose = verbose
}
