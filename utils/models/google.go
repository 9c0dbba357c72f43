package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// GoogleProvider handles Google AI (Gemini) family of models
type GoogleProvider struct {
	apiKey   string
	endpoint string
	config   ModelConfig
	verbose  bool
}

// NewGoogleProvider creates a new Google provider instance
func NewGoogleProvider() *GoogleProvider {
	return &GoogleProvider{config: DefaultModelConfig()}
}

// Name returns the provider name
func (g *GoogleProvider) Name() string {
	return "google"
}

// debugf prints debug information if verbose mode is enabled
func (g *GoogleProvider) debugf(format string, args ...interface{}) {
	if g.verbose {
		log.Debug().Str("provider", "google").Msgf(format, args...)
	}
}

// SupportsModel checks if the given model name is a Gemini model
func (g *GoogleProvider) SupportsModel(modelName string) bool {
	return strings.HasPrefix(strings.ToLower(modelName), "gemini-")
}

// Configure sets up the provider with necessary credentials
func (g *GoogleProvider) Configure(apiKey string) error {
	g.debugf("Configuring Google provider")
	if apiKey == "" {
		return fmt.Errorf("API key is required for Google provider")
	}
	g.apiKey = apiKey
	return nil
}

// SetBaseURL points the client at another API endpoint
func (g *GoogleProvider) SetBaseURL(url string) {
	g.endpoint = url
}

// SendPrompt sends a prompt to the specified model and returns the response
func (g *GoogleProvider) SendPrompt(ctx context.Context, modelName string, prompt string) (string, error) {
	return g.generate(ctx, modelName, genai.Text(prompt))
}

// SendPromptWithAttachment sends a prompt with inline binary data such as a plot image
func (g *GoogleProvider) SendPromptWithAttachment(ctx context.Context, modelName string, prompt string, att Attachment) (string, error) {
	g.debugf("Attaching %s (%d bytes)", att.MIME, len(att.Data))
	return g.generate(ctx, modelName, genai.Text(prompt), genai.Blob{MIMEType: att.MIME, Data: att.Data})
}

func (g *GoogleProvider) generate(ctx context.Context, modelName string, parts ...genai.Part) (string, error) {
	g.debugf("Preparing to send prompt to model: %s", modelName)

	if g.apiKey == "" {
		return "", fmt.Errorf("%w: Google provider missing API key", ErrNotConfigured)
	}
	if !g.SupportsModel(modelName) {
		return "", fmt.Errorf("invalid Google model: %s", modelName)
	}

	g.debugf("Using configuration: Temperature=%.2f, MaxTokens=%d, TopP=%.2f",
		g.config.Temperature, g.config.MaxTokens, g.config.TopP)

	opts := []option.ClientOption{option.WithAPIKey(g.apiKey)}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create Google AI client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(modelName)
	model.SetTemperature(float32(g.config.Temperature))
	model.SetTopP(float32(g.config.TopP))
	if g.config.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(g.config.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", apiError("Google AI", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", emptyResponse("Google AI")
	}

	var response strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			response.WriteString(string(text))
		}
	}
	if strings.TrimSpace(response.String()) == "" {
		return "", emptyResponse("Google AI")
	}

	g.debugf("API call completed, response length: %d characters", response.Len())
	return response.String(), nil
}

// SetVerbose enables or disables verbose mode
func (g *GoogleProvider) SetVerbose(verbose bool) {
	g.verbose = verbose
}

// SetConfig updates the provider configuration
func (g *GoogleProvider) SetConfig(config ModelConfig) {
	g.config = config
}

// GetConfig returns the current provider configuration
func (g *GoogleProvider) GetConfig() ModelConfig {
	return g.config
}
