// Package discovery lists the models each provider currently offers.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultTTL is how long a fetched model list is reused
const DefaultTTL = 1 * time.Hour

const (
	googleModelsURL = "https://generativelanguage.googleapis.com/v1beta/models"
	ollamaURL       = "http://localhost:11434"
)

// modelCache stores cached model lists with TTL
type modelCache struct {
	models    []string
	timestamp time.Time
}

// OllamaModel represents the structure of a model returned by the Ollama API
type OllamaModel struct {
	Name    string `json:"name"`
	ModTime string `json:"modified_at"`
	Size    int64  `json:"size"`
}

// GoogleModel represents a model returned by Google's models API
type GoogleModel struct {
	Name                       string   `json:"name"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

// Endpoints overrides provider API locations; empty fields use the public defaults
type Endpoints struct {
	OpenAI string
	Google string
	Ollama string
}

// Discoverer fetches and caches model lists
type Discoverer struct {
	endpoints  Endpoints
	httpClient *http.Client
	ttl        time.Duration
	now        func() time.Time

	mu    sync.RWMutex
	cache map[string]*modelCache
}

// New creates a Discoverer for the given endpoints
func New(endpoints Endpoints) *Discoverer {
	if endpoints.Google == "" {
		endpoints.Google = googleModelsURL
	}
	if endpoints.Ollama == "" {
		endpoints.Ollama = ollamaURL
	}
	return &Discoverer{
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		ttl:        DefaultTTL,
		now:        time.Now,
		cache:      make(map[string]*modelCache),
	}
}

// SetTTL changes how long lists are cached
func (d *Discoverer) SetTTL(ttl time.Duration) {
	d.ttl = ttl
}

// getCachedModels returns cached models if still valid
func (d *Discoverer) getCachedModels(cacheKey string) ([]string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, exists := d.cache[cacheKey]
	if !exists || d.now().Sub(c.timestamp) >= d.ttl {
		return nil, false
	}
	return c.models, true
}

// setCachedModels stores models in cache
func (d *Discoverer) setCachedModels(cacheKey string, models []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache[cacheKey] = &modelCache{models: models, timestamp: d.now()}
}

// ClearCache drops every cached list
func (d *Discoverer) ClearCache() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache = make(map[string]*modelCache)
}

func keyPrefix(apiKey string) string {
	return apiKey[:min(8, len(apiKey))]
}

// OpenAIModels fetches the list of available chat models from the OpenAI API
func (d *Discoverer) OpenAIModels(ctx context.Context, apiKey string) ([]string, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for OpenAI")
	}

	cacheKey := "openai_" + keyPrefix(apiKey)
	if cached, found := d.getCachedModels(cacheKey); found {
		return cached, nil
	}

	cfg := openai.DefaultConfig(apiKey)
	if d.endpoints.OpenAI != "" {
		cfg.BaseURL = d.endpoints.OpenAI
	}
	list, err := openai.NewClientWithConfig(cfg).ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("error fetching OpenAI models: %w", err)
	}

	var models []string
	for _, m := range list.Models {
		id := strings.ToLower(m.ID)
		if strings.HasPrefix(id, "gpt-") || strings.HasPrefix(id, "o1") || strings.HasPrefix(id, "o3") || strings.HasPrefix(id, "o4") {
			models = append(models, m.ID)
		}
	}
	sort.Strings(models)

	d.setCachedModels(cacheKey, models)
	return models, nil
}

// GoogleModels fetches Gemini models that support generateContent. Failures fall
// back to the static list.
func (d *Discoverer) GoogleModels(ctx context.Context, apiKey string) []string {
	if apiKey == "" {
		return GoogleModelsStatic()
	}

	cacheKey := "google_" + keyPrefix(apiKey)
	if cached, found := d.getCachedModels(cacheKey); found {
		return cached
	}

	models, err := d.fetchGoogle(ctx, apiKey)
	if err != nil {
		log.Warn().Err(err).Msg("falling back to static Google model list")
		return GoogleModelsStatic()
	}

	d.setCachedModels(cacheKey, models)
	return models
}

func (d *Discoverer) fetchGoogle(ctx context.Context, apiKey string) ([]string, error) {
	u := d.endpoints.Google + "?key=" + url.QueryEscape(apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google models API returned status %d", resp.StatusCode)
	}

	var response struct {
		Models []GoogleModel `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding Google response: %w", err)
	}

	var names []string
	for _, m := range response.Models {
		// "models/gemini-pro" -> "gemini-pro"
		name := m.Name
		if idx := strings.LastIndex(name, "/"); idx != -1 {
			name = name[idx+1:]
		}
		if !strings.HasPrefix(name, "gemini-") || !supports(m.SupportedGenerationMethods, "generateContent") {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func supports(methods []string, method string) bool {
	if len(methods) == 0 {
		return true
	}
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}

// GoogleModelsStatic returns the known Gemini models used when the API cannot be reached
func GoogleModelsStatic() []string {
	return []string{
		"gemini-2.5-flash-preview-04-17",
		"gemini-2.5-pro-preview-03-25",
		"gemini-2.5-pro-exp-03-25",
		"gemini-2.0-flash",
		"gemini-2.0-flash-lite",
		"gemini-1.5-flash",
		"gemini-1.5-pro",
	}
}

// AnthropicModels returns a hardcoded list of known Anthropic models
func AnthropicModels() []string {
	return []string{
		"claude-3-5-haiku-latest",
		"claude-3-5-sonnet-latest",
		"claude-3-7-sonnet-latest",
		"claude-opus-4-20250514",
		"claude-sonnet-4-20250514",
	}
}

// XAIModels returns a hardcoded list of known X.AI models
func XAIModels() []string {
	return []string{"grok-2", "grok-beta"}
}

// DeepSeekModels returns a hardcoded list of known DeepSeek models
func DeepSeekModels() []string {
	return []string{"deepseek-chat", "deepseek-reasoner"}
}

// OllamaModels fetches the locally available models from the Ollama API
func (d *Discoverer) OllamaModels(ctx context.Context) ([]OllamaModel, error) {
	cacheKey := "ollama_local"
	if cached, found := d.getCachedModels(cacheKey); found {
		models := make([]OllamaModel, 0, len(cached))
		for _, name := range cached {
			models = append(models, OllamaModel{Name: name})
		}
		return models, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(d.endpoints.Ollama, "/")+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error connecting to Ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response struct {
		Models []OllamaModel `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding Ollama response: %w", err)
	}

	names := make([]string, 0, len(response.Models))
	for _, m := range response.Models {
		names = append(names, m.Name)
	}
	d.setCachedModels(cacheKey, names)

	return response.Models, nil
}

// AvailableModels retrieves the models a provider offers. Ollama names carry
// the "ollama/" prefix so they route back to the local provider.
func (d *Discoverer) AvailableModels(ctx context.Context, providerName string, apiKey string) ([]string, error) {
	switch providerName {
	case "openai":
		return d.OpenAIModels(ctx, apiKey)
	case "google":
		return d.GoogleModels(ctx, apiKey), nil
	case "anthropic":
		return AnthropicModels(), nil
	case "xai":
		return XAIModels(), nil
	case "deepseek":
		return DeepSeekModels(), nil
	case "ollama":
		local, err := d.OllamaModels(ctx)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(local))
		for i, m := range local {
			names[i] = "ollama/" + m.Name
		}
		return names, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", providerName)
	}
}
