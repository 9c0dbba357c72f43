package models

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kris-hansen/analyst/utils/config"
)

// ProviderRegistry manages registered provider factories
type ProviderRegistry struct {
	factories map[string]Factory
	mutex     sync.RWMutex
}

// Factory creates provider instances and provides metadata
type Factory interface {
	CreateProvider() Provider
	GetMetadata() ProviderMetadata
}

// ProviderFactory is a reusable factory for all provider types
type ProviderFactory struct {
	constructor func() Provider
	metadata    ProviderMetadata
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(constructor func() Provider, metadata ProviderMetadata) *ProviderFactory {
	return &ProviderFactory{
		constructor: constructor,
		metadata:    metadata,
	}
}

// CreateProvider creates a new provider instance using the constructor function
func (f *ProviderFactory) CreateProvider() Provider {
	return f.constructor()
}

// GetMetadata returns the provider metadata
func (f *ProviderFactory) GetMetadata() ProviderMetadata {
	return f.metadata
}

// ProviderMetadata contains information about a provider
type ProviderMetadata struct {
	Name          string
	Description   string
	ModelPrefixes []string // e.g., ["gemini-"]
	Priority      int      // Higher priority = checked first
	NeedsAPIKey   bool
}

// NewRegistry returns an empty registry
func NewRegistry() *ProviderRegistry {
	return &ProviderRegistry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with every built-in provider
func DefaultRegistry() *ProviderRegistry {
	r := NewRegistry()
	builtins := []struct {
		ctor func() Provider
		meta ProviderMetadata
	}{
		{func() Provider { return NewGoogleProvider() }, ProviderMetadata{
			Name: "google", Description: "Google Gemini", ModelPrefixes: []string{"gemini-"}, Priority: 100, NeedsAPIKey: true,
		}},
		{func() Provider { return NewOpenAIProvider() }, ProviderMetadata{
			Name: "openai", Description: "OpenAI", ModelPrefixes: []string{"gpt-", "o1", "o3", "o4"}, Priority: 90, NeedsAPIKey: true,
		}},
		{func() Provider { return NewAnthropicProvider() }, ProviderMetadata{
			Name: "anthropic", Description: "Anthropic Claude", ModelPrefixes: []string{"claude-"}, Priority: 80, NeedsAPIKey: true,
		}},
		{func() Provider { return NewXAIProvider() }, ProviderMetadata{
			Name: "xai", Description: "X.AI Grok (OpenAI compatible)", ModelPrefixes: []string{"grok-"}, Priority: 50, NeedsAPIKey: true,
		}},
		{func() Provider { return NewDeepSeekProvider() }, ProviderMetadata{
			Name: "deepseek", Description: "DeepSeek (OpenAI compatible)", ModelPrefixes: []string{"deepseek-"}, Priority: 50, NeedsAPIKey: true,
		}},
		{func() Provider { return NewOllamaProvider() }, ProviderMetadata{
			Name: "ollama", Description: "Local Ollama (OpenAI compatible)", ModelPrefixes: []string{OllamaPrefix}, Priority: 10,
		}},
	}
	for _, b := range builtins {
		// names are unique, registration cannot fail
		_ = r.RegisterProvider(b.meta.Name, NewProviderFactory(b.ctor, b.meta))
	}
	return r
}

// RegisterProvider adds a provider factory to the registry
func (r *ProviderRegistry) RegisterProvider(name string, factory Factory) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	r.factories[name] = factory
	config.DebugLog("[Registry] Registered provider: %s", name)
	return nil
}

// FindFactory returns the highest priority factory whose prefixes match modelName
func (r *ProviderRegistry) FindFactory(modelName string) (Factory, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	config.DebugLog("[Registry] Finding provider for model: %s", modelName)

	var candidates []Factory
	lower := strings.ToLower(modelName)
	for _, factory := range r.factories {
		for _, prefix := range factory.GetMetadata().ModelPrefixes {
			if strings.HasPrefix(lower, prefix) {
				candidates = append(candidates, factory)
				break
			}
		}
	}
	if len(candidates) == 0 {
		config.DebugLog("[Registry] No provider found for model %s", modelName)
		return nil, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		mi, mj := candidates[i].GetMetadata(), candidates[j].GetMetadata()
		if mi.Priority != mj.Priority {
			return mi.Priority > mj.Priority
		}
		return mi.Name < mj.Name
	})

	selected := candidates[0].GetMetadata()
	config.DebugLog("[Registry] Selected provider %s for model %s (priority: %d)",
		selected.Name, modelName, selected.Priority)
	return candidates[0], true
}

// FindProvider detects appropriate provider for model
func (r *ProviderRegistry) FindProvider(modelName string) Provider {
	factory, ok := r.FindFactory(modelName)
	if !ok {
		return nil
	}
	return factory.CreateProvider()
}

// ResolveOptions supplies credentials and settings for Resolve
type ResolveOptions struct {
	APIKey  func(provider string) string
	BaseURL func(provider string) string
	Config  *ModelConfig
	Verbose bool
}

// Resolve finds, configures and returns a ready provider for modelName
func (r *ProviderRegistry) Resolve(modelName string, opts ResolveOptions) (Provider, error) {
	factory, ok := r.FindFactory(modelName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoProvider, modelName)
	}
	meta := factory.GetMetadata()
	provider := factory.CreateProvider()
	provider.SetVerbose(opts.Verbose)

	if opts.BaseURL != nil {
		if u := opts.BaseURL(meta.Name); u != "" {
			if s, ok := provider.(BaseURLSetter); ok {
				s.SetBaseURL(u)
			}
		}
	}
	if opts.Config != nil {
		if c, ok := provider.(Configurable); ok {
			c.SetConfig(*opts.Config)
		}
	}

	var key string
	if opts.APIKey != nil {
		key = opts.APIKey(meta.Name)
	}
	if meta.NeedsAPIKey && key == "" {
		return nil, fmt.Errorf("%w: %s API key missing for model %s", ErrNotConfigured, meta.Name, modelName)
	}
	if err := provider.Configure(key); err != nil {
		return nil, err
	}
	return provider, nil
}

// GetAvailableProviders returns list of registered providers
func (r *ProviderRegistry) GetAvailableProviders() []ProviderMetadata {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var providers []ProviderMetadata
	for _, factory := range r.factories {
		providers = append(providers, factory.GetMetadata())
	}

	sort.Slice(providers, func(i, j int) bool {
		if providers[i].Priority != providers[j].Priority {
			return providers[i].Priority > providers[j].Priority
		}
		return providers[i].Name < providers[j].Name
	})

	return providers
}

// GetProviderByName returns a specific provider by name
func (r *ProviderRegistry) GetProviderByName(name string) Provider {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if factory, exists := r.factories[name]; exists {
		return factory.CreateProvider()
	}
	return nil
}

// ProviderNameForModel returns the name of the provider serving modelName, or ""
func (r *ProviderRegistry) ProviderNameForModel(modelName string) string {
	factory, ok := r.FindFactory(modelName)
	if !ok {
		return ""
	}
	return factory.GetMetadata().Name
}

// ListRegisteredProviders returns names of all registered providers
func (r *ProviderRegistry) ListRegisteredProviders() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var names []string
	for name := range r.factories {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}
