package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultModel is the model used when neither the session nor the config names one
const DefaultModel = "gemini-2.5-flash-preview-04-17"

// ModelOptions lists the models offered for selection, "Custom" lets the caller type any name
var ModelOptions = []string{
	"gemini-2.5-flash-preview-04-17",
	"gemini-2.5-pro-preview-03-25",
	"gemini-2.5-pro-exp-03-25",
	"gemini-2.0-flash",
	"Custom",
}

// Model represents a single model configuration
type Model struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Provider represents a provider's configuration
type Provider struct {
	APIKey  string  `yaml:"api_key"`
	BaseURL string  `yaml:"base_url,omitempty"`
	Models  []Model `yaml:"models"`
}

// StorageConfig selects and configures the session store
type StorageConfig struct {
	Backend     string        `yaml:"backend"` // memory, redis or postgres
	RedisURL    string        `yaml:"redisURL,omitempty"`
	PostgresDSN string        `yaml:"postgresDSN,omitempty"`
	TTL         time.Duration `yaml:"ttl"`
}

// SandboxConfig controls local execution of generated analysis code
type SandboxConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interpreter string        `yaml:"interpreter"`
	Timeout     time.Duration `yaml:"timeout"`
}

// WorkflowConfig holds defaults applied to new analysis sessions
type WorkflowConfig struct {
	DefaultModel string        `yaml:"defaultModel"`
	Temperature  float64       `yaml:"temperature"`
	Sandbox      SandboxConfig `yaml:"sandbox"`
}

// EnvConfig represents the complete environment configuration
type EnvConfig struct {
	Providers map[string]*Provider `yaml:"providers"`
	Server    *ServerConfig        `yaml:"server,omitempty"`
	Storage   StorageConfig        `yaml:"storage"`
	Workflow  WorkflowConfig       `yaml:"workflow"`
	Logging   LogConfig            `yaml:"logging"`
}

// envOverrides are read with the ANALYST prefix; provider keys also fall back
// to their conventional unprefixed names (GEMINI_API_KEY and so on).
type envOverrides struct {
	Port           int    `envconfig:"PORT"`
	DataDir        string `envconfig:"DATA_DIR"`
	BearerToken    string `envconfig:"BEARER_TOKEN"`
	StorageBackend string `envconfig:"STORAGE_BACKEND"`
	RedisURL       string `envconfig:"REDIS_URL"`
	PostgresDSN    string `envconfig:"POSTGRES_DSN"`
	Model          string `envconfig:"MODEL"`
	Interpreter    string `envconfig:"PYTHON"`
	LogLevel       string `envconfig:"LOG_LEVEL"`
	LogFormat      string `envconfig:"LOG_FORMAT"`
	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY"`
	GoogleAPIKey   string `envconfig:"GOOGLE_API_KEY"`
	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	AnthropicKey   string `envconfig:"ANTHROPIC_API_KEY"`
}

// DefaultEnvConfig returns the configuration used when no file exists
func DefaultEnvConfig() *EnvConfig {
	return &EnvConfig{
		Providers: make(map[string]*Provider),
		Server:    DefaultServerConfig(),
		Storage: StorageConfig{
			Backend: "memory",
			TTL:     24 * time.Hour,
		},
		Workflow: WorkflowConfig{
			DefaultModel: DefaultModel,
			Temperature:  0.2,
			Sandbox: SandboxConfig{
				Enabled:     true,
				Interpreter: "python3",
				Timeout:     60 * time.Second,
			},
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
	}
}

// GetEnvPath returns the configuration file path from ANALYST_CONFIG or the default
func GetEnvPath() string {
	if envPath := os.Getenv("ANALYST_CONFIG"); envPath != "" {
		DebugLog("Using configuration file from ANALYST_CONFIG: %s", envPath)
		return envPath
	}
	DebugLog("Using default configuration file: analyst.yaml")
	return "analyst.yaml"
}

// Load reads .env, the YAML configuration at path and ANALYST_* overrides, in that order
func Load(path string) (*EnvConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		DebugLog("Could not load .env: %v", err)
	}

	cfg, err := LoadEnvConfig(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvConfig loads the YAML configuration; a missing file yields the defaults
func LoadEnvConfig(path string) (*EnvConfig, error) {
	DebugLog("Attempting to load configuration from: %s", path)

	cfg := DefaultEnvConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			DebugLog("Configuration file %s not found, using defaults", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]*Provider)
	}
	if cfg.Server == nil {
		cfg.Server = DefaultServerConfig()
	}

	DebugLog("Successfully loaded configuration with %d providers", len(cfg.Providers))
	return cfg, nil
}

// ApplyEnvOverrides copies any ANALYST_* environment values over the loaded config
func (c *EnvConfig) ApplyEnvOverrides() error {
	var env envOverrides
	if err := envconfig.Process("analyst", &env); err != nil {
		return fmt.Errorf("error processing environment overrides: %w", err)
	}

	srv := c.GetServerConfig()
	if env.Port != 0 {
		srv.Port = env.Port
	}
	if env.DataDir != "" {
		srv.DataDir = env.DataDir
	}
	if env.BearerToken != "" {
		srv.BearerToken = env.BearerToken
		srv.Enabled = true
	}
	if env.StorageBackend != "" {
		c.Storage.Backend = env.StorageBackend
	}
	if env.RedisURL != "" {
		c.Storage.RedisURL = env.RedisURL
	}
	if env.PostgresDSN != "" {
		c.Storage.PostgresDSN = env.PostgresDSN
	}
	if env.Model != "" {
		c.Workflow.DefaultModel = env.Model
	}
	if env.Interpreter != "" {
		c.Workflow.Sandbox.Interpreter = env.Interpreter
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
	if env.LogFormat != "" {
		c.Logging.Format = env.LogFormat
	}

	googleKey := env.GeminiAPIKey
	if googleKey == "" {
		googleKey = env.GoogleAPIKey
	}
	c.setKeyIfMissing("google", googleKey)
	c.setKeyIfMissing("openai", env.OpenAIAPIKey)
	c.setKeyIfMissing("anthropic", env.AnthropicKey)
	return nil
}

func (c *EnvConfig) setKeyIfMissing(provider, key string) {
	if key == "" {
		return
	}
	if p, err := c.GetProviderConfig(provider); err == nil {
		if p.APIKey == "" {
			p.APIKey = key
		}
		return
	}
	c.AddProvider(provider, Provider{APIKey: key})
	DebugLog("Provider %s configured from environment", provider)
}

// SaveEnvConfig saves the configuration to path
func SaveEnvConfig(path string, config *EnvConfig) error {
	DebugLog("Attempting to save configuration to: %s", path)

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	DebugLog("Successfully saved configuration")
	return nil
}

// GetProviderConfig retrieves configuration for a specific provider
func (c *EnvConfig) GetProviderConfig(providerName string) (*Provider, error) {
	provider, exists := c.Providers[providerName]
	if !exists {
		return nil, fmt.Errorf("provider %s not found in configuration", providerName)
	}
	if provider == nil {
		return nil, fmt.Errorf("provider %s configuration is nil", providerName)
	}
	return provider, nil
}

// AddProvider adds or updates a provider configuration
func (c *EnvConfig) AddProvider(name string, provider Provider) {
	if c.Providers == nil {
		c.Providers = make(map[string]*Provider)
	}
	providerCopy := provider
	c.Providers[name] = &providerCopy
}

// APIKey returns the key configured for provider, or "" when none is set
func (c *EnvConfig) APIKey(providerName string) string {
	p, err := c.GetProviderConfig(providerName)
	if err != nil {
		return ""
	}
	return p.APIKey
}

// ProviderNames returns the configured provider names in sorted order
func (c *EnvConfig) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GenerateBearerToken returns a random 32 byte token, hex encoded
func GenerateBearerToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
