package config

// ServerConfig holds configuration for the HTTP server
type ServerConfig struct {
	Port        int    `yaml:"port"`
	DataDir     string `yaml:"dataDir"` // Scratch space for uploads and sandbox runs
	Enabled     bool   `yaml:"enabled"`
	BearerToken string `yaml:"bearerToken"`
	MaxUploadMB int    `yaml:"maxUploadMB"`
	CORS        CORS   `yaml:"cors"`
}

// CORS holds Cross-Origin Resource Sharing settings
type CORS struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
	AllowedMethods []string `yaml:"allowedMethods"`
	AllowedHeaders []string `yaml:"allowedHeaders"`
	MaxAge         int      `yaml:"maxAge"`
}

// DefaultServerConfig returns the server settings used when none are configured
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:        8080,
		DataDir:     "data",
		MaxUploadMB: 100,
		CORS: CORS{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         3600,
		},
	}
}

// GetServerConfig returns the server configuration, creating defaults if absent
func (c *EnvConfig) GetServerConfig() *ServerConfig {
	if c.Server == nil {
		c.Server = DefaultServerConfig()
	}
	return c.Server
}

// UpdateServerConfig replaces the server configuration
func (c *EnvConfig) UpdateServerConfig(server ServerConfig) {
	c.Server = &server
}
