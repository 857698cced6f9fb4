// Package config decodes the framework's recognized environment inputs.
package config

import (
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
)

// Transport selects the serving transport.
type Transport string

const (
	TransportHTTP  Transport = "http"
	TransportSTDIO Transport = "stdio"
)

// Config is the environment-driven server configuration.
type Config struct {
	Transport     string `env:"MCP_TRANSPORT,default=http"`
	LogLevel      string `env:"MCP_LOG_LEVEL,default=info"`
	ServerName    string `env:"MCP_SERVER_NAME,default=mcp-frame"`
	ServerVersion string `env:"MCP_SERVER_VERSION,default=0.1.0"`
	Port          int    `env:"PORT,default=8000"`
}

// Load decodes the environment. The presence of MCP_STDIO or USE_STDIO forces
// the stdio transport regardless of MCP_TRANSPORT.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if _, ok := os.LookupEnv("MCP_STDIO"); ok {
		cfg.Transport = string(TransportSTDIO)
	}
	if _, ok := os.LookupEnv("USE_STDIO"); ok {
		cfg.Transport = string(TransportSTDIO)
	}

	switch Transport(cfg.Transport) {
	case TransportHTTP, TransportSTDIO:
	default:
		return nil, fmt.Errorf("unknown MCP_TRANSPORT: %q", cfg.Transport)
	}

	return &cfg, nil
}

// UseSTDIO reports whether the stdio transport was selected.
func (c *Config) UseSTDIO() bool {
	return Transport(c.Transport) == TransportSTDIO
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
