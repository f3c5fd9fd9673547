// Package config loads the kernel's layered configuration (defaults, config
// file, environment) through spf13/viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// TransportConfig selects and configures one of the platform's transport
// variants.
type TransportConfig struct {
	Type string `mapstructure:"type"`

	Port              int           `mapstructure:"port"`
	Host              string        `mapstructure:"host"`
	Path              string        `mapstructure:"path"`
	MaxBodySize       int64         `mapstructure:"maxBodySize"`
	TrustProxy        bool          `mapstructure:"trustProxy"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeatInterval"`
	MaxConnections    int           `mapstructure:"maxConnections"`
}

// CORSConfig configures the HTTP transport's CORS handling: allowed
// origins, methods, headers, credentials, and preflight max-age.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowedOrigins"`
	AllowedMethods   []string `mapstructure:"allowedMethods"`
	AllowedHeaders   []string `mapstructure:"allowedHeaders"`
	AllowCredentials bool     `mapstructure:"allowCredentials"`
	MaxAge           int      `mapstructure:"maxAge"`
}

// RateLimitConfig configures the built-in rate-limit middleware.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	MaxCalls int           `mapstructure:"maxCalls"`
	Window   time.Duration `mapstructure:"window"`
}

// MiddlewareConfig toggles the platform's built-in middleware.
type MiddlewareConfig struct {
	Logging    bool            `mapstructure:"logging"`
	Validation bool            `mapstructure:"validation"`
	RateLimit  RateLimitConfig `mapstructure:"rateLimit"`
}

// SessionStoreConfig selects the orchestrator's session store backend.
type SessionStoreConfig struct {
	Type         string        `mapstructure:"type"` // "memory" or "redis"
	RedisAddress string        `mapstructure:"redisAddress"`
	KeyPrefix    string        `mapstructure:"keyPrefix"`
	TTL          time.Duration `mapstructure:"ttl"`
}

// OrchestratorConfig toggles and configures the session orchestrator.
type OrchestratorConfig struct {
	Enabled        bool               `mapstructure:"enabled"`
	SessionTimeout time.Duration      `mapstructure:"sessionTimeout"`
	Store          SessionStoreConfig `mapstructure:"store"`
}

// Config is the fully-resolved configuration for one kernel instance.
type Config struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"logLevel"`

	Transport    TransportConfig    `mapstructure:"transport"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Middleware   MiddlewareConfig   `mapstructure:"middleware"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
}

// Load builds a viper instance layering defaults, an optional config file at
// path (searched as "mcpserver.{yaml,json,toml}" in "." and "/etc/mcpserver"
// when path is empty), and MCP_-prefixed environment variables, in that
// increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix("MCP")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mcpserver")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mcpserver")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("name", "mcp-server-platform")
	v.SetDefault("version", "0.1.0")
	v.SetDefault("logLevel", "info")

	v.SetDefault("transport.type", "stdio")
	v.SetDefault("transport.port", 8080)
	v.SetDefault("transport.host", "0.0.0.0")
	v.SetDefault("transport.maxBodySize", 1<<20)
	v.SetDefault("transport.heartbeatInterval", 30*time.Second)

	v.SetDefault("middleware.logging", true)
	v.SetDefault("middleware.validation", true)
	v.SetDefault("middleware.rateLimit.enabled", false)
	v.SetDefault("middleware.rateLimit.maxCalls", 60)
	v.SetDefault("middleware.rateLimit.window", time.Minute)

	v.SetDefault("orchestrator.enabled", false)
	v.SetDefault("orchestrator.sessionTimeout", 30*time.Minute)
	v.SetDefault("orchestrator.store.type", "memory")
	v.SetDefault("orchestrator.store.keyPrefix", "session:")
	v.SetDefault("orchestrator.store.ttl", 30*time.Minute)
}
