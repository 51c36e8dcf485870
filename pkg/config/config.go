// Package config loads runtime configuration from a YAML file with an
// environment variable overlay.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// BotConfig holds the credentials of a single bot identity.
type BotConfig struct {
	// VerifyToken routes webhook deliveries to this bot. Must be unique
	// among live bots.
	VerifyToken string `yaml:"verify_token" env:"KORD_VERIFY_TOKEN"`
	Token       string `yaml:"token" env:"KORD_TOKEN"`
}

// WebhookConfig configures the connectionless delivery transport. Leaving
// Path empty selects the gateway (websocket) transport instead.
type WebhookConfig struct {
	Path       string `yaml:"path" env:"KORD_WEBHOOK_PATH"`
	Port       int    `yaml:"port" env:"KORD_WEBHOOK_PORT"`
	RouterPath string `yaml:"router_path" env:"KORD_ROUTER_PATH"`
	// Compressed expects raw zlib-deflated request bodies; this is a
	// static per-bot setting on the platform side.
	Compressed bool `yaml:"compressed" env:"KORD_WEBHOOK_COMPRESSED"`
}

// GatewayConfig tunes the websocket transport per connection.
type GatewayConfig struct {
	// MaxRetry bounds reconnect attempts before the bot is disposed.
	MaxRetry int `yaml:"max_retry" env:"KORD_GATEWAY_MAX_RETRY"`
	// HeartbeatSeconds is the fixed heartbeat period after Hello.
	HeartbeatSeconds int `yaml:"heartbeat_seconds" env:"KORD_GATEWAY_HEARTBEAT_SECONDS"`
	// KeepAliveSeconds is the online-status poll period.
	KeepAliveSeconds int `yaml:"keepalive_seconds" env:"KORD_GATEWAY_KEEPALIVE_SECONDS"`
}

// CommandConfig configures the command router. The fuzzy-suggestion and
// not-found replies are on by default; the Disable flags opt out.
type CommandConfig struct {
	Prefix                 string   `yaml:"prefix" env:"KORD_COMMAND_PREFIX"`
	DisableLikelyCommand   bool     `yaml:"disable_likely_command" env:"KORD_DISABLE_LIKELY_COMMAND"`
	DisableNotFoundMessage bool     `yaml:"disable_not_found_message" env:"KORD_DISABLE_NOT_FOUND_MESSAGE"`
	DeveloperIDs           []string `yaml:"developer_ids" env:"KORD_DEVELOPER_IDS"`
}

// APIConfig configures the REST boundary.
type APIConfig struct {
	Endpoint       string `yaml:"endpoint" env:"KORD_API_ENDPOINT"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"KORD_API_TIMEOUT_SECONDS"`
}

type Config struct {
	Webhook WebhookConfig `yaml:"webhook"`
	Gateway GatewayConfig `yaml:"gateway"`
	Command CommandConfig `yaml:"command"`
	API     APIConfig     `yaml:"api"`
	// PromptTimeoutMS bounds one-shot prompt/suggest waits.
	PromptTimeoutMS int         `yaml:"prompt_timeout_ms" env:"KORD_PROMPT_TIMEOUT_MS"`
	LogLevel        string      `yaml:"log_level" env:"KORD_LOG_LEVEL"`
	Bots            []BotConfig `yaml:"bots"`
}

// Default returns a Config with all defaults applied and no bots.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads cfg from the YAML file at path (if it exists), then overlays
// environment variables and applies defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Webhook.Port == 0 {
		c.Webhook.Port = 3000
	}
	if c.Webhook.RouterPath == "" {
		c.Webhook.RouterPath = "/api"
	}
	if c.Gateway.MaxRetry == 0 {
		c.Gateway.MaxRetry = 5
	}
	if c.Gateway.HeartbeatSeconds == 0 {
		c.Gateway.HeartbeatSeconds = 30
	}
	if c.Gateway.KeepAliveSeconds == 0 {
		c.Gateway.KeepAliveSeconds = 10
	}
	if c.Command.Prefix == "" {
		c.Command.Prefix = "/"
	}
	if c.API.Endpoint == "" {
		c.API.Endpoint = "https://www.kookapp.cn"
	}
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = 15
	}
	if c.PromptTimeoutMS == 0 {
		c.PromptTimeoutMS = 5000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// PromptTimeout returns the prompt timeout as a duration.
func (c *Config) PromptTimeout() time.Duration {
	return time.Duration(c.PromptTimeoutMS) * time.Millisecond
}

// HeartbeatInterval returns the gateway heartbeat period.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Gateway.HeartbeatSeconds) * time.Second
}

// KeepAliveInterval returns the online-status poll period.
func (c *Config) KeepAliveInterval() time.Duration {
	return time.Duration(c.Gateway.KeepAliveSeconds) * time.Second
}

// APITimeout returns the REST request timeout.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}
