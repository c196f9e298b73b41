package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultDeployment   = "gpt-4.1-mini"
	DefaultAPIVersion   = "2024-12-01-preview"
	DefaultMaxTokens    = 1000
	DefaultTemperature  = 0.7
	DefaultHost         = "0.0.0.0"
	DefaultPort         = 18420
	DefaultAPIPort      = 18421
	DefaultBufSize      = 100
	DefaultContextLimit = 8
	DefaultEnhanceSpec  = "0 0 3 * * *"
	DefaultEnhanceBatch = 10
)

type Config struct {
	Provider Provider `json:"provider"`
	Chat     Chat     `json:"chat"`
	Storage  Storage  `json:"storage"`
	Channels Channels `json:"channels"`
	Gateway  Gateway  `json:"gateway"`
	Enhance  Enhance  `json:"enhance"`
}

// Provider configures the chat-completions endpoint. Type "azure" (default)
// composes the deployment URL and sends the key in an api-key header; type
// "openai" posts to {baseUrl}/chat/completions with a bearer token.
type Provider struct {
	Type        string  `json:"type,omitempty"`
	APIKey      string  `json:"apiKey"`
	Endpoint    string  `json:"endpoint,omitempty"`
	Deployment  string  `json:"deployment,omitempty"`
	APIVersion  string  `json:"apiVersion,omitempty"`
	BaseURL     string  `json:"baseUrl,omitempty"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
}

type Chat struct {
	ContextLimit int `json:"contextLimit"`
}

type Storage struct {
	DBPath string `json:"dbPath,omitempty"`
}

type Channels struct {
	Telegram Telegram `json:"telegram"`
	WebUI    WebUI    `json:"webui"`
}

type Telegram struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type WebUI struct {
	Enabled   bool     `json:"enabled"`
	AllowFrom []string `json:"allowFrom"`
}

// Gateway addresses: Port serves the embedded web UI and its websocket,
// APIPort serves the REST API.
type Gateway struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	APIPort int    `json:"apiPort"`
}

type Enhance struct {
	Enabled   bool   `json:"enabled"`
	Schedule  string `json:"schedule,omitempty"`
	BatchSize int    `json:"batchSize,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Provider: Provider{
			Deployment:  DefaultDeployment,
			APIVersion:  DefaultAPIVersion,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
		Chat: Chat{ContextLimit: DefaultContextLimit},
		Gateway: Gateway{
			Host:    DefaultHost,
			Port:    DefaultPort,
			APIPort: DefaultAPIPort,
		},
		Enhance: Enhance{
			Enabled:   false,
			Schedule:  DefaultEnhanceSpec,
			BatchSize: DefaultEnhanceBatch,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".inkr")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// DBPath resolves the sqlite file location, defaulting under the config dir.
func (c *Config) DBPath() string {
	if p := strings.TrimSpace(c.Storage.DBPath); p != "" {
		return p
	}
	return filepath.Join(ConfigDir(), "data", "inkr.db")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("INKR_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("AZURE_OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = "openai"
		}
	}
	if endpoint := os.Getenv("INKR_ENDPOINT"); endpoint != "" {
		cfg.Provider.Endpoint = endpoint
	}
	if deployment := os.Getenv("INKR_DEPLOYMENT"); deployment != "" {
		cfg.Provider.Deployment = deployment
	}
	if url := os.Getenv("INKR_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if token := os.Getenv("INKR_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if dbPath := os.Getenv("INKR_DB_PATH"); dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if limit := os.Getenv("INKR_CONTEXT_LIMIT"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil && parsed > 0 {
			cfg.Chat.ContextLimit = parsed
		}
	}
	if enabled := os.Getenv("INKR_ENHANCE_ENABLED"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			cfg.Enhance.Enabled = parsed
		}
	}

	if cfg.Provider.Deployment == "" {
		cfg.Provider.Deployment = DefaultDeployment
	}
	if cfg.Provider.APIVersion == "" {
		cfg.Provider.APIVersion = DefaultAPIVersion
	}
	if cfg.Provider.MaxTokens <= 0 {
		cfg.Provider.MaxTokens = DefaultMaxTokens
	}
	if cfg.Provider.Temperature <= 0 {
		cfg.Provider.Temperature = DefaultTemperature
	}
	if cfg.Chat.ContextLimit <= 0 {
		cfg.Chat.ContextLimit = DefaultContextLimit
	}
	if cfg.Gateway.APIPort <= 0 {
		cfg.Gateway.APIPort = DefaultAPIPort
	}
	if cfg.Enhance.Schedule == "" {
		cfg.Enhance.Schedule = DefaultEnhanceSpec
	}
	if cfg.Enhance.BatchSize <= 0 {
		cfg.Enhance.BatchSize = DefaultEnhanceBatch
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
