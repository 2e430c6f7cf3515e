package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tether/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/tether"
	configFileName = "config.yaml"
)

// DefaultSystemPrompt is used when no prompt file is configured.
const DefaultSystemPrompt = "You are a helpful assistant connected to a tool server. " +
	"Use the available tools to act on the user's behalf and report what changed."

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// GetDefaultConfig returns the built-in defaults.
func GetDefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Endpoint:    "http://localhost:8090/mcp",
			Transport:   "streamable-http",
			CallTimeout: 30 * time.Second,
			MaxAttempts: 3,
		},
		Orchestration: OrchestrationConfig{
			FanOutLimit:         4,
			AgentTimeout:        5 * time.Minute,
			SamplingConcurrency: 10,
			SamplingTimeout:     60 * time.Second,
		},
		Providers: map[string]ProviderConfig{
			"anthropic": {
				Model:     "claude-sonnet-4-20250514",
				MaxTokens: 4096,
			},
		},
		DefaultProvider: "anthropic",
	}
}

// LoadConfig loads config.yaml from the given directory, overlaying the
// defaults. A missing file is not an error.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// Validate rejects configurations the orchestrator cannot run with.
func (c Config) Validate() error {
	if c.Server.Endpoint == "" {
		return fmt.Errorf("server.endpoint must be set")
	}
	switch c.Server.Transport {
	case "sse", "streamable-http":
	default:
		return fmt.Errorf("server.transport must be sse or streamable-http, got %q", c.Server.Transport)
	}
	if c.DefaultProvider != "" {
		if _, ok := c.Providers[c.DefaultProvider]; !ok {
			available := make([]string, 0, len(c.Providers))
			for name := range c.Providers {
				available = append(available, name)
			}
			return fmt.Errorf("defaultProvider %q has no provider entry (configured: %s)",
				c.DefaultProvider, strings.Join(available, ", "))
		}
	}
	return nil
}

// LoadSystemPrompt reads the prompt file, falling back to the built-in
// prompt when no path is configured.
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return DefaultSystemPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read system prompt from %s: %w", path, err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("system prompt file %s is empty", path)
	}
	return prompt, nil
}
