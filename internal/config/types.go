package config

import "time"

// Config is the application configuration, loaded from config.yaml with
// defaults filled in for anything absent.
type Config struct {
	Server        ServerConfig              `yaml:"server"`
	Orchestration OrchestrationConfig       `yaml:"orchestration"`
	Providers     map[string]ProviderConfig `yaml:"providers"`

	// DefaultProvider names the provider used when a session does not
	// pick one explicitly.
	DefaultProvider string `yaml:"defaultProvider"`

	// SystemPromptPath points at the system prompt file. When set, the
	// file is watched and edits apply to open sessions.
	SystemPromptPath string `yaml:"systemPromptPath"`
}

// ServerConfig describes the tool server connection.
type ServerConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Transport   string        `yaml:"transport"`
	CallTimeout time.Duration `yaml:"callTimeout"`
	MaxAttempts uint          `yaml:"maxAttempts"`
}

// OrchestrationConfig shapes turn execution.
type OrchestrationConfig struct {
	// FanOutLimit caps concurrent tool calls within one round.
	FanOutLimit int `yaml:"fanOutLimit"`
	// AgentTimeout bounds one model invocation.
	AgentTimeout time.Duration `yaml:"agentTimeout"`
	// SamplingConcurrency caps concurrent server-initiated sampling
	// requests process-wide.
	SamplingConcurrency int64         `yaml:"samplingConcurrency"`
	SamplingTimeout     time.Duration `yaml:"samplingTimeout"`
}

// ProviderConfig carries per-provider generation settings.
type ProviderConfig struct {
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"maxTokens"`
}
