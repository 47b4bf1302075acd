// Package config holds all specter configuration, loaded from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all specter configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Reasoning oracle
	LLM LLMConfig `yaml:"llm"`

	// Vector embeddings for the knowledge base
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Knowledge base (retrieval-augmented context)
	Knowledge KnowledgeConfig `yaml:"knowledge"`

	// Autonomous agent loop
	Agent AgentConfig `yaml:"agent"`

	// Tool registry
	Tools ToolsConfig `yaml:"tools"`

	// Report and snapshot output
	Reports ReportsConfig `yaml:"reports"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the reasoning oracle client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai-compatible endpoints
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`

	// Token budget: prompt + reply must fit MaxTotalTokens; replies are
	// capped at ResponseBuffer.
	MaxTotalTokens int `yaml:"max_total_tokens"`
	ResponseBuffer int `yaml:"response_buffer"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "genai", "openai", or "" (disabled)
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"` // openai-compatible endpoint only
}

// KnowledgeConfig configures the knowledge base.
type KnowledgeConfig struct {
	Path         string `yaml:"path"`          // documents directory
	DatabasePath string `yaml:"database_path"` // sqlite store
	ChunkSize    int    `yaml:"chunk_size"`
}

// AgentConfig configures the autonomous loop.
type AgentConfig struct {
	IterationLimit int    `yaml:"iteration_limit"`
	StepDelay      string `yaml:"step_delay"`
	ErrorBackoff   string `yaml:"error_backoff"`
	SessionTimeout string `yaml:"session_timeout"`
}

// ToolsConfig configures the tool registry.
type ToolsConfig struct {
	RegistryPath string `yaml:"registry_path"`
	ProbeTimeout string `yaml:"probe_timeout"`
	WatchChanges bool   `yaml:"watch_changes"`
}

// ReportsConfig configures report and snapshot output.
type ReportsConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Debug bool   `yaml:"debug"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "specter",
		Version: "0.1.0",

		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o",
			BaseURL:        "https://api.openai.com/v1",
			Timeout:        "120s",
			MaxTotalTokens: 8192,
			ResponseBuffer: 4096,
		},

		Embedding: EmbeddingConfig{
			Provider: "",
			Model:    "",
		},

		Knowledge: KnowledgeConfig{
			Path:         "knowledge",
			DatabasePath: "data/specter.db",
			ChunkSize:    5000,
		},

		Agent: AgentConfig{
			IterationLimit: 50,
			StepDelay:      "2s",
			ErrorBackoff:   "5s",
			SessionTimeout: "600s",
		},

		Tools: ToolsConfig{
			RegistryPath: "tools.yaml",
			ProbeTimeout: "10s",
			WatchChanges: true,
		},

		Reports: ReportsConfig{
			Path: "reports",
		},

		Logging: LoggingConfig{
			Level: "info",
			Debug: false,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("MODEL_NAME"); model != "" {
		c.LLM.Model = model
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Embedding.APIKey = key
		if c.Embedding.Provider == "" {
			c.Embedding.Provider = "genai"
		}
	}
	if path := os.Getenv("SPECTER_DB"); path != "" {
		c.Knowledge.DatabasePath = path
	}
	if os.Getenv("SPECTER_DEBUG") == "1" {
		c.Logging.Debug = true
		c.Logging.Level = "debug"
	}
}

// Validate checks configuration values that would break the agent loop.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm api_key not set (OPENAI_API_KEY)")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm base_url not set (OPENAI_BASE_URL)")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model not set (MODEL_NAME)")
	}
	if c.Agent.IterationLimit < 0 {
		return fmt.Errorf("agent iteration_limit must be >= 0")
	}
	if c.LLM.MaxTotalTokens < 1024 {
		return fmt.Errorf("llm max_total_tokens must be >= 1024")
	}
	return nil
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetStepDelay returns the inter-iteration delay as a duration.
func (c *Config) GetStepDelay() time.Duration {
	d, err := time.ParseDuration(c.Agent.StepDelay)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetErrorBackoff returns the loop error backoff as a duration.
func (c *Config) GetErrorBackoff() time.Duration {
	d, err := time.ParseDuration(c.Agent.ErrorBackoff)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetProbeTimeout returns the tool probe timeout as a duration.
func (c *Config) GetProbeTimeout() time.Duration {
	d, err := time.ParseDuration(c.Tools.ProbeTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
