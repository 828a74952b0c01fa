package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all collective configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Simulation kernel
	Kernel KernelConfig `yaml:"kernel"`

	// Persisted state blob
	Storage StorageConfig `yaml:"storage"`

	// Generative model collaborators
	LLM LLMConfig `yaml:"llm"`

	// HTTP presentation boundary
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "collective",
		Version: "4.0.0",

		Kernel: KernelConfig{
			TickInterval:    "2s",
			Seed:            0,
			VoteProbability: 0.5,
			HistoryCap:      20,
			LogCap:          100,
			FeedCap:         50,
			Behaviors: BehaviorConfig{
				Enabled: true,
				Avatars: true,
				Intel:   0.15,
				Policy:  0.05,
				Spawn:   0.03,
				Message: 0.1,
				Drift:   0.1,
			},
			Policy: PolicyConfig{
				MinPAS:            0.5,
				MaxAgents:         15,
				ApprovalThreshold: 0.6,
			},
		},

		Storage: StorageConfig{
			Driver:   "sqlite",
			Path:     ".collective/state.db",
			StateKey: "alice-kernel-state",
		},

		LLM: LLMConfig{
			Provider:          "gemini",
			Model:             "gemini-2.5-flash",
			ImageModel:        "imagen-4.0-generate-001",
			VideoModel:        "veo-2.0-generate-001",
			Timeout:           "120s",
			VideoPollInterval: "10s",
		},

		Server: ServerConfig{
			Addr:       ":8080",
			EnableCORS: true,
			Debug:      false,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// API_KEY is what the browser build used; GEMINI_API_KEY wins when both are set.
	if key := os.Getenv("API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}

	if path := os.Getenv("COLLECTIVE_DB"); path != "" {
		c.Storage.Path = path
	}
	if addr := os.Getenv("COLLECTIVE_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if level := os.Getenv("COLLECTIVE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetTickInterval returns the kernel tick period as a duration.
func (c *Config) GetTickInterval() time.Duration {
	d, err := time.ParseDuration(c.Kernel.TickInterval)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetVideoPollInterval returns how often a pending video operation is polled.
func (c *Config) GetVideoPollInterval() time.Duration {
	d, err := time.ParseDuration(c.LLM.VideoPollInterval)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// ValidDrivers lists the supported storage backends.
var ValidDrivers = []string{"sqlite", "memory"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validDriver := false
	for _, d := range ValidDrivers {
		if c.Storage.Driver == d {
			validDriver = true
			break
		}
	}
	if !validDriver {
		return fmt.Errorf("invalid storage driver: %s (valid: %v)", c.Storage.Driver, ValidDrivers)
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required for the sqlite driver")
	}
	if c.Storage.StateKey == "" {
		return fmt.Errorf("storage.state_key must not be empty")
	}

	if _, err := time.ParseDuration(c.Kernel.TickInterval); err != nil {
		return fmt.Errorf("invalid kernel.tick_interval %q: %w", c.Kernel.TickInterval, err)
	}
	if p := c.Kernel.VoteProbability; p <= 0 || p > 1 {
		return fmt.Errorf("kernel.vote_probability must be within (0,1], got %v", p)
	}

	pol := c.Kernel.Policy
	if pol.MinPAS < 0 || pol.MinPAS > 1 {
		return fmt.Errorf("kernel.policy.min_pas must be within [0,1], got %v", pol.MinPAS)
	}
	if pol.MaxAgents < 1 {
		return fmt.Errorf("kernel.policy.max_agents must be at least 1, got %d", pol.MaxAgents)
	}
	if pol.ApprovalThreshold <= 0 || pol.ApprovalThreshold > 1 {
		return fmt.Errorf("kernel.policy.approval_threshold must be within (0,1], got %v", pol.ApprovalThreshold)
	}

	return nil
}

// HasLLM reports whether generative collaborators can be constructed.
func (c *Config) HasLLM() bool {
	return c.LLM.APIKey != ""
}
