// Package config loads loglens configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/0xcro3dile/loglens-go/internal/domain/entities"
)

// Config holds all loglens configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Corpus  CorpusConfig  `yaml:"corpus"`
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LLMConfig configures the plan-generation model.
type LLMConfig struct {
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`
	Attempts int    `yaml:"attempts"` // tries per question when the reply is not a JSON plan
}

// CorpusConfig describes the log corpus to load.
type CorpusConfig struct {
	Name         string   `yaml:"name"`
	Path         string   `yaml:"path"`
	EntityFields []string `yaml:"entity_fields"`
	Required     []string `yaml:"required_columns"`
	Watch        bool     `yaml:"watch"`
}

// EngineConfig tunes plan execution.
type EngineConfig struct {
	// ParallelShards > 1 enables sharded search/filter.
	ParallelShards int `yaml:"parallel_shards"`

	// ShardThreshold is the working-set size below which filtering stays sequential.
	ShardThreshold int `yaml:"shard_threshold"`

	// DefaultMetric is used by chunk_output when the plan names none.
	DefaultMetric string `yaml:"default_metric"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8090",
		},
		LLM: LLMConfig{
			BaseURL:  "http://localhost:11434",
			Model:    "llama3.2",
			Timeout:  "120s",
			Attempts: 2,
		},
		Corpus: CorpusConfig{
			Name:         "default",
			EntityFields: append([]string(nil), entities.DefaultEntityFields...),
			Watch:        true,
		},
		Engine: EngineConfig{
			ParallelShards: 4,
			ShardThreshold: 50000,
			DefaultMetric:  string(entities.MetricRecords),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
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

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LOGLENS_OLLAMA_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("LOGLENS_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LOGLENS_CORPUS"); v != "" {
		c.Corpus.Path = v
	}
	if v := os.Getenv("LOGLENS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOGLENS_SHARDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.ParallelShards = n
		}
	}
}

// LLMTimeout returns the LLM timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Corpus.Name == "" {
		return fmt.Errorf("corpus.name must not be empty")
	}
	if len(c.Corpus.EntityFields) == 0 {
		return fmt.Errorf("corpus.entity_fields must list at least one column")
	}
	seen := make(map[string]bool, len(c.Corpus.EntityFields))
	for _, f := range c.Corpus.EntityFields {
		if entities.IsBaseColumn(f) {
			return fmt.Errorf("corpus.entity_fields: %q is a base column", f)
		}
		name := entities.NormalizeColumn(f)
		if name == "" {
			return fmt.Errorf("corpus.entity_fields: blank column name")
		}
		if seen[name] {
			return fmt.Errorf("corpus.entity_fields: %q listed twice", f)
		}
		seen[name] = true
	}
	if c.Engine.ParallelShards < 0 {
		return fmt.Errorf("engine.parallel_shards must be >= 0, got %d", c.Engine.ParallelShards)
	}
	if c.Engine.ShardThreshold < 0 {
		return fmt.Errorf("engine.shard_threshold must be >= 0, got %d", c.Engine.ShardThreshold)
	}
	if _, ok := entities.ParseMetricKind(c.Engine.DefaultMetric); !ok {
		return fmt.Errorf("engine.default_metric: invalid metric %q (valid: records, tokens)", c.Engine.DefaultMetric)
	}
	if c.LLM.Attempts < 1 {
		return fmt.Errorf("llm.attempts must be >= 1, got %d", c.LLM.Attempts)
	}
	return nil
}
