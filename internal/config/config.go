// Package config loads revmcp configuration from a YAML file and the
// environment. Missing credentials are a startup failure: the server
// refuses to run degraded, because no review output can be produced
// without a model provider.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete revmcp configuration.
type Config struct {
	LLM         LLMConfig         `mapstructure:"llm"`
	Phabricator PhabricatorConfig `mapstructure:"phabricator"`
	Git         GitConfig         `mapstructure:"git"`
	Cache       CacheConfig       `mapstructure:"cache"`
	State       StateConfig       `mapstructure:"state"`
	Review      ReviewConfig      `mapstructure:"review"`
	TestGen     TestGenConfig     `mapstructure:"testgen"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// LLMConfig configures the model provider.
type LLMConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// PhabricatorConfig configures the Conduit client. Optional: without a
// URL, only git sources work.
type PhabricatorConfig struct {
	URL            string `mapstructure:"url"`
	Token          string `mapstructure:"token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// GitConfig configures the local git source.
type GitConfig struct {
	RepoDir string `mapstructure:"repo_dir"`
}

// CacheConfig configures the durable TTL cache.
type CacheConfig struct {
	Path           string `mapstructure:"path"`
	DiffTTLSeconds int    `mapstructure:"diff_ttl_seconds"`
}

// StateConfig configures the published-issue state store.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// ReviewConfig tunes the review pipeline.
type ReviewConfig struct {
	Topics              []string `mapstructure:"topics"`
	TopicDir            string   `mapstructure:"topic_dir"` // optional YAML prompt overrides
	SimilarityThreshold float64  `mapstructure:"similarity_threshold"`
}

// TestGenConfig tunes the test generation pipeline.
type TestGenConfig struct {
	Framework            string   `mapstructure:"framework"`
	WorkerCommand        []string `mapstructure:"worker_command"`
	WorkerTimeoutSeconds int      `mapstructure:"worker_timeout_seconds"`
	MaxTests             int      `mapstructure:"max_tests"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// Load reads configuration from path (optional) with environment
// overrides applied on top of defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REVMCP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Credential env vars keep their conventional names.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}
	if token := os.Getenv("PHABRICATOR_TOKEN"); token != "" {
		cfg.Phabricator.Token = token
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".revmcp")

	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("phabricator.timeout_seconds", 30)
	v.SetDefault("git.repo_dir", ".")
	v.SetDefault("cache.path", filepath.Join(dataDir, "cache.db"))
	v.SetDefault("cache.diff_ttl_seconds", 900)
	v.SetDefault("state.path", filepath.Join(dataDir, "state.db"))
	v.SetDefault("review.topics", []string{"static", "css", "accessibility", "performance"})
	v.SetDefault("review.similarity_threshold", 0.85)
	v.SetDefault("testgen.framework", "jest")
	v.SetDefault("testgen.worker_timeout_seconds", 120)
	v.SetDefault("testgen.max_tests", 40)
	v.SetDefault("logging.level", "info")
}

// Validate checks the boundary conditions that make startup pointless.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm api key is required (set GEMINI_API_KEY)")
	}
	if c.Phabricator.URL != "" && c.Phabricator.Token == "" {
		return fmt.Errorf("phabricator.url is set but no token (set PHABRICATOR_TOKEN)")
	}
	if len(c.Review.Topics) == 0 {
		return fmt.Errorf("at least one review topic is required")
	}
	return nil
}

// LLMTimeout returns the model call budget.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// PhabricatorTimeout returns the Conduit request budget.
func (c *Config) PhabricatorTimeout() time.Duration {
	return time.Duration(c.Phabricator.TimeoutSeconds) * time.Second
}

// DiffTTL returns how long fetched diffs stay cached.
func (c *Config) DiffTTL() time.Duration {
	return time.Duration(c.Cache.DiffTTLSeconds) * time.Second
}

// WorkerTimeout returns the per-task worker budget.
func (c *Config) WorkerTimeout() time.Duration {
	return time.Duration(c.TestGen.WorkerTimeoutSeconds) * time.Second
}
