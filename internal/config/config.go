package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/phish-triage/")
	v.AddConfigPath("$HOME/.phish-triage")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("PHISH_TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// LLM provider defaults
	v.SetDefault("llm.provider", "bedrock")

	// Analysis budget defaults. The tool-phase/final-turn split is an
	// empirical tunable, so all of it is configuration.
	v.SetDefault("analysis.total_budget", "25s")
	v.SetDefault("analysis.tool_phase_budget", "15s")
	v.SetDefault("analysis.model_call_timeout", "8s")
	v.SetDefault("analysis.fallback_timeout", "6s")
	v.SetDefault("analysis.fallback_min_budget", "3s")
	v.SetDefault("analysis.tool_timeout", "5s")
	v.SetDefault("analysis.max_iterations", 3)
	v.SetDefault("analysis.max_tool_calls", 8)
	v.SetDefault("analysis.allowlisted_domains", []string{})

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-sonnet-20240229-v1:0")
	v.SetDefault("bedrock.max_tokens", 1500)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-1.5-pro")
	v.SetDefault("gemini.max_tokens", 1500)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4o")
	v.SetDefault("openai.max_tokens", 1500)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 4096)

	// Reputation provider defaults
	v.SetDefault("reputation.virustotal_api_key", "")
	v.SetDefault("reputation.abuseipdb_api_key", "")
	v.SetDefault("reputation.timeout", "4s")
	v.SetDefault("reputation.cache_ttl", "1h")
	v.SetDefault("reputation.max_age_days", 90)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.cleanup_frequency", "1h")
	v.SetDefault("cache.sqlite_path", "/data/phish_triage.db")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/phish_triage")

	// Guard defaults
	v.SetDefault("guard.own_domain", "")
	v.SetDefault("guard.service_address", "")
	v.SetDefault("guard.max_reply_depth", 3)
	v.SetDefault("guard.rate_limit.enabled", true)
	v.SetDefault("guard.rate_limit.max_per_window", 10)
	v.SetDefault("guard.rate_limit.window", "1h")
	v.SetDefault("guard.dedup.enabled", true)
	v.SetDefault("guard.dedup.ttl", "6h")

	// Ingest defaults
	v.SetDefault("ingest.webhook.listen_address", ":8080")
	v.SetDefault("ingest.smtp.enabled", false)
	v.SetDefault("ingest.smtp.listen_address", ":2525")
	v.SetDefault("ingest.smtp.domain", "localhost")
	v.SetDefault("ingest.smtp.max_message_bytes", 10*1024*1024)

	// Report defaults
	v.SetDefault("report.smtp.enabled", false)
	v.SetDefault("report.smtp.address", "localhost:25")
	v.SetDefault("report.smtp.from", "phish-triage@localhost")
	v.SetDefault("report.smtp.username", "")
	v.SetDefault("report.smtp.password", "")
	v.SetDefault("report.subject_prefix", "[phish-triage] ")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetInt64 gets an int64 value from the configuration
func (c *Config) GetInt64(key string) int64 {
	return c.v.GetInt64(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
