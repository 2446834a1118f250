package config

import "time"

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// AnalysisConfig represents the budgets and ceilings for the analysis loop
type AnalysisConfig struct {
	TotalBudget        time.Duration
	ToolPhaseBudget    time.Duration
	ModelCallTimeout   time.Duration
	FallbackTimeout    time.Duration
	FallbackMinBudget  time.Duration
	ToolTimeout        time.Duration
	MaxIterations      int
	MaxToolCalls       int
	AllowlistedDomains []string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// ReputationConfig represents the configuration for reputation providers
type ReputationConfig struct {
	VirusTotalAPIKey string
	AbuseIPDBAPIKey  string
	Timeout          time.Duration
	CacheTTL         time.Duration
	MaxAgeDays       int
}

// GuardConfig represents the configuration for the inbound guards
type GuardConfig struct {
	OwnDomain        string
	ServiceAddress   string
	MaxReplyDepth    int
	RateLimitEnabled bool
	RateLimitMax     int
	RateLimitWindow  time.Duration
	DedupEnabled     bool
	DedupTTL         time.Duration
}

// IngestConfig represents the configuration for inbound listeners
type IngestConfig struct {
	WebhookListenAddress string
	SMTPEnabled          bool
	SMTPListenAddress    string
	SMTPDomain           string
	SMTPMaxMessageBytes  int64
}

// ReportConfig represents the configuration for report delivery
type ReportConfig struct {
	SMTPEnabled   bool
	SMTPAddress   string
	From          string
	Username      string
	Password      string
	SubjectPrefix string
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetAnalysis returns the analysis configuration
func (c *Config) GetAnalysis() (AnalysisConfig, error) {
	cfg := AnalysisConfig{
		MaxIterations:      c.GetInt("analysis.max_iterations"),
		MaxToolCalls:       c.GetInt("analysis.max_tool_calls"),
		AllowlistedDomains: c.GetStringSlice("analysis.allowlisted_domains"),
	}

	var err error
	if cfg.TotalBudget, err = c.GetDuration("analysis.total_budget"); err != nil {
		return cfg, err
	}
	if cfg.ToolPhaseBudget, err = c.GetDuration("analysis.tool_phase_budget"); err != nil {
		return cfg, err
	}
	if cfg.ModelCallTimeout, err = c.GetDuration("analysis.model_call_timeout"); err != nil {
		return cfg, err
	}
	if cfg.FallbackTimeout, err = c.GetDuration("analysis.fallback_timeout"); err != nil {
		return cfg, err
	}
	if cfg.FallbackMinBudget, err = c.GetDuration("analysis.fallback_min_budget"); err != nil {
		return cfg, err
	}
	if cfg.ToolTimeout, err = c.GetDuration("analysis.tool_timeout"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetReputation returns the reputation provider configuration
func (c *Config) GetReputation() (ReputationConfig, error) {
	cfg := ReputationConfig{
		VirusTotalAPIKey: c.GetString("reputation.virustotal_api_key"),
		AbuseIPDBAPIKey:  c.GetString("reputation.abuseipdb_api_key"),
		MaxAgeDays:       c.GetInt("reputation.max_age_days"),
	}

	var err error
	if cfg.Timeout, err = c.GetDuration("reputation.timeout"); err != nil {
		return cfg, err
	}
	if cfg.CacheTTL, err = c.GetDuration("reputation.cache_ttl"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetGuard returns the guard configuration
func (c *Config) GetGuard() (GuardConfig, error) {
	cfg := GuardConfig{
		OwnDomain:        c.GetString("guard.own_domain"),
		ServiceAddress:   c.GetString("guard.service_address"),
		MaxReplyDepth:    c.GetInt("guard.max_reply_depth"),
		RateLimitEnabled: c.GetBool("guard.rate_limit.enabled"),
		RateLimitMax:     c.GetInt("guard.rate_limit.max_per_window"),
		DedupEnabled:     c.GetBool("guard.dedup.enabled"),
	}

	var err error
	if cfg.RateLimitWindow, err = c.GetDuration("guard.rate_limit.window"); err != nil {
		return cfg, err
	}
	if cfg.DedupTTL, err = c.GetDuration("guard.dedup.ttl"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetIngest returns the ingest configuration
func (c *Config) GetIngest() IngestConfig {
	return IngestConfig{
		WebhookListenAddress: c.GetString("ingest.webhook.listen_address"),
		SMTPEnabled:          c.GetBool("ingest.smtp.enabled"),
		SMTPListenAddress:    c.GetString("ingest.smtp.listen_address"),
		SMTPDomain:           c.GetString("ingest.smtp.domain"),
		SMTPMaxMessageBytes:  c.GetInt64("ingest.smtp.max_message_bytes"),
	}
}

// GetReport returns the report delivery configuration
func (c *Config) GetReport() ReportConfig {
	return ReportConfig{
		SMTPEnabled:   c.GetBool("report.smtp.enabled"),
		SMTPAddress:   c.GetString("report.smtp.address"),
		From:          c.GetString("report.smtp.from"),
		Username:      c.GetString("report.smtp.username"),
		Password:      c.GetString("report.smtp.password"),
		SubjectPrefix: c.GetString("report.subject_prefix"),
	}
}
