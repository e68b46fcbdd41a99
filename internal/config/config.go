// Package config provides configuration management for the citation alert service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the citation alert service.
type Config struct {
	// Database contains SQLite ledger settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus Pushgateway settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// PubMed contains NCBI E-utilities client settings.
	PubMed PubMedConfig `mapstructure:"pubmed"`
	// OpenCitations contains COCI citation index client settings.
	OpenCitations OpenCitationsConfig `mapstructure:"opencitations"`
	// LLM contains LLM client settings for abstract summarization.
	LLM LLMConfig `mapstructure:"llm"`
	// Email contains SMTP digest delivery settings.
	Email EmailConfig `mapstructure:"email"`
	// Alerting contains detection parameters (keywords, threshold, window).
	Alerting AlertingConfig `mapstructure:"alerting"`
	// Dictionary contains overrides for the MeSH and impact factor tables.
	Dictionary DictionaryConfig `mapstructure:"dictionary"`
}

// DatabaseConfig holds SQLite ledger configuration.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `mapstructure:"path" validate:"required"`
	// BusyTimeout is the SQLite busy timeout applied on open.
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: true).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus Pushgateway configuration. A batch job
// pushes its counters at the end of a run instead of exposing a scrape
// endpoint.
type MetricsConfig struct {
	// Enabled enables the push at the end of a run.
	Enabled bool `mapstructure:"enabled"`
	// PushgatewayURL is the Pushgateway base URL.
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	// JobName is the Pushgateway job label.
	JobName string `mapstructure:"job_name"`
}

// PubMedConfig holds NCBI E-utilities client configuration.
type PubMedConfig struct {
	// BaseURL is the E-utilities base URL.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// APIKey is the NCBI API key (loaded from CITEALERT_PUBMED_API_KEY).
	// Optional; raises the permitted request rate from 3 to 10 per second.
	APIKey string `mapstructure:"-"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gt=0"`
	// MaxResults is the maximum PMIDs returned per search query.
	MaxResults int `mapstructure:"max_results" validate:"gt=0"`
	// FetchBatchSize is the number of PMIDs fetched per efetch call.
	FetchBatchSize int `mapstructure:"fetch_batch_size" validate:"gt=0,lte=200"`
}

// OpenCitationsConfig holds COCI client configuration.
type OpenCitationsConfig struct {
	// BaseURL is the COCI API base URL.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gt=0"`
}

// LLMConfig holds LLM client configuration for summarization.
type LLMConfig struct {
	// Provider is the LLM provider. Only "anthropic" is supported.
	Provider string `mapstructure:"provider"`
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for transient failures.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`
	// RetryDelay is the base delay between retries, doubled per attempt
	// unless the provider supplies a retry-after hint.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// Temperature is the sampling temperature.
	Temperature float64 `mapstructure:"temperature"`
	// MaxTokens caps the summary length.
	MaxTokens int `mapstructure:"max_tokens" validate:"gt=0"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key (loaded from CITEALERT_LLM_ANTHROPIC_API_KEY).
	APIKey string `mapstructure:"-"`
	// Model is the Anthropic model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the Anthropic API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// EmailConfig holds SMTP digest delivery settings.
type EmailConfig struct {
	// SMTPHost is the SMTP server hostname.
	SMTPHost string `mapstructure:"smtp_host"`
	// SMTPPort is the SMTP submission port (default: 587, STARTTLS).
	SMTPPort int `mapstructure:"smtp_port" validate:"gt=0,lte=65535"`
	// Username is the SMTP login, also used as the From address.
	Username string `mapstructure:"username"`
	// Password is the SMTP password or app password
	// (loaded from CITEALERT_EMAIL_PASSWORD).
	Password string `mapstructure:"-"`
	// Recipient is the digest recipient address.
	Recipient string `mapstructure:"recipient"`
}

// AlertingConfig holds detection parameters.
type AlertingConfig struct {
	// Keywords are the subject-area keywords translated to MeSH queries.
	Keywords []string `mapstructure:"keywords" validate:"min=1"`
	// ArticleTypes filters search results by PubMed publication type.
	// Empty means no filter.
	ArticleTypes []string `mapstructure:"article_types"`
	// CitationThreshold is the minimum total citation count that triggers
	// an alert.
	CitationThreshold int `mapstructure:"citation_threshold" validate:"gt=0"`
	// WindowMinMonths is how many months back the default search window ends.
	WindowMinMonths int `mapstructure:"window_min_months" validate:"gte=0"`
	// WindowMaxMonths is how many months back the default search window starts.
	WindowMaxMonths int `mapstructure:"window_max_months" validate:"gt=0"`
}

// DictionaryConfig holds overrides merged over the built-in lookup tables.
type DictionaryConfig struct {
	// MeSH maps additional subject keywords to PubMed MeSH queries.
	MeSH map[string]string `mapstructure:"mesh"`
	// ImpactFactors maps additional journal names to impact factors.
	ImpactFactors map[string]float64 `mapstructure:"impact_factors"`
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("CITEALERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/citation-alert-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.LLM.Anthropic.APIKey = os.Getenv("CITEALERT_LLM_ANTHROPIC_API_KEY")
	cfg.Email.Password = os.Getenv("CITEALERT_EMAIL_PASSWORD")
	cfg.PubMed.APIKey = os.Getenv("CITEALERT_PUBMED_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "citation_alerts.db")
	v.SetDefault("database.busy_timeout", "5s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job_name", "citation_alert_run")

	// PubMed defaults
	v.SetDefault("pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("pubmed.timeout", "30s")
	v.SetDefault("pubmed.rate_limit", 3.0) // NCBI allows max 3 req/sec without an API key
	v.SetDefault("pubmed.max_results", 2000)
	v.SetDefault("pubmed.fetch_batch_size", 100)

	// OpenCitations defaults
	v.SetDefault("opencitations.base_url", "https://opencitations.net/index/coci/api/v1")
	v.SetDefault("opencitations.timeout", "60s")
	v.SetDefault("opencitations.rate_limit", 1.0)

	// LLM defaults
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", "5s")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")

	// Email defaults
	v.SetDefault("email.smtp_host", "smtp.gmail.com")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.recipient", "")

	// Alerting defaults
	v.SetDefault("alerting.keywords", []string{"ophthalmology"})
	v.SetDefault("alerting.article_types", []string{
		"Clinical Trial",
		"Meta-Analysis",
		"Randomized Controlled Trial",
		"Review",
		"Systematic Review",
	})
	v.SetDefault("alerting.citation_threshold", 10)
	v.SetDefault("alerting.window_min_months", 3)
	v.SetDefault("alerting.window_max_months", 15)
}

// Validate validates the configuration. Delivery credentials are not checked
// here; the delivery step validates them itself so that a dry run or a
// credential-free run can still execute the rest of the pipeline
// (see EmailConfig.ValidateCredentials).
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Alerting.WindowMaxMonths <= c.Alerting.WindowMinMonths {
		return fmt.Errorf("window_max_months (%d) must be > window_min_months (%d)",
			c.Alerting.WindowMaxMonths, c.Alerting.WindowMinMonths)
	}

	if strings.ToLower(c.LLM.Provider) != "anthropic" {
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}

	if c.Metrics.Enabled && c.Metrics.PushgatewayURL == "" {
		return fmt.Errorf("metrics.pushgateway_url is required when metrics are enabled")
	}

	return nil
}

// ValidateCredentials reports whether the delivery settings are complete
// enough to send a digest.
func (c *EmailConfig) ValidateCredentials() error {
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("SMTP credentials are not configured")
	}
	if c.Recipient == "" {
		return fmt.Errorf("digest recipient is not configured")
	}
	return nil
}
