package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Database defaults
	assert.Equal(t, "citation_alerts.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, "migrations", cfg.Database.MigrationPath)
	assert.True(t, cfg.Database.MigrationAutoRun)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Metrics defaults
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "citation_alert_run", cfg.Metrics.JobName)

	// PubMed defaults
	assert.Equal(t, "https://eutils.ncbi.nlm.nih.gov/entrez/eutils", cfg.PubMed.BaseURL)
	assert.Equal(t, 3.0, cfg.PubMed.RateLimit)
	assert.Equal(t, 2000, cfg.PubMed.MaxResults)
	assert.Equal(t, 100, cfg.PubMed.FetchBatchSize)

	// OpenCitations defaults
	assert.Equal(t, "https://opencitations.net/index/coci/api/v1", cfg.OpenCitations.BaseURL)
	assert.Equal(t, 1.0, cfg.OpenCitations.RateLimit)

	// LLM defaults
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.LLM.RetryDelay)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.LLM.Anthropic.Model)

	// Email defaults
	assert.Equal(t, "smtp.gmail.com", cfg.Email.SMTPHost)
	assert.Equal(t, 587, cfg.Email.SMTPPort)

	// Alerting defaults
	assert.Equal(t, []string{"ophthalmology"}, cfg.Alerting.Keywords)
	assert.Len(t, cfg.Alerting.ArticleTypes, 5)
	assert.Equal(t, 10, cfg.Alerting.CitationThreshold)
	assert.Equal(t, 3, cfg.Alerting.WindowMinMonths)
	assert.Equal(t, 15, cfg.Alerting.WindowMaxMonths)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("CITEALERT_DATABASE_PATH", "/var/lib/citealert/ledger.db")
	t.Setenv("CITEALERT_ALERTING_CITATION_THRESHOLD", "25")
	t.Setenv("CITEALERT_EMAIL_SMTP_HOST", "mail.example.org")
	t.Setenv("CITEALERT_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/citealert/ledger.db", cfg.Database.Path)
	assert.Equal(t, 25, cfg.Alerting.CitationThreshold)
	assert.Equal(t, "mail.example.org", cfg.Email.SMTPHost)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_SecretsFromEnvironment(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("CITEALERT_LLM_ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("CITEALERT_EMAIL_PASSWORD", "app-password")
	t.Setenv("CITEALERT_PUBMED_API_KEY", "ncbi-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-ant-test", cfg.LLM.Anthropic.APIKey)
	assert.Equal(t, "app-password", cfg.Email.Password)
	assert.Equal(t, "ncbi-key", cfg.PubMed.APIKey)
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("CITEALERT_LOGGING_LEVEL", "verbose")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestValidate_WindowOrdering(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("CITEALERT_ALERTING_WINDOW_MIN_MONTHS", "15")
	t.Setenv("CITEALERT_ALERTING_WINDOW_MAX_MONTHS", "3")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window_max_months")
}

func TestValidate_UnsupportedProvider(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("CITEALERT_LLM_PROVIDER", "openai")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported LLM provider")
}

func TestValidate_MetricsRequirePushgateway(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("CITEALERT_METRICS_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pushgateway_url")
}

func TestEmailConfig_ValidateCredentials(t *testing.T) {
	tests := []struct {
		name    string
		cfg     EmailConfig
		wantErr bool
	}{
		{
			name: "complete",
			cfg: EmailConfig{
				Username:  "alerts@example.org",
				Password:  "secret",
				Recipient: "reader@example.org",
			},
			wantErr: false,
		},
		{
			name:    "missing credentials",
			cfg:     EmailConfig{Recipient: "reader@example.org"},
			wantErr: true,
		},
		{
			name: "missing recipient",
			cfg: EmailConfig{
				Username: "alerts@example.org",
				Password: "secret",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateCredentials()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// clearEnvVars removes CITEALERT-prefixed variables so tests start clean.
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, env := range os.Environ() {
		for i := 0; i < len(env); i++ {
			if env[i] == '=' {
				key := env[:i]
				if len(key) > 9 && key[:9] == "CITEALERT" {
					t.Setenv(key, "")
					os.Unsetenv(key)
				}
				break
			}
		}
	}
}
