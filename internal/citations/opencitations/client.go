// Package opencitations provides a client for the OpenCitations COCI index,
// used to count inbound citations for an article by DOI.
package opencitations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/retinalab/citation-alert-service/internal/domain"
	"github.com/retinalab/citation-alert-service/internal/papersources"
)

const (
	defaultBaseURL = "https://opencitations.net/index/coci/api/v1"

	// OpenCitations asks polite clients to stay around one request per second.
	defaultRateLimit = 1.0

	maxResponseSize = 10 << 20 // 10 MB
)

// Config holds the OpenCitations client configuration.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RateLimit <= 0 {
		c.RateLimit = defaultRateLimit
	}
}

// citation is a single entry in the COCI citations response. Only its
// presence matters for counting, but citing is kept for debug logging.
type citation struct {
	Citing string `json:"citing"`
	Cited  string `json:"cited"`
}

// Client queries the OpenCitations COCI API.
type Client struct {
	config Config
	http   *papersources.HTTPClient
	logger zerolog.Logger
}

// NewClient creates an OpenCitations client with the given configuration.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
	})

	return &Client{
		config: cfg,
		http:   httpClient,
		logger: logger.With().Str("source", "opencitations").Logger(),
	}
}

// CitationCount returns the number of works citing the given DOI. Failures
// to reach or parse the index come back wrapped in domain.ErrUnavailable so
// callers can distinguish "unknown" from a genuine count of zero.
func (c *Client) CitationCount(ctx context.Context, doi string) (int, error) {
	doi = strings.TrimSpace(doi)
	if doi == "" {
		return 0, domain.NewValidationError("doi", "must not be empty")
	}

	countURL := fmt.Sprintf("%s/citations/%s", c.config.BaseURL, url.PathEscape(doi))

	resp, err := c.http.Get(ctx, countURL)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: opencitations request: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return 0, fmt.Errorf("%w: opencitations returned status %d", domain.ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, fmt.Errorf("%w: reading opencitations response: %v", domain.ErrUnavailable, err)
	}

	var citations []citation
	if err := json.Unmarshal(body, &citations); err != nil {
		return 0, fmt.Errorf("%w: parsing opencitations response: %v", domain.ErrUnavailable, err)
	}

	c.logger.Debug().Str("doi", doi).Int("citations", len(citations)).Msg("citation lookup completed")

	return len(citations), nil
}
