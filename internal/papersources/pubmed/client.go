package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/retinalab/citation-alert-service/internal/domain"
	"github.com/retinalab/citation-alert-service/internal/papersources"
)

const (
	defaultBaseURL        = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	defaultMaxResults     = 2000
	defaultFetchBatchSize = 100

	// NCBI allows 3 requests per second without an API key and 10 with one.
	defaultRateLimit = 3.0

	maxResponseSize = 10 << 20 // 10 MB
)

// Config holds the PubMed client configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RateLimit      float64
	MaxResults     int
	FetchBatchSize int
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
	if c.MaxResults <= 0 {
		c.MaxResults = defaultMaxResults
	}
	if c.FetchBatchSize <= 0 {
		c.FetchBatchSize = defaultFetchBatchSize
	}
}

// SearchOptions narrows an esearch call to a publication-date window and a
// set of publication types. Dates use the YYYY/MM/DD form E-utilities expects.
type SearchOptions struct {
	MinDate      string
	MaxDate      string
	ArticleTypes []string
	MaxResults   int
}

// Client queries the PubMed E-utilities API.
type Client struct {
	config Config
	http   *papersources.HTTPClient
	logger zerolog.Logger
}

// NewClient creates a PubMed client with the given configuration.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
	})

	return &Client{
		config: cfg,
		http:   httpClient,
		logger: logger.With().Str("source", "pubmed").Logger(),
	}
}

// SearchPMIDs runs an esearch query and returns the matching PMIDs in the
// order PubMed ranks them.
func (c *Client) SearchPMIDs(ctx context.Context, query string, opts SearchOptions) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.NewValidationError("query", "must not be empty")
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}

	term := buildTerm(query, opts.ArticleTypes)

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retmax", strconv.Itoa(maxResults))
	params.Set("retmode", "xml")
	if opts.MinDate != "" || opts.MaxDate != "" {
		params.Set("datetype", "pdat")
	}
	if opts.MinDate != "" {
		params.Set("mindate", opts.MinDate)
	}
	if opts.MaxDate != "" {
		params.Set("maxdate", opts.MaxDate)
	}
	if c.config.APIKey != "" {
		params.Set("api_key", c.config.APIKey)
	}

	searchURL := fmt.Sprintf("%s/esearch.fcgi?%s", c.config.BaseURL, params.Encode())

	c.logger.Debug().Str("term", term).Str("mindate", opts.MinDate).Str("maxdate", opts.MaxDate).Msg("searching pubmed")

	resp, err := c.http.Get(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("pubmed search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, domain.NewExternalAPIError("pubmed", resp.StatusCode, "search request failed", nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}

	var result ESearchResult
	if err := xml.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	if result.ErrorList != nil && len(result.ErrorList.PhraseNotFound) > 0 {
		c.logger.Warn().
			Strs("phrases", result.ErrorList.PhraseNotFound).
			Msg("pubmed reported unmatched phrases")
	}

	c.logger.Debug().Int("count", result.Count).Int("returned", len(result.IDList.IDs)).Msg("pubmed search completed")

	return result.IDList.IDs, nil
}

// FetchArticles retrieves metadata for the given PMIDs via efetch, batching
// requests to stay within URL length limits. A batch that fails is logged and
// skipped so one bad request does not sink the whole run.
func (c *Client) FetchArticles(ctx context.Context, pmids []string) ([]domain.Article, error) {
	if len(pmids) == 0 {
		return nil, nil
	}

	articles := make([]domain.Article, 0, len(pmids))

	for start := 0; start < len(pmids); start += c.config.FetchBatchSize {
		end := start + c.config.FetchBatchSize
		if end > len(pmids) {
			end = len(pmids)
		}
		batch := pmids[start:end]

		fetched, err := c.fetchBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return articles, ctx.Err()
			}
			c.logger.Warn().Err(err).
				Int("batch_start", start).
				Int("batch_size", len(batch)).
				Msg("efetch batch failed, skipping")
			continue
		}
		articles = append(articles, fetched...)
	}

	return articles, nil
}

func (c *Client) fetchBatch(ctx context.Context, pmids []string) ([]domain.Article, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "xml")
	if c.config.APIKey != "" {
		params.Set("api_key", c.config.APIKey)
	}

	fetchURL := fmt.Sprintf("%s/efetch.fcgi?%s", c.config.BaseURL, params.Encode())

	resp, err := c.http.Get(ctx, fetchURL)
	if err != nil {
		return nil, fmt.Errorf("pubmed fetch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, domain.NewExternalAPIError("pubmed", resp.StatusCode, "fetch request failed", nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading fetch response: %w", err)
	}

	var set PubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("parsing fetch response: %w", err)
	}

	articles := make([]domain.Article, 0, len(set.Articles))
	for _, a := range set.Articles {
		articles = append(articles, convertArticle(a))
	}

	return articles, nil
}

// buildTerm combines the query with a publication-type filter:
// (query) AND ("Type A"[pt] OR "Type B"[pt]).
func buildTerm(query string, articleTypes []string) string {
	if len(articleTypes) == 0 {
		return query
	}
	filters := make([]string, 0, len(articleTypes))
	for _, t := range articleTypes {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		filters = append(filters, fmt.Sprintf("%q[pt]", t))
	}
	if len(filters) == 0 {
		return query
	}
	return fmt.Sprintf("(%s) AND (%s)", query, strings.Join(filters, " OR "))
}

func convertArticle(pa PubmedArticle) domain.Article {
	med := pa.MedlineCitation

	return domain.Article{
		PMID:          med.PMID.Value,
		DOI:           extractDOI(pa),
		Title:         strings.TrimSpace(med.Article.ArticleTitle),
		Journal:       journalName(med.Article.Journal),
		PublishedDate: formatPubDate(pa),
		Abstract:      extractAbstract(med.Article.Abstract),
	}
}

func journalName(j Journal) string {
	if j.Title != "" {
		return j.Title
	}
	return j.ISOAbbreviation
}

// extractDOI prefers the ELocationID with EIdType="doi", falling back to the
// PubmedData article id list.
func extractDOI(pa PubmedArticle) string {
	for _, eloc := range pa.MedlineCitation.Article.ELocationID {
		if strings.EqualFold(eloc.EIdType, "doi") && eloc.Valid != "N" {
			return strings.TrimSpace(eloc.Value)
		}
	}
	for _, id := range pa.PubmedData.ArticleIdList.ArticleIds {
		if strings.EqualFold(id.IdType, "doi") {
			return strings.TrimSpace(id.Value)
		}
	}
	return ""
}

// formatPubDate resolves the publication date to YYYY-MM-DD, preferring the
// electronic ArticleDate over the journal issue date. Dates that cannot be
// resolved to at least a year come back as "N/A".
func formatPubDate(pa PubmedArticle) string {
	for _, ad := range pa.MedlineCitation.Article.ArticleDate {
		if ad.Year != "" {
			return formatDate(ad.Year, ad.Month, ad.Day)
		}
	}

	pd := pa.MedlineCitation.Article.Journal.JournalIssue.PubDate
	if pd.Year != "" {
		return formatDate(pd.Year, pd.Month, pd.Day)
	}

	// MedlineDate covers ranges like "2024 Jan-Feb"; keep the year.
	if pd.MedlineDate != "" {
		fields := strings.Fields(pd.MedlineDate)
		if len(fields) > 0 {
			if _, err := strconv.Atoi(fields[0]); err == nil {
				return fields[0]
			}
		}
	}

	return "N/A"
}

func formatDate(year, month, day string) string {
	m := parseMonth(month)
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		d = 1
	}
	return fmt.Sprintf("%s-%02d-%02d", year, m, d)
}

// parseMonth handles both numeric months and the three-letter abbreviations
// PubMed uses in journal issue dates.
func parseMonth(month string) int {
	if month == "" {
		return 1
	}
	if n, err := strconv.Atoi(month); err == nil {
		if n >= 1 && n <= 12 {
			return n
		}
		return 1
	}
	if t, err := time.Parse("Jan", month[:min(3, len(month))]); err == nil {
		return int(t.Month())
	}
	return 1
}

// extractAbstract joins structured abstract sections with their labels.
func extractAbstract(abs *Abstract) string {
	if abs == nil {
		return ""
	}
	parts := make([]string, 0, len(abs.AbstractTexts))
	for _, at := range abs.AbstractTexts {
		text := strings.TrimSpace(at.Value)
		if text == "" {
			continue
		}
		if at.Label != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", at.Label, text))
		} else {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
