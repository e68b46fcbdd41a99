// Package pipeline wires the alert run together: search, citation counting,
// the alert ledger, summarization, and digest delivery.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/retinalab/citation-alert-service/internal/config"
	"github.com/retinalab/citation-alert-service/internal/dictionary"
	"github.com/retinalab/citation-alert-service/internal/digest"
	"github.com/retinalab/citation-alert-service/internal/domain"
	"github.com/retinalab/citation-alert-service/internal/llm"
	"github.com/retinalab/citation-alert-service/internal/observability"
	"github.com/retinalab/citation-alert-service/internal/papersources/pubmed"
)

// ArticleSearcher finds and fetches articles from PubMed.
type ArticleSearcher interface {
	SearchPMIDs(ctx context.Context, query string, opts pubmed.SearchOptions) ([]string, error)
	FetchArticles(ctx context.Context, pmids []string) ([]domain.Article, error)
}

// CitationCounter returns the inbound citation count for a DOI.
type CitationCounter interface {
	CitationCount(ctx context.Context, doi string) (int, error)
}

// AlertLedger records detected articles and tracks which have been notified.
type AlertLedger interface {
	Initialize(ctx context.Context) error
	Insert(ctx context.Context, rec *domain.AlertRecord) (bool, error)
	ListPending(ctx context.Context, detectionPeriod string) ([]domain.AlertRecord, error)
	MarkNotified(ctx context.Context, ids []int64) error
}

// DigestSender delivers a rendered digest.
type DigestSender interface {
	Send(ctx context.Context, d *digest.Digest) error
}

// Window is the publication-date range a run searches.
type Window struct {
	Start time.Time
	End   time.Time
}

// Label returns the detection period identifier stored with each alert.
func (w Window) Label() string {
	return fmt.Sprintf("%s to %s", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

// RunOptions control a single pipeline run.
type RunOptions struct {
	// Window overrides the default search window when both bounds are set.
	Window Window
	// ArticleTypes overrides the configured publication type filter. A
	// non-nil empty slice disables the filter entirely; nil keeps the
	// configured default.
	ArticleTypes []string
	// DryRun renders the digest but skips delivery and leaves alerts pending.
	DryRun bool
}

// Result summarizes what a run did.
type Result struct {
	DetectionPeriod string
	PMIDsSearched   int
	ArticlesChecked int
	AlertsInserted  int
	AlertsPending   int
	DigestSent      bool
}

// Pipeline executes the citation alert run.
type Pipeline struct {
	cfg        *config.Config
	searcher   ArticleSearcher
	citations  CitationCounter
	ledger     AlertLedger
	summarizer llm.Summarizer
	builder    *digest.Builder
	sender     DigestSender
	mesh       *dictionary.MeSHQueries
	impact     *dictionary.ImpactFactors
	metrics    *observability.Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

// New assembles a pipeline from its collaborators.
func New(
	cfg *config.Config,
	searcher ArticleSearcher,
	citations CitationCounter,
	ledger AlertLedger,
	summarizer llm.Summarizer,
	sender DigestSender,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		searcher:   searcher,
		citations:  citations,
		ledger:     ledger,
		summarizer: summarizer,
		builder:    digest.NewBuilder(),
		sender:     sender,
		mesh:       dictionary.NewMeSHQueries(cfg.Dictionary.MeSH),
		impact:     dictionary.NewImpactFactors(cfg.Dictionary.ImpactFactors),
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one full alert cycle: search the window, count citations,
// record threshold crossers in the ledger, then render and deliver the digest
// for everything still pending in this detection period.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	started := p.now()
	defer func() {
		p.metrics.RunDuration.Observe(time.Since(started).Seconds())
	}()

	window := opts.Window
	if window.Start.IsZero() || window.End.IsZero() {
		window = p.defaultWindow()
	}
	period := window.Label()

	logger := observability.WithRunContext(p.logger, uuid.NewString(), period)
	logger.Info().
		Time("window_start", window.Start).
		Time("window_end", window.End).
		Bool("dry_run", opts.DryRun).
		Msg("starting alert run")

	if err := p.ledger.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initializing ledger: %w", err)
	}

	pmids, err := p.searchWindow(ctx, logger, window, opts.ArticleTypes)
	if err != nil {
		return nil, err
	}

	articles, err := p.searcher.FetchArticles(ctx, pmids)
	if err != nil {
		return nil, fmt.Errorf("fetching articles: %w", err)
	}
	p.metrics.ArticlesFetched.Add(float64(len(articles)))
	logger.Info().Int("pmids", len(pmids)).Int("articles", len(articles)).Msg("article fetch completed")

	abstracts := make(map[string]string, len(articles))
	inserted := 0
	for _, article := range articles {
		abstracts[article.PMID] = article.Abstract

		ok, err := p.checkAndRecord(ctx, logger, article, period)
		if err != nil {
			return nil, err
		}
		if ok {
			inserted++
		}
	}

	pending, err := p.ledger.ListPending(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("listing pending alerts: %w", err)
	}

	result := &Result{
		DetectionPeriod: period,
		PMIDsSearched:   len(pmids),
		ArticlesChecked: len(articles),
		AlertsInserted:  inserted,
		AlertsPending:   len(pending),
	}

	if len(pending) == 0 {
		logger.Info().Msg("no pending alerts, skipping digest")
		return result, nil
	}

	items := p.buildItems(ctx, logger, pending, abstracts)

	d, err := p.builder.Build(period, items)
	if err != nil {
		return nil, fmt.Errorf("building digest: %w", err)
	}

	if opts.DryRun {
		logger.Info().
			Int("alerts", len(pending)).
			Str("subject", d.Subject).
			Msg("dry run, digest not sent and alerts left pending")
		logger.Debug().Str("preview", d.TextBody).Msg("digest preview")
		return result, nil
	}

	if err := p.sender.Send(ctx, d); err != nil {
		return nil, fmt.Errorf("sending digest: %w", err)
	}
	p.metrics.DigestsSent.Inc()
	result.DigestSent = true

	ids := make([]int64, len(pending))
	for i, rec := range pending {
		ids[i] = rec.ID
	}
	if err := p.ledger.MarkNotified(ctx, ids); err != nil {
		return nil, fmt.Errorf("marking alerts notified: %w", err)
	}

	logger.Info().Int("alerts", len(pending)).Msg("alert run completed")
	return result, nil
}

// defaultWindow computes the configured search window, counting back from
// the current date. Older bound first.
func (p *Pipeline) defaultWindow() Window {
	now := p.now()
	return Window{
		Start: now.AddDate(0, -p.cfg.Alerting.WindowMaxMonths, 0),
		End:   now.AddDate(0, -p.cfg.Alerting.WindowMinMonths, 0),
	}
}

// searchWindow runs one esearch per configured keyword and merges the
// results, deduplicating PMIDs while preserving first-seen order. A keyword
// without a MeSH mapping or with a failed search is logged and skipped.
func (p *Pipeline) searchWindow(ctx context.Context, logger zerolog.Logger, window Window, articleTypes []string) ([]string, error) {
	if articleTypes == nil {
		articleTypes = p.cfg.Alerting.ArticleTypes
	}

	opts := pubmed.SearchOptions{
		MinDate:      window.Start.Format("2006/01/02"),
		MaxDate:      window.End.Format("2006/01/02"),
		ArticleTypes: articleTypes,
		MaxResults:   p.cfg.PubMed.MaxResults,
	}

	seen := make(map[string]struct{})
	var pmids []string

	for _, keyword := range p.cfg.Alerting.Keywords {
		query, err := p.mesh.Query(keyword)
		if err != nil {
			logger.Warn().Err(err).Str("keyword", keyword).Msg("keyword has no MeSH query, skipping")
			continue
		}

		searchLogger := observability.WithSearchContext(logger, keyword, query)

		found, err := p.searcher.SearchPMIDs(ctx, query, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.metrics.SearchesTotal.WithLabelValues("error").Inc()
			searchLogger.Error().Err(err).Msg("search failed, skipping keyword")
			continue
		}
		p.metrics.SearchesTotal.WithLabelValues("ok").Inc()
		p.metrics.PMIDsFound.Add(float64(len(found)))
		searchLogger.Debug().Int("pmids", len(found)).Msg("search completed")

		for _, pmid := range found {
			if _, dup := seen[pmid]; dup {
				continue
			}
			seen[pmid] = struct{}{}
			pmids = append(pmids, pmid)
		}
	}

	return pmids, nil
}

// checkAndRecord looks up the citation count for one article and inserts an
// alert when it crosses the threshold. Returns true when a new alert was
// recorded.
func (p *Pipeline) checkAndRecord(ctx context.Context, logger zerolog.Logger, article domain.Article, period string) (bool, error) {
	artLogger := observability.WithArticleContext(logger, article.PMID, article.DOI)

	if !article.HasDOI() {
		p.metrics.CitationLookups.WithLabelValues("no_doi").Inc()
		artLogger.Debug().Msg("article has no DOI, skipping citation check")
		return false, nil
	}

	count, err := p.citations.CitationCount(ctx, article.DOI)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if errors.Is(err, domain.ErrUnavailable) {
			p.metrics.CitationLookups.WithLabelValues("unavailable").Inc()
			artLogger.Warn().Err(err).Msg("citation lookup unavailable, skipping article")
			return false, nil
		}
		return false, fmt.Errorf("citation lookup for %s: %w", article.PMID, err)
	}
	p.metrics.CitationLookups.WithLabelValues("ok").Inc()

	if count < p.cfg.Alerting.CitationThreshold {
		return false, nil
	}

	rec := &domain.AlertRecord{
		PMID:            article.PMID,
		DOI:             article.DOI,
		Title:           article.Title,
		Journal:         article.Journal,
		PublishedDate:   article.PublishedDate,
		CitationCount:   count,
		DetectionPeriod: period,
	}

	inserted, err := p.ledger.Insert(ctx, rec)
	if err != nil {
		return false, fmt.Errorf("recording alert for %s: %w", article.PMID, err)
	}
	if !inserted {
		p.metrics.AlertsDuplicate.Inc()
		return false, nil
	}

	p.metrics.AlertsInserted.Inc()
	artLogger.Info().Int("citations", count).Msg("alert recorded")
	return true, nil
}

// buildItems turns pending alerts into digest entries, summarizing each
// article. Summarization failures degrade to a placeholder rather than
// failing the run.
func (p *Pipeline) buildItems(ctx context.Context, logger zerolog.Logger, pending []domain.AlertRecord, abstracts map[string]string) []digest.Item {
	items := make([]digest.Item, 0, len(pending))

	for _, rec := range pending {
		summary := llm.PlaceholderSummary
		abstract := abstracts[rec.PMID]

		if abstract == "" {
			p.metrics.SummariesTotal.WithLabelValues("placeholder").Inc()
		} else {
			s, err := p.summarizer.Summarize(ctx, rec.Title, abstract)
			if err != nil {
				p.metrics.SummariesTotal.WithLabelValues("placeholder").Inc()
				logger.Warn().Err(err).Str("pmid", rec.PMID).Msg("summarization failed, using placeholder")
			} else {
				p.metrics.SummariesTotal.WithLabelValues("ok").Inc()
				summary = s
			}
		}

		items = append(items, digest.Item{
			Title:         rec.Title,
			Journal:       rec.Journal,
			ImpactFactor:  p.impact.Display(rec.Journal),
			PublishedDate: rec.PublishedDate,
			PMID:          rec.PMID,
			DOI:           rec.DOI,
			CitationCount: rec.CitationCount,
			Summary:       summary,
			PubMedURL:     rec.PubMedURL(),
		})
	}

	return items
}
