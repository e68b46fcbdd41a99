// Package main provides the entry point for the citation alert batch job.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/retinalab/citation-alert-service/internal/citations/opencitations"
	"github.com/retinalab/citation-alert-service/internal/config"
	"github.com/retinalab/citation-alert-service/internal/database"
	"github.com/retinalab/citation-alert-service/internal/digest"
	"github.com/retinalab/citation-alert-service/internal/ledger"
	"github.com/retinalab/citation-alert-service/internal/llm"
	"github.com/retinalab/citation-alert-service/internal/observability"
	"github.com/retinalab/citation-alert-service/internal/papersources/pubmed"
	"github.com/retinalab/citation-alert-service/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	startDate := flag.String("start-date", "", "Window start date (YYYY-MM-DD, overrides the configured window)")
	endDate := flag.String("end-date", "", "Window end date (YYYY-MM-DD, overrides the configured window)")
	articleTypes := flag.String("article-types", "", "Comma-separated publication type filter (overrides configuration)")
	dryRun := flag.Bool("dry-run", false, "Render the digest but skip delivery and leave alerts pending")
	flag.Parse()

	articleTypesSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "article-types" {
			articleTypesSet = true
		}
	})

	opts, err := parseRunOptions(*startDate, *endDate, *articleTypes, articleTypesSet, *dryRun)
	if err != nil {
		return err
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "citealert").Logger()

	// A real delivery needs SMTP credentials; a dry run does not.
	if !opts.DryRun {
		if err := cfg.Email.ValidateCredentials(); err != nil {
			return fmt.Errorf("email configuration: %w", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Open the database and run pending migrations.
	db, err := database.Open(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		if err := migrator.Up(); err != nil {
			migrator.Close()
			return fmt.Errorf("run migrations: %w", err)
		}
		if err := migrator.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close migrator")
		}
	}

	// Assemble the pipeline collaborators.
	searcher := pubmed.NewClient(pubmed.Config{
		BaseURL:        cfg.PubMed.BaseURL,
		APIKey:         cfg.PubMed.APIKey,
		Timeout:        cfg.PubMed.Timeout,
		RateLimit:      cfg.PubMed.RateLimit,
		MaxResults:     cfg.PubMed.MaxResults,
		FetchBatchSize: cfg.PubMed.FetchBatchSize,
	}, logger)

	citationClient := opencitations.NewClient(opencitations.Config{
		BaseURL:   cfg.OpenCitations.BaseURL,
		Timeout:   cfg.OpenCitations.Timeout,
		RateLimit: cfg.OpenCitations.RateLimit,
	}, logger)

	summarizer := llm.NewAnthropicSummarizer(llm.AnthropicConfig{
		APIKey:      cfg.LLM.Anthropic.APIKey,
		Model:       cfg.LLM.Anthropic.Model,
		BaseURL:     cfg.LLM.Anthropic.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
		RetryDelay:  cfg.LLM.RetryDelay,
	})

	sender := digest.NewSender(digest.SenderConfig{
		Host:      cfg.Email.SMTPHost,
		Port:      cfg.Email.SMTPPort,
		Username:  cfg.Email.Username,
		Password:  cfg.Email.Password,
		Recipient: cfg.Email.Recipient,
	}, logger)

	metrics := observability.NewMetrics()

	p := pipeline.New(
		cfg,
		searcher,
		citationClient,
		ledger.New(db, logger),
		summarizer,
		sender,
		metrics,
		logger,
	)

	result, runErr := p.Run(ctx, opts)

	// Push run metrics even when the run failed partway.
	if cfg.Metrics.Enabled {
		period := opts.Window.Label()
		if result != nil {
			period = result.DetectionPeriod
		}
		if err := metrics.Push(cfg.Metrics.PushgatewayURL, cfg.Metrics.JobName, period); err != nil {
			logger.Warn().Err(err).Msg("failed to push metrics")
		}
	}

	if runErr != nil {
		return fmt.Errorf("alert run: %w", runErr)
	}

	logger.Info().
		Str("detection_period", result.DetectionPeriod).
		Int("pmids", result.PMIDsSearched).
		Int("articles", result.ArticlesChecked).
		Int("alerts_inserted", result.AlertsInserted).
		Int("alerts_pending", result.AlertsPending).
		Bool("digest_sent", result.DigestSent).
		Msg("run finished")

	return nil
}

// parseRunOptions validates the CLI overrides and turns them into pipeline
// run options. An explicitly empty -article-types disables the publication
// type filter; leaving the flag unset keeps the configured default.
func parseRunOptions(startDate, endDate, articleTypes string, articleTypesSet, dryRun bool) (pipeline.RunOptions, error) {
	opts := pipeline.RunOptions{DryRun: dryRun}

	if (startDate == "") != (endDate == "") {
		return opts, fmt.Errorf("-start-date and -end-date must be given together")
	}

	if startDate != "" {
		start, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return opts, fmt.Errorf("invalid -start-date %q: %w", startDate, err)
		}
		end, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			return opts, fmt.Errorf("invalid -end-date %q: %w", endDate, err)
		}
		if !end.After(start) {
			return opts, fmt.Errorf("-end-date must be after -start-date")
		}
		opts.Window = pipeline.Window{Start: start, End: end}
	}

	if articleTypesSet {
		opts.ArticleTypes = []string{}
		for _, t := range strings.Split(articleTypes, ",") {
			if t = strings.TrimSpace(t); t != "" {
				opts.ArticleTypes = append(opts.ArticleTypes, t)
			}
		}
	}

	return opts, nil
}
