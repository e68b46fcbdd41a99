package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics contains the Prometheus metrics recorded during an alert run.
// The service is a batch job, so metrics live in a private registry and are
// pushed to a Pushgateway at the end of the run rather than scraped.
type Metrics struct {
	registry *prometheus.Registry

	// SearchesTotal counts esearch calls, labeled by outcome (ok, error).
	SearchesTotal *prometheus.CounterVec

	// PMIDsFound counts the PMIDs returned across all search queries.
	PMIDsFound prometheus.Counter

	// ArticlesFetched counts articles whose metadata was retrieved.
	ArticlesFetched prometheus.Counter

	// CitationLookups counts COCI lookups, labeled by outcome
	// (ok, unavailable, no_doi).
	CitationLookups *prometheus.CounterVec

	// AlertsInserted counts new ledger rows written.
	AlertsInserted prometheus.Counter

	// AlertsDuplicate counts inserts skipped as duplicates.
	AlertsDuplicate prometheus.Counter

	// SummariesTotal counts summarization attempts, labeled by outcome
	// (ok, placeholder).
	SummariesTotal *prometheus.CounterVec

	// DigestsSent counts delivered digests.
	DigestsSent prometheus.Counter

	// RunDuration observes end-to-end run duration in seconds.
	RunDuration prometheus.Histogram
}

// NewMetrics creates and registers all run metrics in a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		SearchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "citealert_searches_total",
			Help: "PubMed search calls by outcome.",
		}, []string{"outcome"}),

		PMIDsFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "citealert_pmids_found_total",
			Help: "PMIDs returned across all search queries.",
		}),

		ArticlesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "citealert_articles_fetched_total",
			Help: "Articles whose metadata was retrieved from PubMed.",
		}),

		CitationLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "citealert_citation_lookups_total",
			Help: "OpenCitations lookups by outcome.",
		}, []string{"outcome"}),

		AlertsInserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "citealert_alerts_inserted_total",
			Help: "New alert ledger rows written.",
		}),

		AlertsDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Name: "citealert_alerts_duplicate_total",
			Help: "Ledger inserts skipped as duplicates.",
		}),

		SummariesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "citealert_summaries_total",
			Help: "Abstract summarizations by outcome.",
		}, []string{"outcome"}),

		DigestsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "citealert_digests_sent_total",
			Help: "Digest emails delivered.",
		}),

		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "citealert_run_duration_seconds",
			Help:    "End-to-end run duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

// Push delivers the collected metrics to a Pushgateway. The instance grouping
// label is the run's detection period so that consecutive runs do not clobber
// each other.
func (m *Metrics) Push(gatewayURL, jobName, detectionPeriod string) error {
	if err := push.New(gatewayURL, jobName).
		Gatherer(m.registry).
		Grouping("detection_period", detectionPeriod).
		Push(); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
