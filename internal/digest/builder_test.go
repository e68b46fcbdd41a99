package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleItems() []Item {
	return []Item{
		{
			Title:         "Anti-VEGF therapy outcomes in neovascular AMD",
			Journal:       "Ophthalmology",
			ImpactFactor:  "13.2",
			PublishedDate: "2025-02-15",
			PMID:          "38000001",
			DOI:           "10.1016/j.ophtha.2025.01.001",
			CitationCount: 42,
			Summary:       "A randomized trial showing improved acuity.",
			PubMedURL:     "https://pubmed.ncbi.nlm.nih.gov/38000001/",
		},
		{
			Title:         "Retinal imaging without a DOI",
			Journal:       "Retina",
			ImpactFactor:  "N/A",
			PublishedDate: "2025",
			PMID:          "38000002",
			CitationCount: 11,
			Summary:       "Summary not available.",
			PubMedURL:     "https://pubmed.ncbi.nlm.nih.gov/38000002/",
		},
	}
}

func TestBuild(t *testing.T) {
	b := NewBuilder()

	d, err := b.Build("2024-06-01 to 2025-06-01", sampleItems())
	require.NoError(t, err)

	assert.Equal(t, "Citation alerts: 2 highly cited articles (2024-06-01 to 2025-06-01)", d.Subject)

	// Both bodies carry the ranked entries.
	for _, body := range []string{d.HTMLBody, d.TextBody} {
		assert.Contains(t, body, "1. ")
		assert.Contains(t, body, "2. ")
		assert.Contains(t, body, "Anti-VEGF therapy outcomes in neovascular AMD")
		assert.Contains(t, body, "38000001")
		assert.Contains(t, body, "10.1016/j.ophtha.2025.01.001")
		assert.Contains(t, body, "https://pubmed.ncbi.nlm.nih.gov/38000001/")
		assert.Contains(t, body, "2024-06-01 to 2025-06-01")
	}

	assert.Contains(t, d.HTMLBody, "42")
	assert.Contains(t, d.TextBody, "Citations: 42")
	assert.Contains(t, d.TextBody, "IF: 13.2")
	assert.Contains(t, d.TextBody, "IF: N/A")
}

func TestBuildOmitsEmptyDOI(t *testing.T) {
	b := NewBuilder()

	d, err := b.Build("last year", sampleItems())
	require.NoError(t, err)

	// The second entry has no DOI, so its line carries the PMID only.
	assert.Contains(t, d.TextBody, "PMID: 38000002\n")
	assert.NotContains(t, d.TextBody, "PMID: 38000002 | DOI:")
}

func TestBuildEscapesHTML(t *testing.T) {
	b := NewBuilder()

	items := sampleItems()[:1]
	items[0].Title = `Efficacy of <script>alert("x")</script> & more`

	d, err := b.Build("last year", items)
	require.NoError(t, err)

	assert.NotContains(t, d.HTMLBody, "<script>")
	assert.Contains(t, d.HTMLBody, "&lt;script&gt;")
}

func TestBuildAssignsRanks(t *testing.T) {
	b := NewBuilder()

	items := sampleItems()
	d, err := b.Build("last year", items)
	require.NoError(t, err)

	assert.Equal(t, 1, items[0].Rank)
	assert.Equal(t, 2, items[1].Rank)
	assert.Contains(t, d.TextBody, "1. Anti-VEGF")
	assert.Contains(t, d.TextBody, "2. Retinal imaging")
}

func TestBuildNoItems(t *testing.T) {
	b := NewBuilder()

	_, err := b.Build("last year", nil)
	assert.ErrorContains(t, err, "no items")
}
