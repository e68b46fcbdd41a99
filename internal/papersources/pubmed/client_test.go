package pubmed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retinalab/citation-alert-service/internal/domain"
)

const searchResponseXML = `<?xml version="1.0" encoding="UTF-8"?>
<eSearchResult>
  <Count>3</Count>
  <RetMax>3</RetMax>
  <RetStart>0</RetStart>
  <IdList>
    <Id>38000001</Id>
    <Id>38000002</Id>
    <Id>38000003</Id>
  </IdList>
</eSearchResult>`

const fetchResponseXML = `<?xml version="1.0" encoding="UTF-8"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID Version="1">38000001</PMID>
      <Article>
        <Journal>
          <JournalIssue>
            <PubDate>
              <Year>2025</Year>
              <Month>Mar</Month>
            </PubDate>
          </JournalIssue>
          <Title>Ophthalmology</Title>
          <ISOAbbreviation>Ophthalmology</ISOAbbreviation>
        </Journal>
        <ArticleTitle>Anti-VEGF therapy outcomes in neovascular AMD.</ArticleTitle>
        <ELocationID EIdType="doi" ValidYN="Y">10.1016/j.ophtha.2025.01.001</ELocationID>
        <Abstract>
          <AbstractText Label="PURPOSE">To evaluate outcomes.</AbstractText>
          <AbstractText Label="RESULTS">Vision improved.</AbstractText>
        </Abstract>
        <ArticleDate DateType="Electronic">
          <Year>2025</Year>
          <Month>02</Month>
          <Day>15</Day>
        </ArticleDate>
      </Article>
    </MedlineCitation>
    <PubmedData>
      <ArticleIdList>
        <ArticleId IdType="pubmed">38000001</ArticleId>
        <ArticleId IdType="doi">10.1016/j.ophtha.2025.01.001</ArticleId>
      </ArticleIdList>
    </PubmedData>
  </PubmedArticle>
  <PubmedArticle>
    <MedlineCitation>
      <PMID Version="1">38000002</PMID>
      <Article>
        <Journal>
          <JournalIssue>
            <PubDate>
              <MedlineDate>2025 Jan-Feb</MedlineDate>
            </PubDate>
          </JournalIssue>
          <Title>Retina</Title>
        </Journal>
        <ArticleTitle>Retinal imaging without a DOI.</ArticleTitle>
      </Article>
    </MedlineCitation>
    <PubmedData>
      <ArticleIdList>
        <ArticleId IdType="pubmed">38000002</ArticleId>
      </ArticleIdList>
    </PubmedData>
  </PubmedArticle>
</PubmedArticleSet>`

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestSearchPMIDs(t *testing.T) {
	var gotQuery map[string][]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "esearch.fcgi")
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(searchResponseXML))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, RateLimit: 100}, testLogger())

	pmids, err := client.SearchPMIDs(context.Background(), `"Ophthalmology"[Mesh]`, SearchOptions{
		MinDate:      "2024/06/01",
		MaxDate:      "2025/06/01",
		ArticleTypes: []string{"Journal Article", "Review"},
		MaxResults:   500,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"38000001", "38000002", "38000003"}, pmids)
	assert.Equal(t, "pubmed", gotQuery["db"][0])
	assert.Equal(t, "pdat", gotQuery["datetype"][0])
	assert.Equal(t, "2024/06/01", gotQuery["mindate"][0])
	assert.Equal(t, "2025/06/01", gotQuery["maxdate"][0])
	assert.Equal(t, "500", gotQuery["retmax"][0])
	assert.Equal(t, `("Ophthalmology"[Mesh]) AND ("Journal Article"[pt] OR "Review"[pt])`, gotQuery["term"][0])
}

func TestSearchPMIDsNoArticleTypes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `glaucoma`, r.URL.Query().Get("term"))
		assert.Empty(t, r.URL.Query().Get("datetype"))
		w.Write([]byte(searchResponseXML))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, RateLimit: 100}, testLogger())

	_, err := client.SearchPMIDs(context.Background(), "glaucoma", SearchOptions{})
	require.NoError(t, err)
}

func TestSearchPMIDsEmptyQuery(t *testing.T) {
	client := NewClient(Config{}, testLogger())

	_, err := client.SearchPMIDs(context.Background(), "   ", SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearchPMIDsAPIKeySent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-key", r.URL.Query().Get("api_key"))
		w.Write([]byte(searchResponseXML))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "secret-key", RateLimit: 100}, testLogger())

	_, err := client.SearchPMIDs(context.Background(), "glaucoma", SearchOptions{})
	require.NoError(t, err)
}

func TestFetchArticles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "efetch.fcgi")
		assert.Equal(t, "38000001,38000002", r.URL.Query().Get("id"))
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(fetchResponseXML))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, RateLimit: 100}, testLogger())

	articles, err := client.FetchArticles(context.Background(), []string{"38000001", "38000002"})
	require.NoError(t, err)
	require.Len(t, articles, 2)

	first := articles[0]
	assert.Equal(t, "38000001", first.PMID)
	assert.Equal(t, "10.1016/j.ophtha.2025.01.001", first.DOI)
	assert.Equal(t, "Anti-VEGF therapy outcomes in neovascular AMD.", first.Title)
	assert.Equal(t, "Ophthalmology", first.Journal)
	assert.Equal(t, "2025-02-15", first.PublishedDate)
	assert.Equal(t, "PURPOSE: To evaluate outcomes. RESULTS: Vision improved.", first.Abstract)
	assert.True(t, first.HasDOI())

	second := articles[1]
	assert.Equal(t, "38000002", second.PMID)
	assert.Empty(t, second.DOI)
	assert.False(t, second.HasDOI())
	assert.Equal(t, "Retina", second.Journal)
	assert.Equal(t, "2025", second.PublishedDate)
	assert.Empty(t, second.Abstract)
}

func TestFetchArticlesEmptyInput(t *testing.T) {
	client := NewClient(Config{}, testLogger())

	articles, err := client.FetchArticles(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestFetchArticlesBatching(t *testing.T) {
	var batchSizes []int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := r.URL.Query().Get("id")
		count := 1
		for _, ch := range ids {
			if ch == ',' {
				count++
			}
		}
		batchSizes = append(batchSizes, count)
		w.Write([]byte(`<PubmedArticleSet></PubmedArticleSet>`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, RateLimit: 100, FetchBatchSize: 2}, testLogger())

	pmids := []string{"1", "2", "3", "4", "5"}
	_, err := client.FetchArticles(context.Background(), pmids)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, batchSizes)
}

func TestFetchArticlesSkipsFailedBatch(t *testing.T) {
	calls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(fetchResponseXML))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, RateLimit: 100, FetchBatchSize: 2}, testLogger())

	articles, err := client.FetchArticles(context.Background(), []string{"1", "2", "3", "4"})
	require.NoError(t, err)

	// The first batch fails and is skipped; the second contributes two articles.
	assert.Len(t, articles, 2)
}

func TestBuildTerm(t *testing.T) {
	assert.Equal(t, "glaucoma", buildTerm("glaucoma", nil))
	assert.Equal(t, `(glaucoma) AND ("Review"[pt])`, buildTerm("glaucoma", []string{"Review"}))
	assert.Equal(t, "glaucoma", buildTerm("glaucoma", []string{"  ", ""}))
}

func TestParseMonth(t *testing.T) {
	assert.Equal(t, 3, parseMonth("Mar"))
	assert.Equal(t, 12, parseMonth("December"))
	assert.Equal(t, 7, parseMonth("07"))
	assert.Equal(t, 1, parseMonth(""))
	assert.Equal(t, 1, parseMonth("bogus"))
	assert.Equal(t, 1, parseMonth("99"))
}

func TestFormatPubDateMedlineDate(t *testing.T) {
	pa := PubmedArticle{}
	pa.MedlineCitation.Article.Journal.JournalIssue.PubDate.MedlineDate = "2024 Nov-Dec"
	assert.Equal(t, "2024", formatPubDate(pa))

	pa.MedlineCitation.Article.Journal.JournalIssue.PubDate.MedlineDate = "Winter 2024"
	assert.Equal(t, "N/A", formatPubDate(pa))
}
