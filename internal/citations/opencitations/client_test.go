package opencitations

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

func TestCitationCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "/citations/")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"citing": "10.1000/a", "cited": "10.1016/j.ophtha.2025.01.001"},
			{"citing": "10.1000/b", "cited": "10.1016/j.ophtha.2025.01.001"},
			{"citing": "10.1000/c", "cited": "10.1016/j.ophtha.2025.01.001"}
		]`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, RateLimit: 100}, zerolog.Nop())

	count, err := client.CitationCount(context.Background(), "10.1016/j.ophtha.2025.01.001")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestCitationCountZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, RateLimit: 100}, zerolog.Nop())

	count, err := client.CitationCount(context.Background(), "10.1000/uncited")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCitationCountEmptyDOI(t *testing.T) {
	client := NewClient(Config{}, zerolog.Nop())

	_, err := client.CitationCount(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCitationCountServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, RateLimit: 100}, zerolog.Nop())

	_, err := client.CitationCount(context.Background(), "10.1000/missing")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestCitationCountBadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not": "an array"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, RateLimit: 100}, zerolog.Nop())

	_, err := client.CitationCount(context.Background(), "10.1000/bad")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestCitationCountUnreachable(t *testing.T) {
	server := httptest.NewServer(nil)
	server.Close()

	client := NewClient(Config{BaseURL: server.URL, RateLimit: 100}, zerolog.Nop())

	_, err := client.CitationCount(context.Background(), "10.1000/x")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestDOIPathEscaped(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, RateLimit: 100}, zerolog.Nop())

	_, err := client.CitationCount(context.Background(), "10.1002/(sici)1096-8644")
	require.NoError(t, err)
	assert.Contains(t, gotPath, "10.1002")
	assert.Contains(t, gotPath, "%28sici%29")
}
