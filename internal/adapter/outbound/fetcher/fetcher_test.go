package fetcher

import (
	"arxivshorts/internal/port/outbound"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html><body>
<nav class="ltx_TOC"><ol class="ltx_toclist">
  <li><a href="#S1">1 Introduction</a></li>
  <li><a href="#S2">2 Method</a>
    <ol><li><a href="#S2.SS1">2.1 Setup</a></li></ol>
  </li>
  <li><a href="#S3">3 Experiments</a></li>
  <li><a href="#S4">4 Results</a></li>
  <li><a href="#S5">5 Evaluation</a></li>
  <li><a href="#S9">9 Missing</a></li>
  <li><a href="/elsewhere">Related work</a></li>
</ol></nav>
<section id="S1"><h2>Introduction</h2><p>We   study
  things.</p></section>
<section id="S2"><h2>Method</h2><p>We use a model.</p>
  <section id="S2.SS1"><p>Setup details.</p></section>
</section>
<section id="S3"><p>Experiments ran.</p></section>
<section id="S4"><p>It worked.</p></section>
<section id="S5"><p>Scores improved.</p></section>
</body></html>`

const listingHTML = `<html><body>
<dl id="articles">
  <dt>
    <a href="/abs/2501.00001" id="2501.00001" title="Abstract">arXiv:2501.00001</a>
    <a href="https://arxiv.org/html/2501.00001v1" title="View HTML">html</a>
  </dt>
  <dd>
    <div class="list-title mathjax"><span class="descriptor">Title:</span> Scaling   Things</div>
    <div class="list-authors"><a href="/a/one">Ada One</a>, <a href="/a/two">Bo Two</a></div>
    <p class="mathjax">We scale
    things.</p>
  </dd>
  <dt>
    <a href="/abs/2501.00002" id="2501.00002">arXiv:2501.00002</a>
  </dt>
  <dd><div class="list-title mathjax">Title: No HTML</div></dd>
  <dt>
    <a href="/abs/2501.00003" id="2501.00003">arXiv:2501.00003</a>
    <a href="https://arxiv.org/html/2501.00003v2">html</a>
  </dt>
  <dd><div class="list-title mathjax">Title: Bare</div></dd>
</dl>
</body></html>`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractSections(t *testing.T) {
	sections, err := ExtractSections([]byte(articleHTML))

	require.NoError(t, err)
	assert.Equal(t, "Introduction We study things.", sections.Introduction)
	assert.Equal(t, "Method We use a model. Setup details.\n\nExperiments ran.", sections.Experiment)
	assert.Equal(t, "It worked.\n\nScores improved.", sections.Results)
}

func TestExtractSections_NestedEntries(t *testing.T) {
	page := `<html><body>
<nav class="ltx_TOC"><ol class="ltx_toclist">
  <li><a href="#S3">3 Experimental results</a>
    <ol class="ltx_toclist"><li><a href="#S3.SS1">3.1 Main results</a></li></ol>
  </li>
  <li><a href="#S4">4 Analysis</a>
    <ol class="ltx_toclist"><li><a href="#S4.SS1">4.1 Evaluation</a></li></ol>
  </li>
</ol></nav>
<section id="S3"><p>Setup.</p><section id="S3.SS1"><p>Accuracy rose.</p></section></section>
<section id="S4"><p>Discussion.</p><section id="S4.SS1"><p>Human raters agreed.</p></section></section>
</body></html>`

	sections, err := ExtractSections([]byte(page))

	require.NoError(t, err)
	assert.Equal(t, "Setup. Accuracy rose.", sections.Experiment, "subsection text is not repeated")
	assert.Equal(t, "Human raters agreed.", sections.Results, "unmatched parents are searched for matching subsections")
	assert.Empty(t, sections.Introduction)
}

func TestExtractSections_NoTOC(t *testing.T) {
	sections, err := ExtractSections([]byte(`<html><body><p>abstract only</p></body></html>`))

	require.NoError(t, err)
	assert.True(t, sections.IsEmpty())
}

func TestArticleFetcher_Fetch(t *testing.T) {
	srv := serve(t, http.StatusOK, articleHTML)
	fetcher := NewArticleFetcher(Config{UserAgent: "test-agent"})

	sections, err := fetcher.Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Contains(t, sections.Introduction, "We study things.")
}

func TestArticleFetcher_Unreachable(t *testing.T) {
	tests := []struct {
		name    string
		locator func(t *testing.T) string
	}{
		{
			name:    "not found",
			locator: func(t *testing.T) string { return serve(t, http.StatusNotFound, "gone").URL },
		},
		{
			name: "timeout",
			locator: func(t *testing.T) string {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					select {
					case <-r.Context().Done():
					case <-time.After(time.Second):
					}
				}))
				t.Cleanup(srv.Close)
				return srv.URL
			},
		},
		{
			name:    "invalid locator",
			locator: func(*testing.T) string { return "://bad" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := NewArticleFetcher(Config{Timeout: 50 * time.Millisecond})

			_, err := fetcher.Fetch(context.Background(), tt.locator(t))

			var fetchErr *outbound.FetchError
			require.True(t, errors.As(err, &fetchErr))
			assert.Equal(t, outbound.FetchErrorUnreachable, fetchErr.Kind)
		})
	}
}

func TestParseListing(t *testing.T) {
	items, total, err := ParseListing([]byte(listingHTML), "2025-01-15")

	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "2025-01-15", first.BatchID)
	assert.Equal(t, "2501.00001", first.ArticleID)
	assert.Equal(t, "Scaling Things", first.Title)
	assert.Equal(t, "We scale things.", first.Abstract)
	assert.Equal(t, []string{"Ada One", "Bo Two"}, first.Authors)
	assert.Equal(t, "https://arxiv.org/html/2501.00001v1", first.URL)
	require.NoError(t, first.Validate())

	assert.Equal(t, "2501.00003", items[1].ArticleID)
	assert.Equal(t, "Bare", items[1].Title)
	assert.Empty(t, items[1].Authors)
}

func TestParseListing_NoArticles(t *testing.T) {
	items, total, err := ParseListing([]byte(`<html></html>`), "2025-01-15")

	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestListingSource_FetchListing(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(listingHTML))
	}))
	defer srv.Close()

	source, err := NewListingSource(srv.URL+"/catchup/cs.AI/{{date}}", Config{})
	require.NoError(t, err)

	items, err := source.FetchListing(context.Background(), "2025-01-15")

	require.NoError(t, err)
	assert.Equal(t, "/catchup/cs.AI/2025-01-15", gotPath)
	assert.Len(t, items, 2)
}

func TestListingSource_Errors(t *testing.T) {
	_, err := NewListingSource(" ", Config{})
	assert.Error(t, err)

	srv := serve(t, http.StatusServiceUnavailable, "")
	source, err := NewListingSource(srv.URL+"/{{date}}", Config{})
	require.NoError(t, err)

	_, err = source.FetchListing(context.Background(), "2025-01-15")

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}
