// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discover

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/pkg/types"
)

func card(title string, stars string) string {
	slug := strings.ToLower(strings.ReplaceAll(title, " ", "-"))
	return fmt.Sprintf(`<div class="row infinite-item item paper-card">
  <h1><a href="/paper/%[1]s">%[2]s</a></h1>
  <span class="item-github-link"><a href="https://github.com/org/%[1]s">org/%[1]s</a></span>
  <p class="item-strip-abstract"> Abstract of %[2]s. </p>
  <span class="badge badge-secondary"><span class="icon"></span> %[3]s</span>
  <a class="badge badge-light" href="/paper/%[1]s#paper"><span>Paper</span></a>
  <a class="badge badge-dark" href="/paper/%[1]s#code"><span>Code</span></a>
  <a href="https://arxiv.org/abs/2401.%[1]s">arXiv</a>
</div>`, slug, title, stars)
}

func listing(cards ...string) string {
	return "<html><body>" + strings.Join(cards, "\n") + "</body></html>"
}

func TestParseCard(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listing(card("Sparse Attention", "1,234"))))
	require.NoError(t, err)
	base, _ := url.Parse("https://papers.example.com/latest?page=1")

	p, ok := ParseCard(doc.Find(cardSelector).First(), base)
	require.True(t, ok)
	assert.Equal(t, types.Paper{
		Title:         "Sparse Attention",
		Abstract:      "Abstract of Sparse Attention.",
		GithubLink:    "https://github.com/org/sparse-attention",
		Stars:         1234,
		PaperLink:     "https://papers.example.com/paper/sparse-attention",
		PaperDownload: "https://papers.example.com/paper/sparse-attention#paper",
		CodeLink:      "https://papers.example.com/paper/sparse-attention#code",
		ArxivLink:     "https://arxiv.org/abs/2401.sparse-attention",
	}, p)
}

func TestParseCard_Minimal(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div class="paper-card"><h1><a href="/paper/x">X</a></h1></div><div class="paper-card"><p>no title</p></div>`))
	require.NoError(t, err)

	cards := doc.Find(cardSelector)
	p, ok := ParseCard(cards.First(), nil)
	require.True(t, ok)
	assert.Equal(t, 0, p.Stars)
	assert.Empty(t, p.GithubLink)
	assert.Empty(t, p.ArxivLink)

	_, ok = ParseCard(cards.Last(), nil)
	assert.False(t, ok)
}

func TestScrape_Pagination(t *testing.T) {
	var requests int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, "digest-test", r.UserAgent())
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, listing(card("A", "1"), card("B", "2")))
		case "2":
			// B moved down while we paged; it must not be counted twice.
			fmt.Fprint(w, listing(card("B", "2"), card("C", "3")))
		default:
			fmt.Fprint(w, listing())
		}
	}))
	defer ts.Close()

	s := New(types.DiscoveryConfig{
		HTTPConfig:  types.HTTPConfig{UserAgent: "digest-test"},
		BaseURL:     ts.URL + "/latest",
		TargetCount: 10,
	}, types.ProxyConfig{}, zerolog.Nop())

	papers, err := s.Scrape(context.Background())
	require.NoError(t, err)

	titles := make([]string, len(papers))
	for i, p := range papers {
		titles[i] = p.Title
	}
	assert.Equal(t, []string{"A", "B", "C"}, titles)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests), "stops at the first empty page")
}

func TestScrape_TargetAndMaxPages(t *testing.T) {
	var requests int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		fmt.Fprint(w, listing(card(fmt.Sprintf("P%d a", n), "0"), card(fmt.Sprintf("P%d b", n), "0")))
	}))
	defer ts.Close()

	s := New(types.DiscoveryConfig{BaseURL: ts.URL, TargetCount: 3}, types.ProxyConfig{}, zerolog.Nop())
	papers, err := s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Len(t, papers, 3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))

	atomic.StoreInt32(&requests, 0)
	s = New(types.DiscoveryConfig{BaseURL: ts.URL, TargetCount: 100, MaxPages: 2}, types.ProxyConfig{}, zerolog.Nop())
	papers, err = s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Len(t, papers, 4)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestScrape_Errors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, listing(card("A", "1")))
			return
		}
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	s := New(types.DiscoveryConfig{BaseURL: ts.URL}, types.ProxyConfig{}, zerolog.Nop())
	papers, err := s.Scrape(context.Background())
	require.NoError(t, err, "a failure after the first page keeps what was collected")
	assert.Len(t, papers, 1)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	s = New(types.DiscoveryConfig{BaseURL: failing.URL}, types.ProxyConfig{}, zerolog.Nop())
	_, err = s.Scrape(context.Background())
	assert.Error(t, err)

	s = New(types.DiscoveryConfig{BaseURL: "not a url"}, types.ProxyConfig{}, zerolog.Nop())
	_, err = s.Scrape(context.Background())
	assert.Error(t, err)
}

func TestScrape_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(types.DiscoveryConfig{BaseURL: "http://127.0.0.1:1/latest"}, types.ProxyConfig{}, zerolog.Nop())
	_, err := s.Scrape(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPageURL(t *testing.T) {
	got, err := pageURL("https://papers.example.com/latest?sort=new", 3)
	require.NoError(t, err)
	assert.Equal(t, "https://papers.example.com/latest?page=3&sort=new", got)
}
