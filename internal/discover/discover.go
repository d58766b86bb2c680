// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discover scrapes a paginated "latest papers" listing into Paper
// records.
package discover

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

const (
	cardSelector = "div.paper-card"

	defaultTargetCount = 100
	defaultMaxPages    = 100
	defaultPageDelay   = 2 * time.Second
	defaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

var firstInt = regexp.MustCompile(`\d+`)

// Scraper walks listing pages with a colly collector.
type Scraper struct {
	cfg   types.DiscoveryConfig
	proxy types.ProxyConfig
	log   zerolog.Logger
}

// New creates a Scraper, applying defaults to zero-valued settings.
func New(cfg types.DiscoveryConfig, proxy types.ProxyConfig, log zerolog.Logger) *Scraper {
	if cfg.TargetCount <= 0 {
		cfg.TargetCount = defaultTargetCount
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.PageDelay < 0 {
		cfg.PageDelay = 0
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Scraper{cfg: cfg, proxy: proxy, log: log}
}

// Scrape requests base?page=1, base?page=2, ... and collects paper cards.
// It stops when TargetCount papers are collected, after MaxPages pages, or
// at the first page without cards, waiting PageDelay between pages. A
// title seen on an earlier page is not collected twice.
func (s *Scraper) Scrape(ctx context.Context) ([]types.Paper, error) {
	c := s.collector()

	var (
		all       []types.Paper
		page      []types.Paper
		seen      = make(map[string]bool)
		scrapeErr error
	)
	c.OnHTML(cardSelector, func(e *colly.HTMLElement) {
		p, ok := ParseCard(e.DOM, e.Request.URL)
		if ok {
			page = append(page, p)
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("fetching %s: HTTP %d: %w", r.Request.URL, r.StatusCode, err)
	})

	for n := 1; n <= s.cfg.MaxPages && len(all) < s.cfg.TargetCount; n++ {
		if n > 1 && s.cfg.PageDelay > 0 {
			select {
			case <-ctx.Done():
				return all, ctx.Err()
			case <-time.After(s.cfg.PageDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			return all, err
		}

		pageURL, err := pageURL(s.cfg.BaseURL, n)
		if err != nil {
			return all, err
		}

		page, scrapeErr = nil, nil
		if err := c.Visit(pageURL); err != nil && scrapeErr == nil {
			scrapeErr = fmt.Errorf("fetching %s: %w", pageURL, err)
		}
		if scrapeErr != nil {
			if len(all) == 0 {
				return nil, scrapeErr
			}
			s.log.Warn().Err(scrapeErr).Int("page", n).Msg("stopping discovery early")
			break
		}
		if len(page) == 0 {
			s.log.Info().Int("page", n).Msg("no more papers")
			break
		}

		for _, p := range page {
			if seen[p.Title] {
				continue
			}
			seen[p.Title] = true
			all = append(all, p)
		}
		s.log.Info().Int("page", n).Int("total", len(all)).Msg("scraped listing page")
	}

	if len(all) > s.cfg.TargetCount {
		all = all[:s.cfg.TargetCount]
	}
	return all, nil
}

func (s *Scraper) collector() *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(s.cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	if s.cfg.Timeout > 0 {
		c.SetRequestTimeout(s.cfg.Timeout)
	}
	if pf := httputil.ProxyFunc(s.proxy); pf != nil {
		c.SetProxyFunc(pf)
	}
	return c
}

func pageURL(base string, n int) (string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid listing URL %q", base)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseCard extracts a paper from one listing card. Relative links are
// resolved against base. ok is false when the card has no title.
func ParseCard(card *goquery.Selection, base *url.URL) (p types.Paper, ok bool) {
	titleLink := card.Find("h1 a").First()
	p.Title = strings.TrimSpace(titleLink.Text())
	if p.Title == "" {
		return p, false
	}
	if href, exists := titleLink.Attr("href"); exists {
		p.PaperLink = absolute(base, href)
	}

	if href, exists := card.Find("span.item-github-link a").First().Attr("href"); exists {
		p.GithubLink = strings.TrimSpace(href)
	}
	p.Abstract = strings.TrimSpace(card.Find("p.item-strip-abstract").First().Text())

	stars := strings.ReplaceAll(card.Find("span.badge-secondary").First().Text(), ",", "")
	if m := firstInt.FindString(stars); m != "" {
		p.Stars, _ = strconv.Atoi(m)
	}

	card.Find("a.badge").Each(func(_ int, a *goquery.Selection) {
		href, exists := a.Attr("href")
		if !exists {
			return
		}
		text := a.Text()
		switch {
		case strings.Contains(text, "Paper") && p.PaperDownload == "":
			p.PaperDownload = absolute(base, href)
		case strings.Contains(text, "Code") && p.CodeLink == "":
			p.CodeLink = absolute(base, href)
		}
	})

	card.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if strings.Contains(href, "arxiv.org") {
			p.ArxivLink = href
			return false
		}
		return true
	})

	return p, true
}

func absolute(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
