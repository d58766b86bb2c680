// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	pdfExt          = ".pdf"
	fallbackPDFName = "paper.pdf"
)

// arxivBase is the arXiv host used when rewriting abstract links.
// Declared as a var so tests can substitute an httptest server.
var arxivBase = "https://arxiv.org"

// arxivAbsPattern matches arXiv abstract pages: "https://arxiv.org/abs/2301.07041v2".
var arxivAbsPattern = regexp.MustCompile(`^https?://(?:www\.)?arxiv\.org/abs/([^/?#]+)`)

// Links holds the document link found for a paper page and, when present,
// a secondary canonical link such as an arXiv abstract page.
type Links struct {
	Document  string
	Canonical string
}

// DirectLinks returns links for URLs that need no HTML resolution: URLs
// whose path already ends in .pdf, and arXiv abstract pages (rewritten to
// the matching PDF endpoint). ok is false for anything else.
func DirectLinks(rawURL string) (links Links, ok bool) {
	if m := arxivAbsPattern.FindStringSubmatch(rawURL); m != nil {
		return Links{
			Document:  arxivBase + "/pdf/" + m[1],
			Canonical: rawURL,
		}, true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Links{}, false
	}
	if strings.HasSuffix(strings.ToLower(u.Path), pdfExt) {
		return Links{Document: rawURL}, true
	}
	return Links{}, false
}

// ExtractLinks finds the document link on a parsed paper page. It first
// looks for a "badge" anchor labelled PDF, then falls back to the first
// anchor whose target mentions .pdf. The canonical link is the first anchor
// pointing at arxiv.org. Relative targets are resolved against base.
func ExtractLinks(doc *goquery.Document, base *url.URL) Links {
	var links Links

	doc.Find("a.badge").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label := s.Find("span").FilterFunction(func(_ int, span *goquery.Selection) bool {
			return strings.TrimSpace(span.Text()) == "PDF"
		})
		if label.Length() == 0 {
			return true
		}
		if href, ok := s.Attr("href"); ok && href != "" {
			links.Document = absolute(base, href)
			return false
		}
		return true
	})

	if links.Document == "" {
		doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, _ := s.Attr("href")
			if strings.Contains(href, pdfExt) {
				links.Document = absolute(base, href)
				return false
			}
			return true
		})
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if strings.Contains(href, "arxiv.org") {
			links.Canonical = absolute(base, href)
			return false
		}
		return true
	})

	return links
}

// FileName derives the local filename for a document URL: the last path
// segment when it carries the .pdf extension, otherwise paper.pdf.
func FileName(docURL string) string {
	u, err := url.Parse(docURL)
	if err != nil {
		return fallbackPDFName
	}
	name := path.Base(u.Path)
	if !strings.HasSuffix(strings.ToLower(name), pdfExt) || name == pdfExt {
		return fallbackPDFName
	}
	return name
}

func absolute(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
