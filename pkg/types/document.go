// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-digest pipeline:
// retrieval results, the canonical page/markdown/image document produced by
// every conversion backend, rehosted image assets, and path alias maps.
package types

import "sort"

// RetrievalResult describes a document downloaded by the retriever.
type RetrievalResult struct {
	// LocalPath is the downloaded file on disk.
	LocalPath string `json:"local_path" yaml:"local_path"`

	// SourceURL is the URL retrieval started from.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// ResolvedURL is the final document URL after link resolution and redirects.
	ResolvedURL string `json:"resolved_url" yaml:"resolved_url"`

	// CanonicalURL is a secondary link (e.g. an arXiv abstract page), if one was found.
	CanonicalURL string `json:"canonical_url,omitempty" yaml:"canonical_url,omitempty"`
}

// EmbeddedImage is an image referenced from a page. Exactly one of Base64
// and SourcePath is set.
type EmbeddedImage struct {
	// ID is unique within a document and is also the materialized filename.
	ID string `json:"id" yaml:"id"`

	// Base64 is the inline payload with any data-URI prefix removed.
	Base64 string `json:"base64,omitempty" yaml:"base64,omitempty"`

	// SourcePath is an existing file holding the image.
	SourcePath string `json:"source_path,omitempty" yaml:"source_path,omitempty"`
}

// Inline reports whether the image carries its payload inline.
func (i EmbeddedImage) Inline() bool {
	return i.Base64 != ""
}

// Page is one page of a canonical document.
type Page struct {
	Index    int             `json:"index" yaml:"index"`
	Markdown string          `json:"markdown" yaml:"markdown"`
	Images   []EmbeddedImage `json:"images,omitempty" yaml:"images,omitempty"`
}

// CanonicalDocument is the backend-agnostic conversion output.
type CanonicalDocument struct {
	Pages []Page `json:"pages" yaml:"pages"`
}

// Text concatenates the markdown of all pages in order.
func (d CanonicalDocument) Text() string {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Markdown)
	}
	buf := make([]byte, 0, n)
	for _, p := range d.Pages {
		buf = append(buf, p.Markdown...)
	}
	return string(buf)
}

// ImageCount returns the number of image descriptors across all pages.
func (d CanonicalDocument) ImageCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Images)
	}
	return n
}

// RehostedAsset records one materialized image and, when the upload
// succeeded, its remote URL.
type RehostedAsset struct {
	ImageID   string `json:"image_id" yaml:"image_id"`
	LocalPath string `json:"local_path" yaml:"local_path"`
	RemoteURL string `json:"remote_url,omitempty" yaml:"remote_url,omitempty"`
}

// Uploaded reports whether the asset has a remote URL.
func (a RehostedAsset) Uploaded() bool {
	return a.RemoteURL != ""
}

// AliasEntry maps one spelling of a local path to a remote URL.
type AliasEntry struct {
	Path string `json:"path" yaml:"path"`
	URL  string `json:"url" yaml:"url"`
}

// PathAliasMap maps local path spellings to remote URLs. It keeps insertion
// order and is not modified after construction.
type PathAliasMap struct {
	entries []AliasEntry
	index   map[string]int
}

// NewPathAliasMap builds an alias map. A path registered twice keeps its
// first URL; empty paths and URLs are ignored.
func NewPathAliasMap(entries ...AliasEntry) PathAliasMap {
	m := PathAliasMap{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		if e.Path == "" || e.URL == "" {
			continue
		}
		if _, ok := m.index[e.Path]; ok {
			continue
		}
		m.index[e.Path] = len(m.entries)
		m.entries = append(m.entries, e)
	}
	return m
}

// Len returns the number of aliases.
func (m PathAliasMap) Len() int {
	return len(m.entries)
}

// Lookup returns the remote URL registered for path.
func (m PathAliasMap) Lookup(path string) (string, bool) {
	i, ok := m.index[path]
	if !ok {
		return "", false
	}
	return m.entries[i].URL, true
}

// Entries returns a copy of the aliases in insertion order.
func (m PathAliasMap) Entries() []AliasEntry {
	out := make([]AliasEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// LongestFirst returns the aliases ordered by descending path length.
// Paths of equal length keep insertion order.
func (m PathAliasMap) LongestFirst() []AliasEntry {
	out := m.Entries()
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Path) > len(out[j].Path)
	})
	return out
}
