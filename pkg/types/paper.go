// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Paper is the unit of work: one listing entry tracked through discovery,
// retrieval, conversion, and summarization.
type Paper struct {
	// ID is the catalog row id. Zero until the paper is stored.
	ID int64 `json:"id" yaml:"id"`

	// Title is the paper title. Together with PaperLink it identifies the paper.
	Title string `json:"title" yaml:"title"`

	// Abstract is the listing abstract.
	Abstract string `json:"abstract" yaml:"abstract"`

	// GithubLink is the repository associated with the paper.
	GithubLink string `json:"github_link,omitempty" yaml:"github_link,omitempty"`

	// Stars is the repository star count at discovery time.
	Stars int `json:"stars" yaml:"stars"`

	// PaperLink is the listing page for the paper; retrieval starts here.
	PaperLink string `json:"paper_link" yaml:"paper_link"`

	// PaperDownload is the listing's "Paper" badge target, if any.
	PaperDownload string `json:"paper_download,omitempty" yaml:"paper_download,omitempty"`

	// CodeLink is the listing's "Code" badge target, if any.
	CodeLink string `json:"code_link,omitempty" yaml:"code_link,omitempty"`

	// ArxivLink is an arxiv.org link found on the listing card, if any.
	ArxivLink string `json:"arxiv_link,omitempty" yaml:"arxiv_link,omitempty"`

	// Read reports whether the paper was already selected for summarization.
	Read bool `json:"read" yaml:"read"`
}

// AcquisitionRecord is the YAML metadata written after a successful retrieval.
type AcquisitionRecord struct {
	PaperID      int64     `yaml:"paper_id"`
	Title        string    `yaml:"title"`
	SourceURL    string    `yaml:"source_url"`
	ResolvedURL  string    `yaml:"resolved_url"`
	CanonicalURL string    `yaml:"canonical_url,omitempty"`
	PDFPath      string    `yaml:"pdf_path"`
	RetrievedAt  time.Time `yaml:"retrieved_at"`
}
