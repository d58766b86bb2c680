// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns a downloaded PDF into a CanonicalDocument using one
// of a closed set of conversion backends: doc2x, Mistral OCR, or a local
// markitdown container. Every backend's output passes through the same
// normalization so later stages never see backend-specific shapes.
package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/paper-digest/internal/container"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// markdownDir is the subdirectory under the papers base for Markdown output.
const markdownDir = "markdown"

// Backend converts a PDF into pages of Markdown with image descriptors.
type Backend interface {
	// Kind identifies the backend for logging and metrics.
	Kind() types.ConversionBackend

	// Convert reads the PDF at pdfPath and returns the backend's pages.
	// The result is not yet normalized; callers use Normalize.
	Convert(ctx context.Context, pdfPath string) (types.CanonicalDocument, error)
}

// detectFunc finds a container runtime; tests replace it.
type detectFunc func(ctx context.Context, prefer string) (container.Runtime, error)

// New returns the backend selected by cfg.Backend. The markitdown backend
// detects a container runtime and checks that its image exists.
func New(ctx context.Context, cfg types.ConversionConfig) (Backend, error) {
	return newBackend(ctx, cfg, container.Detect)
}

func newBackend(ctx context.Context, cfg types.ConversionConfig, detect detectFunc) (Backend, error) {
	switch cfg.Backend {
	case types.BackendDoc2x:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("doc2x api key: %w", types.ErrMissingCredential)
		}
		return NewDoc2xBackend(cfg), nil
	case types.BackendMistralOCR:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("mistral api key: %w", types.ErrMissingCredential)
		}
		return NewMistralBackend(cfg), nil
	case types.BackendMarkitdown:
		rt, err := detect(ctx, cfg.ContainerRuntime)
		if err != nil {
			return nil, err
		}
		return NewMarkitdownBackend(ctx, rt, cfg.Image)
	default:
		return nil, fmt.Errorf("unknown conversion backend %q", cfg.Backend)
	}
}

// Normalize converts the PDF at pdfPath with b and canonicalizes the
// result: pages whose text is blank are dropped, and an image id seen on
// an earlier page is removed from later pages so ids are unique.
func Normalize(ctx context.Context, b Backend, pdfPath string) (types.CanonicalDocument, error) {
	doc, err := b.Convert(ctx, pdfPath)
	if err != nil {
		return types.CanonicalDocument{}, fmt.Errorf("converting %s with %s: %w", filepath.Base(pdfPath), b.Kind(), err)
	}
	return canonicalize(doc), nil
}

func canonicalize(doc types.CanonicalDocument) types.CanonicalDocument {
	seen := make(map[string]bool)
	out := types.CanonicalDocument{Pages: make([]types.Page, 0, len(doc.Pages))}
	for _, p := range doc.Pages {
		if strings.TrimSpace(p.Markdown) == "" {
			continue
		}
		var images []types.EmbeddedImage
		for _, img := range p.Images {
			if img.ID == "" || seen[img.ID] {
				continue
			}
			seen[img.ID] = true
			images = append(images, img)
		}
		p.Images = images
		out.Pages = append(out.Pages, p)
	}
	return out
}

// Status is the outcome of converting one PDF in a batch.
type Status string

const (
	StatusConverted Status = "converted"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the total number of PDFs processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any PDF failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// MarkdownPath returns where the Markdown for pdfPath is written under papersDir.
func MarkdownPath(papersDir, pdfPath string) string {
	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	return filepath.Join(papersDir, markdownDir, base+".md")
}

// ConvertPath converts a single PDF and writes its Markdown under
// papersDir/markdown. Existing output is left alone.
func ConvertPath(ctx context.Context, b Backend, pdfPath, papersDir string, w io.Writer) Status {
	mdPath := MarkdownPath(papersDir, pdfPath)
	name := filepath.Base(mdPath)

	if _, err := os.Stat(mdPath); err == nil {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", name)
		return StatusSkipped
	}

	doc, err := Normalize(ctx, b, pdfPath)
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", name, err)
		return StatusFailed
	}

	if err := WriteMarkdown(mdPath, pdfPath, b.Kind(), doc); err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", name, err)
		return StatusFailed
	}

	fmt.Fprintf(w, "converted: %s (%d pages, %d images)\n", name, len(doc.Pages), doc.ImageCount())
	return StatusConverted
}

// ConvertPaths converts each PDF in turn, printing per-file status to w and
// returning a summary.
func ConvertPaths(ctx context.Context, b Backend, pdfPaths []string, papersDir string, w io.Writer) BatchResult {
	var result BatchResult
	for _, p := range pdfPaths {
		switch ConvertPath(ctx, b, p, papersDir, w) {
		case StatusConverted:
			result.Converted++
		case StatusSkipped:
			result.Skipped++
		case StatusFailed:
			result.Failed++
		}
	}
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result
}

// WriteMarkdown writes doc to path with YAML frontmatter and a
// <!-- page N --> marker before each page.
func WriteMarkdown(path, sourcePDF string, backend types.ConversionBackend, doc types.CanonicalDocument) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return os.WriteFile(path, []byte(renderMarkdown(sourcePDF, backend, doc)), 0o644)
}

func renderMarkdown(sourcePDF string, backend types.ConversionBackend, doc types.CanonicalDocument) string {
	ts := time.Now().UTC().Format(time.RFC3339)
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "source_pdf: %q\n", sourcePDF)
	fmt.Fprintf(&b, "backend: %q\n", backend)
	fmt.Fprintf(&b, "pages: %d\n", len(doc.Pages))
	fmt.Fprintf(&b, "converted_at: %q\n", ts)
	b.WriteString("---\n")
	for _, p := range doc.Pages {
		fmt.Fprintf(&b, "\n<!-- page %d -->\n\n", p.Index+1)
		b.WriteString(strings.TrimRight(p.Markdown, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// schemaError marks a response that could not be decoded into the shape
// a backend expects.
func schemaError(what string, err error) error {
	return fmt.Errorf("decoding %s: %w: %w", what, types.ErrSchemaMismatch, err)
}
