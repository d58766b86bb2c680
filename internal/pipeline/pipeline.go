// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives papers from selection to a saved, rewritten
// summary, one paper at a time, and assembles the daily digest.
//
// Per paper the stages are: retrieve the PDF, normalize it through the
// configured conversion backend, rehost its images, summarize, save the
// raw summary, rewrite local image paths to remote URLs, and overwrite the
// saved summary with the rewritten text. A failure in any stage abandons
// that paper only; rehosting problems never fail a paper.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-digest/internal/acquire"
	"github.com/pdiddy/paper-digest/internal/catalog"
	"github.com/pdiddy/paper-digest/internal/convert"
	"github.com/pdiddy/paper-digest/internal/metrics"
	"github.com/pdiddy/paper-digest/internal/rewrite"
	"github.com/pdiddy/paper-digest/pkg/types"
)

const (
	dateLayout = "2006-01-02"

	rawDir      = "raw"
	metadataDir = "metadata"
	markdownDir = "markdown"

	digestSeparator = "\n\n---\n\n"
)

// Stage names used in logs and metrics.
const (
	StageRetrieve  = "retrieve"
	StageConvert   = "convert"
	StageRehost    = "rehost"
	StageSummarize = "summarize"
	StageSave      = "save"
)

// Retriever downloads a paper's document.
type Retriever interface {
	Retrieve(ctx context.Context, sourceURL, outputDir string) (types.RetrievalResult, error)
}

// Rehoster materializes and uploads a document's images.
type Rehoster interface {
	Rehost(ctx context.Context, doc types.CanonicalDocument, imageDir string) (types.CanonicalDocument, types.PathAliasMap, []types.RehostedAsset)
}

// Summarizer writes the brief for a normalized paper.
type Summarizer interface {
	Summarize(ctx context.Context, p types.Paper, doc types.CanonicalDocument) (string, error)
}

// Discoverer lists recently published papers.
type Discoverer interface {
	Scrape(ctx context.Context) ([]types.Paper, error)
}

// Ranker picks the n most interesting candidates.
type Ranker interface {
	Rank(ctx context.Context, candidates []types.Paper, n int) ([]types.Paper, error)
}

// Catalog stores papers and their read state.
type Catalog interface {
	Upsert(ctx context.Context, papers []types.Paper) (catalog.UpsertSummary, error)
	Unread(ctx context.Context, limit int) ([]types.Paper, error)
	HasUnread(ctx context.Context) (bool, error)
	MarkRead(ctx context.Context, ids ...int64) error
	Count(ctx context.Context) (int, error)
}

// Deps holds the pipeline's collaborators. Discoverer, Ranker, and Catalog
// are only needed by Run.
type Deps struct {
	Retriever  Retriever
	Backend    convert.Backend
	Rehoster   Rehoster
	Summarizer Summarizer
	Discoverer Discoverer
	Ranker     Ranker
	Catalog    Catalog
}

// Pipeline runs papers through every stage.
type Pipeline struct {
	cfg     types.Config
	deps    Deps
	log     zerolog.Logger
	metrics *metrics.Metrics
	out     io.Writer

	// now is replaced in tests to pin output dates.
	now func() time.Time
}

// New creates a Pipeline. Status lines are printed to out; m may be nil.
func New(cfg types.Config, deps Deps, log zerolog.Logger, m *metrics.Metrics, out io.Writer) *Pipeline {
	if out == nil {
		out = io.Discard
	}
	return &Pipeline{cfg: cfg, deps: deps, log: log, metrics: m, out: out, now: time.Now}
}

// Summary is a saved paper summary.
type Summary struct {
	PaperID int64
	Title   string
	Date    string
	Path    string
	Text    string
	Images  int
}

// BatchResult holds the outcome of a batch run.
type BatchResult struct {
	Summarized int
	Failed     int
	Summaries  []Summary
}

// Total returns the number of papers processed.
func (r BatchResult) Total() int {
	return r.Summarized + r.Failed
}

// HasFailures reports whether any paper failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// StageError records which stage a paper failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

func (p *Pipeline) date() string {
	return p.now().Format(dateLayout)
}

// SummaryPath returns the summary file for a paper on date.
func SummaryPath(dir string, paperID int64, date string) string {
	return filepath.Join(dir, fmt.Sprintf("summary_%d_%s.md", paperID, date))
}

// DigestPath returns the digest file for date.
func DigestPath(dir, date string) string {
	return filepath.Join(dir, fmt.Sprintf("paper_digest_%s.md", date))
}

// ImageDir returns the directory receiving a paper's images on date.
func ImageDir(papersDir string, paperID int64, date string) string {
	return filepath.Join(papersDir, fmt.Sprintf("images_%d_%s", paperID, date))
}

// ProcessPaper runs one paper through every stage and returns its saved
// summary. The returned error is a *StageError.
func (p *Pipeline) ProcessPaper(ctx context.Context, paper types.Paper) (Summary, error) {
	date := p.date()
	papersDir := p.cfg.Retrieval.PapersDir
	id := strconv.FormatInt(paper.ID, 10)
	log := p.log.With().Int64("paper_id", paper.ID).Str("title", paper.Title).Logger()

	fail := func(stage string, err error) (Summary, error) {
		p.metrics.ObservePaper(stage, metrics.OutcomeFailure)
		return Summary{}, &StageError{Stage: stage, Err: err}
	}

	// Retrieved
	source := paper.PaperLink
	if source == "" {
		return fail(StageRetrieve, fmt.Errorf("paper has no link: %w", types.ErrNoLink))
	}
	log.Info().Str("url", source).Msg("retrieving")
	res, err := p.deps.Retriever.Retrieve(ctx, source, filepath.Join(papersDir, rawDir, id))
	if err != nil {
		return fail(StageRetrieve, err)
	}
	rec := types.AcquisitionRecord{
		PaperID:      paper.ID,
		Title:        paper.Title,
		SourceURL:    res.SourceURL,
		ResolvedURL:  res.ResolvedURL,
		CanonicalURL: res.CanonicalURL,
		PDFPath:      res.LocalPath,
		RetrievedAt:  p.now().UTC(),
	}
	if err := acquire.WriteMetadata(rec, filepath.Join(papersDir, metadataDir, id+".yaml")); err != nil {
		log.Warn().Err(err).Msg("writing acquisition metadata")
	}

	// Normalized
	log.Info().Str("backend", string(p.deps.Backend.Kind())).Str("pdf", res.LocalPath).Msg("converting")
	doc, err := convert.Normalize(ctx, p.deps.Backend, res.LocalPath)
	if err != nil {
		p.metrics.ObserveConversion(p.deps.Backend.Kind(), metrics.OutcomeFailure)
		return fail(StageConvert, err)
	}
	p.metrics.ObserveConversion(p.deps.Backend.Kind(), metrics.OutcomeSuccess)
	if len(doc.Pages) == 0 {
		return fail(StageConvert, fmt.Errorf("document has no text: %w", types.ErrSchemaMismatch))
	}

	// Rehosted
	doc, aliases, assets := p.deps.Rehoster.Rehost(ctx, doc, ImageDir(papersDir, paper.ID, date))
	uploaded := 0
	for _, a := range assets {
		if a.Uploaded() {
			uploaded++
		}
	}
	log.Info().Int("images", len(assets)).Int("uploaded", uploaded).Int("aliases", aliases.Len()).Msg("rehosted images")
	mdPath := filepath.Join(papersDir, markdownDir, id+".md")
	if err := convert.WriteMarkdown(mdPath, res.LocalPath, p.deps.Backend.Kind(), doc); err != nil {
		log.Warn().Err(err).Msg("writing converted markdown")
	}

	// Summarized
	text, err := p.deps.Summarizer.Summarize(ctx, paper, doc)
	if err != nil {
		return fail(StageSummarize, err)
	}

	// Saved raw, then rewritten over it.
	path := SummaryPath(p.cfg.SummariesDir, paper.ID, date)
	if err := writeFile(path, text); err != nil {
		return fail(StageSave, err)
	}
	rewritten := rewrite.Rewrite(text, aliases)
	if rewritten != text {
		if err := writeFile(path, rewritten); err != nil {
			return fail(StageSave, err)
		}
	}

	p.metrics.ObservePaper(StageSave, metrics.OutcomeSuccess)
	log.Info().Str("path", path).Msg("summary saved")
	return Summary{PaperID: paper.ID, Title: paper.Title, Date: date, Path: path, Text: rewritten, Images: uploaded}, nil
}

// ProcessBatch processes papers in order. A failed paper is logged and
// counted; the batch always continues with the next paper.
func (p *Pipeline) ProcessBatch(ctx context.Context, papers []types.Paper) BatchResult {
	var result BatchResult
	for _, paper := range papers {
		if ctx.Err() != nil {
			break
		}
		s, err := p.ProcessPaper(ctx, paper)
		if err != nil {
			result.Failed++
			p.log.Error().Err(err).Int64("paper_id", paper.ID).Str("title", paper.Title).Msg("paper failed")
			fmt.Fprintf(p.out, "failed:     [%d] %s (%v)\n", paper.ID, paper.Title, err)
			continue
		}
		result.Summarized++
		result.Summaries = append(result.Summaries, s)
		fmt.Fprintf(p.out, "summarized: [%d] %s -> %s\n", paper.ID, paper.Title, s.Path)
	}
	fmt.Fprintf(p.out, "\nBatch summary: %d summarized, %d failed (total: %d)\n",
		result.Summarized, result.Failed, result.Total())
	return result
}

// WriteDigest writes the digest for date to dir: a header followed by each
// summary and a separator.
func WriteDigest(dir, date string, summaries []Summary) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Paper Digest Summary - %s\n\n", date)
	for _, s := range summaries {
		b.WriteString(s.Text)
		b.WriteString(digestSeparator)
	}
	path := DigestPath(dir, date)
	if err := writeFile(path, b.String()); err != nil {
		return "", err
	}
	return path, nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
