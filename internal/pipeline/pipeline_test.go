// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/internal/acquire"
	"github.com/pdiddy/paper-digest/internal/metrics"
	"github.com/pdiddy/paper-digest/internal/rehost"
	"github.com/pdiddy/paper-digest/pkg/types"
)

var testDate = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

// fakeBackend returns the same document for every PDF.
type fakeBackend struct {
	doc   types.CanonicalDocument
	err   error
	calls []string
}

func (f *fakeBackend) Kind() types.ConversionBackend { return types.BackendMarkitdown }

func (f *fakeBackend) Convert(_ context.Context, pdfPath string) (types.CanonicalDocument, error) {
	f.calls = append(f.calls, pdfPath)
	return f.doc, f.err
}

// fakeHost returns a URL derived from the uploaded filename.
type fakeHost struct {
	uploads int
}

func (f *fakeHost) Upload(_ context.Context, path string) (string, error) {
	f.uploads++
	return "https://img.example/" + filepath.Base(path) + ".png", nil
}

// echoSummarizer returns the title followed by the document text, so image
// references reach the saved summary unchanged.
type echoSummarizer struct {
	err error
}

func (s echoSummarizer) Summarize(_ context.Context, p types.Paper, doc types.CanonicalDocument) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "## " + p.Title + "\n\n" + doc.Text(), nil
}

// pdfServer serves /ok.pdf and answers 503 for /bad.pdf.
func pdfServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var badCalls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.pdf":
			fmt.Fprint(w, "%PDF-1.4 fake")
		case "/bad.pdf":
			atomic.AddInt32(&badCalls, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts, &badCalls
}

type fixture struct {
	cfg     types.Config
	backend *fakeBackend
	host    *fakeHost
	metrics *metrics.Metrics
	out     *bytes.Buffer
}

func newFixture(t *testing.T, doc types.CanonicalDocument) *fixture {
	t.Helper()
	root := t.TempDir()
	return &fixture{
		cfg: types.Config{
			Retrieval: types.RetrievalConfig{
				MaxAttempts:    3,
				InitialTimeout: time.Second,
				PapersDir:      filepath.Join(root, "papers"),
			},
			SummariesDir: filepath.Join(root, "summaries"),
		},
		backend: &fakeBackend{doc: doc},
		host:    &fakeHost{},
		metrics: metrics.New(),
		out:     &bytes.Buffer{},
	}
}

func (f *fixture) pipeline(deps Deps) *Pipeline {
	log := zerolog.Nop()
	if deps.Retriever == nil {
		deps.Retriever = acquire.NewRetriever(f.cfg.Retrieval, log, f.metrics)
	}
	if deps.Backend == nil {
		deps.Backend = f.backend
	}
	if deps.Rehoster == nil {
		deps.Rehoster = rehost.New(f.host, log, f.metrics)
	}
	if deps.Summarizer == nil {
		deps.Summarizer = echoSummarizer{}
	}
	p := New(f.cfg, deps, log, f.metrics, f.out)
	p.now = func() time.Time { return testDate }
	return p
}

func imageDoc() types.CanonicalDocument {
	payload := base64.StdEncoding.EncodeToString([]byte("\x89PNG fake"))
	return types.CanonicalDocument{Pages: []types.Page{{
		Index:    0,
		Markdown: "# Method\n\n![overview](img-1)\n",
		Images:   []types.EmbeddedImage{{ID: "img-1", Base64: payload}},
	}}}
}

func TestProcessPaper_RewritesImagePaths(t *testing.T) {
	ts, _ := pdfServer(t)
	f := newFixture(t, imageDoc())
	p := f.pipeline(Deps{})

	paper := types.Paper{ID: 7, Title: "Sparse Mixtures", PaperLink: ts.URL + "/ok.pdf"}
	s, err := p.ProcessPaper(context.Background(), paper)
	require.NoError(t, err)

	wantPath := filepath.Join(f.cfg.SummariesDir, "summary_7_2024-01-02.md")
	assert.Equal(t, wantPath, s.Path)
	assert.Equal(t, 1, s.Images)
	assert.Equal(t, 1, f.host.uploads)

	data, err := os.ReadFile(wantPath)
	require.NoError(t, err)
	saved := string(data)
	assert.Equal(t, s.Text, saved)
	assert.Contains(t, saved, "![overview](https://img.example/img-1.png)")
	assert.NotContains(t, saved, "images_7_2024-01-02")

	imageDir := filepath.Join(f.cfg.Retrieval.PapersDir, "images_7_2024-01-02")
	assert.FileExists(t, filepath.Join(imageDir, "img-1"))
	assert.FileExists(t, filepath.Join(f.cfg.Retrieval.PapersDir, "raw", "7", "ok.pdf"))
	assert.FileExists(t, filepath.Join(f.cfg.Retrieval.PapersDir, "markdown", "7.md"))

	rec, err := acquire.ReadMetadata(filepath.Join(f.cfg.Retrieval.PapersDir, "metadata", "7.yaml"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.PaperID)
	assert.Equal(t, ts.URL+"/ok.pdf", rec.ResolvedURL)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PapersTotal.WithLabelValues(StageSave, metrics.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ConversionsTotal.WithLabelValues(string(types.BackendMarkitdown), metrics.OutcomeSuccess)))
}

func TestProcessPaper_NoImages(t *testing.T) {
	ts, _ := pdfServer(t)
	f := newFixture(t, types.CanonicalDocument{Pages: []types.Page{{Index: 0, Markdown: "plain text only"}}})
	p := f.pipeline(Deps{})

	s, err := p.ProcessPaper(context.Background(), types.Paper{ID: 3, Title: "Plain", PaperLink: ts.URL + "/ok.pdf"})
	require.NoError(t, err)

	assert.NotEmpty(t, s.Text)
	assert.Contains(t, s.Text, "plain text only")
	assert.Zero(t, s.Images)
	assert.Zero(t, f.host.uploads)
	assert.NoDirExists(t, filepath.Join(f.cfg.Retrieval.PapersDir, "images_3_2024-01-02"))
}

func TestProcessPaper_StageErrors(t *testing.T) {
	ts, _ := pdfServer(t)

	tests := []struct {
		name      string
		paper     types.Paper
		convErr   error
		sumErr    error
		wantStage string
		wantErr   error
	}{
		{
			name:      "no link",
			paper:     types.Paper{ID: 1, Title: "Nowhere"},
			wantStage: StageRetrieve,
			wantErr:   types.ErrNoLink,
		},
		{
			name:      "conversion fails",
			paper:     types.Paper{ID: 2, Title: "Bad OCR", PaperLink: ts.URL + "/ok.pdf"},
			convErr:   fmt.Errorf("upstream: %w", types.ErrRemoteService),
			wantStage: StageConvert,
			wantErr:   types.ErrRemoteService,
		},
		{
			name:      "summarizer fails",
			paper:     types.Paper{ID: 3, Title: "Quiet LLM", PaperLink: ts.URL + "/ok.pdf"},
			sumErr:    fmt.Errorf("empty reply: %w", types.ErrRemoteService),
			wantStage: StageSummarize,
			wantErr:   types.ErrRemoteService,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, imageDoc())
			f.backend.err = tt.convErr
			p := f.pipeline(Deps{Summarizer: echoSummarizer{err: tt.sumErr}})

			_, err := p.ProcessPaper(context.Background(), tt.paper)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var se *StageError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.wantStage, se.Stage)
			assert.NoFileExists(t, SummaryPath(f.cfg.SummariesDir, tt.paper.ID, "2024-01-02"))
		})
	}
}

func TestProcessBatch_DownloadFailureContinues(t *testing.T) {
	ts, badCalls := pdfServer(t)
	f := newFixture(t, imageDoc())
	p := f.pipeline(Deps{})

	papers := []types.Paper{
		{ID: 1, Title: "Unreachable", PaperLink: ts.URL + "/bad.pdf"},
		{ID: 2, Title: "Reachable", PaperLink: ts.URL + "/ok.pdf"},
	}
	result := p.ProcessBatch(context.Background(), papers)

	assert.Equal(t, 1, result.Summarized)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, result.HasFailures())
	assert.Equal(t, int32(3), atomic.LoadInt32(badCalls))

	assert.NoFileExists(t, SummaryPath(f.cfg.SummariesDir, 1, "2024-01-02"))
	assert.FileExists(t, SummaryPath(f.cfg.SummariesDir, 2, "2024-01-02"))
	require.Len(t, result.Summaries, 1)
	assert.Equal(t, int64(2), result.Summaries[0].PaperID)

	// The failed paper never reached conversion.
	require.Len(t, f.backend.calls, 1)
	assert.Contains(t, f.backend.calls[0], filepath.Join("raw", "2"))

	out := f.out.String()
	assert.Contains(t, out, "failed:     [1] Unreachable")
	assert.Contains(t, out, "summarized: [2] Reachable")
	assert.Contains(t, out, "Batch summary: 1 summarized, 1 failed (total: 2)")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PapersTotal.WithLabelValues(StageRetrieve, metrics.OutcomeFailure)))
}

func TestWriteDigest(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteDigest(dir, "2024-01-02", []Summary{{Text: "first"}, {Text: "second"}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "paper_digest_2024-01-02.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Paper Digest Summary - 2024-01-02\n\nfirst\n\n---\n\nsecond\n\n---\n\n", string(data))
}

func TestWriteDigest_Empty(t *testing.T) {
	path, err := WriteDigest(t.TempDir(), "2024-01-02", nil)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Paper Digest Summary - 2024-01-02"))
	assert.NotContains(t, string(data), "---")
}
