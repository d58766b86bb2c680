// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// doc2xBaseURL is the doc2x API host. Package-level var for test substitution.
var doc2xBaseURL = "https://v2.doc2x.noedgeai.com"

const (
	doc2xCodeSuccess = "success"

	doc2xStatusProcessing = "processing"
	doc2xStatusSuccess    = "success"
	doc2xStatusFailed     = "failed"

	defaultPollInterval = 3 * time.Second
	defaultMaxPolls     = 1000
	apiMaxRetries       = 3
)

// Doc2xBackend converts PDFs with the doc2x parse API: a pre-upload
// handshake returns a signed URL, the PDF is PUT there, and the job status
// is polled until it succeeds or fails.
type Doc2xBackend struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	MaxPolls     int
	Client       *http.Client
}

// NewDoc2xBackend creates a doc2x backend from cfg, applying defaults.
func NewDoc2xBackend(cfg types.ConversionConfig) *Doc2xBackend {
	b := &Doc2xBackend{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		PollInterval: cfg.PollInterval,
		MaxPolls:     cfg.MaxPolls,
		Client:       &http.Client{Timeout: cfg.Timeout},
	}
	if b.BaseURL == "" {
		b.BaseURL = doc2xBaseURL
	}
	if b.PollInterval <= 0 {
		b.PollInterval = defaultPollInterval
	}
	if b.MaxPolls <= 0 {
		b.MaxPolls = defaultMaxPolls
	}
	return b
}

func (d *Doc2xBackend) Kind() types.ConversionBackend { return types.BackendDoc2x }

// doc2xEnvelope is the common wrapper of every doc2x API response.
type doc2xEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type doc2xPreupload struct {
	UID string `json:"uid"`
	URL string `json:"url"`
}

type doc2xStatus struct {
	Status   string       `json:"status"`
	Progress int          `json:"progress"`
	Detail   string       `json:"detail"`
	Result   *doc2xResult `json:"result"`
}

type doc2xResult struct {
	Pages []doc2xPage `json:"pages"`
}

type doc2xPage struct {
	PageIdx *int    `json:"page_idx"`
	MD      *string `json:"md"`
}

// Convert uploads the PDF and waits for the parse job to finish.
func (d *Doc2xBackend) Convert(ctx context.Context, pdfPath string) (types.CanonicalDocument, error) {
	pre, err := d.preupload(ctx)
	if err != nil {
		return types.CanonicalDocument{}, err
	}
	if err := d.putFile(ctx, pdfPath, pre.URL); err != nil {
		return types.CanonicalDocument{}, err
	}

	for i := 0; i < d.MaxPolls; i++ {
		st, err := d.status(ctx, pre.UID)
		if err != nil {
			return types.CanonicalDocument{}, err
		}
		switch st.Status {
		case doc2xStatusSuccess:
			return doc2xDocument(st.Result)
		case doc2xStatusFailed:
			return types.CanonicalDocument{}, fmt.Errorf("doc2x parse failed: %s: %w", st.Detail, types.ErrRemoteService)
		case doc2xStatusProcessing:
		default:
			return types.CanonicalDocument{}, fmt.Errorf("doc2x status %q: %w", st.Status, types.ErrSchemaMismatch)
		}

		select {
		case <-ctx.Done():
			return types.CanonicalDocument{}, ctx.Err()
		case <-time.After(d.PollInterval):
		}
	}
	return types.CanonicalDocument{}, fmt.Errorf("doc2x job %s unfinished after %d polls: %w", pre.UID, d.MaxPolls, types.ErrRemoteService)
}

func doc2xDocument(res *doc2xResult) (types.CanonicalDocument, error) {
	if res == nil || res.Pages == nil {
		return types.CanonicalDocument{}, fmt.Errorf("doc2x result has no pages: %w", types.ErrSchemaMismatch)
	}
	doc := types.CanonicalDocument{Pages: make([]types.Page, 0, len(res.Pages))}
	for i, p := range res.Pages {
		if p.MD == nil {
			return types.CanonicalDocument{}, fmt.Errorf("doc2x page %d has no md field: %w", i, types.ErrSchemaMismatch)
		}
		idx := i
		if p.PageIdx != nil {
			idx = *p.PageIdx
		}
		doc.Pages = append(doc.Pages, types.Page{Index: idx, Markdown: *p.MD})
	}
	return doc, nil
}

func (d *Doc2xBackend) preupload(ctx context.Context) (doc2xPreupload, error) {
	var pre doc2xPreupload
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+"/api/v2/parse/preupload", nil)
	if err != nil {
		return pre, fmt.Errorf("creating request: %w", err)
	}
	if err := d.call(ctx, req, "preupload", &pre); err != nil {
		return pre, err
	}
	if pre.UID == "" || pre.URL == "" {
		return pre, fmt.Errorf("doc2x preupload missing uid or url: %w", types.ErrSchemaMismatch)
	}
	return pre, nil
}

func (d *Doc2xBackend) status(ctx context.Context, uid string) (doc2xStatus, error) {
	var st doc2xStatus
	u := d.BaseURL + "/api/v2/parse/status?uid=" + url.QueryEscape(uid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return st, fmt.Errorf("creating request: %w", err)
	}
	err = d.call(ctx, req, "status", &st)
	return st, err
}

// call sends an authorized request and decodes the envelope's data into v.
func (d *Doc2xBackend) call(ctx context.Context, req *http.Request, what string, v any) error {
	req.Header.Set("Authorization", "Bearer "+d.APIKey)

	resp, err := httputil.DoWithRetry(ctx, d.Client, req, apiMaxRetries)
	if err != nil {
		return fmt.Errorf("doc2x %s: %w", what, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("doc2x %s returned %d: %s: %w", what, resp.StatusCode, string(body), types.ErrRemoteService)
	}

	var env doc2xEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return schemaError("doc2x "+what, err)
	}
	if env.Code != doc2xCodeSuccess {
		return fmt.Errorf("doc2x %s: code %q: %s: %w", what, env.Code, env.Msg, types.ErrRemoteService)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return schemaError("doc2x "+what+" data", err)
	}
	return nil
}

// putFile streams the PDF to the pre-signed upload URL.
func (d *Doc2xBackend) putFile(ctx context.Context, pdfPath, uploadURL string) error {
	f, err := os.Open(pdfPath)
	if err != nil {
		return fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", pdfPath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, f)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.ContentLength = info.Size()

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("uploading PDF: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload returned %d: %s: %w", resp.StatusCode, string(body), types.ErrRemoteService)
	}
	return nil
}
