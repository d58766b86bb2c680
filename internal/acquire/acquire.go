// Package acquire retrieves paper PDFs over unreliable networks. It resolves
// a paper page to a document link, streams the download to disk, and
// retries with proxy and timeout fallback according to a Schedule.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/internal/metrics"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// ExhaustedError is returned when every attempt in the schedule failed. It
// carries the canonical link if one was resolved before giving up.
type ExhaustedError struct {
	Attempts     int
	CanonicalURL string
	Err          error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("download failed after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap exposes both the exhaustion sentinel and the last attempt's error.
func (e *ExhaustedError) Unwrap() []error {
	return []error{types.ErrDownloadExhausted, e.Err}
}

// Retriever downloads documents according to a RetrievalConfig.
type Retriever struct {
	cfg     types.RetrievalConfig
	log     zerolog.Logger
	metrics *metrics.Metrics

	// newClient builds the client for one attempt. Tests replace it to
	// observe per-attempt parameters.
	newClient func(timeout time.Duration, useProxy bool) *http.Client
}

// NewRetriever creates a Retriever. m may be nil.
func NewRetriever(cfg types.RetrievalConfig, log zerolog.Logger, m *metrics.Metrics) *Retriever {
	r := &Retriever{cfg: cfg, log: log, metrics: m}
	r.newClient = func(timeout time.Duration, useProxy bool) *http.Client {
		return httputil.NewClient(timeout, cfg.Proxy, useProxy)
	}
	return r
}

// Retrieve resolves sourceURL to a document link and downloads it into
// outputDir. Page resolution happens once, inside the first attempt that
// gets a response; later attempts reuse the resolved links.
//
// A page without a document link returns types.ErrNoLink immediately. When
// all attempts fail the error is an *ExhaustedError and the returned result
// still carries CanonicalURL if it was resolved.
func (r *Retriever) Retrieve(ctx context.Context, sourceURL, outputDir string) (types.RetrievalResult, error) {
	result := types.RetrievalResult{SourceURL: sourceURL}
	sched := NewSchedule(r.cfg.MaxAttempts, r.cfg.InitialTimeout)

	links, resolved := DirectLinks(sourceURL)
	result.CanonicalURL = links.Canonical

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return result, fmt.Errorf("creating directory %s: %w", outputDir, err)
	}

	timedOut := 0
	var lastErr error
	for _, a := range sched.Attempts {
		timeout := sched.Timeout(timedOut)
		client := r.newClient(timeout, a.UseProxy)
		log := r.log.With().
			Int("attempt", a.Number).
			Int("max_attempts", len(sched.Attempts)).
			Dur("timeout", timeout).
			Bool("proxy", a.UseProxy).
			Logger()

		err := func() error {
			if !resolved {
				l, err := r.resolve(ctx, client, sourceURL)
				if err != nil {
					return err
				}
				links, resolved = l, true
				result.CanonicalURL = links.Canonical
			}
			log.Info().Str("url", links.Document).Msg("downloading")
			localPath, finalURL, err := r.download(ctx, client, links.Document, outputDir)
			if err != nil {
				return err
			}
			result.LocalPath = localPath
			result.ResolvedURL = finalURL
			return nil
		}()

		if err == nil {
			r.metrics.ObserveAttempt(metrics.OutcomeSuccess, a.UseProxy)
			log.Info().Str("path", result.LocalPath).Msg("downloaded")
			return result, nil
		}
		if errors.Is(err, types.ErrNoLink) {
			r.metrics.ObserveAttempt(metrics.OutcomeSkipped, a.UseProxy)
			log.Warn().Str("url", sourceURL).Msg("no document link found")
			return result, err
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		lastErr = err
		if isTimeout(err) {
			timedOut++
			r.metrics.ObserveAttempt(metrics.OutcomeTimeout, a.UseProxy)
			log.Warn().Err(err).Msg("attempt timed out")
		} else {
			r.metrics.ObserveAttempt(metrics.OutcomeFailure, a.UseProxy)
			log.Warn().Err(err).Msg("attempt failed")
		}
	}

	return result, &ExhaustedError{
		Attempts:     len(sched.Attempts),
		CanonicalURL: result.CanonicalURL,
		Err:          lastErr,
	}
}

// resolve fetches the paper page and extracts its links.
func (r *Retriever) resolve(ctx context.Context, client *http.Client, pageURL string) (Links, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return Links{}, fmt.Errorf("parsing page URL %q: %w", pageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Links{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return Links{}, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Links{}, fmt.Errorf("HTTP %d from %s: %w", resp.StatusCode, pageURL, types.ErrTransientNetwork)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Links{}, fmt.Errorf("parsing page: %w", err)
	}

	// Resolve relative links against the post-redirect page URL.
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}
	links := ExtractLinks(doc, base)
	if links.Document == "" {
		return links, fmt.Errorf("%s: %w", pageURL, types.ErrNoLink)
	}
	return links, nil
}

// download streams docURL into outputDir through a temporary file that is
// renamed on success, so a failed attempt never leaves a partial document
// under the final name. It returns the local path and the final URL after
// redirects.
func (r *Retriever) download(ctx context.Context, client *http.Client, docURL, outputDir string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("HTTP %d from %s: %w", resp.StatusCode, docURL, types.ErrTransientNetwork)
	}

	destPath := filepath.Join(outputDir, FileName(docURL))

	tmpFile, err := os.CreateTemp(outputDir, ".acquire-*.tmp")
	if err != nil {
		return "", "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("renaming temp file: %w", err)
	}

	finalURL := docURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return destPath, finalURL, nil
}

// isTimeout reports whether err came from an attempt deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// WriteMetadata writes an acquisition record to a YAML file.
func WriteMetadata(rec types.AcquisitionRecord, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadMetadata reads an acquisition record from a YAML file.
func ReadMetadata(path string) (types.AcquisitionRecord, error) {
	var rec types.AcquisitionRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parsing metadata %s: %w", path, err)
	}
	return rec, nil
}
