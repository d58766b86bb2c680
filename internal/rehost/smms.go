// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// smmsBaseURL is the sm.ms API base. Package-level var for test substitution.
var smmsBaseURL = "https://sm.ms/api/v2"

// smmsCodeRepeated is returned when the same image was uploaded before;
// the response then carries the existing URL in the images field.
const smmsCodeRepeated = "image_repeated"

const smmsMaxRetries = 3

// SMMSHost uploads images to sm.ms.
type SMMSHost struct {
	Token   string
	BaseURL string
	Client  *http.Client
}

// NewSMMSHost creates an sm.ms client from cfg.
func NewSMMSHost(cfg types.ImageHostConfig) *SMMSHost {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	h := &SMMSHost{
		Token:   cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Client:  &http.Client{Timeout: timeout},
	}
	if h.BaseURL == "" {
		h.BaseURL = smmsBaseURL
	}
	return h
}

type smmsResponse struct {
	Success bool     `json:"success"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Data    smmsData `json:"data"`
	Images  string   `json:"images"`
}

type smmsData struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Upload posts the file as the smfile form field and returns its URL.
func (h *SMMSHost) Upload(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image %s: %w", path, err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("smfile", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("writing form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("writing form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("writing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/upload", bytes.NewReader(buf.Bytes()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", h.Token)

	resp, err := httputil.DoWithRetry(ctx, h.Client, req, smmsMaxRetries)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", filepath.Base(path), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var sr smmsResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("sm.ms returned %d: %s: %w", resp.StatusCode, string(body), types.ErrRemoteService)
		}
		return "", fmt.Errorf("decoding sm.ms response: %w: %w", types.ErrSchemaMismatch, err)
	}

	switch {
	case sr.Success && resp.StatusCode == http.StatusOK:
		if sr.Data.URL == "" {
			return "", fmt.Errorf("sm.ms response has no url: %w", types.ErrSchemaMismatch)
		}
		return sr.Data.URL, nil
	case sr.Code == smmsCodeRepeated && sr.Images != "":
		return sr.Images, nil
	default:
		msg := sr.Message
		if msg == "" {
			msg = "unknown error"
		}
		return "", fmt.Errorf("sm.ms upload failed (%d, %s): %s: %w", resp.StatusCode, sr.Code, msg, types.ErrRemoteService)
	}
}
