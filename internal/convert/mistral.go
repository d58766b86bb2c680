// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// mistralBaseURL is the Mistral API host. Package-level var for test substitution.
var mistralBaseURL = "https://api.mistral.ai"

const defaultMistralModel = "mistral-ocr-latest"

// dataURIPrefix matches the "data:image/png;base64," prefix of inline images.
var dataURIPrefix = regexp.MustCompile(`^data:[^,]*;base64,`)

// MistralBackend converts PDFs with the Mistral OCR API: the PDF is uploaded
// as a file, a signed URL is requested for it, and the OCR endpoint
// processes that URL with inline image payloads.
type MistralBackend struct {
	APIKey  string
	BaseURL string
	Model   string
	Client  *http.Client
}

// NewMistralBackend creates a Mistral OCR backend from cfg, applying defaults.
func NewMistralBackend(cfg types.ConversionConfig) *MistralBackend {
	b := &MistralBackend{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Client:  &http.Client{Timeout: cfg.Timeout},
	}
	if b.BaseURL == "" {
		b.BaseURL = mistralBaseURL
	}
	if b.Model == "" {
		b.Model = defaultMistralModel
	}
	return b
}

func (m *MistralBackend) Kind() types.ConversionBackend { return types.BackendMistralOCR }

type mistralFile struct {
	ID string `json:"id"`
}

type mistralSignedURL struct {
	URL string `json:"url"`
}

type mistralOCRRequest struct {
	Model              string             `json:"model"`
	Document           mistralOCRDocument `json:"document"`
	IncludeImageBase64 bool               `json:"include_image_base64"`
}

type mistralOCRDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type mistralOCRResponse struct {
	Pages []mistralPage `json:"pages"`
}

type mistralPage struct {
	Index    int            `json:"index"`
	Markdown *string        `json:"markdown"`
	Images   []mistralImage `json:"images"`
}

type mistralImage struct {
	ID          string `json:"id"`
	ImageBase64 string `json:"image_base64"`
}

// Convert uploads the PDF, resolves a signed URL, and runs OCR on it.
func (m *MistralBackend) Convert(ctx context.Context, pdfPath string) (types.CanonicalDocument, error) {
	fileID, err := m.upload(ctx, pdfPath)
	if err != nil {
		return types.CanonicalDocument{}, err
	}
	signed, err := m.signedURL(ctx, fileID)
	if err != nil {
		return types.CanonicalDocument{}, err
	}

	body, err := json.Marshal(mistralOCRRequest{
		Model:              m.Model,
		Document:           mistralOCRDocument{Type: "document_url", DocumentURL: signed},
		IncludeImageBase64: true,
	})
	if err != nil {
		return types.CanonicalDocument{}, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+"/v1/ocr", bytes.NewReader(body))
	if err != nil {
		return types.CanonicalDocument{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp mistralOCRResponse
	if err := m.call(ctx, req, "ocr", &resp); err != nil {
		return types.CanonicalDocument{}, err
	}
	return mistralDocument(resp, pdfPath)
}

// mistralDocument maps OCR pages to canonical pages. Images without an
// inline payload are expected as files named by their id next to the PDF.
func mistralDocument(resp mistralOCRResponse, pdfPath string) (types.CanonicalDocument, error) {
	if resp.Pages == nil {
		return types.CanonicalDocument{}, fmt.Errorf("mistral ocr response has no pages: %w", types.ErrSchemaMismatch)
	}
	dir := filepath.Dir(pdfPath)
	doc := types.CanonicalDocument{Pages: make([]types.Page, 0, len(resp.Pages))}
	for i, p := range resp.Pages {
		if p.Markdown == nil {
			return types.CanonicalDocument{}, fmt.Errorf("mistral page %d has no markdown field: %w", i, types.ErrSchemaMismatch)
		}
		page := types.Page{Index: p.Index, Markdown: *p.Markdown}
		for _, img := range p.Images {
			payload := dataURIPrefix.ReplaceAllString(img.ImageBase64, "")
			ei := types.EmbeddedImage{ID: img.ID, Base64: payload}
			if payload == "" {
				ei.SourcePath = filepath.Join(dir, img.ID)
			}
			page.Images = append(page.Images, ei)
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

// upload sends the PDF to the files endpoint with purpose "ocr".
func (m *MistralBackend) upload(ctx context.Context, pdfPath string) (string, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", fmt.Errorf("reading PDF %s: %w", pdfPath, err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", "ocr"); err != nil {
		return "", fmt.Errorf("writing form: %w", err)
	}
	part, err := mw.CreateFormFile("file", filepath.Base(pdfPath))
	if err != nil {
		return "", fmt.Errorf("writing form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("writing form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("writing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+"/v1/files", bytes.NewReader(buf.Bytes()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var f mistralFile
	if err := m.call(ctx, req, "file upload", &f); err != nil {
		return "", err
	}
	if f.ID == "" {
		return "", fmt.Errorf("mistral file upload returned no id: %w", types.ErrSchemaMismatch)
	}
	return f.ID, nil
}

func (m *MistralBackend) signedURL(ctx context.Context, fileID string) (string, error) {
	u := m.BaseURL + "/v1/files/" + url.PathEscape(fileID) + "/url?expiry=24"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	var s mistralSignedURL
	if err := m.call(ctx, req, "signed url", &s); err != nil {
		return "", err
	}
	if s.URL == "" {
		return "", fmt.Errorf("mistral signed url response has no url: %w", types.ErrSchemaMismatch)
	}
	return s.URL, nil
}

func (m *MistralBackend) call(ctx context.Context, req *http.Request, what string, v any) error {
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, m.Client, req, apiMaxRetries)
	if err != nil {
		return fmt.Errorf("mistral %s: %w", what, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mistral %s returned %d: %s: %w", what, resp.StatusCode, string(body), types.ErrRemoteService)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return schemaError("mistral "+what, err)
	}
	return nil
}
