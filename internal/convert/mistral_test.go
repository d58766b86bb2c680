// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/pkg/types"
)

func mistralServer(t *testing.T, ocrBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/files":
			if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
				return
			}
			assert.Equal(t, "ocr", r.FormValue("purpose"))
			f, hdr, err := r.FormFile("file")
			if !assert.NoError(t, err) {
				return
			}
			data, _ := io.ReadAll(f)
			assert.Equal(t, "a.pdf", hdr.Filename)
			assert.Equal(t, "%PDF-1.4 fake", string(data))
			fmt.Fprint(w, `{"id":"file-9","purpose":"ocr"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/files/file-9/url":
			fmt.Fprint(w, `{"url":"https://signed.example/file-9"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/ocr":
			var req mistralOCRRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "mistral-ocr-latest", req.Model)
			assert.Equal(t, "document_url", req.Document.Type)
			assert.Equal(t, "https://signed.example/file-9", req.Document.DocumentURL)
			assert.True(t, req.IncludeImageBase64)
			fmt.Fprint(w, ocrBody)
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestMistral(baseURL string) *MistralBackend {
	return NewMistralBackend(types.ConversionConfig{APIKey: "test-key", BaseURL: baseURL})
}

func TestMistral_Convert(t *testing.T) {
	pdfPath, _ := setupPDF(t, "a.pdf")
	ts := mistralServer(t, `{"pages":[
		{"index":0,"markdown":"# Title\n![img-0.jpeg](img-0.jpeg)","images":[
			{"id":"img-0.jpeg","image_base64":"data:image/jpeg;base64,/9j/4AAQ"}
		]},
		{"index":1,"markdown":"![img-1.png](img-1.png)","images":[
			{"id":"img-1.png","image_base64":""}
		]}
	]}`)
	defer ts.Close()

	doc, err := newTestMistral(ts.URL).Convert(context.Background(), pdfPath)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 2)

	img0 := doc.Pages[0].Images[0]
	assert.Equal(t, "img-0.jpeg", img0.ID)
	assert.Equal(t, "/9j/4AAQ", img0.Base64, "data URI prefix is stripped")
	assert.Empty(t, img0.SourcePath)

	img1 := doc.Pages[1].Images[0]
	assert.Empty(t, img1.Base64)
	assert.Equal(t, filepath.Join(filepath.Dir(pdfPath), "img-1.png"), img1.SourcePath)
}

func TestMistral_SchemaMismatch(t *testing.T) {
	for name, body := range map[string]string{
		"no pages":         `{"model":"mistral-ocr-latest"}`,
		"page no markdown": `{"pages":[{"index":0}]}`,
		"not json":         `not json`,
	} {
		t.Run(name, func(t *testing.T) {
			pdfPath, _ := setupPDF(t, "a.pdf")
			ts := mistralServer(t, body)
			defer ts.Close()

			_, err := newTestMistral(ts.URL).Convert(context.Background(), pdfPath)
			assert.ErrorIs(t, err, types.ErrSchemaMismatch)
		})
	}
}

func TestMistral_RemoteError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"quota exceeded"}`, http.StatusPaymentRequired)
	}))
	defer ts.Close()

	pdfPath, _ := setupPDF(t, "a.pdf")
	_, err := newTestMistral(ts.URL).Convert(context.Background(), pdfPath)
	assert.ErrorIs(t, err, types.ErrRemoteService)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestDataURIPrefix(t *testing.T) {
	assert.Equal(t, "abc", dataURIPrefix.ReplaceAllString("data:image/png;base64,abc", ""))
	assert.Equal(t, "abc", dataURIPrefix.ReplaceAllString("abc", ""))
	assert.Equal(t, "xdata:image/png;base64,abc", dataURIPrefix.ReplaceAllString("xdata:image/png;base64,abc", ""))
}
