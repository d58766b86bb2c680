// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/pkg/types"
)

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveAttempt(OutcomeTimeout, true)
	m.ObserveAttempt(OutcomeSuccess, false)
	m.ObserveUpload(OutcomeFailure)
	m.ObservePaper("saved", OutcomeSuccess)
	m.ObserveConversion(types.BackendMistralOCR, OutcomeSuccess)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DownloadAttemptsTotal.WithLabelValues(OutcomeTimeout, "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DownloadAttemptsTotal.WithLabelValues(OutcomeSuccess, "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImageUploadsTotal.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PapersTotal.WithLabelValues("saved", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConversionsTotal.WithLabelValues("mistral_ocr", OutcomeSuccess)))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAttempt(OutcomeSuccess, false)
	m.ObserveUpload(OutcomeSuccess)
	m.ObservePaper("saved", OutcomeSuccess)
	assert.NoError(t, m.Push(types.MetricsConfig{PushgatewayURL: "http://unused"}))
}

func TestPush(t *testing.T) {
	var hits int32
	var path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	m := New()
	m.ObservePaper("saved", OutcomeSuccess)

	require.NoError(t, m.Push(types.MetricsConfig{PushgatewayURL: ts.URL}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.True(t, strings.HasSuffix(path, "/job/paper_digest"), path)

	// No URL configured: nothing is sent.
	require.NoError(t, New().Push(types.MetricsConfig{}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
