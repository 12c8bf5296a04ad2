package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCheck(t *testing.T) {
	m := New()
	m.ObserveCheck("code", ResultAvailable, 3, 10*time.Millisecond)
	m.ObserveCheck("code", ResultSkipped, 0, 0)
	m.ObserveCheck("code", ResultFailed, 0, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.checks.WithLabelValues("code", ResultAvailable)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checks.WithLabelValues("code", ResultSkipped)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.pending.WithLabelValues("code")))
}

func TestObserveDownload(t *testing.T) {
	m := New()
	m.ObserveDownload("content", StatusSucceeded, 100)
	m.ObserveDownload("content", StatusFailed, 50)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.downloads.WithLabelValues("content", StatusSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.downloads.WithLabelValues("content", StatusFailed)))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.bytes.WithLabelValues("content")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCheck("code", ResultAvailable, 1, time.Second)
	m.ObserveDownload("code", StatusSucceeded, 1)
	m.ObserveApply("script", "reload-required")
	m.SetPendingReload(true)
	assert.Nil(t, m.Registry())
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveApply("stylesheet", "hot-apply")
	m.SetPendingReload(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "assetsync_apply_total"))
	assert.True(t, strings.Contains(body, "assetsync_apply_pending_reload 1"))
}
