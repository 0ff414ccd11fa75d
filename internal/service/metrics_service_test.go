package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-tracker-api/internal/models"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()

	m.ObserveRecompute(nil, 20*time.Millisecond)
	m.ObserveRecompute(errors.New("boom"), time.Millisecond)
	m.ObserveActivity(models.CategoryReading)
	m.ObserveNotification("telegram", nil)
	m.ObserveHTTPRequest("GET", "/api/v1/leaderboard", 200, 10*time.Millisecond)
	m.ObserveDBQuery("dashboard_admin", 4*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.recomputeTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recomputeTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activityTotal.WithLabelValues("reading")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifyTotal.WithLabelValues("telegram", "sent")))

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.ScoreRecomputations)
	assert.Equal(t, uint64(1), snap.RequestsTotal)
	assert.InDelta(t, 10.0, snap.AverageRequestDurationMs, 0.001)
	assert.InDelta(t, 4.0, snap.AverageDBQueryDurationMs, 0.001)
}

func TestMetricsServiceHandlerExposesRegistry(t *testing.T) {
	m := NewMetricsService()
	m.ObserveActivity(models.CategoryStar)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `student_tracker_activity_records_total{category="star"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveRecompute(nil, time.Second)
	m.RecordCacheOperation(true, time.Millisecond)
	assert.False(t, m.Snapshot().GeneratedAt.IsZero())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
