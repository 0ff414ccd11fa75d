package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-tracker-api/internal/models"
	appErrors "github.com/noah-isme/student-tracker-api/pkg/errors"
)

type fakeActivitySrv struct {
	filter    models.ActivityFilter
	req       models.CreateActivityRequest
	recordErr error
}

func (f *fakeActivitySrv) Record(_ context.Context, _ *models.JWTClaims, studentID string, req models.CreateActivityRequest) (*models.ActivityResult, error) {
	f.req = req
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	return &models.ActivityResult{
		Record:  models.ActivityRecord{ID: "r1", StudentID: studentID, Category: req.Category},
		Summary: models.ScoreSummary{StudentID: studentID, TotalScore: 5},
	}, nil
}

func (f *fakeActivitySrv) List(_ context.Context, _ *models.JWTClaims, _ string, filter models.ActivityFilter) ([]models.ActivityRecord, *models.Pagination, error) {
	f.filter = filter
	return nil, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func TestActivityHandlerListFilters(t *testing.T) {
	srv := &fakeActivitySrv{}
	handler := NewActivityHandler(srv, nil)

	c, rec := newTestContext(http.MethodGet, "/students/s1/activities?category=reading,Homework&category=star&from=2025-09-01&to=2025-09-30")
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.ActivityCategory{models.CategoryReading, models.CategoryHomework, models.CategoryStar}, srv.filter.Categories)
	require.NotNil(t, srv.filter.DateFrom)
	require.NotNil(t, srv.filter.DateTo)
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), *srv.filter.DateFrom)
	assert.Equal(t, 30, srv.filter.DateTo.Day())
	assert.Equal(t, 23, srv.filter.DateTo.Hour())
}

func TestActivityHandlerListReadsDatesInSchoolZone(t *testing.T) {
	school := time.FixedZone("TRT", 3*60*60)
	srv := &fakeActivitySrv{}
	handler := NewActivityHandler(srv, school)

	c, rec := newTestContext(http.MethodGet, "/students/s1/activities?from=2025-09-01&to=2025-09-01")
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.filter.DateFrom)
	require.NotNil(t, srv.filter.DateTo)
	assert.True(t, srv.filter.DateFrom.Equal(time.Date(2025, 8, 31, 21, 0, 0, 0, time.UTC)))
	assert.True(t, srv.filter.DateTo.Equal(time.Date(2025, 9, 1, 20, 59, 59, 999999999, time.UTC)))

	early := time.Date(2025, 9, 1, 1, 30, 0, 0, school)
	assert.False(t, early.Before(*srv.filter.DateFrom), "a record logged just after local midnight belongs to the day")
}

func TestActivityHandlerListRejectsBadDate(t *testing.T) {
	handler := NewActivityHandler(&fakeActivitySrv{}, nil)

	c, rec := newTestContext(http.MethodGet, "/students/s1/activities?from=01.09.2025")
	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivityHandlerRecord(t *testing.T) {
	srv := &fakeActivitySrv{}
	handler := NewActivityHandler(srv, nil)

	body := `{"category":"reading","occurred_at":"2025-10-02T09:00:00Z","status":"done","page_count":50}`
	c, rec := newTestContext(http.MethodPost, "/students/s1/activities")
	c.Request = httptest.NewRequest(http.MethodPost, "/students/s1/activities", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = append(c.Params, ginParam("id", "s1"))
	handler.Record(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, srv.req.PageCount)
	assert.Equal(t, 50, *srv.req.PageCount)
	assert.Contains(t, rec.Body.String(), `"total_score":5`)
}

func TestActivityHandlerRecordInvalidRecord(t *testing.T) {
	handler := NewActivityHandler(&fakeActivitySrv{recordErr: appErrors.Clone(appErrors.ErrInvalidRecord, "misconduct carries no magnitude")}, nil)

	c, rec := newTestContext(http.MethodPost, "/students/s1/activities")
	c.Request = httptest.NewRequest(http.MethodPost, "/students/s1/activities", bytes.NewBufferString(`{"category":"misconduct","occurred_at":"2025-10-02T09:00:00Z","star_count":1}`))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.Record(c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
