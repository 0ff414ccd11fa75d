package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-tracker-api/internal/models"
	"github.com/noah-isme/student-tracker-api/pkg/jobs"
)

type fakeScoreSrv struct {
	async     bool
	format    models.ExportFormat
	entries   []models.LeaderboardEntry
	hit       bool
	recompute *models.RecomputeResult
}

func (f *fakeScoreSrv) Recompute(_ context.Context, _ *models.JWTClaims, studentID string) (*models.ScoreSummary, error) {
	return &models.ScoreSummary{StudentID: studentID, TotalScore: 4.32}, nil
}

func (f *fakeScoreSrv) RecomputeScoped(_ context.Context, _ *models.JWTClaims, async bool) (*models.RecomputeResult, error) {
	f.async = async
	return f.recompute, nil
}

func (f *fakeScoreSrv) JobStatus(id string) (*jobs.Status, error) {
	return &jobs.Status{ID: id, State: jobs.StateSucceeded}, nil
}

func (f *fakeScoreSrv) Leaderboard(context.Context, *models.JWTClaims) ([]models.LeaderboardEntry, bool, error) {
	return f.entries, f.hit, nil
}

func (f *fakeScoreSrv) ExportLeaderboard(_ context.Context, _ *models.JWTClaims, format models.ExportFormat) (*models.ExportFile, error) {
	f.format = format
	return &models.ExportFile{Filename: "leaderboard.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}, nil
}

func TestScoreHandlerRecomputeAllAsync(t *testing.T) {
	srv := &fakeScoreSrv{recompute: &models.RecomputeResult{JobID: "job-1"}}
	handler := NewScoreHandler(srv)

	c, rec := newTestContext(http.MethodPost, "/scores/recompute?async=true")
	handler.RecomputeAll(c)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, srv.async)
	assert.Contains(t, rec.Body.String(), "job-1")
}

func TestScoreHandlerRecomputeAllRejectsBadFlag(t *testing.T) {
	handler := NewScoreHandler(&fakeScoreSrv{})

	c, rec := newTestContext(http.MethodPost, "/scores/recompute?async=maybe")
	handler.RecomputeAll(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScoreHandlerExport(t *testing.T) {
	srv := &fakeScoreSrv{}
	handler := NewScoreHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/scores/leaderboard/export?format=PDF")
	handler.Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ExportFormatPDF, srv.format)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="leaderboard.pdf"`)

	c, rec = newTestContext(http.MethodGet, "/scores/leaderboard/export?format=docx")
	handler.Export(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScoreHandlerLeaderboardMarksMiss(t *testing.T) {
	handler := NewScoreHandler(&fakeScoreSrv{entries: []models.LeaderboardEntry{{Rank: 1, StudentID: "s1"}}})

	c, rec := newTestContext(http.MethodGet, "/scores/leaderboard")
	handler.Leaderboard(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Body.String(), `"rank":1`)
}
