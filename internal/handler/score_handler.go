package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-tracker-api/internal/middleware"
	"github.com/noah-isme/student-tracker-api/internal/models"
	"github.com/noah-isme/student-tracker-api/internal/service"
	"github.com/noah-isme/student-tracker-api/pkg/jobs"
	"github.com/noah-isme/student-tracker-api/pkg/response"
)

type scoreService interface {
	Recompute(ctx context.Context, session *models.JWTClaims, studentID string) (*models.ScoreSummary, error)
	RecomputeScoped(ctx context.Context, session *models.JWTClaims, async bool) (*models.RecomputeResult, error)
	JobStatus(id string) (*jobs.Status, error)
	Leaderboard(ctx context.Context, session *models.JWTClaims) ([]models.LeaderboardEntry, bool, error)
	ExportLeaderboard(ctx context.Context, session *models.JWTClaims, format models.ExportFormat) (*models.ExportFile, error)
}

// ScoreHandler exposes recomputation, the leaderboard and its exports.
type ScoreHandler struct {
	scores scoreService
}

// NewScoreHandler constructs ScoreHandler.
func NewScoreHandler(scores scoreService) *ScoreHandler {
	return &ScoreHandler{scores: scores}
}

// RecomputeStudent godoc
// @Summary Recompute one student's score
// @Tags Scores
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/score/recompute [post]
func (h *ScoreHandler) RecomputeStudent(c *gin.Context) {
	summary, err := h.scores.Recompute(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// RecomputeAll godoc
// @Summary Recompute every score in scope
// @Description Teachers cover their roster, admins every student. async=true queues the work.
// @Tags Scores
// @Produce json
// @Param async query bool false "Queue instead of waiting"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Security BearerAuth
// @Router /scores/recompute [post]
func (h *ScoreHandler) RecomputeAll(c *gin.Context) {
	async, err := queryBool(c, "async")
	if err != nil {
		response.Error(c, err)
		return
	}
	queued := async != nil && *async

	result, err := h.scores.RecomputeScoped(c.Request.Context(), claimsFromContext(c), queued)
	if err != nil {
		response.Error(c, err)
		return
	}
	if queued {
		response.Accepted(c, result)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// JobStatus godoc
// @Summary Status of a queued recompute
// @Tags Scores
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /scores/jobs/{jobId} [get]
func (h *ScoreHandler) JobStatus(c *gin.Context) {
	status, err := h.scores.JobStatus(c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Leaderboard godoc
// @Summary Ranked leaderboard
// @Tags Scores
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /scores/leaderboard [get]
func (h *ScoreHandler) Leaderboard(c *gin.Context) {
	start := time.Now()
	entries, hit, err := h.scores.Leaderboard(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, entries, nil, middleware.ResponseMeta(c, start))
}

// Export godoc
// @Summary Export the leaderboard
// @Tags Scores
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /scores/leaderboard/export [get]
func (h *ScoreHandler) Export(c *gin.Context) {
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.scores.ExportLeaderboard(c.Request.Context(), claimsFromContext(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
