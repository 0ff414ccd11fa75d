package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-tracker-api/internal/models"
	"github.com/noah-isme/student-tracker-api/pkg/response"
)

type chartService interface {
	Monthly(ctx context.Context, session *models.JWTClaims, studentID string, category models.ActivityCategory) (*models.MonthlyChart, error)
	Series(ctx context.Context, session *models.JWTClaims, studentID string, category models.ActivityCategory) (*models.SeriesChart, error)
}

// ChartHandler serves per-student chart data.
type ChartHandler struct {
	charts chartService
}

// NewChartHandler constructs ChartHandler.
func NewChartHandler(charts chartService) *ChartHandler {
	return &ChartHandler{charts: charts}
}

// Monthly godoc
// @Summary Academic month buckets
// @Description Ten buckets from September to June for one category
// @Tags Charts
// @Produce json
// @Param id path string true "Student ID"
// @Param category query string true "Activity category"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/charts/monthly [get]
func (h *ChartHandler) Monthly(c *gin.Context) {
	chart, err := h.charts.Monthly(c.Request.Context(), claimsFromContext(c), c.Param("id"), chartCategory(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, chart, nil)
}

// Series godoc
// @Summary Chronological trend
// @Tags Charts
// @Produce json
// @Param id path string true "Student ID"
// @Param category query string false "Activity category" default(mock_exam)
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/charts/series [get]
func (h *ChartHandler) Series(c *gin.Context) {
	chart, err := h.charts.Series(c.Request.Context(), claimsFromContext(c), c.Param("id"), chartCategory(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, chart, nil)
}

func chartCategory(c *gin.Context) models.ActivityCategory {
	return models.ActivityCategory(strings.ToLower(strings.TrimSpace(c.Query("category"))))
}
