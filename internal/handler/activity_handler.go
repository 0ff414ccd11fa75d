package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-tracker-api/internal/models"
	appErrors "github.com/noah-isme/student-tracker-api/pkg/errors"
	"github.com/noah-isme/student-tracker-api/pkg/response"
)

type activityService interface {
	Record(ctx context.Context, session *models.JWTClaims, studentID string, req models.CreateActivityRequest) (*models.ActivityResult, error)
	List(ctx context.Context, session *models.JWTClaims, studentID string, filter models.ActivityFilter) ([]models.ActivityRecord, *models.Pagination, error)
}

// ActivityHandler exposes activity logging.
type ActivityHandler struct {
	activities activityService
	loc        *time.Location
}

// NewActivityHandler constructs ActivityHandler. Date filters are read as
// calendar days in loc, UTC when nil.
func NewActivityHandler(activities activityService, loc *time.Location) *ActivityHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ActivityHandler{activities: activities, loc: loc}
}

// Record godoc
// @Summary Log an activity
// @Description Appends one record and returns it with the student's refreshed score
// @Tags Activities
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body models.CreateActivityRequest true "Activity payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/activities [post]
func (h *ActivityHandler) Record(c *gin.Context) {
	var req models.CreateActivityRequest
	if !bindJSON(c, &req, "invalid activity payload") {
		return
	}
	result, err := h.activities.Record(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List activity records
// @Tags Activities
// @Produce json
// @Param id path string true "Student ID"
// @Param category query []string false "Categories" collectionFormat(multi)
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD), inclusive"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/activities [get]
func (h *ActivityHandler) List(c *gin.Context) {
	filter := models.ActivityFilter{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "limit", 20),
	}
	for _, raw := range queryList(c, "category") {
		filter.Categories = append(filter.Categories, models.ActivityCategory(strings.ToLower(raw)))
	}

	var err error
	if filter.DateFrom, err = queryDate(c, "from", h.loc); err != nil {
		response.Error(c, err)
		return
	}
	if filter.DateTo, err = queryDate(c, "to", h.loc); err != nil {
		response.Error(c, err)
		return
	}
	if filter.DateTo != nil {
		end := filter.DateTo.AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.DateTo = &end
	}

	records, pagination, err := h.activities.List(c.Request.Context(), claimsFromContext(c), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

func queryDate(c *gin.Context, key string, loc *time.Location) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid "+key+" date, expected YYYY-MM-DD")
	}
	return &parsed, nil
}
