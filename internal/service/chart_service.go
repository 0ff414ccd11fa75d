package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-tracker-api/internal/models"
	"github.com/noah-isme/student-tracker-api/internal/scoring"
	appErrors "github.com/noah-isme/student-tracker-api/pkg/errors"
)

// ChartService turns a student's records into chart-ready series.
type ChartService struct {
	activities scoreActivityRepository
	access     studentAuthorizer
	location   *time.Location
	logger     *zap.Logger
}

// NewChartService constructs a ChartService. Records are dated in loc.
func NewChartService(activities scoreActivityRepository, access studentAuthorizer, loc *time.Location, logger *zap.Logger) *ChartService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChartService{activities: activities, access: access, location: loc, logger: logger}
}

// Monthly buckets the category into the ten academic months.
func (s *ChartService) Monthly(ctx context.Context, session *models.JWTClaims, studentID string, category models.ActivityCategory) (*models.MonthlyChart, error) {
	records, err := s.load(ctx, session, studentID, category)
	if err != nil {
		return nil, err
	}
	buckets, err := scoring.BucketByAcademicMonth(records, category)
	if err != nil {
		return nil, chartError(err)
	}

	chart := &models.MonthlyChart{
		StudentID: studentID,
		Category:  category,
		Labels:    scoring.AcademicMonthLabels[:],
		Values:    buckets[:],
	}
	for _, v := range buckets {
		chart.Total += v
	}
	return chart, nil
}

// Series returns the category as a chronological trend. Mock exams are the default.
func (s *ChartService) Series(ctx context.Context, session *models.JWTClaims, studentID string, category models.ActivityCategory) (*models.SeriesChart, error) {
	if category == "" {
		category = models.CategoryMockExam
	}
	records, err := s.load(ctx, session, studentID, category)
	if err != nil {
		return nil, err
	}
	labels, values, err := scoring.ChronologicalSeries(records, category)
	if err != nil {
		return nil, chartError(err)
	}
	return &models.SeriesChart{StudentID: studentID, Category: category, Labels: labels, Values: values}, nil
}

func (s *ChartService) load(ctx context.Context, session *models.JWTClaims, studentID string, category models.ActivityCategory) ([]models.ActivityRecord, error) {
	if !scoring.IsKnown(category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown activity category "+string(category))
	}
	if _, err := s.access.Authorize(ctx, session, studentID); err != nil {
		return nil, err
	}
	records, err := s.activities.ListByStudent(ctx, studentID, category)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity records")
	}
	for i := range records {
		records[i].OccurredAt = records[i].OccurredAt.In(s.location)
	}
	return records, nil
}

func chartError(err error) error {
	var verr *scoring.ValidationError
	if errors.As(err, &verr) {
		return appErrors.Wrap(err, appErrors.ErrInvalidRecord.Code, appErrors.ErrInvalidRecord.Status, verr.Error())
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build chart")
}
