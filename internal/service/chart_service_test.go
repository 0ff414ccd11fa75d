package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-tracker-api/internal/models"
	appErrors "github.com/noah-isme/student-tracker-api/pkg/errors"
)

func mockExam(id string, at time.Time, net float64) models.ActivityRecord {
	return models.ActivityRecord{ID: id, StudentID: "s1", Category: models.CategoryMockExam, OccurredAt: at, NetScore: &net}
}

func TestChartServiceMonthlyUsesSchoolTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	acts := &fakeActivities{records: map[string][]models.ActivityRecord{
		"s1": {
			readingRecord("r1", "s1", 20),
			// 31 Aug 22:00 UTC is 1 Sep 01:00 locally.
			{ID: "r2", StudentID: "s1", Category: models.CategoryReading, Status: statusPtr(models.StatusDone), PageCount: intPtr(15), OccurredAt: time.Date(2024, time.August, 31, 22, 0, 0, 0, time.UTC)},
			{ID: "r3", StudentID: "s1", Category: models.CategoryReading, Status: statusPtr(models.StatusDone), PageCount: intPtr(99), OccurredAt: time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC)},
		},
	}}
	svc := NewChartService(acts, &fakeAuthorizer{}, loc, nil)

	chart, err := svc.Monthly(context.Background(), teacherSession("t1"), "s1", models.CategoryReading)
	require.NoError(t, err)
	require.Len(t, chart.Values, 10)
	require.Len(t, chart.Labels, 10)
	assert.Equal(t, "Sep", chart.Labels[0])
	assert.Equal(t, 15.0, chart.Values[0])
	assert.Equal(t, 20.0, chart.Values[1])
	assert.Equal(t, 35.0, chart.Total)
}

func TestChartServiceSeriesDefaultsToMockExam(t *testing.T) {
	day := time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC)
	acts := &fakeActivities{records: map[string][]models.ActivityRecord{
		"s1": {mockExam("b", day, 40), mockExam("a", day, 35.5), mockExam("c", day.AddDate(0, 0, -7), 30)},
	}}
	svc := NewChartService(acts, &fakeAuthorizer{}, time.UTC, nil)

	chart, err := svc.Series(context.Background(), teacherSession("t1"), "s1", "")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryMockExam, chart.Category)
	assert.Equal(t, []string{"27.02", "05.03", "05.03"}, chart.Labels)
	assert.Equal(t, []float64{30, 35.5, 40}, chart.Values)
}

func TestChartServiceRejectsUnknownCategoryAndForeignStudent(t *testing.T) {
	svc := NewChartService(&fakeActivities{}, &fakeAuthorizer{err: appErrors.Clone(appErrors.ErrForbidden, "parents can only access their own child")}, time.UTC, nil)

	_, err := svc.Monthly(context.Background(), teacherSession("t1"), "s1", "painting")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Series(context.Background(), &models.JWTClaims{UserID: "p9", Role: models.RoleParent}, "s1", models.CategoryMockExam)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
