package scoring

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-tracker-api/internal/models"
)

func intPtr(v int) *int                                       { return &v }
func floatPtr(v float64) *float64                             { return &v }
func statusPtr(s models.ActivityStatus) *models.ActivityStatus { return &s }

func day(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 10, 0, 0, 0, time.UTC)
}

func reading(id string, pages int, status models.ActivityStatus) models.ActivityRecord {
	return models.ActivityRecord{ID: id, StudentID: "stu-1", Category: models.CategoryReading, OccurredAt: day(time.October, 1), Status: statusPtr(status), PageCount: intPtr(pages)}
}

func homework(id string, points int, status models.ActivityStatus) models.ActivityRecord {
	return models.ActivityRecord{ID: id, StudentID: "stu-1", Category: models.CategoryHomework, OccurredAt: day(time.October, 2), Status: statusPtr(status), PointValue: intPtr(points)}
}

func star(id string, count int) models.ActivityRecord {
	return models.ActivityRecord{ID: id, StudentID: "stu-1", Category: models.CategoryStar, OccurredAt: day(time.November, 3), StarCount: intPtr(count)}
}

func misconduct(id string) models.ActivityRecord {
	return models.ActivityRecord{ID: id, StudentID: "stu-1", Category: models.CategoryMisconduct, OccurredAt: day(time.December, 4)}
}

func mockExam(id string, at time.Time, net float64) models.ActivityRecord {
	return models.ActivityRecord{ID: id, StudentID: "stu-1", Category: models.CategoryMockExam, OccurredAt: at, NetScore: floatPtr(net)}
}

func TestComputeSummaryEmpty(t *testing.T) {
	summary, err := ComputeSummary(nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, summary.TotalScore)
	assert.Equal(t, 0, summary.MedalCount)
}

func TestComputeSummaryMixedCategories(t *testing.T) {
	records := []models.ActivityRecord{
		reading("r1", 50, models.StatusDone),
		homework("h1", 4, models.StatusDone),
		misconduct("m1"),
	}

	summary, err := ComputeSummary(records)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", summary.StudentID)
	assert.InDelta(t, 4.32, summary.TotalScore, 1e-9)
	assert.Equal(t, 0, summary.MedalCount)
	assert.True(t, summary.LastComputedAt.IsZero())
}

func TestComputeSummaryStars(t *testing.T) {
	records := make([]models.ActivityRecord, 0, 10)
	for i := 0; i < 10; i++ {
		records = append(records, star(string(rune('a'+i)), 3))
	}

	summary, err := ComputeSummary(records)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, summary.TotalScore, 1e-9)
}

func TestComputeSummaryWeights(t *testing.T) {
	cases := []struct {
		name   string
		record models.ActivityRecord
		want   float64
	}{
		{"mock exam", mockExam("x", day(time.March, 1), 40), 10},
		{"written test", models.ActivityRecord{ID: "w", StudentID: "stu-1", Category: models.CategoryWrittenTest, OccurredAt: day(time.March, 1), NetScore: floatPtr(20)}, 4},
		{"reading exam", models.ActivityRecord{ID: "e", StudentID: "stu-1", Category: models.CategoryReadingExam, OccurredAt: day(time.March, 1), ExamScore: floatPtr(80)}, 12},
		{"problem solving", models.ActivityRecord{ID: "p", StudentID: "stu-1", Category: models.CategoryProblemSolving, OccurredAt: day(time.March, 1), ProblemCount: intPtr(50)}, 6},
		{"reading not done", reading("r", 0, models.StatusNotDone), 0},
		{"homework not done", homework("h", 0, models.StatusNotDone), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			summary, err := ComputeSummary([]models.ActivityRecord{tc.record})
			require.NoError(t, err)
			assert.InDelta(t, tc.want, summary.TotalScore, 1e-9)
		})
	}
}

func TestComputeSummaryClampsAndDerivesMedalsAfterClamp(t *testing.T) {
	high := []models.ActivityRecord{
		mockExam("a", day(time.March, 1), 400),
		mockExam("b", day(time.March, 2), 600),
	}
	summary, err := ComputeSummary(high)
	require.NoError(t, err)
	assert.Equal(t, 100.0, summary.TotalScore)
	assert.Equal(t, 10, summary.MedalCount)

	low := []models.ActivityRecord{misconduct("m1"), misconduct("m2"), misconduct("m3")}
	summary, err = ComputeSummary(low)
	require.NoError(t, err)
	assert.Equal(t, 0.0, summary.TotalScore)
	assert.Equal(t, 0, summary.MedalCount)
}

func TestComputeSummaryMedalFloor(t *testing.T) {
	summary, err := ComputeSummary([]models.ActivityRecord{mockExam("a", day(time.March, 1), 99.6)})
	require.NoError(t, err)
	assert.InDelta(t, 24.9, summary.TotalScore, 1e-9)
	assert.Equal(t, 2, summary.MedalCount)
}

func TestComputeSummaryOrderIndependent(t *testing.T) {
	records := []models.ActivityRecord{
		reading("r1", 37, models.StatusDone),
		reading("r2", 11, models.StatusDone),
		homework("h1", 3, models.StatusDone),
		star("s1", 7),
		misconduct("m1"),
		mockExam("x1", day(time.April, 1), 33.75),
		mockExam("x2", day(time.May, 1), -2.5),
		models.ActivityRecord{ID: "p1", StudentID: "stu-1", Category: models.CategoryProblemSolving, OccurredAt: day(time.May, 2), ProblemCount: intPtr(13)},
	}

	baseline, err := ComputeSummary(records)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := append([]models.ActivityRecord(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := ComputeSummary(shuffled)
		require.NoError(t, err)
		require.Equal(t, baseline, got)
	}

	again, err := ComputeSummary(records)
	require.NoError(t, err)
	assert.Equal(t, baseline, again)
}

func TestComputeSummaryRejectsMixedStudents(t *testing.T) {
	other := star("s2", 1)
	other.StudentID = "stu-2"

	_, err := ComputeSummary([]models.ActivityRecord{star("s1", 1), other})
	require.Error(t, err)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "s2", vErr.RecordID)
	assert.Equal(t, "student_id", vErr.Field)
}

func TestComputeSummaryAcceptsNegativeMagnitudes(t *testing.T) {
	summary, err := ComputeSummary([]models.ActivityRecord{star("s1", -20), reading("r1", 30, models.StatusDone)})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, summary.TotalScore, 1e-9)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		record models.ActivityRecord
		field  string
	}{
		{"unknown category", models.ActivityRecord{ID: "1", StudentID: "stu-1", Category: "attendance", OccurredAt: day(time.March, 1)}, "category"},
		{"missing student", models.ActivityRecord{ID: "2", Category: models.CategoryMisconduct, OccurredAt: day(time.March, 1)}, "student_id"},
		{"missing date", models.ActivityRecord{ID: "3", StudentID: "stu-1", Category: models.CategoryMisconduct}, "occurred_at"},
		{"misconduct with magnitude", models.ActivityRecord{ID: "4", StudentID: "stu-1", Category: models.CategoryMisconduct, OccurredAt: day(time.March, 1), StarCount: intPtr(1)}, "star_count"},
		{"star missing count", models.ActivityRecord{ID: "5", StudentID: "stu-1", Category: models.CategoryStar, OccurredAt: day(time.March, 1)}, "star_count"},
		{"two magnitudes", models.ActivityRecord{ID: "6", StudentID: "stu-1", Category: models.CategoryMockExam, OccurredAt: day(time.March, 1), NetScore: floatPtr(2), ExamScore: floatPtr(3)}, "exam_score"},
		{"reading without status", models.ActivityRecord{ID: "7", StudentID: "stu-1", Category: models.CategoryReading, OccurredAt: day(time.March, 1), PageCount: intPtr(4)}, "status"},
		{"not done with pages", reading("8", 12, models.StatusNotDone), "page_count"},
		{"status on star", models.ActivityRecord{ID: "9", StudentID: "stu-1", Category: models.CategoryStar, OccurredAt: day(time.March, 1), StarCount: intPtr(1), Status: statusPtr(models.StatusDone)}, "status"},
		{"unknown status", homework("10", 3, "skipped"), "status"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.record)
			require.Error(t, err)

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tc.record.ID, vErr.RecordID)
			assert.Equal(t, tc.field, vErr.Field)

			_, err = ComputeSummary([]models.ActivityRecord{tc.record})
			require.Error(t, err)
		})
	}
}

func TestAcademicBucket(t *testing.T) {
	idx, ok := AcademicBucket(day(time.September, 15))
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	idx, ok = AcademicBucket(day(time.December, 31))
	require.True(t, ok)
	assert.Equal(t, 3, idx)

	idx, ok = AcademicBucket(day(time.January, 1))
	require.True(t, ok)
	assert.Equal(t, 4, idx)

	idx, ok = AcademicBucket(day(time.June, 1))
	require.True(t, ok)
	assert.Equal(t, 9, idx)

	_, ok = AcademicBucket(day(time.July, 10))
	assert.False(t, ok)
	_, ok = AcademicBucket(day(time.August, 10))
	assert.False(t, ok)
}

func TestBucketByAcademicMonth(t *testing.T) {
	sept := reading("r1", 20, models.StatusDone)
	sept.OccurredAt = day(time.September, 15)
	june := reading("r2", 15, models.StatusDone)
	june.OccurredAt = day(time.June, 1)
	august := reading("r3", 99, models.StatusDone)
	august.OccurredAt = day(time.August, 20)
	skipped := reading("r4", 0, models.StatusNotDone)
	skipped.OccurredAt = day(time.September, 2)

	buckets, err := BucketByAcademicMonth([]models.ActivityRecord{sept, june, august, skipped, star("s1", 5)}, models.CategoryReading)
	require.NoError(t, err)
	require.Len(t, buckets, AcademicMonths)
	assert.Equal(t, 20.0, buckets[0])
	assert.Equal(t, 15.0, buckets[9])

	var sum float64
	for _, v := range buckets {
		sum += v
	}
	assert.Equal(t, 35.0, sum)
}

func TestBucketByAcademicMonthCountsMisconduct(t *testing.T) {
	a := misconduct("m1")
	b := misconduct("m2")
	c := misconduct("m3")
	c.OccurredAt = day(time.February, 10)

	buckets, err := BucketByAcademicMonth([]models.ActivityRecord{a, b, c}, models.CategoryMisconduct)
	require.NoError(t, err)
	assert.Equal(t, 2.0, buckets[3])
	assert.Equal(t, 1.0, buckets[5])
}

func TestBucketByAcademicMonthErrors(t *testing.T) {
	_, err := BucketByAcademicMonth(nil, "attendance")
	require.Error(t, err)

	bad := star("s1", 1)
	bad.PageCount = intPtr(3)
	_, err = BucketByAcademicMonth([]models.ActivityRecord{bad}, models.CategoryReading)
	require.Error(t, err)

	empty, err := BucketByAcademicMonth(nil, models.CategoryStar)
	require.NoError(t, err)
	assert.Equal(t, [AcademicMonths]float64{}, empty)
}

func TestChronologicalSeries(t *testing.T) {
	same := day(time.March, 5)
	records := []models.ActivityRecord{
		mockExam("c", day(time.April, 12), 41.25),
		mockExam("b", same, 30),
		mockExam("a", same, 28.5),
		mockExam("d", day(time.January, 20), 22),
		star("s1", 2),
	}

	labels, values, err := ChronologicalSeries(records, models.CategoryMockExam)
	require.NoError(t, err)
	require.Len(t, labels, 4)
	require.Len(t, values, len(labels))
	assert.Equal(t, []string{"20.01", "05.03", "05.03", "12.04"}, labels)
	assert.Equal(t, []float64{22, 28.5, 30, 41.25}, values)
}

func TestChronologicalSeriesEmpty(t *testing.T) {
	labels, values, err := ChronologicalSeries([]models.ActivityRecord{star("s1", 2)}, models.CategoryMockExam)
	require.NoError(t, err)
	assert.Empty(t, labels)
	assert.Empty(t, values)
	assert.Equal(t, len(labels), len(values))
}

func TestWeight(t *testing.T) {
	w, ok := Weight(models.CategoryMockExam)
	require.True(t, ok)
	assert.Equal(t, 0.25, w)

	_, ok = Weight(models.CategoryMisconduct)
	assert.False(t, ok)

	for _, c := range models.ActivityCategories {
		assert.True(t, IsKnown(c), c)
	}
}
