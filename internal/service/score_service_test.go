package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-tracker-api/internal/models"
	appErrors "github.com/noah-isme/student-tracker-api/pkg/errors"
	"github.com/noah-isme/student-tracker-api/pkg/events"
	"github.com/noah-isme/student-tracker-api/pkg/jobs"
)

type fakeScoreStudents struct {
	mu        sync.Mutex
	ids       []string
	ranked    []models.Student
	rankCalls int
	saved     map[string]models.ScoreSummary
	updateErr map[string]error
}

func (f *fakeScoreStudents) IDs(ctx context.Context, teacherID string) ([]string, error) {
	return f.ids, nil
}

func (f *fakeScoreStudents) saveScore(summary models.ScoreSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErr[summary.StudentID]; err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = make(map[string]models.ScoreSummary)
	}
	f.saved[summary.StudentID] = summary
	return nil
}

func (f *fakeScoreStudents) Ranked(ctx context.Context, teacherID string, limit int) ([]models.Student, error) {
	f.rankCalls++
	return f.ranked, nil
}

type fakeActivities struct {
	mu       sync.Mutex
	records  map[string][]models.ActivityRecord
	students *fakeScoreStudents
}

func (f *fakeActivities) AppendScored(ctx context.Context, record *models.ActivityRecord, fold models.ScoreFold) (models.ScoreSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	history := append(append([]models.ActivityRecord(nil), f.records[record.StudentID]...), *record)
	summary, err := f.persist(record.StudentID, history, fold)
	if err != nil {
		return summary, err
	}
	if f.records == nil {
		f.records = make(map[string][]models.ActivityRecord)
	}
	f.records[record.StudentID] = history
	return summary, nil
}

func (f *fakeActivities) Rescore(ctx context.Context, studentID string, fold models.ScoreFold) (models.ScoreSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.persist(studentID, f.records[studentID], fold)
}

func (f *fakeActivities) persist(studentID string, history []models.ActivityRecord, fold models.ScoreFold) (models.ScoreSummary, error) {
	summary, err := fold(history)
	if err != nil {
		return summary, err
	}
	summary.StudentID = studentID
	if f.students != nil {
		if err := f.students.saveScore(summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (f *fakeActivities) ListByStudent(ctx context.Context, studentID string, categories ...models.ActivityCategory) ([]models.ActivityRecord, error) {
	if len(categories) == 0 {
		return f.records[studentID], nil
	}
	var out []models.ActivityRecord
	for _, rec := range f.records[studentID] {
		for _, c := range categories {
			if rec.Category == c {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

type recordedEvent struct {
	key     string
	payload interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakePublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{key: routingKey, payload: payload})
	return nil
}

func (f *fakePublisher) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.events))
	for _, e := range f.events {
		keys = append(keys, e.key)
	}
	return keys
}

type fakeAuthorizer struct {
	student *models.StudentDetail
	err     error
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, session *models.JWTClaims, studentID string) (*models.StudentDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.student != nil {
		return f.student, nil
	}
	return &models.StudentDetail{Student: models.Student{ID: studentID}}, nil
}

func intPtr(v int) *int { return &v }

func statusPtr(s models.ActivityStatus) *models.ActivityStatus { return &s }

func readingRecord(id, studentID string, pages int) models.ActivityRecord {
	return models.ActivityRecord{
		ID:         id,
		StudentID:  studentID,
		Category:   models.CategoryReading,
		Status:     statusPtr(models.StatusDone),
		PageCount:  intPtr(pages),
		OccurredAt: time.Date(2024, time.October, 3, 10, 0, 0, 0, time.UTC),
	}
}

func newTestScoreService(students *fakeScoreStudents, acts *fakeActivities, pub *fakePublisher) *ScoreService {
	acts.students = students
	svc := NewScoreService(students, acts, &fakeAuthorizer{}, nil, nil, pub, nil, nil, ScoreServiceConfig{Workers: 2})
	svc.now = func() time.Time { return time.Date(2024, time.November, 1, 9, 0, 0, 0, time.UTC) }
	return svc
}

func teacherSession(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleTeacher}
}

func TestScoreServiceRecomputeOnePersistsSummary(t *testing.T) {
	students := &fakeScoreStudents{}
	acts := &fakeActivities{records: map[string][]models.ActivityRecord{
		"s1": {
			readingRecord("r1", "s1", 50),
			{ID: "r2", StudentID: "s1", Category: models.CategoryHomework, Status: statusPtr(models.StatusDone), PointValue: intPtr(4)},
			{ID: "r3", StudentID: "s1", Category: models.CategoryMisconduct},
		},
	}}
	pub := &fakePublisher{}
	svc := newTestScoreService(students, acts, pub)

	summary, err := svc.RecomputeOne(context.Background(), "s1")
	require.NoError(t, err)
	assert.InDelta(t, 4.32, summary.TotalScore, 1e-9)
	assert.Equal(t, 0, summary.MedalCount)
	assert.Equal(t, time.Date(2024, time.November, 1, 9, 0, 0, 0, time.UTC), summary.LastComputedAt)

	saved, ok := students.saved["s1"]
	require.True(t, ok)
	assert.Equal(t, *summary, saved)
	assert.Equal(t, []string{events.RoutingScoreRecomputed}, pub.keys())
}

func TestScoreServiceRecomputeOneEmptyStudent(t *testing.T) {
	students := &fakeScoreStudents{}
	svc := newTestScoreService(students, &fakeActivities{}, &fakePublisher{})

	summary, err := svc.RecomputeOne(context.Background(), "s9")
	require.NoError(t, err)
	assert.Equal(t, "s9", summary.StudentID)
	assert.Zero(t, summary.TotalScore)
	assert.Zero(t, summary.MedalCount)
}

func TestScoreServiceRecomputeOneRejectsBrokenRecord(t *testing.T) {
	students := &fakeScoreStudents{}
	acts := &fakeActivities{records: map[string][]models.ActivityRecord{
		"s1": {{ID: "bad", StudentID: "s1", Category: models.CategoryStar}},
	}}
	svc := newTestScoreService(students, acts, &fakePublisher{})

	_, err := svc.RecomputeOne(context.Background(), "s1")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidRecord)
	assert.Empty(t, students.saved)
}

func TestScoreServiceAppendAndRecompute(t *testing.T) {
	students := &fakeScoreStudents{}
	acts := &fakeActivities{records: map[string][]models.ActivityRecord{"s1": {readingRecord("r1", "s1", 50)}}}
	pub := &fakePublisher{}
	svc := newTestScoreService(students, acts, pub)

	record := readingRecord("r2", "s1", 50)
	summary, err := svc.AppendAndRecompute(context.Background(), &record)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, summary.TotalScore, 1e-9)
	assert.Equal(t, 1, summary.MedalCount)
	assert.Len(t, acts.records["s1"], 2)
	assert.Equal(t, *summary, students.saved["s1"])
	assert.Equal(t, []string{events.RoutingScoreRecomputed}, pub.keys())
}

func TestScoreServiceAppendAndRecomputeKeepsNothingOnFailure(t *testing.T) {
	students := &fakeScoreStudents{updateErr: map[string]error{"s1": errors.New("db down")}}
	acts := &fakeActivities{}
	pub := &fakePublisher{}
	svc := newTestScoreService(students, acts, pub)

	record := readingRecord("r1", "s1", 50)
	_, err := svc.AppendAndRecompute(context.Background(), &record)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.Empty(t, acts.records["s1"])
	assert.Empty(t, pub.keys())

	broken := models.ActivityRecord{ID: "bad", StudentID: "s2", Category: models.CategoryStar}
	_, err = svc.AppendAndRecompute(context.Background(), &broken)
	assert.ErrorIs(t, err, appErrors.ErrInvalidRecord)
	assert.Empty(t, acts.records["s2"])
}

func TestScoreServiceRecomputeAllCollectsFailures(t *testing.T) {
	students := &fakeScoreStudents{
		ids:       []string{"s1", "s2", "s3"},
		updateErr: map[string]error{"s2": errors.New("db down")},
	}
	acts := &fakeActivities{records: map[string][]models.ActivityRecord{
		"s1": {readingRecord("r1", "s1", 100)},
		"s3": {readingRecord("r3", "s3", 20)},
	}}
	svc := newTestScoreService(students, acts, &fakePublisher{})

	result, err := svc.RecomputeAll(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"s2"}, result.FailedIDs)
	assert.InDelta(t, 10.0, students.saved["s1"].TotalScore, 1e-9)
	assert.Equal(t, 1, students.saved["s1"].MedalCount)
}

func TestScoreServiceRecomputeAllCancelled(t *testing.T) {
	students := &fakeScoreStudents{ids: []string{"s1", "s2"}}
	svc := newTestScoreService(students, &fakeActivities{}, &fakePublisher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.RecomputeAll(ctx, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrServiceUnavailable)
	assert.Equal(t, 2, result.Total)
}

func TestScoreServiceRecomputeRefusesParents(t *testing.T) {
	svc := newTestScoreService(&fakeScoreStudents{}, &fakeActivities{}, &fakePublisher{})

	_, err := svc.Recompute(context.Background(), &models.JWTClaims{UserID: "p1", Role: models.RoleParent}, "s1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestScoreServiceRecomputeChecksAccess(t *testing.T) {
	svc := newTestScoreService(&fakeScoreStudents{}, &fakeActivities{}, &fakePublisher{})
	svc.access = &fakeAuthorizer{err: appErrors.Clone(appErrors.ErrForbidden, "student belongs to another teacher")}

	_, err := svc.Recompute(context.Background(), teacherSession("t2"), "s1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestScoreServiceAsyncRecompute(t *testing.T) {
	students := &fakeScoreStudents{ids: []string{"s1"}}
	acts := &fakeActivities{records: map[string][]models.ActivityRecord{"s1": {readingRecord("r1", "s1", 30)}}}
	svc := newTestScoreService(students, acts, &fakePublisher{})

	queue := jobs.NewQueue("test", jobs.QueueConfig{Workers: 1})
	svc.RegisterJobs(queue)
	queue.Start(context.Background())
	defer queue.Stop()

	result, err := svc.RecomputeScoped(context.Background(), teacherSession("t1"), true)
	require.NoError(t, err)
	require.NotEmpty(t, result.JobID)

	require.Eventually(t, func() bool {
		status, err := svc.JobStatus(result.JobID)
		return err == nil && status.State == jobs.StateSucceeded
	}, 2*time.Second, 10*time.Millisecond)

	status, err := svc.JobStatus(result.JobID)
	require.NoError(t, err)
	outcome, ok := status.Result.(*models.RecomputeResult)
	require.True(t, ok)
	assert.Equal(t, 1, outcome.Succeeded)
}

func TestScoreServiceAsyncWithoutQueue(t *testing.T) {
	svc := newTestScoreService(&fakeScoreStudents{}, &fakeActivities{}, &fakePublisher{})

	_, err := svc.RecomputeScoped(context.Background(), teacherSession("t1"), true)
	assert.ErrorIs(t, err, appErrors.ErrServiceUnavailable)

	_, err = svc.JobStatus("missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestScoreServiceLeaderboardRanks(t *testing.T) {
	students := &fakeScoreStudents{ranked: []models.Student{
		{ID: "a", FirstName: "Ada", LastName: "Yilmaz", StudentNo: "12", TotalScore: 55.5, MedalCount: 5},
		{ID: "b", FirstName: "Bora", StudentNo: "7", TotalScore: 40, MedalCount: 4},
	}}
	svc := newTestScoreService(students, &fakeActivities{}, &fakePublisher{})

	entries, _, err := svc.Leaderboard(context.Background(), teacherSession("t1"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "Ada Yilmaz", entries[0].FullName)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, "Bora", entries[1].FullName)

	_, _, err = svc.Leaderboard(context.Background(), &models.JWTClaims{UserID: "p", Role: models.RoleParent})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestScoreServiceExportLeaderboardCSV(t *testing.T) {
	students := &fakeScoreStudents{ranked: []models.Student{
		{ID: "a", FirstName: "Ada", StudentNo: "12", TotalScore: 55.5, MedalCount: 5},
	}}
	svc := newTestScoreService(students, &fakeActivities{}, &fakePublisher{})

	file, err := svc.ExportLeaderboard(context.Background(), teacherSession("t1"), models.ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
	assert.Contains(t, file.Filename, ".csv")

	rows, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(file.Data, []byte{0xEF, 0xBB, 0xBF}))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, leaderboardHeaders, rows[0])
	assert.Equal(t, []string{"1", "12", "Ada", "55.50", "5"}, rows[1])
}

func TestParseExportFormat(t *testing.T) {
	f, err := ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatCSV, f)

	f, err = ParseExportFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatXLSX, f)

	_, err = ParseExportFormat("doc")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRosterScope(t *testing.T) {
	scope, err := rosterScope(&models.JWTClaims{UserID: "adm", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Empty(t, scope)

	scope, err = rosterScope(teacherSession("t1"))
	require.NoError(t, err)
	assert.Equal(t, "t1", scope)

	_, err = rosterScope(nil)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
