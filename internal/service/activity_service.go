package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/student-tracker-api/internal/models"
	"github.com/noah-isme/student-tracker-api/internal/notify"
	"github.com/noah-isme/student-tracker-api/internal/scoring"
	appErrors "github.com/noah-isme/student-tracker-api/pkg/errors"
	"github.com/noah-isme/student-tracker-api/pkg/events"
	"github.com/noah-isme/student-tracker-api/pkg/jobs"
)

// JobTypeNotifyActivity is the queue job type delivering parent alerts.
const JobTypeNotifyActivity = "notify.activity"

type activityRepository interface {
	List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityRecord, int, error)
}

type summaryRecomputer interface {
	AppendAndRecompute(ctx context.Context, record *models.ActivityRecord) (*models.ScoreSummary, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type activityNotifier interface {
	NotifyActivity(ctx context.Context, alert notify.ActivityAlert) error
}

// ActivityService records activities and keeps the owning student's summary current.
type ActivityService struct {
	repo      activityRepository
	access    studentAuthorizer
	scores    summaryRecomputer
	users     userFinder
	notifier  activityNotifier
	queue     jobQueue
	events    eventPublisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewActivityService constructs an ActivityService. notifier may be nil when
// Telegram is not configured.
func NewActivityService(repo activityRepository, access studentAuthorizer, scores summaryRecomputer, users userFinder, notifier activityNotifier, publisher eventPublisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{
		repo:      repo,
		access:    access,
		scores:    scores,
		users:     users,
		notifier:  notifier,
		events:    publisher,
		metrics:   metrics,
		validator: ensureValidator(validate),
		logger:    logger,
	}
}

// RegisterJobs routes parent alerts through the background queue.
func (s *ActivityService) RegisterJobs(queue jobQueue) {
	if queue == nil || s.notifier == nil {
		return
	}
	s.queue = queue
	queue.Register(JobTypeNotifyActivity, func(ctx context.Context, job jobs.Job) (interface{}, error) {
		alert, ok := job.Payload.(notify.ActivityAlert)
		if !ok {
			return nil, errors.New("unexpected notify payload")
		}
		err := s.notifier.NotifyActivity(ctx, alert)
		s.metrics.ObserveNotification("telegram", err)
		return nil, err
	})
}

// Record appends an activity for the student, refreshes the summary and
// announces the change.
func (s *ActivityService) Record(ctx context.Context, session *models.JWTClaims, studentID string, req models.CreateActivityRequest) (*models.ActivityResult, error) {
	if err := requireStaff(session); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	student, err := s.access.Authorize(ctx, session, studentID)
	if err != nil {
		return nil, err
	}

	record := buildRecord(studentID, session.UserID, req)
	if err := checkIngest(record); err != nil {
		return nil, err
	}
	if err := scoring.Validate(record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidRecord.Code, appErrors.ErrInvalidRecord.Status, err.Error())
	}

	summary, err := s.scores.AppendAndRecompute(ctx, &record)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveActivity(record.Category)

	if s.events != nil {
		evt := models.ActivityRecordedEvent{
			RecordID:   record.ID,
			StudentID:  studentID,
			Category:   record.Category,
			OccurredAt: record.OccurredAt,
			Summary:    *summary,
		}
		if err := s.events.Publish(ctx, events.RoutingActivityRecorded, evt); err != nil {
			s.logger.Warn("event publish failed", zap.String("routing_key", events.RoutingActivityRecorded), zap.Error(err))
		}
	}
	s.alertParent(ctx, student, record, *summary)

	return &models.ActivityResult{Record: record, Summary: *summary}, nil
}

// List returns the student's records, newest first.
func (s *ActivityService) List(ctx context.Context, session *models.JWTClaims, studentID string, filter models.ActivityFilter) ([]models.ActivityRecord, *models.Pagination, error) {
	if _, err := s.access.Authorize(ctx, session, studentID); err != nil {
		return nil, nil, err
	}
	for _, c := range filter.Categories {
		if !scoring.IsKnown(c) {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown activity category "+string(c))
		}
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "date_to must not be before date_from")
	}
	filter.StudentID = studentID

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activities")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *ActivityService) alertParent(ctx context.Context, student *models.StudentDetail, record models.ActivityRecord, summary models.ScoreSummary) {
	if s.notifier == nil || student.ParentID == nil {
		return
	}
	parent, err := s.users.FindByID(ctx, *student.ParentID)
	if err != nil {
		s.logger.Warn("failed to load parent for alert", zap.String("student_id", student.ID), zap.Error(err))
		return
	}
	if parent.TelegramChatID == nil || *parent.TelegramChatID == 0 {
		return
	}
	alert := notify.ActivityAlert{
		ParentChatID: *parent.TelegramChatID,
		StudentName:  student.FullName(),
		Record:       record,
		Summary:      summary,
	}
	if s.queue != nil {
		_, err := s.queue.Enqueue(jobs.Job{Type: JobTypeNotifyActivity, Payload: alert})
		if err == nil {
			return
		}
		s.logger.Warn("failed to queue parent alert", zap.Error(err))
	}
	err = s.notifier.NotifyActivity(ctx, alert)
	s.metrics.ObserveNotification("telegram", err)
	if err != nil {
		s.logger.Warn("parent alert failed", zap.String("student_id", student.ID), zap.Error(err))
	}
}

// buildRecord copies the request into a record. Unfinished reading and
// homework tasks are stored with a zero magnitude.
func buildRecord(studentID, teacherID string, req models.CreateActivityRequest) models.ActivityRecord {
	creator := teacherID
	record := models.ActivityRecord{
		StudentID:    studentID,
		TeacherID:    &creator,
		Category:     req.Category,
		OccurredAt:   req.OccurredAt.UTC(),
		Status:       req.Status,
		PageCount:    req.PageCount,
		PointValue:   req.PointValue,
		ProblemCount: req.ProblemCount,
		StarCount:    req.StarCount,
		NetScore:     req.NetScore,
		ExamScore:    req.ExamScore,
		CreatedAt:    time.Now().UTC(),
	}
	if record.Status != nil && *record.Status == models.StatusNotDone {
		zero := 0
		switch record.Category {
		case models.CategoryReading:
			record.PageCount = &zero
		case models.CategoryHomework:
			record.PointValue = &zero
		}
	}
	return record
}

// checkIngest applies the entry rules that are stricter than the record
// contract: finished reading needs pages, finished homework a 1-5 grade.
func checkIngest(rec models.ActivityRecord) error {
	if rec.Status == nil || *rec.Status != models.StatusDone {
		return nil
	}
	switch rec.Category {
	case models.CategoryReading:
		if rec.PageCount == nil || *rec.PageCount <= 0 {
			return appErrors.Clone(appErrors.ErrValidation, "page_count must be greater than 0 for finished reading")
		}
	case models.CategoryHomework:
		if rec.PointValue == nil || *rec.PointValue < 1 || *rec.PointValue > 5 {
			return appErrors.Clone(appErrors.ErrValidation, "point_value must be between 1 and 5 for finished homework")
		}
	}
	return nil
}
