package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/student-tracker-api/internal/models"
	appErrors "github.com/noah-isme/student-tracker-api/pkg/errors"
)

const messageThreadLimit = 50

type messageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	Latest(ctx context.Context, studentID string, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, studentID, readerID string) (int64, error)
	LatestByTeacher(ctx context.Context, teacherID string, limit int) ([]models.TeacherMessage, error)
}

type assignmentRepository interface {
	Create(ctx context.Context, a *models.Assignment) error
	ListByStudent(ctx context.Context, studentID string) ([]models.Assignment, error)
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	SetCompleted(ctx context.Context, id string, completed bool) error
}

// MessageService runs the per-student thread shared by parents and staff.
type MessageService struct {
	repo   messageRepository
	access studentAuthorizer
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
}

// NewMessageService constructs a MessageService.
func NewMessageService(repo messageRepository, access studentAuthorizer, cache *CacheService, logger *zap.Logger) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{repo: repo, access: access, cache: cache, logger: logger, now: time.Now}
}

// Thread returns the latest messages, oldest first.
func (s *MessageService) Thread(ctx context.Context, session *models.JWTClaims, studentID string) ([]models.Message, error) {
	if _, err := s.access.Authorize(ctx, session, studentID); err != nil {
		return nil, err
	}
	messages, err := s.repo.Latest(ctx, studentID, messageThreadLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load messages")
	}
	return messages, nil
}

// Send posts a message to the student's thread.
func (s *MessageService) Send(ctx context.Context, session *models.JWTClaims, studentID string, req models.CreateMessageRequest) (*models.Message, error) {
	body := strings.TrimSpace(req.Body)
	if n := utf8.RuneCountInString(body); n == 0 || n > models.MessageMaxLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message must be between 1 and 1000 characters")
	}
	if _, err := s.access.Authorize(ctx, session, studentID); err != nil {
		return nil, err
	}
	msg := &models.Message{
		StudentID:  studentID,
		SenderID:   session.UserID,
		SenderName: session.FullName,
		SenderRole: session.Role,
		Body:       body,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}
	_ = s.cache.Invalidate(ctx, CacheKey("dashboard", "parent", "*"))
	return msg, nil
}

// MarkRead marks the messages others sent in the thread as read.
func (s *MessageService) MarkRead(ctx context.Context, session *models.JWTClaims, studentID string) (int64, error) {
	if _, err := s.access.Authorize(ctx, session, studentID); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkRead(ctx, studentID, session.UserID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark messages read")
	}
	if n > 0 {
		_ = s.cache.Invalidate(ctx, CacheKey("dashboard", "parent", session.UserID))
	}
	return n, nil
}

// TeacherMessages returns the latest messages across all of a teacher's
// student threads. Admins only.
func (s *MessageService) TeacherMessages(ctx context.Context, session *models.JWTClaims, teacherID string) ([]models.TeacherMessage, error) {
	if session == nil || session.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can read a teacher's messages")
	}
	if strings.TrimSpace(teacherID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}
	messages, err := s.repo.LatestByTeacher(ctx, teacherID, messageThreadLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher messages")
	}
	if messages == nil {
		messages = []models.TeacherMessage{}
	}
	return messages, nil
}

// AssignmentService manages homework handed to individual students.
type AssignmentService struct {
	repo      assignmentRepository
	access    studentAuthorizer
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(repo assignmentRepository, access studentAuthorizer, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{repo: repo, access: access, cache: cache, validator: ensureValidator(validate), logger: logger}
}

// Create hands a new assignment to the student.
func (s *AssignmentService) Create(ctx context.Context, session *models.JWTClaims, studentID string, req models.CreateAssignmentRequest) (*models.Assignment, error) {
	if err := requireStaff(session); err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	student, err := s.access.Authorize(ctx, session, studentID)
	if err != nil {
		return nil, err
	}
	assignment := &models.Assignment{
		StudentID:   studentID,
		TeacherID:   student.TeacherID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate.UTC(),
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	_ = s.cache.Invalidate(ctx, CacheKey("dashboard", "parent", "*"))
	return assignment, nil
}

// List returns the student's assignments, latest due date first.
func (s *AssignmentService) List(ctx context.Context, session *models.JWTClaims, studentID string) ([]models.Assignment, error) {
	if _, err := s.access.Authorize(ctx, session, studentID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return items, nil
}

// SetCompleted toggles completion. Anyone who may see the student may do it.
func (s *AssignmentService) SetCompleted(ctx context.Context, session *models.JWTClaims, id string, req models.CompleteAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if _, err := s.access.Authorize(ctx, session, assignment.StudentID); err != nil {
		return nil, err
	}
	if err := s.repo.SetCompleted(ctx, id, *req.Completed); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}
	assignment.Completed = *req.Completed
	_ = s.cache.Invalidate(ctx, CacheKey("dashboard", "parent", "*"))
	return assignment, nil
}
