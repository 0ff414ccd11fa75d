package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/student-tracker-api/internal/models"
	appErrors "github.com/noah-isme/student-tracker-api/pkg/errors"
	"github.com/noah-isme/student-tracker-api/pkg/jobs"
)

// JobTypeTeacherWelcome is the queue job type sending the welcome mail.
const JobTypeTeacherWelcome = "mail.teacher_welcome"

type teacherRepository interface {
	ListTeachers(ctx context.Context, filter models.UserFilter) ([]models.TeacherSummary, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

type rosterCounter interface {
	CountByTeacher(ctx context.Context, teacherID string) (int, error)
}

type welcomeMailer interface {
	SendTeacherWelcome(ctx context.Context, teacher models.User) error
}

// TeacherService orchestrates admin management of teacher accounts.
type TeacherService struct {
	repo        teacherRepository
	students    rosterCounter
	mailer      welcomeMailer
	queue       jobQueue
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	emailDomain string
}

// NewTeacherService constructs a TeacherService. mailer may be nil when
// SendGrid is not configured.
func NewTeacherService(repo teacherRepository, students rosterCounter, mailer welcomeMailer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, emailDomain string) *TeacherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if emailDomain == "" {
		emailDomain = "school.local"
	}
	return &TeacherService{
		repo:        repo,
		students:    students,
		mailer:      mailer,
		metrics:     metrics,
		validator:   ensureValidator(validate),
		logger:      logger,
		emailDomain: emailDomain,
	}
}

// RegisterJobs sends welcome mail from the background queue.
func (s *TeacherService) RegisterJobs(queue jobQueue) {
	if queue == nil || s.mailer == nil {
		return
	}
	s.queue = queue
	queue.Register(JobTypeTeacherWelcome, func(ctx context.Context, job jobs.Job) (interface{}, error) {
		teacher, ok := job.Payload.(models.User)
		if !ok {
			return nil, errors.New("unexpected welcome payload")
		}
		err := s.mailer.SendTeacherWelcome(ctx, teacher)
		s.metrics.ObserveNotification("email", err)
		return nil, err
	})
}

// List returns teachers plus pagination data.
func (s *TeacherService) List(ctx context.Context, filter models.UserFilter) ([]models.TeacherSummary, *models.Pagination, error) {
	teachers, total, err := s.repo.ListTeachers(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return teachers, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a teacher by id.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if user.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	return user, nil
}

// Create registers a teacher account and sends the welcome mail.
func (s *TeacherService) Create(ctx context.Context, req models.CreateTeacherRequest) (*models.User, error) {
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	taken, err := s.repo.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate username")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	email := fmt.Sprintf("%s@teacher.%s", req.Username, s.emailDomain)
	if req.Email != nil && strings.TrimSpace(*req.Email) != "" {
		email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	className := strings.TrimSpace(req.ClassName)
	section := strings.ToUpper(strings.TrimSpace(req.Section))
	user := &models.User{
		Username:     req.Username,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         models.RoleTeacher,
		Active:       true,
		ClassName:    &className,
		Section:      &section,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	s.logger.Info("teacher created", zap.String("teacher_id", user.ID), zap.String("username", user.Username))
	s.welcome(ctx, *user)
	return user, nil
}

// Update modifies a teacher's profile and optionally resets the password.
func (s *TeacherService) Update(ctx context.Context, id string, req models.UpdateTeacherRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	className := strings.TrimSpace(req.ClassName)
	section := strings.ToUpper(strings.TrimSpace(req.Section))
	user.FullName = strings.TrimSpace(req.FullName)
	user.ClassName = &className
	user.Section = &section
	if req.Email != nil && strings.TrimSpace(*req.Email) != "" {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		user.PasswordHash = string(hash)
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	return user, nil
}

// SetStatus toggles whether the teacher may sign in. Deactivation ends open sessions.
func (s *TeacherService) SetStatus(ctx context.Context, id string, req models.UpdateTeacherStatusRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetActive(ctx, id, *req.Active); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher status")
	}
	if !*req.Active {
		if err := s.repo.RevokeUserRefreshTokens(ctx, id); err != nil {
			s.logger.Warn("failed to revoke sessions", zap.String("teacher_id", id), zap.Error(err))
		}
	}
	user.Active = *req.Active
	return user, nil
}

// Delete removes a teacher without students.
func (s *TeacherService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	count, err := s.students.CountByTeacher(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("teacher still has %d students", count))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete teacher")
	}
	return nil
}

func (s *TeacherService) welcome(ctx context.Context, teacher models.User) {
	if s.mailer == nil {
		return
	}
	if s.queue != nil {
		_, err := s.queue.Enqueue(jobs.Job{Type: JobTypeTeacherWelcome, Payload: teacher})
		if err == nil {
			return
		}
		s.logger.Warn("failed to queue welcome mail", zap.Error(err))
	}
	err := s.mailer.SendTeacherWelcome(ctx, teacher)
	s.metrics.ObserveNotification("email", err)
	if err != nil {
		s.logger.Warn("welcome mail failed", zap.String("teacher_id", teacher.ID), zap.Error(err))
	}
}
