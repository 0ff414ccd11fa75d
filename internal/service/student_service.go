package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/student-tracker-api/internal/models"
	appErrors "github.com/noah-isme/student-tracker-api/pkg/errors"
	"github.com/noah-isme/student-tracker-api/pkg/events"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ExistsByNumber(ctx context.Context, teacherID, studentNo, excludeID string) (bool, error)
	CreateWithParent(ctx context.Context, student *models.Student, parent *models.User) error
	Update(ctx context.Context, student *models.Student) error
	UpdatePhoto(ctx context.Context, id string, key *string) error
	Delete(ctx context.Context, id string) error
}

type usernameLookup interface {
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

type photoStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string) (string, time.Time, error)
	Delete(ctx context.Context, key string) error
}

var photoExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// StudentServiceConfig carries the settings student use-cases depend on.
type StudentServiceConfig struct {
	EmailDomain  string
	MaxPhotoSize int64
}

// StudentDeletedEvent is published once a student and their parent account are gone.
type StudentDeletedEvent struct {
	StudentID string    `json:"student_id"`
	TeacherID string    `json:"teacher_id"`
	DeletedBy string    `json:"deleted_by"`
	DeletedAt time.Time `json:"deleted_at"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	users     usernameLookup
	photos    photoStore
	cache     *CacheService
	events    eventPublisher
	validator *validator.Validate
	logger    *zap.Logger
	cfg       StudentServiceConfig
}

// NewStudentService constructs the student service. photos may be nil when
// photo storage is disabled.
func NewStudentService(repo studentRepository, users usernameLookup, photos photoStore, cache *CacheService, publisher eventPublisher, validate *validator.Validate, logger *zap.Logger, cfg StudentServiceConfig) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EmailDomain == "" {
		cfg.EmailDomain = "school.local"
	}
	if cfg.MaxPhotoSize <= 0 {
		cfg.MaxPhotoSize = 2 * 1024 * 1024
	}
	return &StudentService{
		repo:      repo,
		users:     users,
		photos:    photos,
		cache:     cache,
		events:    publisher,
		validator: ensureValidator(validate),
		logger:    logger,
		cfg:       cfg,
	}
}

// Authorize loads the student and checks the session may see it. Admins see
// everyone, teachers their own roster and parents only their child.
func (s *StudentService) Authorize(ctx context.Context, session *models.JWTClaims, studentID string) (*models.StudentDetail, error) {
	if session == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	student, err := s.repo.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	switch session.Role {
	case models.RoleAdmin:
		return student, nil
	case models.RoleTeacher:
		if student.TeacherID == session.UserID {
			return student, nil
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student belongs to another teacher")
	case models.RoleParent:
		if student.ParentID != nil && *student.ParentID == session.UserID {
			return student, nil
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "parents can only access their own child")
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role is not allowed")
	}
}

// List returns the caller's roster and pagination metadata. Teachers only
// see their own students; admins may narrow by teacher.
func (s *StudentService) List(ctx context.Context, session *models.JWTClaims, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	if session == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	switch session.Role {
	case models.RoleTeacher:
		filter.TeacherID = session.UserID
	case models.RoleAdmin:
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "roster access requires a staff account")
	}

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns detailed student information.
func (s *StudentService) Get(ctx context.Context, session *models.JWTClaims, id string) (*models.StudentDetail, error) {
	return s.Authorize(ctx, session, id)
}

// Create registers a student on the teacher's roster together with the
// parent login, in one transaction.
func (s *StudentService) Create(ctx context.Context, session *models.JWTClaims, req models.CreateStudentRequest) (*models.StudentDetail, error) {
	if session == nil || session.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can add students")
	}
	req.TeacherID = session.UserID
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.StudentNo = strings.TrimSpace(req.StudentNo)
	req.ParentUsername = strings.ToLower(strings.TrimSpace(req.ParentUsername))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	taken, err := s.users.ExistsByUsername(ctx, req.ParentUsername)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate parent username")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "parent username already taken")
	}
	if err := s.ensureNumberFree(ctx, req.TeacherID, req.StudentNo, ""); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.ParentPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	relation := req.ParentRelation
	parent := &models.User{
		Username:     req.ParentUsername,
		Email:        fmt.Sprintf("%s@parent.%s", req.ParentUsername, s.cfg.EmailDomain),
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.ParentName),
		Role:         models.RoleParent,
		Active:       true,
		Relation:     &relation,
		Phone:        req.ParentPhone,
	}
	student := &models.Student{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		StudentNo: req.StudentNo,
		TeacherID: req.TeacherID,
	}
	if err := s.repo.CreateWithParent(ctx, student, parent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	s.invalidate(ctx)
	s.logger.Info("student created", zap.String("student_id", student.ID), zap.String("teacher_id", student.TeacherID))
	return &models.StudentDetail{
		Student:        *student,
		ParentUsername: &parent.Username,
		ParentRelation: parent.Relation,
		ParentPhone:    parent.Phone,
	}, nil
}

// Update modifies the student's names and number.
func (s *StudentService) Update(ctx context.Context, session *models.JWTClaims, id string, req models.UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := requireStaff(session); err != nil {
		return nil, err
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.StudentNo = strings.TrimSpace(req.StudentNo)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	detail, err := s.Authorize(ctx, session, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNumberFree(ctx, detail.TeacherID, req.StudentNo, id); err != nil {
		return nil, err
	}

	detail.FirstName = req.FirstName
	detail.LastName = req.LastName
	detail.StudentNo = req.StudentNo
	if err := s.repo.Update(ctx, &detail.Student); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	s.invalidate(ctx)
	return detail, nil
}

// Delete removes the student together with records, messages, assignments
// and the parent account.
func (s *StudentService) Delete(ctx context.Context, session *models.JWTClaims, id string) error {
	if err := requireStaff(session); err != nil {
		return err
	}
	detail, err := s.Authorize(ctx, session, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}

	if detail.PhotoKey != nil && s.photos != nil {
		if err := s.photos.Delete(ctx, *detail.PhotoKey); err != nil {
			s.logger.Warn("failed to remove student photo", zap.String("student_id", id), zap.Error(err))
		}
	}
	if s.events != nil {
		evt := StudentDeletedEvent{StudentID: id, TeacherID: detail.TeacherID, DeletedBy: session.UserID, DeletedAt: time.Now().UTC()}
		if err := s.events.Publish(ctx, events.RoutingStudentDeleted, evt); err != nil {
			s.logger.Warn("event publish failed", zap.String("routing_key", events.RoutingStudentDeleted), zap.Error(err))
		}
	}
	s.invalidate(ctx)
	return nil
}

// UploadPhoto stores a new photo for the student and replaces the previous one.
func (s *StudentService) UploadPhoto(ctx context.Context, session *models.JWTClaims, id string, r io.Reader, size int64, contentType string) (*models.StudentPhoto, error) {
	if s.photos == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "photo storage is disabled")
	}
	if err := requireStaff(session); err != nil {
		return nil, err
	}
	ext, ok := photoExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "photo must be a jpeg, png or webp image")
	}
	if size <= 0 || size > s.cfg.MaxPhotoSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("photo must be between 1 and %d bytes", s.cfg.MaxPhotoSize))
	}
	detail, err := s.Authorize(ctx, session, id)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("students/%s/%s.%s", id, uuid.NewString(), ext)
	if err := s.photos.Put(ctx, key, io.LimitReader(r, size), size, contentType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "failed to store photo")
	}
	if err := s.repo.UpdatePhoto(ctx, id, &key); err != nil {
		_ = s.photos.Delete(ctx, key)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save photo reference")
	}
	if detail.PhotoKey != nil && *detail.PhotoKey != key {
		if err := s.photos.Delete(ctx, *detail.PhotoKey); err != nil {
			s.logger.Warn("failed to remove previous photo", zap.String("student_id", id), zap.Error(err))
		}
	}
	return s.presign(ctx, id, key)
}

// Photo returns a short-lived link to the student's photo.
func (s *StudentService) Photo(ctx context.Context, session *models.JWTClaims, id string) (*models.StudentPhoto, error) {
	if s.photos == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "photo storage is disabled")
	}
	detail, err := s.Authorize(ctx, session, id)
	if err != nil {
		return nil, err
	}
	if detail.PhotoKey == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student has no photo")
	}
	return s.presign(ctx, id, *detail.PhotoKey)
}

func (s *StudentService) presign(ctx context.Context, id, key string) (*models.StudentPhoto, error) {
	url, expires, err := s.photos.PresignGet(ctx, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "failed to sign photo url")
	}
	return &models.StudentPhoto{StudentID: id, URL: url, ExpiresAt: expires}, nil
}

func (s *StudentService) ensureNumberFree(ctx context.Context, teacherID, studentNo, excludeID string) error {
	exists, err := s.repo.ExistsByNumber(ctx, teacherID, studentNo, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student number")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "student number already used in this class")
	}
	return nil
}

func (s *StudentService) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, CacheKey("leaderboard", "*"))
	_ = s.cache.Invalidate(ctx, CacheKey("dashboard", "*"))
}

func requireStaff(session *models.JWTClaims) error {
	if session == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if session.Role != models.RoleAdmin && session.Role != models.RoleTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "staff account required")
	}
	return nil
}
