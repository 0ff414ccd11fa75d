package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/student-tracker-api/internal/models"
	appErrors "github.com/noah-isme/student-tracker-api/pkg/errors"
)

const defaultPasswordResetTTL = time.Hour

type passwordResetRepository interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	CreatePasswordReset(ctx context.Context, reset *models.PasswordReset) error
	ConsumePasswordReset(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error)
}

type resetMailer interface {
	SendPasswordReset(ctx context.Context, user models.User, link string, ttl time.Duration) error
}

// PasswordResetConfig controls reset link lifetime and the page it points to.
type PasswordResetConfig struct {
	TTL      time.Duration
	LinkBase string
}

// PasswordResetService issues single-use reset links by email and redeems them.
type PasswordResetService struct {
	repo      passwordResetRepository
	mailer    resetMailer
	validator *validator.Validate
	logger    *zap.Logger
	cfg       PasswordResetConfig
	now       func() time.Time
}

// NewPasswordResetService creates an instance of PasswordResetService. A nil
// mailer leaves the flow disabled.
func NewPasswordResetService(repo passwordResetRepository, mailer resetMailer, validate *validator.Validate, logger *zap.Logger, cfg PasswordResetConfig) *PasswordResetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultPasswordResetTTL
	}
	return &PasswordResetService{
		repo:      repo,
		mailer:    mailer,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// RequestReset mails a reset link when the address belongs to an active
// account. Unknown addresses succeed silently.
func (s *PasswordResetService) RequestReset(ctx context.Context, req models.ForgotPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid email address")
	}
	if s.mailer == nil {
		return appErrors.Clone(appErrors.ErrServiceUnavailable, "password reset by email is not configured")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.repo.FindByIdentifier(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("password reset requested for unknown address")
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up account")
	}
	if !user.Active || strings.ToLower(user.Email) != email {
		s.logger.Info("password reset skipped", zap.String("user_id", user.ID))
		return nil
	}

	token, err := newResetToken()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue reset token")
	}
	now := s.now().UTC()
	reset := &models.PasswordReset{
		UserID:    user.ID,
		TokenHash: hashResetToken(token),
		ExpiresAt: now.Add(s.cfg.TTL),
		CreatedAt: now,
	}
	if err := s.repo.CreatePasswordReset(ctx, reset); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store reset token")
	}
	if err := s.mailer.SendPasswordReset(ctx, *user, s.resetLink(token), s.cfg.TTL); err != nil {
		return appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "failed to send reset mail")
	}
	s.logger.Info("password reset mailed", zap.String("user_id", user.ID))
	return nil
}

// Reset redeems a token and replaces the password. Outstanding sessions are
// revoked in the same transaction.
func (s *PasswordResetService) Reset(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset payload")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	userID, err := s.repo.ConsumePasswordReset(ctx, hashResetToken(strings.TrimSpace(req.Token)), string(hash), s.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "reset link is invalid or expired")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset password")
	}
	s.logger.Info("password reset completed", zap.String("user_id", userID))
	return nil
}

func (s *PasswordResetService) resetLink(token string) string {
	base := s.cfg.LinkBase
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// hashResetToken is the only form of the token that is persisted.
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
