package service

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/student-tracker-api/internal/models"
	appErrors "github.com/noah-isme/student-tracker-api/pkg/errors"
)

type memoryResets struct {
	users  map[string]*models.User
	resets []*models.PasswordReset
}

func (m *memoryResets) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	for _, user := range m.users {
		if strings.EqualFold(user.Email, identifier) || strings.EqualFold(user.Username, identifier) {
			copy := *user
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryResets) CreatePasswordReset(ctx context.Context, reset *models.PasswordReset) error {
	copy := *reset
	m.resets = append(m.resets, &copy)
	return nil
}

func (m *memoryResets) ConsumePasswordReset(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error) {
	for _, reset := range m.resets {
		if reset.TokenHash != tokenHash || reset.UsedAt != nil || !reset.ExpiresAt.After(now) {
			continue
		}
		used := now
		reset.UsedAt = &used
		m.users[reset.UserID].PasswordHash = passwordHash
		return reset.UserID, nil
	}
	return "", sql.ErrNoRows
}

type resetOutbox struct {
	to   []models.User
	link []string
	err  error
}

func (o *resetOutbox) SendPasswordReset(ctx context.Context, user models.User, link string, ttl time.Duration) error {
	if o.err != nil {
		return o.err
	}
	o.to = append(o.to, user)
	o.link = append(o.link, link)
	return nil
}

func newResetFixture() (*memoryResets, *resetOutbox, *PasswordResetService) {
	repo := &memoryResets{users: map[string]*models.User{
		"t1": {ID: "t1", Username: "ayse", Email: "ayse@school.local", Role: models.RoleTeacher, Active: true},
		"t2": {ID: "t2", Username: "mert", Email: "mert@school.local", Role: models.RoleTeacher, Active: false},
	}}
	outbox := &resetOutbox{}
	svc := NewPasswordResetService(repo, outbox, nil, nil, PasswordResetConfig{LinkBase: "https://tracker.test/reset"})
	svc.now = func() time.Time { return time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC) }
	return repo, outbox, svc
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	token := parsed.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

func TestPasswordResetRoundTrip(t *testing.T) {
	repo, outbox, svc := newResetFixture()
	ctx := context.Background()

	require.NoError(t, svc.RequestReset(ctx, models.ForgotPasswordRequest{Email: "AYSE@school.local"}))
	require.Len(t, outbox.link, 1)
	assert.Equal(t, "t1", outbox.to[0].ID)
	require.Len(t, repo.resets, 1)
	assert.Equal(t, time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC), repo.resets[0].ExpiresAt)

	token := tokenFromLink(t, outbox.link[0])
	assert.NotEqual(t, token, repo.resets[0].TokenHash)
	assert.Equal(t, hashResetToken(token), repo.resets[0].TokenHash)

	require.NoError(t, svc.Reset(ctx, models.ResetPasswordRequest{Token: token, NewPassword: "fresh-pass"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["t1"].PasswordHash), []byte("fresh-pass")))

	err := svc.Reset(ctx, models.ResetPasswordRequest{Token: token, NewPassword: "second-pass"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestPasswordResetExpiredToken(t *testing.T) {
	_, outbox, svc := newResetFixture()
	ctx := context.Background()

	require.NoError(t, svc.RequestReset(ctx, models.ForgotPasswordRequest{Email: "ayse@school.local"}))
	token := tokenFromLink(t, outbox.link[0])

	svc.now = func() time.Time { return time.Date(2024, 3, 4, 10, 0, 1, 0, time.UTC) }
	err := svc.Reset(ctx, models.ResetPasswordRequest{Token: token, NewPassword: "fresh-pass"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestPasswordResetRequestDoesNotRevealAccounts(t *testing.T) {
	repo, outbox, svc := newResetFixture()
	ctx := context.Background()

	assert.NoError(t, svc.RequestReset(ctx, models.ForgotPasswordRequest{Email: "nobody@school.local"}))
	assert.NoError(t, svc.RequestReset(ctx, models.ForgotPasswordRequest{Email: "mert@school.local"}))
	assert.Empty(t, outbox.link)
	assert.Empty(t, repo.resets)

	err := svc.RequestReset(ctx, models.ForgotPasswordRequest{Email: "not-an-email"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestPasswordResetRequiresMailer(t *testing.T) {
	repo, _, _ := newResetFixture()
	svc := NewPasswordResetService(repo, nil, nil, nil, PasswordResetConfig{})

	err := svc.RequestReset(context.Background(), models.ForgotPasswordRequest{Email: "ayse@school.local"})
	assert.ErrorIs(t, err, appErrors.ErrServiceUnavailable)
}

func TestPasswordResetMailFailure(t *testing.T) {
	_, outbox, svc := newResetFixture()
	outbox.err = errors.New("sendgrid down")

	err := svc.RequestReset(context.Background(), models.ForgotPasswordRequest{Email: "ayse@school.local"})
	assert.ErrorIs(t, err, appErrors.ErrServiceUnavailable)
}

func TestPasswordResetRejectsShortPassword(t *testing.T) {
	_, _, svc := newResetFixture()

	err := svc.Reset(context.Background(), models.ResetPasswordRequest{Token: "abc", NewPassword: "123"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
