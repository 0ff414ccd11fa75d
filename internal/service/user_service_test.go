package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/student-tracker-api/internal/models"
	appErrors "github.com/noah-isme/student-tracker-api/pkg/errors"
)

type mockAccountRepo struct {
	users   map[string]*models.User
	revoked []string
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAccountRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = hash
	return nil
}

func (m *mockAccountRepo) SetTelegramChatID(ctx context.Context, id string, chatID *int64) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.TelegramChatID = chatID
	return nil
}

func (m *mockAccountRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revoked = append(m.revoked, userID)
	return nil
}

func newAccountFixture(t *testing.T) *mockAccountRepo {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	return &mockAccountRepo{users: map[string]*models.User{
		"p1": {ID: "p1", Username: "veli", Role: models.RoleParent, PasswordHash: string(hash)},
	}}
}

func TestUserServiceProfile(t *testing.T) {
	svc := NewUserService(newAccountFixture(t), nil, nil)

	user, err := svc.Profile(context.Background(), &models.JWTClaims{UserID: "p1", Role: models.RoleParent})
	require.NoError(t, err)
	assert.Equal(t, "veli", user.Username)

	_, err = svc.Profile(context.Background(), nil)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.Profile(context.Background(), &models.JWTClaims{UserID: "ghost"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUserServiceChangePassword(t *testing.T) {
	repo := newAccountFixture(t)
	svc := NewUserService(repo, nil, nil)
	session := &models.JWTClaims{UserID: "p1", Role: models.RoleParent}

	err := svc.ChangePassword(context.Background(), session, models.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "another1"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	err = svc.ChangePassword(context.Background(), session, models.ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret1"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	require.NoError(t, svc.ChangePassword(context.Background(), session, models.ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "another1"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["p1"].PasswordHash), []byte("another1")))
	assert.Equal(t, []string{"p1"}, repo.revoked)
}

func TestUserServiceLinkTelegram(t *testing.T) {
	repo := newAccountFixture(t)
	svc := NewUserService(repo, nil, nil)
	session := &models.JWTClaims{UserID: "p1", Role: models.RoleParent}

	user, err := svc.LinkTelegram(context.Background(), session, models.LinkTelegramRequest{ChatID: 4242})
	require.NoError(t, err)
	require.NotNil(t, user.TelegramChatID)
	assert.Equal(t, int64(4242), *user.TelegramChatID)

	user, err = svc.LinkTelegram(context.Background(), session, models.LinkTelegramRequest{})
	require.NoError(t, err)
	assert.Nil(t, user.TelegramChatID)

	_, err = svc.LinkTelegram(context.Background(), &models.JWTClaims{UserID: "ghost"}, models.LinkTelegramRequest{ChatID: 1})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
