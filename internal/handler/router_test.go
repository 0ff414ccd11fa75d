package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/student-tracker-api/internal/models"
	"github.com/noah-isme/student-tracker-api/internal/service"
	appErrors "github.com/noah-isme/student-tracker-api/pkg/errors"
)

type routerTokens map[string]*models.JWTClaims

func (r routerTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := r[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

type stubAuth struct{}

func (stubAuth) Login(context.Context, models.LoginRequest) (*models.LoginResponse, error) {
	return &models.LoginResponse{AccessToken: "a"}, nil
}

func (stubAuth) RefreshToken(context.Context, models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{}, nil
}

func (stubAuth) Logout(context.Context, string, string, models.LoginRequest) error { return nil }

func (stubAuth) Me(_ context.Context, claims *models.JWTClaims) (*models.UserInfo, error) {
	return &models.UserInfo{ID: claims.UserID, Role: claims.Role}, nil
}

type stubTeachers struct{}

func (stubTeachers) List(context.Context, models.UserFilter) ([]models.TeacherSummary, *models.Pagination, error) {
	return nil, &models.Pagination{}, nil
}
func (stubTeachers) Get(context.Context, string) (*models.User, error) { return &models.User{}, nil }
func (stubTeachers) Create(context.Context, models.CreateTeacherRequest) (*models.User, error) {
	return &models.User{}, nil
}
func (stubTeachers) Update(context.Context, string, models.UpdateTeacherRequest) (*models.User, error) {
	return &models.User{}, nil
}
func (stubTeachers) SetStatus(context.Context, string, models.UpdateTeacherStatusRequest) (*models.User, error) {
	return &models.User{}, nil
}
func (stubTeachers) Delete(context.Context, string) error { return nil }

type stubCharts struct{}

func (stubCharts) Monthly(context.Context, *models.JWTClaims, string, models.ActivityCategory) (*models.MonthlyChart, error) {
	return &models.MonthlyChart{}, nil
}
func (stubCharts) Series(context.Context, *models.JWTClaims, string, models.ActivityCategory) (*models.SeriesChart, error) {
	return &models.SeriesChart{}, nil
}

type stubMessages struct{}

func (stubMessages) Thread(context.Context, *models.JWTClaims, string) ([]models.Message, error) {
	return nil, nil
}
func (stubMessages) Send(context.Context, *models.JWTClaims, string, models.CreateMessageRequest) (*models.Message, error) {
	return &models.Message{}, nil
}
func (stubMessages) MarkRead(context.Context, *models.JWTClaims, string) (int64, error) {
	return 0, nil
}
func (stubMessages) TeacherMessages(context.Context, *models.JWTClaims, string) ([]models.TeacherMessage, error) {
	return []models.TeacherMessage{}, nil
}

type stubAssignments struct{}

func (stubAssignments) Create(context.Context, *models.JWTClaims, string, models.CreateAssignmentRequest) (*models.Assignment, error) {
	return &models.Assignment{}, nil
}
func (stubAssignments) List(context.Context, *models.JWTClaims, string) ([]models.Assignment, error) {
	return nil, nil
}
func (stubAssignments) SetCompleted(context.Context, *models.JWTClaims, string, models.CompleteAssignmentRequest) (*models.Assignment, error) {
	return &models.Assignment{}, nil
}

type stubResets struct{}

func (stubResets) RequestReset(context.Context, models.ForgotPasswordRequest) error { return nil }
func (stubResets) Reset(context.Context, models.ResetPasswordRequest) error         { return nil }

type stubAccounts struct{}

func (stubAccounts) Profile(context.Context, *models.JWTClaims) (*models.User, error) {
	return &models.User{}, nil
}
func (stubAccounts) ChangePassword(context.Context, *models.JWTClaims, models.ChangePasswordRequest) error {
	return nil
}
func (stubAccounts) LinkTelegram(context.Context, *models.JWTClaims, models.LinkTelegramRequest) (*models.User, error) {
	return &models.User{}, nil
}

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, Handlers{
		Auth:          NewAuthHandler(stubAuth{}),
		PasswordReset: NewPasswordResetHandler(stubResets{}),
		Users:         NewUserHandler(stubAccounts{}),
		Students:      NewStudentHandler(&fakeStudentSrv{}),
		Activities:    NewActivityHandler(&fakeActivitySrv{}, nil),
		Scores:        NewScoreHandler(&fakeScoreSrv{}),
		Charts:        NewChartHandler(stubCharts{}),
		Dashboard:     NewDashboardHandler(&fakeDashboardSrv{resp: map[string]int{}}),
		Teachers:      NewTeacherHandler(stubTeachers{}),
		Messages:      NewMessageHandler(stubMessages{}, stubAssignments{}),
		Metrics:       NewMetricsHandler(service.NewMetricsService(), nil),
	}, RouterConfig{
		APIPrefix: "/api/v1",
		Tokens: routerTokens{
			"admin":   {UserID: "a1", Role: models.RoleAdmin},
			"teacher": {UserID: "t1", Role: models.RoleTeacher},
			"parent":  {UserID: "p1", Role: models.RoleParent},
		},
	})
	return r
}

func TestRoutesEnforceRoles(t *testing.T) {
	r := newTestEngine()
	cases := []struct {
		method string
		path   string
		token  string
		want   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusOK},
		{http.MethodGet, "/api/v1/auth/me", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/auth/me", "parent", http.StatusOK},
		{http.MethodGet, "/api/v1/students", "teacher", http.StatusOK},
		{http.MethodGet, "/api/v1/students", "parent", http.StatusForbidden},
		{http.MethodGet, "/api/v1/students/s1", "parent", http.StatusOK},
		{http.MethodGet, "/api/v1/students/s1/charts/series", "parent", http.StatusOK},
		{http.MethodGet, "/api/v1/scores/leaderboard", "parent", http.StatusForbidden},
		{http.MethodGet, "/api/v1/scores/leaderboard", "teacher", http.StatusOK},
		{http.MethodDelete, "/api/v1/students/s1", "parent", http.StatusForbidden},
		{http.MethodGet, "/api/v1/teachers", "teacher", http.StatusForbidden},
		{http.MethodGet, "/api/v1/teachers", "admin", http.StatusOK},
		{http.MethodGet, "/api/v1/admin/metrics", "teacher", http.StatusForbidden},
		{http.MethodGet, "/api/v1/dashboard", "parent", http.StatusOK},
		{http.MethodGet, "/api/v1/dashboard/classes", "teacher", http.StatusForbidden},
		{http.MethodGet, "/api/v1/dashboard/classes", "admin", http.StatusOK},
		{http.MethodGet, "/api/v1/teachers/t1/messages", "teacher", http.StatusForbidden},
		{http.MethodGet, "/api/v1/teachers/t1/messages", "admin", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path+" as "+tc.token, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestPasswordResetRoutesArePublic(t *testing.T) {
	r := newTestEngine()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/password/forgot", strings.NewReader(`{"email":"ayse@school.local"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/password/reset", strings.NewReader(`{"token":"abc","new_password":"fresh-pass"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
