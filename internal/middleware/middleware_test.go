package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-tracker-api/internal/models"
	appErrors "github.com/noah-isme/student-tracker-api/pkg/errors"
)

type staticTokens map[string]*models.JWTClaims

func (s staticTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (m *memoryAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, log)
	return nil
}

type observation struct {
	method string
	path   string
	status int
}

type recordingObserver struct {
	seen []observation
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	r.seen = append(r.seen, observation{method: method, path: path, status: status})
}

var testTokens = staticTokens{
	"teacher-token": {UserID: "t1", Role: models.RoleTeacher},
	"parent-token":  {UserID: "p1", Role: models.RoleParent},
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func doRequest(r http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTRejectsMissingAndMalformedTokens(t *testing.T) {
	r := newTestRouter()
	r.GET("/me", JWT(testTokens), func(c *gin.Context) {
		c.String(http.StatusOK, Session(c).UserID+"/"+c.GetString(ContextUserIDKey))
	})

	assert.Equal(t, http.StatusUnauthorized, doRequest(r, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, http.MethodGet, "/me", "forged").Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic teacher-token")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(r, http.MethodGet, "/me", "teacher-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1/t1", rec.Body.String())
}

func TestRequireRoles(t *testing.T) {
	r := newTestRouter()
	r.GET("/staff", JWT(testTokens), StaffOnly(), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/open", RequireRoles(models.RoleParent), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/staff", "teacher-token").Code)
	assert.Equal(t, http.StatusForbidden, doRequest(r, http.MethodGet, "/staff", "parent-token").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, http.MethodGet, "/open", "").Code)
}

func TestAuditRecordsSuccessfulMutations(t *testing.T) {
	writer := &memoryAudit{}
	r := newTestRouter()
	r.POST("/students/:id/activities", JWT(testTokens), Audit(writer, nil, models.AuditActionActivityCreate, "activities", "id"), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	r.DELETE("/students/:id", JWT(testTokens), Audit(writer, nil, models.AuditActionStudentDelete, "students", "id"), func(c *gin.Context) {
		c.Status(http.StatusForbidden)
	})

	doRequest(r, http.MethodPost, "/students/s1/activities", "teacher-token")
	doRequest(r, http.MethodDelete, "/students/s1", "teacher-token")

	require.Len(t, writer.entries, 1)
	entry := writer.entries[0]
	assert.Equal(t, models.AuditActionActivityCreate, entry.Action)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "t1", *entry.UserID)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "s1", *entry.ResourceID)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.NewValues, &payload))
	assert.Equal(t, "/students/:id/activities", payload["path"])
	assert.EqualValues(t, http.StatusCreated, payload["status"])
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	observer := &recordingObserver{}
	r := newTestRouter()
	r.Use(Metrics(observer))
	r.GET("/students/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	doRequest(r, http.MethodGet, "/students/abc", "")
	doRequest(r, http.MethodGet, "/nowhere", "")

	require.Len(t, observer.seen, 2)
	assert.Equal(t, observation{method: http.MethodGet, path: "/students/:id", status: http.StatusOK}, observer.seen[0])
	assert.Equal(t, "unmatched", observer.seen[1].path)
	assert.Equal(t, http.StatusNotFound, observer.seen[1].status)
}

func TestSetCacheHitWritesHeaderAndMeta(t *testing.T) {
	r := newTestRouter()
	r.Use(WithResponseMeta())
	r.GET("/leaderboard", func(c *gin.Context) {
		SetCacheHit(c, true)
		c.JSON(http.StatusOK, ExtractMeta(c))
	})

	rec := doRequest(r, http.MethodGet, "/leaderboard", "")
	assert.Equal(t, "HIT", rec.Header().Get(CacheStatusHeader))
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, true, meta["cache_hit"])
}
