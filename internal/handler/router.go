package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/student-tracker-api/internal/middleware"
	"github.com/noah-isme/student-tracker-api/internal/models"
)

// Handlers bundles every HTTP handler. Dashboard, Files and PasswordReset
// may be nil when the feature is disabled.
type Handlers struct {
	Auth          *AuthHandler
	PasswordReset *PasswordResetHandler
	Users         *UserHandler
	Students      *StudentHandler
	Activities    *ActivityHandler
	Scores        *ScoreHandler
	Charts        *ChartHandler
	Dashboard     *DashboardHandler
	Teachers      *TeacherHandler
	Messages      *MessageHandler
	Metrics       *MetricsHandler
	Files         *FileHandler
}

// RouterConfig carries the cross-cutting collaborators of the route table.
type RouterConfig struct {
	APIPrefix string
	Tokens    middleware.TokenValidator
	Audit     middleware.AuditWriter
	Logger    *zap.Logger
	Swagger   bool
}

// RegisterRoutes mounts the API on the engine.
func RegisterRoutes(r *gin.Engine, h Handlers, cfg RouterConfig) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if cfg.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)
	api.Use(middleware.WithResponseMeta())
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(cfg.Audit, cfg.Logger, action, resource, "id")
	}

	if h.Files != nil {
		api.GET("/files/:token", h.Files.Download)
	}

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	if h.PasswordReset != nil {
		auth.POST("/password/forgot", h.PasswordReset.Forgot)
		auth.POST("/password/reset", h.PasswordReset.Reset)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(cfg.Tokens))
	secured.POST("/auth/logout", h.Auth.Logout)
	secured.GET("/auth/me", h.Auth.Me)

	secured.GET("/account", h.Users.Profile)
	secured.PUT("/account/password", h.Users.ChangePassword)
	secured.PUT("/account/telegram", h.Users.LinkTelegram)

	staff := middleware.StaffOnly()
	teacherOnly := middleware.RequireRoles(models.RoleTeacher)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	if h.Dashboard != nil {
		secured.GET("/dashboard", h.Dashboard.Get)
		secured.GET("/dashboard/classes", adminOnly, h.Dashboard.Classes)
	}

	students := secured.Group("/students")
	students.GET("", staff, h.Students.List)
	students.POST("", teacherOnly, audit(models.AuditActionStudentCreate, "students"), h.Students.Create)
	students.GET("/:id", h.Students.Get)
	students.PUT("/:id", staff, audit(models.AuditActionStudentUpdate, "students"), h.Students.Update)
	students.DELETE("/:id", staff, audit(models.AuditActionStudentDelete, "students"), h.Students.Delete)
	students.GET("/:id/photo", h.Students.Photo)
	students.PUT("/:id/photo", staff, audit(models.AuditActionStudentPhoto, "students"), h.Students.UploadPhoto)

	students.GET("/:id/activities", h.Activities.List)
	students.POST("/:id/activities", staff, audit(models.AuditActionActivityCreate, "activities"), h.Activities.Record)
	students.POST("/:id/score/recompute", staff, audit(models.AuditActionScoreRecompute, "scores"), h.Scores.RecomputeStudent)
	students.GET("/:id/charts/monthly", h.Charts.Monthly)
	students.GET("/:id/charts/series", h.Charts.Series)

	students.GET("/:id/messages", h.Messages.Thread)
	students.POST("/:id/messages", h.Messages.Send)
	students.POST("/:id/messages/read", h.Messages.MarkRead)
	students.GET("/:id/assignments", h.Messages.ListAssignments)
	students.POST("/:id/assignments", staff, audit(models.AuditActionAssignmentCreate, "assignments"), h.Messages.CreateAssignment)
	secured.PATCH("/assignments/:id/complete", h.Messages.CompleteAssignment)

	scores := secured.Group("/scores", staff)
	scores.POST("/recompute", audit(models.AuditActionScoreRecompute, "scores"), h.Scores.RecomputeAll)
	scores.GET("/jobs/:jobId", h.Scores.JobStatus)
	scores.GET("/leaderboard", h.Scores.Leaderboard)
	scores.GET("/leaderboard/export", h.Scores.Export)

	teachers := secured.Group("/teachers", adminOnly)
	teachers.GET("", h.Teachers.List)
	teachers.POST("", audit(models.AuditActionTeacherCreate, "teachers"), h.Teachers.Create)
	teachers.GET("/:id", h.Teachers.Get)
	teachers.GET("/:id/messages", h.Messages.TeacherMessages)
	teachers.PUT("/:id", audit(models.AuditActionTeacherUpdate, "teachers"), h.Teachers.Update)
	teachers.PATCH("/:id/status", audit(models.AuditActionTeacherStatus, "teachers"), h.Teachers.SetStatus)
	teachers.DELETE("/:id", audit(models.AuditActionTeacherDelete, "teachers"), h.Teachers.Delete)

	secured.GET("/admin/metrics", adminOnly, h.Metrics.Snapshot)
}
