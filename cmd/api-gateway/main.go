package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/student-tracker-api/api/swagger"
	"github.com/noah-isme/student-tracker-api/internal/handler"
	"github.com/noah-isme/student-tracker-api/internal/middleware"
	"github.com/noah-isme/student-tracker-api/internal/models"
	"github.com/noah-isme/student-tracker-api/internal/notify"
	"github.com/noah-isme/student-tracker-api/internal/repository"
	"github.com/noah-isme/student-tracker-api/internal/service"
	"github.com/noah-isme/student-tracker-api/pkg/cache"
	"github.com/noah-isme/student-tracker-api/pkg/config"
	"github.com/noah-isme/student-tracker-api/pkg/database"
	"github.com/noah-isme/student-tracker-api/pkg/events"
	"github.com/noah-isme/student-tracker-api/pkg/jobs"
	"github.com/noah-isme/student-tracker-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/student-tracker-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/student-tracker-api/pkg/middleware/requestid"
	"github.com/noah-isme/student-tracker-api/pkg/observability"
	"github.com/noah-isme/student-tracker-api/pkg/storage"
)

// @title Student Tracker API
// @version 1.0.0
// @description Activity logging, scoring and dashboards for teachers, parents and admins.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type publisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

type activityNotifier interface {
	NotifyActivity(ctx context.Context, alert notify.ActivityAlert) error
}

type accountMailer interface {
	SendTeacherWelcome(ctx context.Context, teacher models.User) error
	SendPasswordReset(ctx context.Context, user models.User, link string, ttl time.Duration) error
}

// integrations holds the optional backends. Unset fields stay nil interfaces.
type integrations struct {
	photos    storage.ObjectStore
	files     *storage.LocalStorage
	minio     *storage.MinIOStore
	events    publisher
	notifier  activityNotifier
	mailer    accountMailer
	closeFunc []func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	flush, err := observability.InitSentry(cfg.Sentry.DSN, cfg.Env, cfg.Sentry.Release)
	if err != nil {
		logr.Warn("sentry disabled", zap.Error(err))
	} else {
		defer flush()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(ctx, db.DB); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logr.Info("migrations applied")
	}

	metrics := service.NewMetricsService()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	ext, err := connectIntegrations(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer func() {
		for _, closeFn := range ext.closeFunc {
			closeFn()
		}
	}()

	queue := jobs.NewQueue("student-tracker", jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.Retries,
		Logger:     logr,
	})

	validate := service.NewValidator()
	loc := cfg.Location()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)

	authSvc := service.NewAuthService(userRepo, studentRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, userRepo, ext.photos, cacheSvc, ext.events, validate, logr, service.StudentServiceConfig{
		EmailDomain:  cfg.EmailDomain,
		MaxPhotoSize: cfg.Storage.MaxPhotoSize,
	})
	scoreSvc := service.NewScoreService(studentRepo, activityRepo, studentSvc, cacheSvc, metrics, ext.events, service.NewExportService(nil, nil, nil), logr, service.ScoreServiceConfig{
		Workers:        cfg.Scoring.RecomputeWorkers,
		LeaderboardTTL: cfg.Scoring.LeaderboardTTL,
	})
	activitySvc := service.NewActivityService(activityRepo, studentSvc, scoreSvc, userRepo, ext.notifier, ext.events, metrics, validate, logr)
	chartSvc := service.NewChartService(activityRepo, studentSvc, loc, logr)
	teacherSvc := service.NewTeacherService(userRepo, studentRepo, ext.mailer, metrics, validate, logr, cfg.EmailDomain)
	messageSvc := service.NewMessageService(messageRepo, studentSvc, cacheSvc, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, studentSvc, cacheSvc, validate, logr)
	resetSvc := service.NewPasswordResetService(userRepo, ext.mailer, validate, logr, service.PasswordResetConfig{
		TTL:      cfg.Notifications.PasswordResetTTL,
		LinkBase: cfg.Notifications.PasswordResetURL,
	})

	scoreSvc.RegisterJobs(queue)
	activitySvc.RegisterJobs(queue)
	teacherSvc.RegisterJobs(queue)
	queue.Start(ctx)
	defer queue.Stop()

	handlers := handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		PasswordReset: handler.NewPasswordResetHandler(resetSvc),
		Users:         handler.NewUserHandler(userSvc),
		Students:      handler.NewStudentHandler(studentSvc),
		Activities:    handler.NewActivityHandler(activitySvc, loc),
		Scores:        handler.NewScoreHandler(scoreSvc),
		Charts:        handler.NewChartHandler(chartSvc),
		Teachers:      handler.NewTeacherHandler(teacherSvc),
		Messages:      handler.NewMessageHandler(messageSvc, assignmentSvc),
		Metrics:       handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient, cacheRepo, ext.minio)),
	}
	if cfg.Dashboard.Enabled {
		handlers.Dashboard = handler.NewDashboardHandler(service.NewDashboardService(service.DashboardServiceParams{
			Analytics:   analyticsRepo,
			Students:    studentRepo,
			Messages:    messageRepo,
			Assignments: assignmentRepo,
			Cache:       cacheSvc,
			Metrics:     metrics,
			Logger:      logr,
			Config: service.DashboardServiceConfig{
				CacheTTL: cfg.Dashboard.CacheTTL,
				Location: loc,
			},
		}))
	}
	if ext.files != nil {
		handlers.Files = handler.NewFileHandler(ext.files)
	}

	r := gin.New()
	r.Use(logger.Recovery(logr))
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	handler.RegisterRoutes(r, handlers, handler.RouterConfig{
		APIPrefix: cfg.APIPrefix,
		Tokens:    authSvc,
		Audit:     userRepo,
		Logger:    logr,
		Swagger:   cfg.Env != config.EnvProduction,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// connectIntegrations dials the optional backends. Only photo storage is
// fatal when enabled; notification and event channels degrade to no-ops.
func connectIntegrations(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*integrations, error) {
	ext := &integrations{}

	if cfg.Storage.Enabled {
		store, err := storage.NewMinIOStore(ctx, cfg.Storage, logr)
		if err != nil {
			return nil, fmt.Errorf("connect object storage: %w", err)
		}
		ext.minio = store
		ext.photos = store
	} else {
		prefix := cfg.APIPrefix
		if prefix == "" {
			prefix = "/api/v1"
		}
		signer := storage.NewSignedURLSigner(cfg.JWT.Secret, cfg.Storage.PresignTTL)
		local, err := storage.NewLocalStorage(cfg.Storage.LocalDir, prefix+"/files", signer)
		if err != nil {
			return nil, fmt.Errorf("prepare local storage: %w", err)
		}
		ext.files = local
		ext.photos = local
	}

	if cfg.Events.Enabled {
		pub, err := events.NewRabbitMQPublisher(cfg.Events.URL, cfg.Events.Exchange, logr)
		if err != nil {
			logr.Warn("event publishing disabled", zap.Error(err))
		} else {
			ext.events = pub
			ext.closeFunc = append(ext.closeFunc, func() {
				if err := pub.Close(); err != nil {
					logr.Warn("close rabbitmq", zap.Error(err))
				}
			})
		}
	}

	if token := cfg.Notifications.TelegramBotToken; token != "" {
		bot, err := notify.NewTelegramNotifier(token, logr)
		if err != nil {
			logr.Warn("telegram alerts disabled", zap.Error(err))
		} else {
			ext.notifier = bot
		}
	}

	if key := cfg.Notifications.SendGridAPIKey; key != "" {
		ext.mailer = notify.NewSendGridMailer(key, cfg.Notifications.AppName, cfg.Notifications.FromEmail, logr)
	}

	return ext, nil
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client, cacheRepo *repository.CacheRepository, store *storage.MinIOStore) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = cacheRepo.Ping
	}
	if store != nil {
		checks["storage"] = store.Ping
	}
	return checks
}
