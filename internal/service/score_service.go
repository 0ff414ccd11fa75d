package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/student-tracker-api/internal/models"
	"github.com/noah-isme/student-tracker-api/internal/scoring"
	appErrors "github.com/noah-isme/student-tracker-api/pkg/errors"
	"github.com/noah-isme/student-tracker-api/pkg/events"
	"github.com/noah-isme/student-tracker-api/pkg/jobs"
)

// JobTypeRecomputeAll is the queue job type for asynchronous bulk recomputes.
const JobTypeRecomputeAll = "score.recompute_all"

const leaderboardLimit = 500

type scoreStudentRepository interface {
	IDs(ctx context.Context, teacherID string) ([]string, error)
	Ranked(ctx context.Context, teacherID string, limit int) ([]models.Student, error)
}

type scoreActivityRepository interface {
	ListByStudent(ctx context.Context, studentID string, categories ...models.ActivityCategory) ([]models.ActivityRecord, error)
}

// scoreLedger runs a fold over a student's history and persists the result
// atomically with the optional append.
type scoreLedger interface {
	AppendScored(ctx context.Context, record *models.ActivityRecord, fold models.ScoreFold) (models.ScoreSummary, error)
	Rescore(ctx context.Context, studentID string, fold models.ScoreFold) (models.ScoreSummary, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

type studentAuthorizer interface {
	Authorize(ctx context.Context, session *models.JWTClaims, studentID string) (*models.StudentDetail, error)
}

type jobQueue interface {
	Register(jobType string, handler jobs.Handler)
	Enqueue(job jobs.Job) (string, error)
	Status(id string) (jobs.Status, bool)
}

// ScoreServiceConfig tunes recomputation and leaderboard caching.
type ScoreServiceConfig struct {
	Workers        int
	LeaderboardTTL time.Duration
}

// ScoreService recomputes persisted score summaries and serves rankings.
type ScoreService struct {
	students   scoreStudentRepository
	ledger     scoreLedger
	access     studentAuthorizer
	cache      *CacheService
	metrics    *MetricsService
	events     eventPublisher
	exporter   *ExportService
	queue      jobQueue
	logger     *zap.Logger
	cfg        ScoreServiceConfig
	now        func() time.Time
}

// NewScoreService constructs a ScoreService.
func NewScoreService(students scoreStudentRepository, ledger scoreLedger, access studentAuthorizer, cache *CacheService, metrics *MetricsService, publisher eventPublisher, exporter *ExportService, logger *zap.Logger, cfg ScoreServiceConfig) *ScoreService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if exporter == nil {
		exporter = NewExportService(nil, nil, nil)
	}
	return &ScoreService{
		students:   students,
		ledger:     ledger,
		access:     access,
		cache:      cache,
		metrics:    metrics,
		events:     publisher,
		exporter:   exporter,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// RegisterJobs attaches the bulk recompute handler to the queue and enables
// asynchronous recomputes.
func (s *ScoreService) RegisterJobs(queue jobQueue) {
	if queue == nil {
		return
	}
	s.queue = queue
	queue.Register(JobTypeRecomputeAll, func(ctx context.Context, job jobs.Job) (interface{}, error) {
		teacherID, _ := job.Payload.(string)
		return s.RecomputeAll(ctx, teacherID)
	})
}

// Recompute refreshes one student's summary after checking the caller may see it.
func (s *ScoreService) Recompute(ctx context.Context, session *models.JWTClaims, studentID string) (*models.ScoreSummary, error) {
	if session == nil || session.Role == models.RoleParent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff can recompute scores")
	}
	if _, err := s.access.Authorize(ctx, session, studentID); err != nil {
		return nil, err
	}
	return s.RecomputeOne(ctx, studentID)
}

// RecomputeOne folds every stored record of the student into a fresh summary
// and overwrites the persisted one.
func (s *ScoreService) RecomputeOne(ctx context.Context, studentID string) (*models.ScoreSummary, error) {
	return s.settle(ctx, func(fold models.ScoreFold) (models.ScoreSummary, error) {
		return s.ledger.Rescore(ctx, studentID, fold)
	})
}

// AppendAndRecompute stores the record and refreshes the owning student's
// summary in one step. On error nothing is stored.
func (s *ScoreService) AppendAndRecompute(ctx context.Context, record *models.ActivityRecord) (*models.ScoreSummary, error) {
	return s.settle(ctx, func(fold models.ScoreFold) (models.ScoreSummary, error) {
		return s.ledger.AppendScored(ctx, record, fold)
	})
}

func (s *ScoreService) settle(ctx context.Context, run func(models.ScoreFold) (models.ScoreSummary, error)) (summary *models.ScoreSummary, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveRecompute(err, time.Since(start)) }()

	computed, err := run(s.fold)
	if err != nil {
		var verr *scoring.ValidationError
		switch {
		case errors.As(err, &verr):
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidRecord.Code, appErrors.ErrInvalidRecord.Status, verr.Error())
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "student not found")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist score")
		}
	}

	s.publish(ctx, events.RoutingScoreRecomputed, computed)
	_ = s.cache.Invalidate(ctx, CacheKey("leaderboard", "*"))
	_ = s.cache.Invalidate(ctx, CacheKey("dashboard", "*"))

	return &computed, nil
}

func (s *ScoreService) fold(records []models.ActivityRecord) (models.ScoreSummary, error) {
	computed, err := scoring.ComputeSummary(records)
	if err != nil {
		return computed, err
	}
	computed.LastComputedAt = s.now().UTC()
	return computed, nil
}

// RecomputeAll recomputes every student of the teacher, or every student when
// teacherID is empty. A failing student is recorded and does not stop the rest.
func (s *ScoreService) RecomputeAll(ctx context.Context, teacherID string) (*models.RecomputeResult, error) {
	ids, err := s.students.IDs(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	result := &models.RecomputeResult{Total: len(ids), StartedAt: s.now().UTC()}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			_, err := s.RecomputeOne(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.FailedIDs = append(result.FailedIDs, id)
				s.logger.Warn("score recompute failed", zap.String("student_id", id), zap.Error(err))
				return nil
			}
			result.Succeeded++
			return nil
		})
	}
	_ = g.Wait()

	result.Duration = time.Since(result.StartedAt).Round(time.Millisecond).String()
	if err := ctx.Err(); err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "recompute cancelled")
	}

	s.logger.Info("bulk score recompute finished",
		zap.String("teacher_id", teacherID),
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// RecomputeScoped runs a bulk recompute for the caller's roster. Admins cover
// every student. With async set the work is queued and the job id returned.
func (s *ScoreService) RecomputeScoped(ctx context.Context, session *models.JWTClaims, async bool) (*models.RecomputeResult, error) {
	teacherID, err := rosterScope(session)
	if err != nil {
		return nil, err
	}
	if !async {
		return s.RecomputeAll(ctx, teacherID)
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "background jobs are disabled")
	}
	id, err := s.queue.Enqueue(jobs.Job{Type: JobTypeRecomputeAll, Payload: teacherID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "failed to queue recompute")
	}
	return &models.RecomputeResult{JobID: id, StartedAt: s.now().UTC()}, nil
}

// JobStatus reports a queued recompute.
func (s *ScoreService) JobStatus(id string) (*jobs.Status, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	status, ok := s.queue.Status(id)
	if !ok || status.Type != JobTypeRecomputeAll {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	return &status, nil
}

// Leaderboard returns the caller's ranked roster, served from cache when possible.
// The boolean reports a cache hit.
func (s *ScoreService) Leaderboard(ctx context.Context, session *models.JWTClaims) ([]models.LeaderboardEntry, bool, error) {
	teacherID, err := rosterScope(session)
	if err != nil {
		return nil, false, err
	}
	scope := teacherID
	if scope == "" {
		scope = "all"
	}
	return remember(ctx, s.cache, CacheKey("leaderboard", scope), s.cfg.LeaderboardTTL, func(ctx context.Context) ([]models.LeaderboardEntry, error) {
		students, err := s.students.Ranked(ctx, teacherID, leaderboardLimit)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leaderboard")
		}
		return rankEntries(students), nil
	})
}

// ExportLeaderboard renders the caller's leaderboard in the requested format.
func (s *ScoreService) ExportLeaderboard(ctx context.Context, session *models.JWTClaims, format models.ExportFormat) (*models.ExportFile, error) {
	entries, _, err := s.Leaderboard(ctx, session)
	if err != nil {
		return nil, err
	}
	title := fmt.Sprintf("Leaderboard %s", s.now().Format("02.01.2006"))
	return s.exporter.Leaderboard(entries, title, format)
}

func (s *ScoreService) publish(ctx context.Context, key string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, key, payload); err != nil {
		s.logger.Warn("event publish failed", zap.String("routing_key", key), zap.Error(err))
	}
}

func rankEntries(students []models.Student) []models.LeaderboardEntry {
	entries := make([]models.LeaderboardEntry, 0, len(students))
	for i, st := range students {
		entries = append(entries, models.LeaderboardEntry{
			Rank:       i + 1,
			StudentID:  st.ID,
			StudentNo:  st.StudentNo,
			FullName:   st.FullName(),
			TotalScore: st.TotalScore,
			MedalCount: st.MedalCount,
		})
	}
	return entries
}

// rosterScope resolves the teacher filter for roster-wide operations. Admins
// get the empty scope, parents are refused.
func rosterScope(session *models.JWTClaims) (string, error) {
	if session == nil {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	switch session.Role {
	case models.RoleAdmin:
		return "", nil
	case models.RoleTeacher:
		return session.UserID, nil
	default:
		return "", appErrors.Clone(appErrors.ErrForbidden, "roster access requires a staff account")
	}
}
