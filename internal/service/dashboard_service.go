package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/student-tracker-api/internal/models"
	appErrors "github.com/noah-isme/student-tracker-api/pkg/errors"
)

type dashboardAnalyticsRepository interface {
	TeacherRosterStats(ctx context.Context, teacherID string) (*models.TeacherRosterStats, error)
	SystemCounts(ctx context.Context, since time.Time) (*models.SystemCounts, error)
	ModuleUsage(ctx context.Context, since time.Time) ([]models.ModuleUsage, error)
	MonthlyRecordCounts(ctx context.Context, since time.Time, timezone string) ([]models.MonthlyCount, error)
	MedalCounts(ctx context.Context) ([]int, error)
	RecentActivities(ctx context.Context, limit int) ([]models.RecentActivity, error)
	ClassDistribution(ctx context.Context) ([]models.ClassCount, error)
	ClassViews(ctx context.Context) ([]models.ClassView, error)
}

type dashboardStudentRepository interface {
	Ranked(ctx context.Context, teacherID string, limit int) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByParentID(ctx context.Context, parentID string) (*models.Student, error)
	ClassRank(ctx context.Context, studentID string) (int, int, error)
}

type unreadCounter interface {
	CountUnread(ctx context.Context, studentID, readerID string) (int, error)
}

type openAssignmentCounter interface {
	CountOpen(ctx context.Context, studentID string) (int, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL       time.Duration
	TopStudents    int
	RecentActivity int
	Location       *time.Location
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Analytics   dashboardAnalyticsRepository
	Students    dashboardStudentRepository
	Messages    unreadCounter
	Assignments openAssignmentCounter
	Cache       *CacheService
	Metrics     *MetricsService
	Logger      *zap.Logger
	Config      DashboardServiceConfig
}

// DashboardService composes the role dashboards.
type DashboardService struct {
	analytics   dashboardAnalyticsRepository
	students    dashboardStudentRepository
	messages    unreadCounter
	assignments openAssignmentCounter
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
	cfg         DashboardServiceConfig
}

// medalBands are the admin distribution buckets; Max < 0 is open-ended.
var medalBands = []struct {
	Label    string
	Min, Max int
}{
	{"0", 0, 0},
	{"1-5", 1, 5},
	{"6-10", 6, 10},
	{"11-20", 11, 20},
	{"21+", 21, -1},
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.TopStudents <= 0 {
		cfg.TopStudents = 5
	}
	if cfg.RecentActivity <= 0 {
		cfg.RecentActivity = 10
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		analytics:   params.Analytics,
		students:    params.Students,
		messages:    params.Messages,
		assignments: params.Assignments,
		cache:       params.Cache,
		metrics:     params.Metrics,
		logger:      logger,
		now:         time.Now,
		cfg:         cfg,
	}
}

// ForSession dispatches to the dashboard matching the caller's role.
func (s *DashboardService) ForSession(ctx context.Context, session *models.JWTClaims) (interface{}, bool, error) {
	if session == nil {
		return nil, false, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	switch session.Role {
	case models.RoleAdmin:
		return s.Admin(ctx)
	case models.RoleTeacher:
		return s.Teacher(ctx, session.UserID)
	case models.RoleParent:
		return s.Parent(ctx, session.UserID)
	}
	return nil, false, appErrors.Clone(appErrors.ErrForbidden, "role has no dashboard")
}

// Teacher returns roster totals and the top students and indicates cache utilisation.
func (s *DashboardService) Teacher(ctx context.Context, teacherID string) (*models.TeacherDashboard, bool, error) {
	if teacherID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "teacherId is required")
	}
	return remember(ctx, s.cache, CacheKey("dashboard", "teacher", teacherID), s.cfg.CacheTTL, func(ctx context.Context) (*models.TeacherDashboard, error) {
		defer s.observe("dashboard_teacher", time.Now())
		stats, err := s.analytics.TeacherRosterStats(ctx, teacherID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster stats")
		}
		top, err := s.students.Ranked(ctx, teacherID, s.cfg.TopStudents)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load top students")
		}
		return &models.TeacherDashboard{
			TeacherID:       teacherID,
			StudentCount:    stats.StudentCount,
			TotalMedals:     stats.TotalMedals,
			AverageScore:    math.Round(stats.AverageScore*10) / 10,
			TotalPagesRead:  stats.TotalPagesRead,
			TopStudents:     rankEntries(top),
			LastRecomputeAt: stats.LastComputedAt,
			GeneratedAt:     s.now().UTC(),
		}, nil
	})
}

// Admin returns the system-wide dashboard and indicates cache utilisation.
func (s *DashboardService) Admin(ctx context.Context) (*models.AdminDashboard, bool, error) {
	return remember(ctx, s.cache, CacheKey("dashboard", "admin"), s.cfg.CacheTTL, s.composeAdmin)
}

func (s *DashboardService) composeAdmin(ctx context.Context) (*models.AdminDashboard, error) {
	defer s.observe("dashboard_admin", time.Now())
	now := s.now().In(s.cfg.Location)
	monthAgo := now.AddDate(0, 0, -30)
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, s.cfg.Location)

	var (
		counts  *models.SystemCounts
		usage   []models.ModuleUsage
		monthly []models.MonthlyCount
		medals  []int
		classes []models.ClassCount
		recent  []models.RecentActivity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		counts, err = s.analytics.SystemCounts(gctx, monthAgo)
		return err
	})
	g.Go(func() (err error) {
		usage, err = s.analytics.ModuleUsage(gctx, monthAgo)
		return err
	})
	g.Go(func() (err error) {
		monthly, err = s.analytics.MonthlyRecordCounts(gctx, yearStart, s.cfg.Location.String())
		return err
	})
	g.Go(func() (err error) {
		medals, err = s.analytics.MedalCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		classes, err = s.analytics.ClassDistribution(gctx)
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.analytics.RecentActivities(gctx, s.cfg.RecentActivity)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compose admin dashboard")
	}

	return &models.AdminDashboard{
		ActiveTeachers:    counts.ActiveTeachers,
		StudentCount:      counts.StudentCount,
		ParentCount:       counts.ParentCount,
		RecordsLastMonth:  counts.RecordsLastMonth,
		ModuleUsage:       fillModuleUsage(usage),
		MonthlyRecords:    fillMonths(monthly),
		MedalDistribution: medalDistribution(medals),
		ClassDistribution: classes,
		RecentActivities:  recent,
		GeneratedAt:       s.now().UTC(),
	}, nil
}

// Classes groups teachers and students by class and section for admins.
func (s *DashboardService) Classes(ctx context.Context, session *models.JWTClaims) ([]models.ClassView, bool, error) {
	if session == nil || session.Role != models.RoleAdmin {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "only admins can view classes")
	}
	return remember(ctx, s.cache, CacheKey("dashboard", "classes"), s.cfg.CacheTTL, func(ctx context.Context) ([]models.ClassView, error) {
		defer s.observe("dashboard_classes", time.Now())
		views, err := s.analytics.ClassViews(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class views")
		}
		return views, nil
	})
}

// Parent returns the child's standing for a parent account.
func (s *DashboardService) Parent(ctx context.Context, parentID string) (*models.ParentDashboard, bool, error) {
	return remember(ctx, s.cache, CacheKey("dashboard", "parent", parentID), s.cfg.CacheTTL, func(ctx context.Context) (*models.ParentDashboard, error) {
		defer s.observe("dashboard_parent", time.Now())
		child, err := s.students.FindByParentID(ctx, parentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "no student linked to this parent")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		detail, err := s.students.FindByID(ctx, child.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		rank, size, err := s.students.ClassRank(ctx, child.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank student")
		}
		unread, err := s.messages.CountUnread(ctx, child.ID, parentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count messages")
		}
		open, err := s.assignments.CountOpen(ctx, child.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assignments")
		}
		dashboard := &models.ParentDashboard{
			Student:      detail.Student,
			ClassRank:    rank,
			ClassSize:    size,
			UnreadCount:  unread,
			OpenHomework: open,
			GeneratedAt:  s.now().UTC(),
		}
		if detail.TeacherName != nil {
			dashboard.TeacherName = *detail.TeacherName
		}
		return dashboard, nil
	})
}

func (s *DashboardService) observe(label string, start time.Time) {
	s.metrics.ObserveDBQuery(label, time.Since(start))
}

func fillModuleUsage(rows []models.ModuleUsage) []models.ModuleUsage {
	byCategory := make(map[models.ActivityCategory]int, len(rows))
	for _, r := range rows {
		byCategory[r.Category] = r.Count
	}
	out := make([]models.ModuleUsage, 0, len(models.ActivityCategories))
	for _, c := range models.ActivityCategories {
		out = append(out, models.ModuleUsage{Category: c, Count: byCategory[c]})
	}
	return out
}

func fillMonths(rows []models.MonthlyCount) []models.MonthlyCount {
	out := make([]models.MonthlyCount, 12)
	for i := range out {
		out[i].Month = i + 1
	}
	for _, r := range rows {
		if r.Month >= 1 && r.Month <= 12 {
			out[r.Month-1].Count = r.Count
		}
	}
	return out
}

func medalDistribution(medals []int) []models.MedalBucket {
	out := make([]models.MedalBucket, len(medalBands))
	for i, band := range medalBands {
		out[i].Label = band.Label
	}
	for _, m := range medals {
		for i, band := range medalBands {
			if m >= band.Min && (band.Max < 0 || m <= band.Max) {
				out[i].Count++
				break
			}
		}
	}
	return out
}
