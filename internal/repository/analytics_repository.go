package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/student-tracker-api/internal/models"
)

// AnalyticsRepository exposes read-optimised queries for the dashboards.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// TeacherRosterStats aggregates score and reading totals over a teacher's students.
func (r *AnalyticsRepository) TeacherRosterStats(ctx context.Context, teacherID string) (*models.TeacherRosterStats, error) {
	const query = `SELECT COUNT(*) AS student_count,
        COALESCE(SUM(s.medal_count), 0) AS total_medals,
        COALESCE(AVG(s.total_score), 0) AS average_score,
        COALESCE((SELECT SUM(a.page_count) FROM activity_records a JOIN students st ON st.id = a.student_id
            WHERE st.teacher_id = $1 AND a.category = 'reading' AND a.status = 'done'), 0) AS total_pages_read,
        MAX(s.last_computed_at) AS last_computed_at
        FROM students s WHERE s.teacher_id = $1`
	var stats models.TeacherRosterStats
	if err := r.db.GetContext(ctx, &stats, query, teacherID); err != nil {
		return nil, fmt.Errorf("query teacher roster stats: %w", err)
	}
	return &stats, nil
}

// SystemCounts returns the headline counters of the admin dashboard.
func (r *AnalyticsRepository) SystemCounts(ctx context.Context, since time.Time) (*models.SystemCounts, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM users WHERE role = 'TEACHER' AND active = TRUE) AS active_teachers,
        (SELECT COUNT(*) FROM students) AS student_count,
        (SELECT COUNT(*) FROM users WHERE role = 'PARENT') AS parent_count,
        (SELECT COUNT(*) FROM activity_records WHERE created_at >= $1) AS records_last_month`
	var counts models.SystemCounts
	if err := r.db.GetContext(ctx, &counts, query, since); err != nil {
		return nil, fmt.Errorf("query system counts: %w", err)
	}
	return &counts, nil
}

// ModuleUsage counts records per category created since the given time.
func (r *AnalyticsRepository) ModuleUsage(ctx context.Context, since time.Time) ([]models.ModuleUsage, error) {
	const query = `SELECT category, COUNT(*) AS count FROM activity_records WHERE created_at >= $1 GROUP BY category ORDER BY count DESC, category ASC`
	var usage []models.ModuleUsage
	if err := r.db.SelectContext(ctx, &usage, query, since); err != nil {
		return nil, fmt.Errorf("query module usage: %w", err)
	}
	return usage, nil
}

// MonthlyRecordCounts counts records created per calendar month in the given zone since a point in time.
func (r *AnalyticsRepository) MonthlyRecordCounts(ctx context.Context, since time.Time, timezone string) ([]models.MonthlyCount, error) {
	const query = `SELECT EXTRACT(MONTH FROM created_at AT TIME ZONE $2)::INT AS month, COUNT(*) AS count
        FROM activity_records WHERE created_at >= $1 GROUP BY month ORDER BY month`
	var counts []models.MonthlyCount
	if err := r.db.SelectContext(ctx, &counts, query, since, timezone); err != nil {
		return nil, fmt.Errorf("query monthly record counts: %w", err)
	}
	return counts, nil
}

// MedalCounts returns each student's medal count for distribution bucketing.
func (r *AnalyticsRepository) MedalCounts(ctx context.Context) ([]int, error) {
	var medals []int
	if err := r.db.SelectContext(ctx, &medals, `SELECT medal_count FROM students`); err != nil {
		return nil, fmt.Errorf("query medal counts: %w", err)
	}
	return medals, nil
}

// RecentActivities lists the latest records across the school.
func (r *AnalyticsRepository) RecentActivities(ctx context.Context, limit int) ([]models.RecentActivity, error) {
	const query = `SELECT a.id AS record_id, a.student_id, s.first_name || ' ' || s.last_name AS student_name,
        t.full_name AS teacher_name, a.category, a.occurred_at, a.created_at
        FROM activity_records a
        JOIN students s ON s.id = a.student_id
        LEFT JOIN users t ON t.id = a.teacher_id
        ORDER BY a.created_at DESC LIMIT $1`
	var items []models.RecentActivity
	if err := r.db.SelectContext(ctx, &items, query, limit); err != nil {
		return nil, fmt.Errorf("query recent activities: %w", err)
	}
	return items, nil
}

// ClassDistribution counts students per grade, taking the grade from the
// owning teacher's class.
func (r *AnalyticsRepository) ClassDistribution(ctx context.Context) ([]models.ClassCount, error) {
	const query = `SELECT COALESCE(u.class_name, '') AS class_name, COUNT(s.id) AS student_count
        FROM users u LEFT JOIN students s ON s.teacher_id = u.id
        WHERE u.role = 'TEACHER'
        GROUP BY COALESCE(u.class_name, '') ORDER BY class_name`
	var counts []models.ClassCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("query class distribution: %w", err)
	}
	return counts, nil
}

// ClassViews groups every teacher and their students by class and section.
func (r *AnalyticsRepository) ClassViews(ctx context.Context) ([]models.ClassView, error) {
	const query = `SELECT COALESCE(u.class_name, '') AS class_name, COALESCE(u.section, '') AS section,
        u.id AS teacher_id, u.full_name AS teacher_name, u.active AS teacher_active,
        s.id AS student_id, s.first_name || ' ' || s.last_name AS student_name, s.student_no,
        s.total_score, s.medal_count
        FROM users u LEFT JOIN students s ON s.teacher_id = u.id
        WHERE u.role = 'TEACHER'
        ORDER BY class_name, section, u.full_name, u.id, s.first_name, s.last_name, s.id`
	var rows []models.ClassRosterRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("query class views: %w", err)
	}
	return groupClassViews(rows), nil
}

func groupClassViews(rows []models.ClassRosterRow) []models.ClassView {
	views := make([]models.ClassView, 0)
	index := make(map[string]int)
	seenTeacher := make(map[string]bool)
	for _, row := range rows {
		key := row.ClassName + "/" + row.Section
		i, ok := index[key]
		if !ok {
			i = len(views)
			index[key] = i
			views = append(views, models.ClassView{
				ClassName: row.ClassName,
				Section:   row.Section,
				Teachers:  []models.ClassTeacher{},
				Students:  []models.ClassStudent{},
			})
		}
		if !seenTeacher[row.TeacherID] {
			seenTeacher[row.TeacherID] = true
			views[i].Teachers = append(views[i].Teachers, models.ClassTeacher{ID: row.TeacherID, FullName: row.TeacherName, Active: row.TeacherActive})
		}
		if row.StudentID == nil {
			continue
		}
		student := models.ClassStudent{ID: *row.StudentID, TeacherID: row.TeacherID}
		if row.StudentName != nil {
			student.FullName = strings.TrimSpace(*row.StudentName)
		}
		if row.StudentNo != nil {
			student.StudentNo = *row.StudentNo
		}
		if row.TotalScore != nil {
			student.TotalScore = *row.TotalScore
		}
		if row.MedalCount != nil {
			student.MedalCount = *row.MedalCount
		}
		views[i].Students = append(views[i].Students, student)
	}
	return views
}
