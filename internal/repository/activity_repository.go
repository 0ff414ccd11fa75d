package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/student-tracker-api/internal/models"
)

const activityColumns = `id, student_id, teacher_id, category, occurred_at, status, page_count, point_value, problem_count, star_count, net_score, exam_score, created_at`

// ActivityRepository persists the append-only activity log. Records are never
// updated once stored.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// AppendScored appends one record and folds the student's full history into
// a new summary inside a single transaction. The student row stays locked
// until commit, so concurrent appends for the same student are serialized and
// nothing is stored when the fold or the score update fails.
func (r *ActivityRepository) AppendScored(ctx context.Context, record *models.ActivityRecord, fold models.ScoreFold) (models.ScoreSummary, error) {
	return r.scoreLocked(ctx, record.StudentID, record, fold)
}

// Rescore folds the stored history of one student into a new summary under
// the same row lock AppendScored takes.
func (r *ActivityRepository) Rescore(ctx context.Context, studentID string, fold models.ScoreFold) (models.ScoreSummary, error) {
	return r.scoreLocked(ctx, studentID, nil, fold)
}

func (r *ActivityRepository) scoreLocked(ctx context.Context, studentID string, record *models.ActivityRecord, fold models.ScoreFold) (summary models.ScoreSummary, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("begin score transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked string
	if err = tx.GetContext(ctx, &locked, `SELECT id FROM students WHERE id = $1 FOR UPDATE`, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return summary, err
		}
		return summary, fmt.Errorf("lock student: %w", err)
	}

	if record != nil {
		if err = insertActivity(ctx, tx, record); err != nil {
			return summary, err
		}
	}

	var records []models.ActivityRecord
	query := `SELECT ` + activityColumns + ` FROM activity_records WHERE student_id = $1 ORDER BY occurred_at ASC, id ASC`
	if err = tx.SelectContext(ctx, &records, query, studentID); err != nil {
		return summary, fmt.Errorf("list activity records: %w", err)
	}

	if summary, err = fold(records); err != nil {
		return summary, err
	}
	summary.StudentID = studentID
	if err = updateStudentScore(ctx, tx, summary); err != nil {
		return summary, err
	}

	if err = tx.Commit(); err != nil {
		return summary, fmt.Errorf("commit score transaction: %w", err)
	}
	return summary, nil
}

func insertActivity(ctx context.Context, exec sqlx.ExtContext, record *models.ActivityRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO activity_records (` + activityColumns + `) VALUES (:id, :student_id, :teacher_id, :category, :occurred_at, :status, :page_count, :point_value, :problem_count, :star_count, :net_score, :exam_score, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, record); err != nil {
		return fmt.Errorf("create activity record: %w", err)
	}
	return nil
}

// ListByStudent returns every record of one student, optionally limited to categories.
func (r *ActivityRepository) ListByStudent(ctx context.Context, studentID string, categories ...models.ActivityCategory) ([]models.ActivityRecord, error) {
	query := `SELECT ` + activityColumns + ` FROM activity_records WHERE student_id = $1`
	args := []interface{}{studentID}
	if len(categories) > 0 {
		query += " AND category = ANY($2)"
		args = append(args, pq.Array(categoryStrings(categories)))
	}
	query += " ORDER BY occurred_at ASC, id ASC"

	var records []models.ActivityRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list activity records: %w", err)
	}
	return records, nil
}

// List returns a page of records matching the filter, newest first.
func (r *ActivityRepository) List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityRecord, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if len(filter.Categories) > 0 {
		conditions = append(conditions, fmt.Sprintf("category = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(categoryStrings(filter.Categories)))
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("occurred_at >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("occurred_at <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	base := "FROM activity_records WHERE " + strings.Join(conditions, " AND ")

	page, size := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY occurred_at DESC, created_at DESC LIMIT %d OFFSET %d", activityColumns, base, size, offset)
	var records []models.ActivityRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list activity records: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count activity records: %w", err)
	}
	return records, total, nil
}

func categoryStrings(categories []models.ActivityCategory) []string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = string(c)
	}
	return out
}
