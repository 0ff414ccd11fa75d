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

	"github.com/noah-isme/student-tracker-api/internal/models"
)

const studentColumns = `s.id, s.first_name, s.last_name, s.student_no, s.photo_key, s.teacher_id, s.parent_id, s.total_score, s.medal_count, s.last_computed_at, s.created_at, s.updated_at`

// studentOrderings maps ranking sorts to ORDER BY clauses. s.id keeps paging deterministic.
var studentOrderings = map[models.StudentSortField]string{
	models.SortByScore:  "s.total_score %[1]s, s.medal_count %[1]s, s.first_name ASC, s.id ASC",
	models.SortByMedals: "s.medal_count %[1]s, s.total_score %[1]s, s.first_name ASC, s.id ASC",
	models.SortByName:   "LOWER(s.first_name) %[1]s, LOWER(s.last_name) %[1]s, s.id ASC",
	models.SortByNumber: "s.student_no %[1]s, s.id ASC",
}

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters in ranking order.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("s.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.first_name || ' ' || s.last_name) LIKE $%d OR LOWER(s.student_no) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	base := "FROM students s WHERE " + strings.Join(conditions, " AND ")

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = models.SortByScore
	}
	ordering, ok := studentOrderings[sortBy]
	if !ok {
		ordering = studentOrderings[models.SortByScore]
		sortBy = models.SortByScore
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
		if sortBy == models.SortByName || sortBy == models.SortByNumber {
			order = "ASC"
		}
	}
	page, size := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d", studentColumns, base, fmt.Sprintf(ordering, order), size, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// Ranked returns every student of a teacher ordered by score. An empty teacherID ranks the whole school.
func (r *StudentRepository) Ranked(ctx context.Context, teacherID string, limit int) ([]models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students s"
	var args []interface{}
	if teacherID != "" {
		query += " WHERE s.teacher_id = $1"
		args = append(args, teacherID)
	}
	query += " ORDER BY " + fmt.Sprintf(studentOrderings[models.SortByScore], "DESC")
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("rank students: %w", err)
	}
	return students, nil
}

// IDs lists student identifiers, optionally scoped to a teacher.
func (r *StudentRepository) IDs(ctx context.Context, teacherID string) ([]string, error) {
	query := "SELECT id FROM students"
	var args []interface{}
	if teacherID != "" {
		query += " WHERE teacher_id = $1"
		args = append(args, teacherID)
	}
	query += " ORDER BY id"
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list student ids: %w", err)
	}
	return ids, nil
}

// FindByID fetches a student with teacher and parent context.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := `SELECT ` + studentColumns + `,
        t.full_name AS teacher_name, t.class_name, t.section,
        p.username AS parent_username, p.relation AS parent_relation, p.phone AS parent_phone
        FROM students s
        LEFT JOIN users t ON t.id = s.teacher_id
        LEFT JOIN users p ON p.id = s.parent_id
        WHERE s.id = $1`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &detail, nil
}

// FindByParentID returns the student linked to a parent account.
func (r *StudentRepository) FindByParentID(ctx context.Context, parentID string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students s WHERE s.parent_id = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, parentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student by parent: %w", err)
	}
	return &student, nil
}

// ExistsByNumber checks if the teacher already has a student with the number, optionally excluding an ID.
func (r *StudentRepository) ExistsByNumber(ctx context.Context, teacherID, studentNo, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE teacher_id = $1 AND student_no = $2"
	args := []interface{}{teacherID, studentNo}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check student number: %w", err)
	}
	return true, nil
}

// CountByTeacher returns the size of a teacher's roster.
func (r *StudentRepository) CountByTeacher(ctx context.Context, teacherID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM students WHERE teacher_id = $1", teacherID); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}

// CreateWithParent stores the parent account and the student in one transaction.
func (r *StudentRepository) CreateWithParent(ctx context.Context, student *models.Student, parent *models.User) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin student transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if parent != nil {
		if err = insertUser(ctx, tx, parent); err != nil {
			return err
		}
		student.ParentID = &parent.ID
	}

	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, first_name, last_name, student_no, photo_key, teacher_id, parent_id, total_score, medal_count, last_computed_at, created_at, updated_at)
        VALUES (:id, :first_name, :last_name, :student_no, :photo_key, :teacher_id, :parent_id, :total_score, :medal_count, :last_computed_at, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit student: %w", err)
	}
	return nil
}

// Update modifies the identity fields of a student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET first_name = :first_name, last_name = :last_name, student_no = :student_no, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return expectAffected(res)
}

// updateStudentScore overwrites the persisted summary columns.
func updateStudentScore(ctx context.Context, exec sqlx.ExecerContext, summary models.ScoreSummary) error {
	const query = `UPDATE students SET total_score = $2, medal_count = $3, last_computed_at = $4, updated_at = $4 WHERE id = $1`
	res, err := exec.ExecContext(ctx, query, summary.StudentID, summary.TotalScore, summary.MedalCount, summary.LastComputedAt)
	if err != nil {
		return fmt.Errorf("update student score: %w", err)
	}
	return expectAffected(res)
}

// UpdatePhoto stores or clears the object key of the student's photo.
func (r *StudentRepository) UpdatePhoto(ctx context.Context, id string, key *string) error {
	const query = `UPDATE students SET photo_key = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, key, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update student photo: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a student together with the linked parent account.
// Activity records, messages and assignments go with the student row.
func (r *StudentRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var parentID sql.NullString
	if err = tx.GetContext(ctx, &parentID, `DELETE FROM students WHERE id = $1 RETURNING parent_id`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("delete student: %w", err)
	}
	if parentID.Valid {
		if _, err = tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1 AND role = 'PARENT'`, parentID.String); err != nil {
			return fmt.Errorf("delete parent account: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete student: %w", err)
	}
	return nil
}

// ClassRank returns the 1-based position of the student within the teacher's roster and the roster size.
func (r *StudentRepository) ClassRank(ctx context.Context, studentID string) (int, int, error) {
	const query = `SELECT ranked.rank, ranked.size FROM (
        SELECT s.id, ROW_NUMBER() OVER (ORDER BY s.total_score DESC, s.medal_count DESC, s.first_name ASC, s.id ASC) AS rank,
               COUNT(*) OVER () AS size
        FROM students s
        WHERE s.teacher_id = (SELECT teacher_id FROM students WHERE id = $1)
    ) ranked WHERE ranked.id = $1`
	var row struct {
		Rank int `db:"rank"`
		Size int `db:"size"`
	}
	if err := r.db.GetContext(ctx, &row, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, err
		}
		return 0, 0, fmt.Errorf("class rank: %w", err)
	}
	return row.Rank, row.Size, nil
}
