package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-tracker-api/internal/models"
)

var studentRowColumns = []string{"id", "first_name", "last_name", "student_no", "photo_key", "teacher_id", "parent_id", "total_score", "medal_count", "last_computed_at", "created_at", "updated_at"}

func TestStudentListOrdersByScore(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(studentRowColumns).
		AddRow("s1", "Ada", "Lovelace", "7", nil, "t1", "p1", 42.5, 4, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM students s WHERE 1=1 AND s.teacher_id = $1 ORDER BY s.total_score DESC, s.medal_count DESC, s.first_name ASC, s.id ASC LIMIT 20 OFFSET 0")).
		WithArgs("t1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students s WHERE 1=1 AND s.teacher_id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{TeacherID: "t1"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, 42.5, students[0].TotalScore)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentListNameSortDefaultsAscending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY LOWER(s.first_name) ASC, LOWER(s.last_name) ASC, s.id ASC LIMIT 10 OFFSET 10")).
		WillReturnRows(sqlmock.NewRows(studentRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students s")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	_, total, err := repo.List(context.Background(), models.StudentFilter{SortBy: models.SortByName, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithParentCommitsBothRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO students").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	parent := &models.User{Username: "lovelace", Role: models.RoleParent}
	student := &models.Student{FirstName: "Ada", LastName: "Lovelace", StudentNo: "7", TeacherID: "t1"}
	require.NoError(t, repo.CreateWithParent(context.Background(), student, parent))
	require.NotNil(t, student.ParentID)
	assert.Equal(t, parent.ID, *student.ParentID)
	assert.NotEmpty(t, student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithParentRollsBackOnStudentFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO students").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.CreateWithParent(context.Background(), &models.Student{TeacherID: "t1"}, &models.User{Role: models.RoleParent})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRemovesParentAccount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM students WHERE id = $1 RETURNING parent_id")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"parent_id"}).AddRow("p1"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1 AND role = 'PARENT'")).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM students").WillReturnRows(sqlmock.NewRows([]string{"parent_id"}))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStudentScore(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	at := time.Date(2024, 10, 3, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET total_score = $2, medal_count = $3, last_computed_at = $4")).
		WithArgs("s1", 14.5, 1, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := updateStudentScore(context.Background(), db, models.ScoreSummary{StudentID: "s1", TotalScore: 14.5, MedalCount: 1, LastComputedAt: at})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRank(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("ROW_NUMBER\\(\\) OVER").WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"rank", "size"}).AddRow(3, 24))

	rank, size, err := repo.ClassRank(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, rank)
	assert.Equal(t, 24, size)
}
