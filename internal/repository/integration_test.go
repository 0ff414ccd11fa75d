//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/noah-isme/student-tracker-api/internal/models"
	"github.com/noah-isme/student-tracker-api/pkg/database"
)

func startPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	pg, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("tracker"),
		postgres.WithUsername("tracker"),
		postgres.WithPassword("tracker"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		_ = pg.Terminate(stopCtx)
	})

	uri, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sqlx.Open("postgres", uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	deadline := time.Now().Add(20 * time.Second)
	for db.PingContext(ctx) != nil {
		if time.Now().After(deadline) {
			t.Fatal("postgres not ready")
		}
		time.Sleep(200 * time.Millisecond)
	}

	require.NoError(t, database.Migrate(ctx, db.DB))
	return db
}

func TestStudentLifecycleAgainstPostgres(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	users := NewUserRepository(db)
	students := NewStudentRepository(db)
	activities := NewActivityRepository(db)
	messages := NewMessageRepository(db)

	class, section := "4", "A"
	teacher := &models.User{Username: "ayse", Email: "ayse@teacher.school.local", PasswordHash: "x", FullName: "Ayse Kaya", Role: models.RoleTeacher, Active: true, ClassName: &class, Section: &section}
	require.NoError(t, users.Create(ctx, teacher))

	relation := models.RelationMother
	parent := &models.User{Username: "lovelace", Email: "lovelace@parent.school.local", PasswordHash: "x", FullName: "Anne Lovelace", Role: models.RoleParent, Active: true, Relation: &relation}
	student := &models.Student{FirstName: "Ada", LastName: "Lovelace", StudentNo: "7", TeacherID: teacher.ID}
	require.NoError(t, students.CreateWithParent(ctx, student, parent))

	exists, err := students.ExistsByNumber(ctx, teacher.ID, "7", "")
	require.NoError(t, err)
	assert.True(t, exists)

	pages := 50
	done := models.StatusDone
	summary, err := activities.AppendScored(ctx, &models.ActivityRecord{StudentID: student.ID, TeacherID: &teacher.ID, Category: models.CategoryReading, Status: &done, PageCount: &pages, OccurredAt: time.Date(2024, 10, 3, 0, 0, 0, 0, time.UTC)}, func(records []models.ActivityRecord) (models.ScoreSummary, error) {
		return models.ScoreSummary{TotalScore: 5 * float64(len(records)), LastComputedAt: time.Now().UTC()}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, student.ID, summary.StudentID)
	require.NoError(t, messages.Create(ctx, &models.Message{StudentID: student.ID, SenderID: parent.ID, SenderName: parent.FullName, SenderRole: models.RoleParent, Body: "hello"}))

	records, err := activities.ListByStudent(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)

	ranked, err := students.Ranked(ctx, teacher.ID, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, 5.0, ranked[0].TotalScore)

	count, err := students.CountByTeacher(ctx, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Error(t, users.Delete(ctx, teacher.ID), "teacher with students must not be deletable")

	require.NoError(t, students.Delete(ctx, student.ID))

	records, err = activities.ListByStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
	_, err = users.FindByID(ctx, parent.ID)
	assert.Error(t, err)
	require.NoError(t, users.Delete(ctx, teacher.ID))
}
