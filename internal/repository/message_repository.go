package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/student-tracker-api/internal/models"
)

// MessageRepository stores the teacher/parent conversation of each student.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository constructs a MessageRepository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create stores a new message.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO messages (id, student_id, sender_id, sender_name, sender_role, body, read, created_at) VALUES (:id, :student_id, :sender_id, :sender_name, :sender_role, :body, :read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// Latest returns the newest messages of a thread in chronological order.
func (r *MessageRepository) Latest(ctx context.Context, studentID string, limit int) ([]models.Message, error) {
	const query = `SELECT id, student_id, sender_id, sender_name, sender_role, body, read, created_at FROM (
        SELECT id, student_id, sender_id, sender_name, sender_role, body, read, created_at
        FROM messages WHERE student_id = $1 ORDER BY created_at DESC LIMIT $2
    ) latest ORDER BY created_at ASC`
	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// LatestByTeacher returns the newest messages across every thread of the
// teacher's students in chronological order.
func (r *MessageRepository) LatestByTeacher(ctx context.Context, teacherID string, limit int) ([]models.TeacherMessage, error) {
	const query = `SELECT * FROM (
        SELECT m.id, m.student_id, m.sender_id, m.sender_name, m.sender_role, m.body, m.read, m.created_at,
               s.first_name || ' ' || s.last_name AS student_name
        FROM messages m JOIN students s ON s.id = m.student_id
        WHERE s.teacher_id = $1 ORDER BY m.created_at DESC LIMIT $2
    ) latest ORDER BY created_at ASC`
	var messages []models.TeacherMessage
	if err := r.db.SelectContext(ctx, &messages, query, teacherID, limit); err != nil {
		return nil, fmt.Errorf("list teacher messages: %w", err)
	}
	return messages, nil
}

// MarkRead flags every message in the thread not sent by the reader as read.
func (r *MessageRepository) MarkRead(ctx context.Context, studentID, readerID string) (int64, error) {
	const query = `UPDATE messages SET read = TRUE WHERE student_id = $1 AND sender_id <> $2 AND read = FALSE`
	res, err := r.db.ExecContext(ctx, query, studentID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return res.RowsAffected()
}

// CountUnread counts messages in the thread the reader has not seen.
func (r *MessageRepository) CountUnread(ctx context.Context, studentID, readerID string) (int, error) {
	const query = `SELECT COUNT(*) FROM messages WHERE student_id = $1 AND sender_id <> $2 AND read = FALSE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, readerID); err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return count, nil
}
