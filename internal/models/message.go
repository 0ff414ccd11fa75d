package models

import "time"

// MessageMaxLength bounds the trimmed body of a message.
const MessageMaxLength = 1000

// Message is one entry of the per-student conversation thread.
type Message struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	SenderID   string    `db:"sender_id" json:"sender_id"`
	SenderName string    `db:"sender_name" json:"sender_name"`
	SenderRole UserRole  `db:"sender_role" json:"sender_role"`
	Body       string    `db:"body" json:"body"`
	Read       bool      `db:"read" json:"read"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// TeacherMessage is a message of any thread belonging to one teacher's
// students, tagged with the student it concerns.
type TeacherMessage struct {
	Message
	StudentName string `db:"student_name" json:"student_name"`
}

// CreateMessageRequest carries a new message body.
type CreateMessageRequest struct {
	Body string `json:"body" validate:"required"`
}

// Assignment is homework given to a single student.
type Assignment struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	DueDate     time.Time `db:"due_date" json:"due_date"`
	Completed   bool      `db:"completed" json:"completed"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CreateAssignmentRequest is submitted by teachers.
type CreateAssignmentRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	DueDate     time.Time `json:"due_date" validate:"required"`
}

// CompleteAssignmentRequest toggles the completion flag.
type CompleteAssignmentRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}
