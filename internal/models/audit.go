package models

import "time"

const (
	AuditActionLogin            = "LOGIN"
	AuditActionLogout           = "LOGOUT"
	AuditActionTeacherCreate    = "TEACHER_CREATE"
	AuditActionTeacherUpdate    = "TEACHER_UPDATE"
	AuditActionTeacherStatus    = "TEACHER_STATUS"
	AuditActionTeacherDelete    = "TEACHER_DELETE"
	AuditActionStudentCreate    = "STUDENT_CREATE"
	AuditActionStudentUpdate    = "STUDENT_UPDATE"
	AuditActionStudentPhoto     = "STUDENT_PHOTO"
	AuditActionStudentDelete    = "STUDENT_DELETE"
	AuditActionActivityCreate   = "ACTIVITY_CREATE"
	AuditActionScoreRecompute   = "SCORE_RECOMPUTE"
	AuditActionAssignmentCreate = "ASSIGNMENT_CREATE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
