package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleParent  UserRole = "PARENT"
)

// ParentRelation describes how a parent account relates to the student.
type ParentRelation string

const (
	RelationMother  ParentRelation = "mother"
	RelationFather  ParentRelation = "father"
	RelationSibling ParentRelation = "sibling"
	RelationOther   ParentRelation = "other"
)

// User represents an application user stored in the users table.
// Teacher rows carry class/section, parent rows carry relation and contact data.
type User struct {
	ID             string          `db:"id" json:"id"`
	Username       string          `db:"username" json:"username"`
	Email          string          `db:"email" json:"email"`
	PasswordHash   string          `db:"password_hash" json:"-"`
	FullName       string          `db:"full_name" json:"full_name"`
	Role           UserRole        `db:"role" json:"role"`
	Active         bool            `db:"active" json:"active"`
	ClassName      *string         `db:"class_name" json:"class_name,omitempty"`
	Section        *string         `db:"section" json:"section,omitempty"`
	Relation       *ParentRelation `db:"relation" json:"relation,omitempty"`
	Phone          *string         `db:"phone" json:"phone,omitempty"`
	TelegramChatID *int64          `db:"telegram_chat_id" json:"telegram_chat_id,omitempty"`
	LastLogin      *time.Time      `db:"last_login" json:"last_login,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// CreateTeacherRequest is submitted by admins to register a teacher account.
type CreateTeacherRequest struct {
	Username  string  `json:"username" validate:"required,min=3,max=64,alphanum"`
	Password  string  `json:"password" validate:"required,min=6"`
	FullName  string  `json:"full_name" validate:"required,max=128"`
	Email     *string `json:"email" validate:"omitempty,email"`
	ClassName string  `json:"class_name" validate:"required,max=16"`
	Section   string  `json:"section" validate:"required,max=8"`
}

// UpdateTeacherRequest updates mutable teacher fields.
type UpdateTeacherRequest struct {
	FullName  string  `json:"full_name" validate:"required,max=128"`
	Email     *string `json:"email" validate:"omitempty,email"`
	ClassName string  `json:"class_name" validate:"required,max=16"`
	Section   string  `json:"section" validate:"required,max=8"`
	Password  *string `json:"password" validate:"omitempty,min=6"`
}

// UpdateTeacherStatusRequest toggles a teacher between active and passive.
type UpdateTeacherStatusRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// TeacherSummary decorates a teacher with roster counts for admin listings.
type TeacherSummary struct {
	User
	StudentCount int `db:"student_count" json:"student_count"`
}

// ChangePasswordRequest rotates the caller's own password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,nefield=CurrentPassword"`
}

// LinkTelegramRequest binds a Telegram chat to the caller. A zero chat id unlinks it.
type LinkTelegramRequest struct {
	ChatID int64 `json:"chat_id"`
}
