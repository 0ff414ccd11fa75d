package models

import "time"

// Student represents a learner tracked by a teacher. The score columns hold
// the last persisted ScoreSummary.
type Student struct {
	ID             string     `db:"id" json:"id"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	StudentNo      string     `db:"student_no" json:"student_no"`
	PhotoKey       *string    `db:"photo_key" json:"-"`
	TeacherID      string     `db:"teacher_id" json:"teacher_id"`
	ParentID       *string    `db:"parent_id" json:"parent_id,omitempty"`
	TotalScore     float64    `db:"total_score" json:"total_score"`
	MedalCount     int        `db:"medal_count" json:"medal_count"`
	LastComputedAt *time.Time `db:"last_computed_at" json:"last_computed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins the student's names for display.
func (s Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// StudentSortField enumerates supported ranking orders.
type StudentSortField string

const (
	SortByScore  StudentSortField = "score"
	SortByMedals StudentSortField = "medals"
	SortByName   StudentSortField = "name"
	SortByNumber StudentSortField = "number"
)

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	TeacherID string
	Search    string
	Page      int
	PageSize  int
	SortBy    StudentSortField
	SortOrder string
}

// StudentDetail contains student information with the parent and teacher context.
type StudentDetail struct {
	Student
	TeacherName    *string         `db:"teacher_name" json:"teacher_name,omitempty"`
	ClassName      *string         `db:"class_name" json:"class_name,omitempty"`
	Section        *string         `db:"section" json:"section,omitempty"`
	ParentUsername *string         `db:"parent_username" json:"parent_username,omitempty"`
	ParentRelation *ParentRelation `db:"parent_relation" json:"parent_relation,omitempty"`
	ParentPhone    *string         `db:"parent_phone" json:"parent_phone,omitempty"`
}

// CreateStudentRequest registers a student together with the parent login.
type CreateStudentRequest struct {
	TeacherID      string         `json:"-"`
	FirstName      string         `json:"first_name" validate:"required,max=64"`
	LastName       string         `json:"last_name" validate:"required,max=64"`
	StudentNo      string         `json:"student_no" validate:"required,max=16"`
	ParentName     string         `json:"parent_name" validate:"required,max=128"`
	ParentUsername string         `json:"parent_username" validate:"required,min=3,max=64,alphanum"`
	ParentPassword string         `json:"parent_password" validate:"required,min=6"`
	ParentRelation ParentRelation `json:"parent_relation" validate:"required,parent_relation"`
	ParentPhone    *string        `json:"parent_phone" validate:"omitempty,max=20"`
}

// UpdateStudentRequest modifies student identity fields.
type UpdateStudentRequest struct {
	FirstName string `json:"first_name" validate:"required,max=64"`
	LastName  string `json:"last_name" validate:"required,max=64"`
	StudentNo string `json:"student_no" validate:"required,max=16"`
}

// StudentPhoto describes a presigned link to the stored photo.
type StudentPhoto struct {
	StudentID string    `json:"student_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
