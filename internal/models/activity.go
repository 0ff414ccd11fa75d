package models

import "time"

// ActivityCategory identifies the kind of logged student activity.
type ActivityCategory string

const (
	CategoryReading        ActivityCategory = "reading"
	CategoryHomework       ActivityCategory = "homework"
	CategoryProblemSolving ActivityCategory = "problem_solving"
	CategoryStar           ActivityCategory = "star"
	CategoryMisconduct     ActivityCategory = "misconduct"
	CategoryWrittenTest    ActivityCategory = "written_test"
	CategoryMockExam       ActivityCategory = "mock_exam"
	CategoryReadingExam    ActivityCategory = "reading_exam"
)

// ActivityCategories lists every category in display order.
var ActivityCategories = []ActivityCategory{
	CategoryReading,
	CategoryHomework,
	CategoryProblemSolving,
	CategoryStar,
	CategoryMisconduct,
	CategoryWrittenTest,
	CategoryMockExam,
	CategoryReadingExam,
}

// ActivityStatus records whether a reading or homework task was completed.
type ActivityStatus string

const (
	StatusDone    ActivityStatus = "done"
	StatusNotDone ActivityStatus = "not_done"
)

// ActivityRecord is one immutable logged event for a student. Exactly one
// magnitude pointer is populated, matching Category; misconduct has none.
type ActivityRecord struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	TeacherID    *string          `db:"teacher_id" json:"teacher_id,omitempty"`
	Category     ActivityCategory `db:"category" json:"category"`
	OccurredAt   time.Time        `db:"occurred_at" json:"occurred_at"`
	Status       *ActivityStatus  `db:"status" json:"status,omitempty"`
	PageCount    *int             `db:"page_count" json:"page_count,omitempty"`
	PointValue   *int             `db:"point_value" json:"point_value,omitempty"`
	ProblemCount *int             `db:"problem_count" json:"problem_count,omitempty"`
	StarCount    *int             `db:"star_count" json:"star_count,omitempty"`
	NetScore     *float64         `db:"net_score" json:"net_score,omitempty"`
	ExamScore    *float64         `db:"exam_score" json:"exam_score,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// ActivityFilter scopes activity record listings.
type ActivityFilter struct {
	StudentID  string
	TeacherID  string
	Categories []ActivityCategory
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PageSize   int
}

// CreateActivityRequest is the payload teachers submit to log an activity.
type CreateActivityRequest struct {
	StudentID    string           `json:"-"`
	TeacherID    string           `json:"-"`
	Category     ActivityCategory `json:"category" validate:"required,activity_category"`
	OccurredAt   time.Time        `json:"occurred_at" validate:"required"`
	Status       *ActivityStatus  `json:"status" validate:"omitempty,activity_status"`
	PageCount    *int             `json:"page_count" validate:"omitempty,min=0,max=5000"`
	PointValue   *int             `json:"point_value" validate:"omitempty,min=0,max=5"`
	ProblemCount *int             `json:"problem_count" validate:"omitempty,min=0,max=10000"`
	StarCount    *int             `json:"star_count" validate:"omitempty,min=0,max=100"`
	NetScore     *float64         `json:"net_score" validate:"omitempty,min=-200,max=200"`
	ExamScore    *float64         `json:"exam_score" validate:"omitempty,min=0,max=100"`
}

// ActivityRecordedEvent is published after a record has been stored and the
// owning student's summary refreshed.
type ActivityRecordedEvent struct {
	RecordID   string           `json:"record_id"`
	StudentID  string           `json:"student_id"`
	Category   ActivityCategory `json:"category"`
	OccurredAt time.Time        `json:"occurred_at"`
	Summary    ScoreSummary     `json:"summary"`
}

// ActivityResult is returned after logging a record: the stored record and
// the student's refreshed summary.
type ActivityResult struct {
	Record  ActivityRecord `json:"record"`
	Summary ScoreSummary   `json:"summary"`
}
