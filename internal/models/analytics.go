package models

import "time"

// TeacherDashboard summarises a teacher's roster.
type TeacherDashboard struct {
	TeacherID       string             `json:"teacher_id"`
	StudentCount    int                `json:"student_count"`
	TotalMedals     int                `json:"total_medals"`
	AverageScore    float64            `json:"average_score"`
	TotalPagesRead  int                `json:"total_pages_read"`
	TopStudents     []LeaderboardEntry `json:"top_students"`
	LastRecomputeAt *time.Time         `json:"last_recompute_at,omitempty"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

// AdminDashboard aggregates system-wide usage.
type AdminDashboard struct {
	ActiveTeachers    int              `json:"active_teachers"`
	StudentCount      int              `json:"student_count"`
	ParentCount       int              `json:"parent_count"`
	RecordsLastMonth  int              `json:"records_last_month"`
	ModuleUsage       []ModuleUsage    `json:"module_usage"`
	MonthlyRecords    []MonthlyCount   `json:"monthly_records"`
	MedalDistribution []MedalBucket    `json:"medal_distribution"`
	ClassDistribution []ClassCount     `json:"class_distribution"`
	RecentActivities  []RecentActivity `json:"recent_activities"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

// ClassCount is the number of students taught in one grade.
type ClassCount struct {
	ClassName    string `db:"class_name" json:"class_name"`
	StudentCount int    `db:"student_count" json:"student_count"`
}

// ClassView lists the teachers and students of one class and section.
type ClassView struct {
	ClassName string         `json:"class_name"`
	Section   string         `json:"section"`
	Teachers  []ClassTeacher `json:"teachers"`
	Students  []ClassStudent `json:"students"`
}

// ClassTeacher is a teacher row inside a ClassView.
type ClassTeacher struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Active   bool   `json:"active"`
}

// ClassStudent is a student row inside a ClassView.
type ClassStudent struct {
	ID         string  `json:"id"`
	FullName   string  `json:"full_name"`
	StudentNo  string  `json:"student_no"`
	TeacherID  string  `json:"teacher_id"`
	TotalScore float64 `json:"total_score"`
	MedalCount int     `json:"medal_count"`
}

// ClassRosterRow is one teacher/student pairing read for ClassView grouping.
// Student columns are NULL for teachers without students.
type ClassRosterRow struct {
	ClassName     string   `db:"class_name"`
	Section       string   `db:"section"`
	TeacherID     string   `db:"teacher_id"`
	TeacherName   string   `db:"teacher_name"`
	TeacherActive bool     `db:"teacher_active"`
	StudentID     *string  `db:"student_id"`
	StudentName   *string  `db:"student_name"`
	StudentNo     *string  `db:"student_no"`
	TotalScore    *float64 `db:"total_score"`
	MedalCount    *int     `db:"medal_count"`
}

// ParentDashboard shows a parent their child's standing.
type ParentDashboard struct {
	Student      Student   `json:"student"`
	TeacherName  string    `json:"teacher_name"`
	ClassRank    int       `json:"class_rank"`
	ClassSize    int       `json:"class_size"`
	UnreadCount  int       `json:"unread_messages"`
	OpenHomework int       `json:"open_homework"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// ModuleUsage counts records per category.
type ModuleUsage struct {
	Category ActivityCategory `db:"category" json:"category"`
	Count    int              `db:"count" json:"count"`
}

// MonthlyCount counts records created in a calendar month (1-12).
type MonthlyCount struct {
	Month int `db:"month" json:"month"`
	Count int `db:"count" json:"count"`
}

// MedalBucket is one band of the medal distribution.
type MedalBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// RecentActivity is a flattened record row for activity feeds.
type RecentActivity struct {
	RecordID    string           `db:"record_id" json:"record_id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	StudentName string           `db:"student_name" json:"student_name"`
	TeacherName *string          `db:"teacher_name" json:"teacher_name,omitempty"`
	Category    ActivityCategory `db:"category" json:"category"`
	OccurredAt  time.Time        `db:"occurred_at" json:"occurred_at"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// TeacherRosterStats is the aggregate row used by the teacher dashboard.
type TeacherRosterStats struct {
	StudentCount   int        `db:"student_count"`
	TotalMedals    int        `db:"total_medals"`
	AverageScore   float64    `db:"average_score"`
	TotalPagesRead int        `db:"total_pages_read"`
	LastComputedAt *time.Time `db:"last_computed_at"`
}

// SystemCounts is the aggregate row used by the admin dashboard.
type SystemCounts struct {
	ActiveTeachers   int `db:"active_teachers"`
	StudentCount     int `db:"student_count"`
	ParentCount      int `db:"parent_count"`
	RecordsLastMonth int `db:"records_last_month"`
}

// AnalyticsSystemMetrics represents system level analytics captured from instrumentation.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	ScoreRecomputations      uint64    `json:"score_recomputations"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
