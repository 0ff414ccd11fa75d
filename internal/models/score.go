package models

import "time"

// ScoreSummary is the derived, clamped aggregate for one student.
type ScoreSummary struct {
	StudentID      string    `json:"student_id"`
	TotalScore     float64   `json:"total_score"`
	MedalCount     int       `json:"medal_count"`
	LastComputedAt time.Time `json:"last_computed_at"`
}

// ScoreFold turns a student's full record history into a fresh summary.
type ScoreFold func(records []ActivityRecord) (ScoreSummary, error)

// RecomputeResult reports the outcome of a bulk recomputation.
type RecomputeResult struct {
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	FailedIDs []string  `json:"failed_ids,omitempty"`
	JobID     string    `json:"job_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration,omitempty"`
}

// LeaderboardEntry is one ranked student row.
type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	StudentID  string  `json:"student_id"`
	StudentNo  string  `json:"student_no"`
	FullName   string  `json:"full_name"`
	TotalScore float64 `json:"total_score"`
	MedalCount int     `json:"medal_count"`
}

// MonthlyChart holds the ten academic-month buckets for one category.
type MonthlyChart struct {
	StudentID string           `json:"student_id"`
	Category  ActivityCategory `json:"category"`
	Labels    []string         `json:"labels"`
	Values    []float64        `json:"values"`
	Total     float64          `json:"total"`
}

// SeriesChart is a chronological trend for one category.
type SeriesChart struct {
	StudentID string           `json:"student_id"`
	Category  ActivityCategory `json:"category"`
	Labels    []string         `json:"labels"`
	Values    []float64        `json:"values"`
}

// ExportFormat selects the leaderboard export renderer.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
