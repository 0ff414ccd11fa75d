package scoring

import (
	"math"
	"sort"

	"github.com/noah-isme/student-tracker-api/internal/models"
)

const (
	// MaxScore is the upper bound of a clamped total.
	MaxScore = 100.0
	// PointsPerMedal is the score span that earns one medal.
	PointsPerMedal = 10.0
)

// ComputeSummary folds one student's records into a clamped total and a medal
// count. Records must all belong to the same student. LastComputedAt is left
// for the caller to stamp.
func ComputeSummary(records []models.ActivityRecord) (models.ScoreSummary, error) {
	if len(records) == 0 {
		return models.ScoreSummary{}, nil
	}

	studentID := records[0].StudentID
	contributions := make([]float64, 0, len(records))
	for _, rec := range records {
		if rec.StudentID != studentID {
			return models.ScoreSummary{}, invalid(rec.ID, "student_id", "belongs to %q, expected %q", rec.StudentID, studentID)
		}
		c, err := Contribution(rec)
		if err != nil {
			return models.ScoreSummary{}, err
		}
		contributions = append(contributions, c)
	}

	// Summing in sorted order makes the float result independent of input order.
	sort.Float64s(contributions)
	var sum float64
	for _, c := range contributions {
		sum += c
	}

	total := Clamp(sum)
	return models.ScoreSummary{
		StudentID:  studentID,
		TotalScore: total,
		MedalCount: Medals(total),
	}, nil
}

// Clamp bounds a raw total to [0, MaxScore].
func Clamp(raw float64) float64 {
	return math.Max(0, math.Min(MaxScore, raw))
}

// Medals converts a clamped total into whole medals.
func Medals(total float64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(total / PointsPerMedal))
}
