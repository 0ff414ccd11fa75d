package scoring

import (
	"math"

	"github.com/noah-isme/student-tracker-api/internal/models"
)

const (
	weightMockExam       = 0.25
	weightWrittenTest    = 0.20
	weightReadingExam    = 0.15
	weightProblemSolving = 0.12
	weightReading        = 0.10
	weightHomework       = 0.08
	weightStar           = 0.05

	misconductPenalty = -1.0
)

// Weight returns the coefficient applied to a category's magnitude. Misconduct
// has no coefficient and reports false.
func Weight(category models.ActivityCategory) (float64, bool) {
	switch category {
	case models.CategoryMockExam:
		return weightMockExam, true
	case models.CategoryWrittenTest:
		return weightWrittenTest, true
	case models.CategoryReadingExam:
		return weightReadingExam, true
	case models.CategoryProblemSolving:
		return weightProblemSolving, true
	case models.CategoryReading:
		return weightReading, true
	case models.CategoryHomework:
		return weightHomework, true
	case models.CategoryStar:
		return weightStar, true
	case models.CategoryMisconduct:
		return 0, false
	}
	return 0, false
}

// IsKnown reports whether the category belongs to the closed set.
func IsKnown(category models.ActivityCategory) bool {
	switch category {
	case models.CategoryReading, models.CategoryHomework, models.CategoryProblemSolving,
		models.CategoryStar, models.CategoryMisconduct, models.CategoryWrittenTest,
		models.CategoryMockExam, models.CategoryReadingExam:
		return true
	}
	return false
}

// Contribution is the signed amount a single record adds to the raw total.
func Contribution(rec models.ActivityRecord) (float64, error) {
	if err := Validate(rec); err != nil {
		return 0, err
	}
	switch rec.Category {
	case models.CategoryReading:
		if !done(rec) {
			return 0, nil
		}
		return float64(*rec.PageCount) * weightReading, nil
	case models.CategoryHomework:
		if !done(rec) {
			return 0, nil
		}
		return float64(*rec.PointValue) * weightHomework, nil
	case models.CategoryProblemSolving:
		return float64(*rec.ProblemCount) * weightProblemSolving, nil
	case models.CategoryStar:
		return float64(*rec.StarCount) * weightStar, nil
	case models.CategoryMisconduct:
		return misconductPenalty, nil
	case models.CategoryWrittenTest:
		return *rec.NetScore * weightWrittenTest, nil
	case models.CategoryMockExam:
		return *rec.NetScore * weightMockExam, nil
	case models.CategoryReadingExam:
		return *rec.ExamScore * weightReadingExam, nil
	}
	return 0, invalid(rec.ID, "category", "%q is not a known category", rec.Category)
}

// Magnitude is the unweighted display value of a record used by charts.
// Misconduct counts as one occurrence; not_done tasks count zero.
func Magnitude(rec models.ActivityRecord) (float64, error) {
	if err := Validate(rec); err != nil {
		return 0, err
	}
	switch rec.Category {
	case models.CategoryReading:
		if !done(rec) {
			return 0, nil
		}
		return float64(*rec.PageCount), nil
	case models.CategoryHomework:
		if !done(rec) {
			return 0, nil
		}
		return float64(*rec.PointValue), nil
	case models.CategoryProblemSolving:
		return float64(*rec.ProblemCount), nil
	case models.CategoryStar:
		return float64(*rec.StarCount), nil
	case models.CategoryMisconduct:
		return 1, nil
	case models.CategoryWrittenTest, models.CategoryMockExam:
		return *rec.NetScore, nil
	case models.CategoryReadingExam:
		return *rec.ExamScore, nil
	}
	return 0, invalid(rec.ID, "category", "%q is not a known category", rec.Category)
}

// Validate checks the populated-field contract of a record: a known category,
// a status only where the category supports one, exactly the category's
// magnitude field, and a zero magnitude for not_done tasks.
func Validate(rec models.ActivityRecord) error {
	if rec.StudentID == "" {
		return invalid(rec.ID, "student_id", "is required")
	}
	if !IsKnown(rec.Category) {
		return invalid(rec.ID, "category", "%q is not a known category", rec.Category)
	}
	if rec.OccurredAt.IsZero() {
		return invalid(rec.ID, "occurred_at", "is required")
	}

	expected := magnitudeField(rec.Category)
	for _, f := range populatedFields(rec) {
		if f != expected {
			return invalid(rec.ID, f, "must be empty for category %s", rec.Category)
		}
	}
	if expected != "" && !isPopulated(rec, expected) {
		return invalid(rec.ID, expected, "is required for category %s", rec.Category)
	}
	for _, v := range []*float64{rec.NetScore, rec.ExamScore} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return invalid(rec.ID, expected, "must be a finite number")
		}
	}

	switch rec.Category {
	case models.CategoryReading, models.CategoryHomework:
		if rec.Status == nil {
			return invalid(rec.ID, "status", "is required for category %s", rec.Category)
		}
		switch *rec.Status {
		case models.StatusDone:
		case models.StatusNotDone:
			if intValue(rec, expected) != 0 {
				return invalid(rec.ID, expected, "must be 0 when status is not_done")
			}
		default:
			return invalid(rec.ID, "status", "%q is not a known status", *rec.Status)
		}
	default:
		if rec.Status != nil {
			return invalid(rec.ID, "status", "is not supported for category %s", rec.Category)
		}
	}
	return nil
}

func magnitudeField(category models.ActivityCategory) string {
	switch category {
	case models.CategoryReading:
		return "page_count"
	case models.CategoryHomework:
		return "point_value"
	case models.CategoryProblemSolving:
		return "problem_count"
	case models.CategoryStar:
		return "star_count"
	case models.CategoryWrittenTest, models.CategoryMockExam:
		return "net_score"
	case models.CategoryReadingExam:
		return "exam_score"
	case models.CategoryMisconduct:
		return ""
	}
	return ""
}

func populatedFields(rec models.ActivityRecord) []string {
	fields := make([]string, 0, 1)
	if rec.PageCount != nil {
		fields = append(fields, "page_count")
	}
	if rec.PointValue != nil {
		fields = append(fields, "point_value")
	}
	if rec.ProblemCount != nil {
		fields = append(fields, "problem_count")
	}
	if rec.StarCount != nil {
		fields = append(fields, "star_count")
	}
	if rec.NetScore != nil {
		fields = append(fields, "net_score")
	}
	if rec.ExamScore != nil {
		fields = append(fields, "exam_score")
	}
	return fields
}

func isPopulated(rec models.ActivityRecord, field string) bool {
	for _, f := range populatedFields(rec) {
		if f == field {
			return true
		}
	}
	return false
}

func intValue(rec models.ActivityRecord, field string) int {
	switch field {
	case "page_count":
		return *rec.PageCount
	case "point_value":
		return *rec.PointValue
	}
	return 0
}

func done(rec models.ActivityRecord) bool {
	return rec.Status != nil && *rec.Status == models.StatusDone
}
