// Package notify delivers activity alerts to parents and account mail to staff.
package notify

import (
	"fmt"
	"strings"

	"github.com/noah-isme/student-tracker-api/internal/models"
)

// ActivityAlert is what a parent is told after a record is logged.
type ActivityAlert struct {
	ParentChatID int64
	StudentName  string
	Record       models.ActivityRecord
	Summary      models.ScoreSummary
}

var categoryTitles = map[models.ActivityCategory]string{
	models.CategoryReading:        "Reading",
	models.CategoryHomework:       "Homework",
	models.CategoryProblemSolving: "Problem solving",
	models.CategoryStar:           "Star",
	models.CategoryMisconduct:     "Misconduct",
	models.CategoryWrittenTest:    "Written test",
	models.CategoryMockExam:       "Mock exam",
	models.CategoryReadingExam:    "Reading exam",
}

// CategoryTitle returns a human label for a category.
func CategoryTitle(c models.ActivityCategory) string {
	if title, ok := categoryTitles[c]; ok {
		return title
	}
	return string(c)
}

// FormatActivityAlert renders the plain-text parent message.
func FormatActivityAlert(a ActivityAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: new %s entry on %s", a.StudentName, strings.ToLower(CategoryTitle(a.Record.Category)), a.Record.OccurredAt.Format("02.01.2006"))
	if detail := recordDetail(a.Record); detail != "" {
		fmt.Fprintf(&b, " (%s)", detail)
	}
	fmt.Fprintf(&b, "\nTotal score: %.2f, medals: %d", a.Summary.TotalScore, a.Summary.MedalCount)
	return b.String()
}

func recordDetail(rec models.ActivityRecord) string {
	if rec.Status != nil && *rec.Status == models.StatusNotDone {
		return "not done"
	}
	switch {
	case rec.PageCount != nil:
		return fmt.Sprintf("%d pages", *rec.PageCount)
	case rec.PointValue != nil:
		return fmt.Sprintf("%d/5 points", *rec.PointValue)
	case rec.ProblemCount != nil:
		return fmt.Sprintf("%d problems", *rec.ProblemCount)
	case rec.StarCount != nil:
		return fmt.Sprintf("%d stars", *rec.StarCount)
	case rec.NetScore != nil:
		return fmt.Sprintf("net %.2f", *rec.NetScore)
	case rec.ExamScore != nil:
		return fmt.Sprintf("score %.0f", *rec.ExamScore)
	}
	return ""
}
