package scoring

import (
	"sort"

	"github.com/noah-isme/student-tracker-api/internal/models"
)

// SeriesLabelLayout renders series labels as day.month.
const SeriesLabelLayout = "02.01"

// ChronologicalSeries returns one point per record of the category, oldest
// first. Records sharing a timestamp are ordered by ID, then by input order.
func ChronologicalSeries(records []models.ActivityRecord, category models.ActivityCategory) ([]string, []float64, error) {
	if !IsKnown(category) {
		return nil, nil, invalid("", "category", "%q is not a known category", category)
	}

	filtered := make([]models.ActivityRecord, 0, len(records))
	for _, rec := range records {
		if err := Validate(rec); err != nil {
			return nil, nil, err
		}
		if rec.Category == category {
			filtered = append(filtered, rec)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.Before(b.OccurredAt)
		}
		return a.ID < b.ID
	})

	labels := make([]string, 0, len(filtered))
	values := make([]float64, 0, len(filtered))
	for _, rec := range filtered {
		v, err := Magnitude(rec)
		if err != nil {
			return nil, nil, err
		}
		labels = append(labels, rec.OccurredAt.Format(SeriesLabelLayout))
		values = append(values, v)
	}
	return labels, values, nil
}
