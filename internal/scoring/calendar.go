package scoring

import (
	"time"

	"github.com/noah-isme/student-tracker-api/internal/models"
)

// AcademicMonths is the number of buckets in a school year (September to June).
const AcademicMonths = 10

// AcademicMonthLabels names the buckets in order.
var AcademicMonthLabels = [AcademicMonths]string{
	"Sep", "Oct", "Nov", "Dec", "Jan", "Feb", "Mar", "Apr", "May", "Jun",
}

// AcademicBucket maps a date to its bucket index. July and August fall
// outside the school year and report false.
func AcademicBucket(t time.Time) (int, bool) {
	m := int(t.Month()) - 1
	switch {
	case m >= 8:
		return m - 8, true
	case m <= 5:
		return m + 4, true
	default:
		return 0, false
	}
}

// BucketByAcademicMonth sums the display magnitude of every record of the
// given category into its academic month. Records of other categories are
// validated but not counted.
func BucketByAcademicMonth(records []models.ActivityRecord, category models.ActivityCategory) ([AcademicMonths]float64, error) {
	var buckets [AcademicMonths]float64
	if !IsKnown(category) {
		return buckets, invalid("", "category", "%q is not a known category", category)
	}
	for _, rec := range records {
		if err := Validate(rec); err != nil {
			return [AcademicMonths]float64{}, err
		}
		if rec.Category != category {
			continue
		}
		idx, ok := AcademicBucket(rec.OccurredAt)
		if !ok {
			continue
		}
		v, err := Magnitude(rec)
		if err != nil {
			return [AcademicMonths]float64{}, err
		}
		buckets[idx] += v
	}
	return buckets, nil
}
