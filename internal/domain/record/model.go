package record

import "time"

// Record is the archive's best lift for (weight category, age category, lift),
// keyed by category names and lift code so no database ids cross systems.
type Record struct {
	WeightCategoryName string
	AgeCategoryName    string
	LiftCode           string
	WeightKg           float64
	BodyweightKg       float64
	AthleteCF          string
	MeetCode           string
	SetAt              time.Time
}

// Beats reports whether a candidate lift takes the record. Promotion
// requires strictly greater weight; equal weight at lower bodyweight
// does not promote.
func (r Record) Beats(existingKg float64) bool {
	return r.WeightKg > existingKg
}
