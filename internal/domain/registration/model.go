package registration

import (
	"fmt"

	"github.com/streetlift/meet-engine/internal/domain/attempt"
)

// Registration is an (athlete, meet) pair with weigh-in data.
// Category pointers are nil for athletes ranked only in the absolute list.
type Registration struct {
	ID               int64
	MeetID           int64
	AthleteID        int64
	BodyweightKg     float64
	WeightCategoryID *int64
	AgeCategoryID    *int64
	RackHeight       int
	BeltAllowed      bool
}

func (r Registration) Validate() error {
	if r.MeetID <= 0 {
		return fmt.Errorf("registration meet is required")
	}
	if r.AthleteID <= 0 {
		return fmt.Errorf("registration athlete is required")
	}
	if r.BodyweightKg < 0 {
		return fmt.Errorf("registration bodyweight cannot be negative")
	}
	if !attempt.QuantizedHalfKg(r.BodyweightKg) {
		return fmt.Errorf("registration bodyweight must be a multiple of 0.5 kg")
	}

	return nil
}

// Opener is the declared weight for attempt #1 on one lift, recorded at weigh-in.
type Opener struct {
	RegistrationID int64
	LiftID         int64
	WeightKg       float64
}

func (o Opener) Validate() error {
	if o.RegistrationID <= 0 || o.LiftID <= 0 {
		return fmt.Errorf("opener registration and lift are required")
	}
	if o.WeightKg < 0 {
		return fmt.Errorf("opener weight cannot be negative")
	}
	if !attempt.QuantizedHalfKg(o.WeightKg) {
		return fmt.Errorf("opener weight must be a multiple of 0.5 kg")
	}

	return nil
}
