package meet

import "context"

type Repository interface {
	ByID(ctx context.Context, id int64) (Meet, bool, error)
	ByCode(ctx context.Context, code string) (Meet, bool, error)
	// Lifts returns the meet type's lifts ordered by Ord.
	Lifts(ctx context.Context, meetTypeID int64) ([]Lift, error)
	LiftByID(ctx context.Context, id int64) (Lift, bool, error)
}
