package attempt

import "context"

type Repository interface {
	ByID(ctx context.Context, id int64) (Attempt, bool, error)
	// For returns all attempts for (registration, lift) ordered by No.
	For(ctx context.Context, registrationID, liftID int64) ([]Attempt, error)
	// ForRound is the batched lookup used by the ordering engine: the
	// attempt row with No == no for every listed registration that has one.
	ForRound(ctx context.Context, registrationIDs []int64, liftID int64, no int) (map[int64]Attempt, error)
	// ForMeet returns every attempt of the meet, for ranking and sync.
	ForMeet(ctx context.Context, meetID int64) ([]Attempt, error)
	// Put inserts or updates by (registration, lift, no). Legality of the
	// write is the caller's concern; see ValidateDeclare/ValidateFinalize.
	Put(ctx context.Context, a Attempt) (Attempt, error)
}
