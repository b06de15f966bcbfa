package registration

import "context"

type Repository interface {
	ByID(ctx context.Context, id int64) (Registration, bool, error)
	ByIDs(ctx context.Context, ids []int64) (map[int64]Registration, error)
	ForMeet(ctx context.Context, meetID int64) ([]Registration, error)
	Upsert(ctx context.Context, r Registration) (Registration, error)

	// Openers returns the lift -> kg map declared at weigh-in.
	Openers(ctx context.Context, registrationID int64) (map[int64]float64, error)
	// OpenersByRegistrations is the batched form used by the ordering engine.
	// The result maps registration id -> declared opener for liftID; absent
	// keys declared no opener on that lift.
	OpenersByRegistrations(ctx context.Context, registrationIDs []int64, liftID int64) (map[int64]float64, error)
	PutOpener(ctx context.Context, o Opener) error
}
