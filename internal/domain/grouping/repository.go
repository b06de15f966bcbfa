package grouping

import "context"

type Repository interface {
	FlightByID(ctx context.Context, id int64) (Flight, bool, error)
	FlightsForMeet(ctx context.Context, meetID int64) ([]Flight, error)
	GroupByID(ctx context.Context, id int64) (Group, bool, error)
	// GroupsForFlight returns groups ordered by Ord.
	GroupsForFlight(ctx context.Context, flightID int64) ([]Group, error)
	// EntriesForGroup returns entries ordered by StartOrd.
	EntriesForGroup(ctx context.Context, groupID int64) ([]Entry, error)
	// EntriesForMeet returns every entry of the meet in one batched read.
	EntriesForMeet(ctx context.Context, meetID int64) ([]Entry, error)
}
