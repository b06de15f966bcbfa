package current

import "context"

// Repository persists the singleton state row so a restart resumes mid-meet.
type Repository interface {
	Get(ctx context.Context) (State, error)
	Put(ctx context.Context, s State) error
}
