package athlete

import "context"

// Repository describes athlete persistence needs from use cases.
type Repository interface {
	ByID(ctx context.Context, id int64) (Athlete, bool, error)
	ByCF(ctx context.Context, cf string) (Athlete, bool, error)
	ByIDs(ctx context.Context, ids []int64) (map[int64]Athlete, error)
	Upsert(ctx context.Context, a Athlete) (Athlete, error)
}
