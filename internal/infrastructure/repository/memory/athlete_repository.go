package memory

import (
	"context"
	"sync"

	"github.com/streetlift/meet-engine/internal/domain/athlete"
)

type AthleteRepository struct {
	mu     sync.RWMutex
	items  map[int64]athlete.Athlete
	byCF   map[string]int64
	nextID int64
}

func NewAthleteRepository() *AthleteRepository {
	return &AthleteRepository{
		items:  make(map[int64]athlete.Athlete),
		byCF:   make(map[string]int64),
		nextID: 1,
	}
}

func (r *AthleteRepository) ByID(_ context.Context, id int64) (athlete.Athlete, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.items[id]
	return a, ok, nil
}

func (r *AthleteRepository) ByCF(_ context.Context, cf string) (athlete.Athlete, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byCF[cf]
	if !ok {
		return athlete.Athlete{}, false, nil
	}
	return r.items[id], true, nil
}

func (r *AthleteRepository) ByIDs(_ context.Context, ids []int64) (map[int64]athlete.Athlete, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int64]athlete.Athlete, len(ids))
	for _, id := range ids {
		if a, ok := r.items[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (r *AthleteRepository) Upsert(_ context.Context, a athlete.Athlete) (athlete.Athlete, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byCF[a.CF]; ok {
		a.ID = id
	} else if a.ID == 0 {
		a.ID = r.nextID
		r.nextID++
	} else if a.ID >= r.nextID {
		r.nextID = a.ID + 1
	}

	r.items[a.ID] = a
	r.byCF[a.CF] = a.ID
	return a, nil
}
