package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/streetlift/meet-engine/internal/domain/attempt"
)

type AttemptRepository struct {
	mu     sync.RWMutex
	items  map[int64]attempt.Attempt
	nextID int64

	// regRepo resolves meet membership for ForMeet.
	regRepo *RegistrationRepository
}

func NewAttemptRepository(regRepo *RegistrationRepository) *AttemptRepository {
	return &AttemptRepository{
		items:   make(map[int64]attempt.Attempt),
		nextID:  1,
		regRepo: regRepo,
	}
}

func (r *AttemptRepository) ByID(_ context.Context, id int64) (attempt.Attempt, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.items[id]
	return a, ok, nil
}

func (r *AttemptRepository) For(_ context.Context, registrationID, liftID int64) ([]attempt.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]attempt.Attempt, 0, attempt.MaxNo)
	for _, a := range r.items {
		if a.RegistrationID == registrationID && a.LiftID == liftID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].No < out[j].No })
	return out, nil
}

func (r *AttemptRepository) ForRound(_ context.Context, registrationIDs []int64, liftID int64, no int) (map[int64]attempt.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[int64]bool, len(registrationIDs))
	for _, id := range registrationIDs {
		wanted[id] = true
	}

	out := make(map[int64]attempt.Attempt)
	for _, a := range r.items {
		if a.LiftID == liftID && a.No == no && wanted[a.RegistrationID] {
			out[a.RegistrationID] = a
		}
	}
	return out, nil
}

func (r *AttemptRepository) ForMeet(ctx context.Context, meetID int64) ([]attempt.Attempt, error) {
	regs, err := r.regRepo.ForMeet(ctx, meetID)
	if err != nil {
		return nil, err
	}
	regIDs := make(map[int64]bool, len(regs))
	for _, reg := range regs {
		regIDs[reg.ID] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]attempt.Attempt, 0)
	for _, a := range r.items {
		if regIDs[a.RegistrationID] {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *AttemptRepository) Put(_ context.Context, a attempt.Attempt) (attempt.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == 0 {
		for _, existing := range r.items {
			if existing.RegistrationID == a.RegistrationID && existing.LiftID == a.LiftID && existing.No == a.No {
				a.ID = existing.ID
				break
			}
		}
	}
	if a.ID == 0 {
		a.ID = r.nextID
		r.nextID++
	} else if a.ID >= r.nextID {
		r.nextID = a.ID + 1
	}

	r.items[a.ID] = a
	return a, nil
}
