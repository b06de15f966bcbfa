package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/streetlift/meet-engine/internal/domain/registration"
)

type openerKey struct {
	regID  int64
	liftID int64
}

type RegistrationRepository struct {
	mu      sync.RWMutex
	items   map[int64]registration.Registration
	openers map[openerKey]float64
	nextID  int64
}

func NewRegistrationRepository() *RegistrationRepository {
	return &RegistrationRepository{
		items:   make(map[int64]registration.Registration),
		openers: make(map[openerKey]float64),
		nextID:  1,
	}
}

func (r *RegistrationRepository) ByID(_ context.Context, id int64) (registration.Registration, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.items[id]
	return reg, ok, nil
}

func (r *RegistrationRepository) ByIDs(_ context.Context, ids []int64) (map[int64]registration.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int64]registration.Registration, len(ids))
	for _, id := range ids {
		if reg, ok := r.items[id]; ok {
			out[id] = reg
		}
	}
	return out, nil
}

func (r *RegistrationRepository) ForMeet(_ context.Context, meetID int64) ([]registration.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]registration.Registration, 0)
	for _, reg := range r.items {
		if reg.MeetID == meetID {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *RegistrationRepository) Upsert(_ context.Context, reg registration.Registration) (registration.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reg.ID == 0 {
		reg.ID = r.nextID
		r.nextID++
	} else if reg.ID >= r.nextID {
		r.nextID = reg.ID + 1
	}
	r.items[reg.ID] = reg
	return reg, nil
}

func (r *RegistrationRepository) Openers(_ context.Context, registrationID int64) (map[int64]float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int64]float64)
	for key, kg := range r.openers {
		if key.regID == registrationID {
			out[key.liftID] = kg
		}
	}
	return out, nil
}

func (r *RegistrationRepository) OpenersByRegistrations(_ context.Context, registrationIDs []int64, liftID int64) (map[int64]float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int64]float64, len(registrationIDs))
	for _, id := range registrationIDs {
		if kg, ok := r.openers[openerKey{regID: id, liftID: liftID}]; ok {
			out[id] = kg
		}
	}
	return out, nil
}

func (r *RegistrationRepository) PutOpener(_ context.Context, o registration.Opener) error {
	if err := o.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.openers[openerKey{regID: o.RegistrationID, liftID: o.LiftID}] = o.WeightKg
	return nil
}
