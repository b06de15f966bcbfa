package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/streetlift/meet-engine/internal/domain/meet"
)

type MeetRepository struct {
	mu     sync.RWMutex
	meets  map[int64]meet.Meet
	lifts  map[int64]meet.Lift
	nextID int64
}

func NewMeetRepository() *MeetRepository {
	return &MeetRepository{
		meets:  make(map[int64]meet.Meet),
		lifts:  make(map[int64]meet.Lift),
		nextID: 1,
	}
}

func (r *MeetRepository) AddMeet(m meet.Meet) meet.Meet {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID == 0 {
		m.ID = r.nextID
		r.nextID++
	} else if m.ID >= r.nextID {
		r.nextID = m.ID + 1
	}
	r.meets[m.ID] = m
	return m
}

func (r *MeetRepository) AddLift(l meet.Lift) meet.Lift {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l.ID == 0 {
		l.ID = r.nextID
		r.nextID++
	} else if l.ID >= r.nextID {
		r.nextID = l.ID + 1
	}
	r.lifts[l.ID] = l
	return l
}

func (r *MeetRepository) ByID(_ context.Context, id int64) (meet.Meet, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.meets[id]
	return m, ok, nil
}

func (r *MeetRepository) ByCode(_ context.Context, code string) (meet.Meet, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.meets {
		if m.Code == code {
			return m, true, nil
		}
	}
	return meet.Meet{}, false, nil
}

func (r *MeetRepository) Lifts(_ context.Context, meetTypeID int64) ([]meet.Lift, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]meet.Lift, 0, 4)
	for _, l := range r.lifts {
		if l.MeetTypeID == meetTypeID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ord < out[j].Ord })
	return out, nil
}

func (r *MeetRepository) LiftByID(_ context.Context, id int64) (meet.Lift, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.lifts[id]
	return l, ok, nil
}
