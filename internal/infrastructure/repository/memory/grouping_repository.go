package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/streetlift/meet-engine/internal/domain/grouping"
)

type GroupingRepository struct {
	mu      sync.RWMutex
	flights map[int64]grouping.Flight
	groups  map[int64]grouping.Group
	entries map[int64]grouping.Entry
	nextID  int64
}

func NewGroupingRepository() *GroupingRepository {
	return &GroupingRepository{
		flights: make(map[int64]grouping.Flight),
		groups:  make(map[int64]grouping.Group),
		entries: make(map[int64]grouping.Entry),
		nextID:  1,
	}
}

func (r *GroupingRepository) AddFlight(f grouping.Flight) grouping.Flight {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f.ID == 0 {
		f.ID = r.nextID
		r.nextID++
	}
	r.flights[f.ID] = f
	return f
}

func (r *GroupingRepository) AddGroup(g grouping.Group) grouping.Group {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.ID == 0 {
		g.ID = r.nextID
		r.nextID++
	}
	r.groups[g.ID] = g
	return g
}

func (r *GroupingRepository) AddEntry(e grouping.Entry) grouping.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == 0 {
		e.ID = r.nextID
		r.nextID++
	}
	r.entries[e.ID] = e
	return e
}

func (r *GroupingRepository) FlightByID(_ context.Context, id int64) (grouping.Flight, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.flights[id]
	return f, ok, nil
}

func (r *GroupingRepository) FlightsForMeet(_ context.Context, meetID int64) ([]grouping.Flight, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]grouping.Flight, 0)
	for _, f := range r.flights {
		if f.MeetID == meetID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ord < out[j].Ord })
	return out, nil
}

func (r *GroupingRepository) GroupByID(_ context.Context, id int64) (grouping.Group, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.groups[id]
	return g, ok, nil
}

func (r *GroupingRepository) GroupsForFlight(_ context.Context, flightID int64) ([]grouping.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]grouping.Group, 0)
	for _, g := range r.groups {
		if g.FlightID == flightID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ord < out[j].Ord })
	return out, nil
}

func (r *GroupingRepository) EntriesForGroup(_ context.Context, groupID int64) ([]grouping.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]grouping.Entry, 0)
	for _, e := range r.entries {
		if e.GroupID == groupID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartOrd < out[j].StartOrd })
	return out, nil
}

func (r *GroupingRepository) EntriesForMeet(ctx context.Context, meetID int64) ([]grouping.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groupIDs := make(map[int64]bool)
	for _, f := range r.flights {
		if f.MeetID != meetID {
			continue
		}
		for _, g := range r.groups {
			if g.FlightID == f.ID {
				groupIDs[g.ID] = true
			}
		}
	}

	out := make([]grouping.Entry, 0)
	for _, e := range r.entries {
		if groupIDs[e.GroupID] {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartOrd < out[j].StartOrd })
	return out, nil
}
