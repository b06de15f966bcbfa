package memory

import (
	"context"
	"sync"

	"github.com/streetlift/meet-engine/internal/domain/current"
)

type CurrentRepository struct {
	mu    sync.RWMutex
	state current.State
}

func NewCurrentRepository() *CurrentRepository {
	return &CurrentRepository{state: current.Idle()}
}

func (r *CurrentRepository) Get(_ context.Context) (current.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.state, nil
}

func (r *CurrentRepository) Put(_ context.Context, s current.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = s
	return nil
}
