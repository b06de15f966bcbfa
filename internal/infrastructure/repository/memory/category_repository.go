package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/streetlift/meet-engine/internal/domain/category"
)

type CategoryRepository struct {
	mu      sync.RWMutex
	weights map[int64]category.WeightCategory
	ages    map[int64]category.AgeCategory
	nextID  int64
}

func NewCategoryRepository() *CategoryRepository {
	return &CategoryRepository{
		weights: make(map[int64]category.WeightCategory),
		ages:    make(map[int64]category.AgeCategory),
		nextID:  1,
	}
}

func (r *CategoryRepository) AddWeightCategory(c category.WeightCategory) category.WeightCategory {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == 0 {
		c.ID = r.nextID
		r.nextID++
	}
	r.weights[c.ID] = c
	return c
}

func (r *CategoryRepository) AddAgeCategory(c category.AgeCategory) category.AgeCategory {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == 0 {
		c.ID = r.nextID
		r.nextID++
	}
	r.ages[c.ID] = c
	return c
}

func (r *CategoryRepository) WeightCategoryByID(_ context.Context, id int64) (category.WeightCategory, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.weights[id]
	return c, ok, nil
}

func (r *CategoryRepository) AgeCategoryByID(_ context.Context, id int64) (category.AgeCategory, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.ages[id]
	return c, ok, nil
}

func (r *CategoryRepository) WeightCategories(_ context.Context) ([]category.WeightCategory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]category.WeightCategory, 0, len(r.weights))
	for _, c := range r.weights {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *CategoryRepository) AgeCategories(_ context.Context) ([]category.AgeCategory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]category.AgeCategory, 0, len(r.ages))
	for _, c := range r.ages {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
