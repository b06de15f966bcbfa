package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/streetlift/meet-engine/internal/domain/athlete"
	"github.com/streetlift/meet-engine/internal/domain/category"
	qb "github.com/streetlift/meet-engine/internal/platform/querybuilder"
)

type CategoryRepository struct {
	db *sqlx.DB
}

func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) WeightCategoryByID(ctx context.Context, id int64) (category.WeightCategory, bool, error) {
	query, args, err := qb.Select("*").From("weight_categories").Where(qb.Eq("id", id)).ToSQL()
	if err != nil {
		return category.WeightCategory{}, false, fmt.Errorf("build get weight category query: %w", err)
	}

	var row weightCategoryTableModel
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), args...); err != nil {
		if isNotFound(err) {
			return category.WeightCategory{}, false, nil
		}
		return category.WeightCategory{}, false, fmt.Errorf("get weight category: %w", err)
	}

	return mapWeightCategory(row), true, nil
}

func (r *CategoryRepository) AgeCategoryByID(ctx context.Context, id int64) (category.AgeCategory, bool, error) {
	query, args, err := qb.Select("*").From("age_categories").Where(qb.Eq("id", id)).ToSQL()
	if err != nil {
		return category.AgeCategory{}, false, fmt.Errorf("build get age category query: %w", err)
	}

	var row ageCategoryTableModel
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), args...); err != nil {
		if isNotFound(err) {
			return category.AgeCategory{}, false, nil
		}
		return category.AgeCategory{}, false, fmt.Errorf("get age category: %w", err)
	}

	return mapAgeCategory(row), true, nil
}

func (r *CategoryRepository) WeightCategories(ctx context.Context) ([]category.WeightCategory, error) {
	query, args, err := qb.Select("*").From("weight_categories").OrderBy("sex", "max_kg").ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list weight categories query: %w", err)
	}

	var rows []weightCategoryTableModel
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list weight categories: %w", err)
	}

	out := make([]category.WeightCategory, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapWeightCategory(row))
	}
	return out, nil
}

func (r *CategoryRepository) AgeCategories(ctx context.Context) ([]category.AgeCategory, error) {
	query, args, err := qb.Select("*").From("age_categories").OrderBy("min_age").ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list age categories query: %w", err)
	}

	var rows []ageCategoryTableModel
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list age categories: %w", err)
	}

	out := make([]category.AgeCategory, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapAgeCategory(row))
	}
	return out, nil
}

func mapWeightCategory(row weightCategoryTableModel) category.WeightCategory {
	return category.WeightCategory{
		ID:    row.ID,
		Name:  row.Name,
		Sex:   athlete.Sex(row.Sex),
		MinKg: row.MinKg,
		MaxKg: row.MaxKg,
	}
}

func mapAgeCategory(row ageCategoryTableModel) category.AgeCategory {
	return category.AgeCategory{
		ID:     row.ID,
		Name:   row.Name,
		MinAge: row.MinAge,
		MaxAge: row.MaxAge,
	}
}
