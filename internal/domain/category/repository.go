package category

import "context"

type Repository interface {
	WeightCategoryByID(ctx context.Context, id int64) (WeightCategory, bool, error)
	AgeCategoryByID(ctx context.Context, id int64) (AgeCategory, bool, error)
	WeightCategories(ctx context.Context) ([]WeightCategory, error)
	AgeCategories(ctx context.Context) ([]AgeCategory, error)
}
