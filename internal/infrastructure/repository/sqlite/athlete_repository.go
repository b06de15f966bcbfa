package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/streetlift/meet-engine/internal/domain/athlete"
	"github.com/streetlift/meet-engine/internal/platform/resilience"
	qb "github.com/streetlift/meet-engine/internal/platform/querybuilder"
)

type AthleteRepository struct {
	db *sqlx.DB
}

func NewAthleteRepository(db *sqlx.DB) *AthleteRepository {
	return &AthleteRepository{db: db}
}

func (r *AthleteRepository) ByID(ctx context.Context, id int64) (athlete.Athlete, bool, error) {
	query, args, err := qb.Select("*").From("athletes").Where(qb.Eq("id", id)).ToSQL()
	if err != nil {
		return athlete.Athlete{}, false, fmt.Errorf("build get athlete query: %w", err)
	}

	var row athleteTableModel
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), args...); err != nil {
		if isNotFound(err) {
			return athlete.Athlete{}, false, nil
		}
		return athlete.Athlete{}, false, fmt.Errorf("get athlete by id: %w", err)
	}

	return mapAthlete(row), true, nil
}

func (r *AthleteRepository) ByCF(ctx context.Context, cf string) (athlete.Athlete, bool, error) {
	query, args, err := qb.Select("*").From("athletes").Where(qb.Eq("cf", cf)).ToSQL()
	if err != nil {
		return athlete.Athlete{}, false, fmt.Errorf("build get athlete by cf query: %w", err)
	}

	var row athleteTableModel
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), args...); err != nil {
		if isNotFound(err) {
			return athlete.Athlete{}, false, nil
		}
		return athlete.Athlete{}, false, fmt.Errorf("get athlete by cf: %w", err)
	}

	return mapAthlete(row), true, nil
}

func (r *AthleteRepository) ByIDs(ctx context.Context, ids []int64) (map[int64]athlete.Athlete, error) {
	if len(ids) == 0 {
		return map[int64]athlete.Athlete{}, nil
	}

	values := make([]any, 0, len(ids))
	for _, id := range ids {
		values = append(values, id)
	}

	query, args, err := qb.Select("*").From("athletes").Where(qb.In("id", values)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list athletes query: %w", err)
	}

	var rows []athleteTableModel
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list athletes by ids: %w", err)
	}

	out := make(map[int64]athlete.Athlete, len(rows))
	for _, row := range rows {
		out[row.ID] = mapAthlete(row)
	}
	return out, nil
}

func (r *AthleteRepository) Upsert(ctx context.Context, a athlete.Athlete) (athlete.Athlete, error) {
	if err := a.Validate(); err != nil {
		return athlete.Athlete{}, fmt.Errorf("invalid athlete: %w", err)
	}

	query, args, err := qb.InsertInto("athletes").
		Columns("cf", "given_name", "family_name", "sex", "birth_date").
		Values(a.CF, a.GivenName, a.FamilyName, string(a.Sex), a.BirthDate).
		Suffix("ON CONFLICT (cf) DO UPDATE SET given_name = ?, family_name = ?, sex = ?, birth_date = ?",
			a.GivenName, a.FamilyName, string(a.Sex), a.BirthDate).
		ToSQL()
	if err != nil {
		return athlete.Athlete{}, fmt.Errorf("build upsert athlete query: %w", err)
	}

	err = resilience.Retry(ctx, resilience.RetryConfig{}, func() error {
		if _, execErr := r.db.ExecContext(ctx, r.db.Rebind(query), args...); execErr != nil {
			if isBusy(execErr) {
				return resilience.MarkTransient(execErr)
			}
			return execErr
		}
		return nil
	})
	if err != nil {
		return athlete.Athlete{}, fmt.Errorf("upsert athlete: %w", err)
	}

	stored, _, err := r.ByCF(ctx, a.CF)
	if err != nil {
		return athlete.Athlete{}, err
	}
	return stored, nil
}

func mapAthlete(row athleteTableModel) athlete.Athlete {
	return athlete.Athlete{
		ID:         row.ID,
		CF:         row.CF,
		GivenName:  row.GivenName,
		FamilyName: row.FamilyName,
		Sex:        athlete.Sex(row.Sex),
		BirthDate:  row.BirthDate,
	}
}
