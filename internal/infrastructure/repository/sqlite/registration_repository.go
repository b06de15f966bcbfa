package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/streetlift/meet-engine/internal/domain/registration"
	"github.com/streetlift/meet-engine/internal/platform/resilience"
	qb "github.com/streetlift/meet-engine/internal/platform/querybuilder"
)

type RegistrationRepository struct {
	db *sqlx.DB
}

func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func (r *RegistrationRepository) ByID(ctx context.Context, id int64) (registration.Registration, bool, error) {
	query, args, err := qb.Select("*").From("registrations").Where(qb.Eq("id", id)).ToSQL()
	if err != nil {
		return registration.Registration{}, false, fmt.Errorf("build get registration query: %w", err)
	}

	var row registrationTableModel
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), args...); err != nil {
		if isNotFound(err) {
			return registration.Registration{}, false, nil
		}
		return registration.Registration{}, false, fmt.Errorf("get registration: %w", err)
	}

	return mapRegistration(row), true, nil
}

func (r *RegistrationRepository) ByIDs(ctx context.Context, ids []int64) (map[int64]registration.Registration, error) {
	if len(ids) == 0 {
		return map[int64]registration.Registration{}, nil
	}

	values := make([]any, 0, len(ids))
	for _, id := range ids {
		values = append(values, id)
	}

	query, args, err := qb.Select("*").From("registrations").Where(qb.In("id", values)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list registrations query: %w", err)
	}

	var rows []registrationTableModel
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list registrations by ids: %w", err)
	}

	out := make(map[int64]registration.Registration, len(rows))
	for _, row := range rows {
		out[row.ID] = mapRegistration(row)
	}
	return out, nil
}

func (r *RegistrationRepository) ForMeet(ctx context.Context, meetID int64) ([]registration.Registration, error) {
	query, args, err := qb.Select("*").From("registrations").
		Where(qb.Eq("meet_id", meetID)).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list registrations query: %w", err)
	}

	var rows []registrationTableModel
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list registrations for meet: %w", err)
	}

	out := make([]registration.Registration, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapRegistration(row))
	}
	return out, nil
}

func (r *RegistrationRepository) Upsert(ctx context.Context, reg registration.Registration) (registration.Registration, error) {
	if err := reg.Validate(); err != nil {
		return registration.Registration{}, fmt.Errorf("invalid registration: %w", err)
	}

	query, args, err := qb.InsertInto("registrations").
		Columns("meet_id", "athlete_id", "bodyweight_kg", "weight_category_id", "age_category_id", "rack_height", "belt_allowed").
		Values(reg.MeetID, reg.AthleteID, reg.BodyweightKg, ptrToNullInt64(reg.WeightCategoryID), ptrToNullInt64(reg.AgeCategoryID), reg.RackHeight, reg.BeltAllowed).
		Suffix("ON CONFLICT (meet_id, athlete_id) DO UPDATE SET bodyweight_kg = ?, weight_category_id = ?, age_category_id = ?, rack_height = ?, belt_allowed = ?",
			reg.BodyweightKg, ptrToNullInt64(reg.WeightCategoryID), ptrToNullInt64(reg.AgeCategoryID), reg.RackHeight, reg.BeltAllowed).
		ToSQL()
	if err != nil {
		return registration.Registration{}, fmt.Errorf("build upsert registration query: %w", err)
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
		return registration.Registration{}, fmt.Errorf("upsert registration: %w", err)
	}

	selectQuery, selectArgs, err := qb.Select("*").From("registrations").
		Where(qb.Eq("meet_id", reg.MeetID), qb.Eq("athlete_id", reg.AthleteID)).
		ToSQL()
	if err != nil {
		return registration.Registration{}, fmt.Errorf("build reread registration query: %w", err)
	}

	var row registrationTableModel
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(selectQuery), selectArgs...); err != nil {
		return registration.Registration{}, fmt.Errorf("reread registration: %w", err)
	}
	return mapRegistration(row), nil
}

func (r *RegistrationRepository) Openers(ctx context.Context, registrationID int64) (map[int64]float64, error) {
	query, args, err := qb.Select("*").From("openers").
		Where(qb.Eq("registration_id", registrationID)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list openers query: %w", err)
	}

	var rows []openerTableModel
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list openers: %w", err)
	}

	out := make(map[int64]float64, len(rows))
	for _, row := range rows {
		out[row.LiftID] = row.WeightKg
	}
	return out, nil
}

func (r *RegistrationRepository) OpenersByRegistrations(ctx context.Context, registrationIDs []int64, liftID int64) (map[int64]float64, error) {
	if len(registrationIDs) == 0 {
		return map[int64]float64{}, nil
	}

	values := make([]any, 0, len(registrationIDs))
	for _, id := range registrationIDs {
		values = append(values, id)
	}

	query, args, err := qb.Select("*").From("openers").
		Where(qb.In("registration_id", values), qb.Eq("lift_id", liftID)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build batched openers query: %w", err)
	}

	var rows []openerTableModel
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list openers for group: %w", err)
	}

	out := make(map[int64]float64, len(rows))
	for _, row := range rows {
		out[row.RegistrationID] = row.WeightKg
	}
	return out, nil
}

func (r *RegistrationRepository) PutOpener(ctx context.Context, o registration.Opener) error {
	if err := o.Validate(); err != nil {
		return fmt.Errorf("invalid opener: %w", err)
	}

	query, args, err := qb.InsertInto("openers").
		Columns("registration_id", "lift_id", "weight_kg").
		Values(o.RegistrationID, o.LiftID, o.WeightKg).
		Suffix("ON CONFLICT (registration_id, lift_id) DO UPDATE SET weight_kg = ?", o.WeightKg).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build put opener query: %w", err)
	}

	return resilience.Retry(ctx, resilience.RetryConfig{}, func() error {
		if _, execErr := r.db.ExecContext(ctx, r.db.Rebind(query), args...); execErr != nil {
			if isBusy(execErr) {
				return resilience.MarkTransient(execErr)
			}
			return fmt.Errorf("put opener: %w", execErr)
		}
		return nil
	})
}

func mapRegistration(row registrationTableModel) registration.Registration {
	return registration.Registration{
		ID:               row.ID,
		MeetID:           row.MeetID,
		AthleteID:        row.AthleteID,
		BodyweightKg:     row.BodyweightKg,
		WeightCategoryID: nullInt64ToPtr(row.WeightCategoryID),
		AgeCategoryID:    nullInt64ToPtr(row.AgeCategoryID),
		RackHeight:       row.RackHeight,
		BeltAllowed:      row.BeltAllowed,
	}
}
