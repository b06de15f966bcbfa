package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/streetlift/meet-engine/internal/domain/attempt"
	"github.com/streetlift/meet-engine/internal/platform/resilience"
	qb "github.com/streetlift/meet-engine/internal/platform/querybuilder"
)

type AttemptRepository struct {
	db *sqlx.DB
}

func NewAttemptRepository(db *sqlx.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) ByID(ctx context.Context, id int64) (attempt.Attempt, bool, error) {
	query, args, err := qb.Select("*").From("attempts").Where(qb.Eq("id", id)).ToSQL()
	if err != nil {
		return attempt.Attempt{}, false, fmt.Errorf("build get attempt query: %w", err)
	}

	var row attemptTableModel
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), args...); err != nil {
		if isNotFound(err) {
			return attempt.Attempt{}, false, nil
		}
		return attempt.Attempt{}, false, fmt.Errorf("get attempt: %w", err)
	}

	return mapAttempt(row), true, nil
}

func (r *AttemptRepository) For(ctx context.Context, registrationID, liftID int64) ([]attempt.Attempt, error) {
	query, args, err := qb.Select("*").From("attempts").
		Where(qb.Eq("registration_id", registrationID), qb.Eq("lift_id", liftID)).
		OrderBy("attempt_no").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list attempts query: %w", err)
	}

	var rows []attemptTableModel
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	out := make([]attempt.Attempt, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapAttempt(row))
	}
	return out, nil
}

// ForRound fetches the whole group's declarations in one read so queue
// latency does not grow with group size.
func (r *AttemptRepository) ForRound(ctx context.Context, registrationIDs []int64, liftID int64, no int) (map[int64]attempt.Attempt, error) {
	if len(registrationIDs) == 0 {
		return map[int64]attempt.Attempt{}, nil
	}

	values := make([]any, 0, len(registrationIDs))
	for _, id := range registrationIDs {
		values = append(values, id)
	}

	query, args, err := qb.Select("*").From("attempts").
		Where(qb.In("registration_id", values), qb.Eq("lift_id", liftID), qb.Eq("attempt_no", no)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build round attempts query: %w", err)
	}

	var rows []attemptTableModel
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list round attempts: %w", err)
	}

	out := make(map[int64]attempt.Attempt, len(rows))
	for _, row := range rows {
		out[row.RegistrationID] = mapAttempt(row)
	}
	return out, nil
}

func (r *AttemptRepository) ForMeet(ctx context.Context, meetID int64) ([]attempt.Attempt, error) {
	query := `SELECT a.* FROM attempts a
		JOIN registrations reg ON reg.id = a.registration_id
		WHERE reg.meet_id = $1
		ORDER BY a.id`

	var rows []attemptTableModel
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), meetID); err != nil {
		return nil, fmt.Errorf("list meet attempts: %w", err)
	}

	out := make([]attempt.Attempt, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapAttempt(row))
	}
	return out, nil
}

func (r *AttemptRepository) Put(ctx context.Context, a attempt.Attempt) (attempt.Attempt, error) {
	if !attempt.QuantizedHalfKg(a.WeightKg) {
		return attempt.Attempt{}, fmt.Errorf("attempt weight must be a non-negative multiple of 0.5 kg")
	}

	query, args, err := qb.InsertInto("attempts").
		Columns("registration_id", "lift_id", "attempt_no", "weight_kg", "status").
		Values(a.RegistrationID, a.LiftID, a.No, a.WeightKg, string(a.Status)).
		Suffix("ON CONFLICT (registration_id, lift_id, attempt_no) DO UPDATE SET weight_kg = ?, status = ?",
			a.WeightKg, string(a.Status)).
		ToSQL()
	if err != nil {
		return attempt.Attempt{}, fmt.Errorf("build put attempt query: %w", err)
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
		return attempt.Attempt{}, fmt.Errorf("put attempt: %w", err)
	}

	selectQuery, selectArgs, err := qb.Select("*").From("attempts").
		Where(qb.Eq("registration_id", a.RegistrationID), qb.Eq("lift_id", a.LiftID), qb.Eq("attempt_no", a.No)).
		ToSQL()
	if err != nil {
		return attempt.Attempt{}, fmt.Errorf("build reread attempt query: %w", err)
	}

	var row attemptTableModel
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(selectQuery), selectArgs...); err != nil {
		return attempt.Attempt{}, fmt.Errorf("reread attempt: %w", err)
	}
	return mapAttempt(row), nil
}

func mapAttempt(row attemptTableModel) attempt.Attempt {
	return attempt.Attempt{
		ID:             row.ID,
		RegistrationID: row.RegistrationID,
		LiftID:         row.LiftID,
		No:             row.AttemptNo,
		WeightKg:       row.WeightKg,
		Status:         attempt.Status(row.Status),
	}
}
