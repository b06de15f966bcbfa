package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/streetlift/meet-engine/internal/domain/current"
	"github.com/streetlift/meet-engine/internal/platform/resilience"
	qb "github.com/streetlift/meet-engine/internal/platform/querybuilder"
)

// CurrentRepository persists the singleton state row (id = 1), so a crashed
// process resumes the meet where it stopped.
type CurrentRepository struct {
	db *sqlx.DB
}

func NewCurrentRepository(db *sqlx.DB) *CurrentRepository {
	return &CurrentRepository{db: db}
}

func (r *CurrentRepository) Get(ctx context.Context) (current.State, error) {
	query, args, err := qb.Select("*").From("current_state").Where(qb.Eq("id", 1)).ToSQL()
	if err != nil {
		return current.State{}, fmt.Errorf("build get current state query: %w", err)
	}

	var row currentStateTableModel
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), args...); err != nil {
		if isNotFound(err) {
			return current.Idle(), nil
		}
		return current.State{}, fmt.Errorf("get current state: %w", err)
	}

	st := current.State{
		Phase:          current.Phase(row.Phase),
		MeetID:         nullInt64ToPtr(row.MeetID),
		FlightID:       nullInt64ToPtr(row.FlightID),
		GroupID:        nullInt64ToPtr(row.GroupID),
		LiftID:         nullInt64ToPtr(row.LiftID),
		Round:          row.Round,
		RegistrationID: nullInt64ToPtr(row.RegistrationID),
	}
	if row.TimerStart.Valid {
		start := row.TimerStart.Time
		st.TimerStart = &start
	}
	if row.TimerDurationS.Valid {
		st.TimerDuration = time.Duration(row.TimerDurationS.Int64) * time.Second
	}

	return st, nil
}

func (r *CurrentRepository) Put(ctx context.Context, s current.State) error {
	var timerStart any
	if s.TimerStart != nil {
		timerStart = s.TimerStart.UTC()
	}
	var timerDuration any
	if s.TimerDuration > 0 {
		timerDuration = int64(s.TimerDuration.Seconds())
	}

	query, args, err := qb.InsertInto("current_state").
		Columns("id", "phase", "meet_id", "flight_id", "group_id", "lift_id", "round", "registration_id", "timer_start", "timer_duration_s").
		Values(1, string(s.Phase), ptrToNullInt64(s.MeetID), ptrToNullInt64(s.FlightID), ptrToNullInt64(s.GroupID), ptrToNullInt64(s.LiftID), s.Round, ptrToNullInt64(s.RegistrationID), timerStart, timerDuration).
		Suffix("ON CONFLICT (id) DO UPDATE SET phase = ?, meet_id = ?, flight_id = ?, group_id = ?, lift_id = ?, round = ?, registration_id = ?, timer_start = ?, timer_duration_s = ?",
			string(s.Phase), ptrToNullInt64(s.MeetID), ptrToNullInt64(s.FlightID), ptrToNullInt64(s.GroupID), ptrToNullInt64(s.LiftID), s.Round, ptrToNullInt64(s.RegistrationID), timerStart, timerDuration).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build put current state query: %w", err)
	}

	return resilience.Retry(ctx, resilience.RetryConfig{}, func() error {
		if _, execErr := r.db.ExecContext(ctx, r.db.Rebind(query), args...); execErr != nil {
			if isBusy(execErr) {
				return resilience.MarkTransient(execErr)
			}
			return fmt.Errorf("put current state: %w", execErr)
		}
		return nil
	})
}
