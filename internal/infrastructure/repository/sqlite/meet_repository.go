package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/streetlift/meet-engine/internal/domain/meet"
	qb "github.com/streetlift/meet-engine/internal/platform/querybuilder"
)

type MeetRepository struct {
	db *sqlx.DB
}

func NewMeetRepository(db *sqlx.DB) *MeetRepository {
	return &MeetRepository{db: db}
}

func (r *MeetRepository) ByID(ctx context.Context, id int64) (meet.Meet, bool, error) {
	query, args, err := qb.Select("*").From("meets").Where(qb.Eq("id", id)).ToSQL()
	if err != nil {
		return meet.Meet{}, false, fmt.Errorf("build get meet query: %w", err)
	}

	var row meetTableModel
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), args...); err != nil {
		if isNotFound(err) {
			return meet.Meet{}, false, nil
		}
		return meet.Meet{}, false, fmt.Errorf("get meet by id: %w", err)
	}

	return mapMeet(row), true, nil
}

func (r *MeetRepository) ByCode(ctx context.Context, code string) (meet.Meet, bool, error) {
	query, args, err := qb.Select("*").From("meets").Where(qb.Eq("code", code)).ToSQL()
	if err != nil {
		return meet.Meet{}, false, fmt.Errorf("build get meet by code query: %w", err)
	}

	var row meetTableModel
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), args...); err != nil {
		if isNotFound(err) {
			return meet.Meet{}, false, nil
		}
		return meet.Meet{}, false, fmt.Errorf("get meet by code: %w", err)
	}

	return mapMeet(row), true, nil
}

func (r *MeetRepository) Lifts(ctx context.Context, meetTypeID int64) ([]meet.Lift, error) {
	query, args, err := qb.Select("*").From("lifts").
		Where(qb.Eq("meet_type_id", meetTypeID)).
		OrderBy("ord").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list lifts query: %w", err)
	}

	var rows []liftTableModel
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list lifts: %w", err)
	}

	out := make([]meet.Lift, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapLift(row))
	}
	return out, nil
}

func (r *MeetRepository) LiftByID(ctx context.Context, id int64) (meet.Lift, bool, error) {
	query, args, err := qb.Select("*").From("lifts").Where(qb.Eq("id", id)).ToSQL()
	if err != nil {
		return meet.Lift{}, false, fmt.Errorf("build get lift query: %w", err)
	}

	var row liftTableModel
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), args...); err != nil {
		if isNotFound(err) {
			return meet.Lift{}, false, nil
		}
		return meet.Lift{}, false, fmt.Errorf("get lift by id: %w", err)
	}

	return mapLift(row), true, nil
}

func mapMeet(row meetTableModel) meet.Meet {
	return meet.Meet{
		ID:         row.ID,
		Code:       row.Code,
		Name:       row.Name,
		Date:       row.Date,
		Level:      row.Level,
		Regulation: row.Regulation,
		MeetTypeID: row.MeetTypeID,
	}
}

func mapLift(row liftTableModel) meet.Lift {
	return meet.Lift{
		ID:         row.ID,
		MeetTypeID: row.MeetTypeID,
		Code:       row.Code,
		Ord:        row.Ord,
	}
}
