package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/streetlift/meet-engine/internal/domain/grouping"
	qb "github.com/streetlift/meet-engine/internal/platform/querybuilder"
)

type GroupingRepository struct {
	db *sqlx.DB
}

func NewGroupingRepository(db *sqlx.DB) *GroupingRepository {
	return &GroupingRepository{db: db}
}

func (r *GroupingRepository) FlightByID(ctx context.Context, id int64) (grouping.Flight, bool, error) {
	query, args, err := qb.Select("*").From("flights").Where(qb.Eq("id", id)).ToSQL()
	if err != nil {
		return grouping.Flight{}, false, fmt.Errorf("build get flight query: %w", err)
	}

	var row flightTableModel
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), args...); err != nil {
		if isNotFound(err) {
			return grouping.Flight{}, false, nil
		}
		return grouping.Flight{}, false, fmt.Errorf("get flight: %w", err)
	}

	return grouping.Flight(row), true, nil
}

func (r *GroupingRepository) FlightsForMeet(ctx context.Context, meetID int64) ([]grouping.Flight, error) {
	query, args, err := qb.Select("*").From("flights").
		Where(qb.Eq("meet_id", meetID)).
		OrderBy("ord").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list flights query: %w", err)
	}

	var rows []flightTableModel
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}

	out := make([]grouping.Flight, 0, len(rows))
	for _, row := range rows {
		out = append(out, grouping.Flight(row))
	}
	return out, nil
}

func (r *GroupingRepository) GroupByID(ctx context.Context, id int64) (grouping.Group, bool, error) {
	query, args, err := qb.Select("*").From("meet_groups").Where(qb.Eq("id", id)).ToSQL()
	if err != nil {
		return grouping.Group{}, false, fmt.Errorf("build get group query: %w", err)
	}

	var row groupTableModel
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), args...); err != nil {
		if isNotFound(err) {
			return grouping.Group{}, false, nil
		}
		return grouping.Group{}, false, fmt.Errorf("get group: %w", err)
	}

	return grouping.Group(row), true, nil
}

func (r *GroupingRepository) GroupsForFlight(ctx context.Context, flightID int64) ([]grouping.Group, error) {
	query, args, err := qb.Select("*").From("meet_groups").
		Where(qb.Eq("flight_id", flightID)).
		OrderBy("ord").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list groups query: %w", err)
	}

	var rows []groupTableModel
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	out := make([]grouping.Group, 0, len(rows))
	for _, row := range rows {
		out = append(out, grouping.Group(row))
	}
	return out, nil
}

func (r *GroupingRepository) EntriesForGroup(ctx context.Context, groupID int64) ([]grouping.Entry, error) {
	query, args, err := qb.Select("*").From("group_entries").
		Where(qb.Eq("group_id", groupID)).
		OrderBy("start_ord").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list entries query: %w", err)
	}

	var rows []groupEntryTableModel
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list group entries: %w", err)
	}

	out := make([]grouping.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapEntry(row))
	}
	return out, nil
}

func (r *GroupingRepository) EntriesForMeet(ctx context.Context, meetID int64) ([]grouping.Entry, error) {
	query := `SELECT ge.* FROM group_entries ge
		JOIN meet_groups g ON g.id = ge.group_id
		JOIN flights f ON f.id = g.flight_id
		WHERE f.meet_id = $1
		ORDER BY ge.start_ord`

	var rows []groupEntryTableModel
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), meetID); err != nil {
		return nil, fmt.Errorf("list meet entries: %w", err)
	}

	out := make([]grouping.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapEntry(row))
	}
	return out, nil
}

func mapEntry(row groupEntryTableModel) grouping.Entry {
	return grouping.Entry{
		ID:             row.ID,
		GroupID:        row.GroupID,
		RegistrationID: row.RegistrationID,
		StartOrd:       row.StartOrd,
	}
}
