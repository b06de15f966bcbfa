package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Seed loads a small demonstration meet into a freshly initialized store:
// one streetlifting format (MU + DIP), two groups in one flight, and six
// athletes with openers, ready for `meetd serve`.
func Seed(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `INSERT INTO meet_types (name) VALUES ('Streetlifting 2-lift')`)
	if err != nil {
		return fmt.Errorf("seed meet type: %w", err)
	}
	meetTypeID, _ := res.LastInsertId()

	liftIDs := make(map[string]int64, 2)
	for i, code := range []string{"MU", "DIP"} {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO lifts (meet_type_id, code, ord) VALUES (?, ?, ?)`, meetTypeID, code, i+1)
		if err != nil {
			return fmt.Errorf("seed lift %s: %w", code, err)
		}
		liftIDs[code], _ = res.LastInsertId()
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO meets (code, name, date, level, regulation, meet_type_id) VALUES (?, ?, ?, ?, ?, ?)`,
		"SL-2026-DEMO", "Demo Meet", time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC), "regional", "2026", meetTypeID)
	if err != nil {
		return fmt.Errorf("seed meet: %w", err)
	}
	meetID, _ := res.LastInsertId()

	res, err = tx.ExecContext(ctx,
		`INSERT INTO weight_categories (name, sex, min_kg, max_kg) VALUES ('-75', 'M', 0, 75)`)
	if err != nil {
		return fmt.Errorf("seed weight category: %w", err)
	}
	wc75, _ := res.LastInsertId()

	res, err = tx.ExecContext(ctx,
		`INSERT INTO weight_categories (name, sex, min_kg, max_kg) VALUES ('-82', 'M', 75, 82)`)
	if err != nil {
		return fmt.Errorf("seed weight category: %w", err)
	}
	wc82, _ := res.LastInsertId()

	res, err = tx.ExecContext(ctx,
		`INSERT INTO age_categories (name, min_age, max_age) VALUES ('SR', 24, 39)`)
	if err != nil {
		return fmt.Errorf("seed age category: %w", err)
	}
	acSR, _ := res.LastInsertId()

	res, err = tx.ExecContext(ctx,
		`INSERT INTO flights (meet_id, name, ord) VALUES (?, 'Flight A', 1)`, meetID)
	if err != nil {
		return fmt.Errorf("seed flight: %w", err)
	}
	flightID, _ := res.LastInsertId()

	groupIDs := make([]int64, 0, 2)
	for i, name := range []string{"M -75", "M -82"} {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO meet_groups (flight_id, name, ord) VALUES (?, ?, ?)`, flightID, name, i+1)
		if err != nil {
			return fmt.Errorf("seed group %s: %w", name, err)
		}
		id, _ := res.LastInsertId()
		groupIDs = append(groupIDs, id)
	}

	lifters := []struct {
		cf     string
		given  string
		family string
		bw     float64
		wcID   int64
		group  int
		mu     float64
		dip    float64
	}{
		{"RSSMRC95C14H501X", "Marco", "Rossi", 70, wc75, 0, 85, 50},
		{"BNCVNI94A01H501Y", "Ivan", "Bianchi", 74.5, wc75, 0, 90, 55},
		{"VRDLCU96E20H501Z", "Luca", "Verdi", 72, wc75, 0, 87.5, 52.5},
		{"FRRFBA93B12H501W", "Fabio", "Ferrari", 80, wc82, 1, 95, 60},
		{"RMNGNI92D03H501V", "Gino", "Romano", 78.5, wc82, 1, 92.5, 57.5},
		{"GLLPLA97F25H501U", "Paolo", "Galli", 81.5, wc82, 1, 100, 62.5},
	}

	for i, l := range lifters {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO athletes (cf, given_name, family_name, sex, birth_date) VALUES (?, ?, ?, 'M', ?)`,
			l.cf, l.given, l.family, time.Date(1995, 3, 14, 0, 0, 0, 0, time.UTC))
		if err != nil {
			return fmt.Errorf("seed athlete %s: %w", l.cf, err)
		}
		athleteID, _ := res.LastInsertId()

		res, err = tx.ExecContext(ctx,
			`INSERT INTO registrations (meet_id, athlete_id, bodyweight_kg, weight_category_id, age_category_id, rack_height, belt_allowed)
			 VALUES (?, ?, ?, ?, ?, 4, 1)`,
			meetID, athleteID, l.bw, l.wcID, acSR)
		if err != nil {
			return fmt.Errorf("seed registration %s: %w", l.cf, err)
		}
		regID, _ := res.LastInsertId()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_entries (group_id, registration_id, start_ord) VALUES (?, ?, ?)`,
			groupIDs[l.group], regID, i+1); err != nil {
			return fmt.Errorf("seed group entry %s: %w", l.cf, err)
		}

		for code, kg := range map[string]float64{"MU": l.mu, "DIP": l.dip} {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO openers (registration_id, lift_id, weight_kg) VALUES (?, ?, ?)`,
				regID, liftIDs[code], kg); err != nil {
				return fmt.Errorf("seed opener %s/%s: %w", l.cf, code, err)
			}
			// Attempt #1 rows exist from weigh-in with the opener weight.
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO attempts (registration_id, lift_id, attempt_no, weight_kg, status) VALUES (?, ?, 1, ?, 'PENDING')`,
				regID, liftIDs[code], kg); err != nil {
				return fmt.Errorf("seed attempt %s/%s: %w", l.cf, code, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}
