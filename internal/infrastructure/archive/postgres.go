// Package archive is the gateway to the remote results database. Everything
// crosses by logical key (CF, meet code, category name); local row ids stay
// local.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/streetlift/meet-engine/internal/domain/athlete"
	"github.com/streetlift/meet-engine/internal/domain/record"
	qb "github.com/streetlift/meet-engine/internal/platform/querybuilder"
	"github.com/streetlift/meet-engine/internal/usecase"
)

type Postgres struct {
	db *sqlx.DB
}

// Open connects with a single connection: the sync transaction owns the
// session for its whole duration.
func Open(ctx context.Context, url string) (*Postgres, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("archive db url cannot be empty")
	}

	db, err := otelsqlx.Open("postgres", url,
		otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
		otelsql.WithDBName("meet-archive"),
	)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping archive: %w", err)
	}

	return &Postgres{db: db}, nil
}

func (a *Postgres) Close() error {
	return a.db.Close()
}

func (a *Postgres) UpsertAthlete(ctx context.Context, ath athlete.Athlete) error {
	if err := ath.Validate(); err != nil {
		return fmt.Errorf("invalid athlete: %w", err)
	}

	query, args, err := qb.InsertInto("athletes").
		Columns("cf", "given_name", "family_name", "sex", "birth_date").
		Values(ath.CF, ath.GivenName, ath.FamilyName, string(ath.Sex), ath.BirthDate).
		Suffix("ON CONFLICT (cf) DO UPDATE SET given_name = ?, family_name = ?, sex = ?, birth_date = ?",
			ath.GivenName, ath.FamilyName, string(ath.Sex), ath.BirthDate).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert athlete query: %w", err)
	}

	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert archive athlete: %w", err)
	}
	return nil
}

func (a *Postgres) MeetExists(ctx context.Context, meetCode string) (bool, error) {
	query, args, err := qb.Select("code").From("meets").Where(qb.Eq("code", meetCode)).ToSQL()
	if err != nil {
		return false, fmt.Errorf("build meet exists query: %w", err)
	}

	var code string
	if err := a.db.GetContext(ctx, &code, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check archive meet: %w", err)
	}
	return true, nil
}

// InTx runs fn inside one transaction; any error leaves the archive
// untouched.
func (a *Postgres) InTx(ctx context.Context, fn func(ctx context.Context, tx usecase.ArchiveTx) error) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w: rollback failed after %v: %v", usecase.ErrFatal, err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit archive tx: %v", usecase.ErrFatal, err)
	}
	return nil
}

type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) DeleteMeet(ctx context.Context, meetCode string) error {
	query, args, err := qb.DeleteFrom("meets").Where(qb.Eq("code", meetCode)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete meet query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete archive meet: %w", err)
	}
	return nil
}

func (t *pgTx) InsertMeet(ctx context.Context, m usecase.ArchiveMeet) error {
	query, args, err := qb.InsertInto("meets").
		Columns("code", "name", "date", "level", "regulation").
		Values(m.Code, m.Name, m.Date, m.Level, m.Regulation).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert meet query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert archive meet: %w", err)
	}
	return nil
}

func (t *pgTx) Record(ctx context.Context, weightCatName, ageCatName, liftCode string) (record.Record, bool, error) {
	query, args, err := qb.Select("*").From("records").
		Where(qb.Eq("weight_cat_name", weightCatName), qb.Eq("age_cat_name", ageCatName), qb.Eq("lift_code", liftCode)).
		ToSQL()
	if err != nil {
		return record.Record{}, false, fmt.Errorf("build get record query: %w", err)
	}

	var row recordTableModel
	if err := t.tx.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return record.Record{}, false, nil
		}
		return record.Record{}, false, fmt.Errorf("get archive record: %w", err)
	}

	return record.Record{
		WeightCategoryName: row.WeightCatName,
		AgeCategoryName:    row.AgeCatName,
		LiftCode:           row.LiftCode,
		WeightKg:           row.WeightKg,
		BodyweightKg:       row.BodyweightKg,
		AthleteCF:          row.AthleteCF,
		MeetCode:           row.MeetCode,
		SetAt:              row.SetAt,
	}, true, nil
}

func (t *pgTx) PutRecord(ctx context.Context, r record.Record) error {
	query, args, err := qb.InsertInto("records").
		Columns("weight_cat_name", "age_cat_name", "lift_code", "weight_kg", "bodyweight_kg", "athlete_cf", "meet_code", "set_at").
		Values(r.WeightCategoryName, r.AgeCategoryName, r.LiftCode, r.WeightKg, r.BodyweightKg, r.AthleteCF, r.MeetCode, r.SetAt).
		Suffix("ON CONFLICT (weight_cat_name, age_cat_name, lift_code) DO UPDATE SET weight_kg = ?, bodyweight_kg = ?, athlete_cf = ?, meet_code = ?, set_at = ?",
			r.WeightKg, r.BodyweightKg, r.AthleteCF, r.MeetCode, r.SetAt).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build put record query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put archive record: %w", err)
	}
	return nil
}

func (t *pgTx) InsertResult(ctx context.Context, r usecase.ArchiveResult) error {
	query, args, err := qb.InsertInto("results").
		Columns("meet_code", "athlete_cf", "weight_cat_name", "age_cat_name", "bodyweight_kg", "total_kg", "placement", "ris").
		Values(r.MeetCode, r.AthleteCF, r.WeightCategoryName, r.AgeCategoryName, r.BodyweightKg, r.TotalKg, r.Placement, r.RIS).
		Suffix("RETURNING id").
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert result query: %w", err)
	}

	var resultID int64
	if err := t.tx.GetContext(ctx, &resultID, query, args...); err != nil {
		return fmt.Errorf("insert archive result: %w", err)
	}

	for _, best := range r.Bests {
		liftQuery, liftArgs, err := qb.InsertInto("result_lifts").
			Columns("result_id", "lift_code", "best_kg").
			Values(resultID, best.LiftCode, best.BestKg).
			ToSQL()
		if err != nil {
			return fmt.Errorf("build insert result lift query: %w", err)
		}
		if _, err := t.tx.ExecContext(ctx, liftQuery, liftArgs...); err != nil {
			return fmt.Errorf("insert archive result lift: %w", err)
		}
	}

	return nil
}

type recordTableModel struct {
	WeightCatName string  `db:"weight_cat_name"`
	AgeCatName    string  `db:"age_cat_name"`
	LiftCode      string  `db:"lift_code"`
	WeightKg      float64 `db:"weight_kg"`
	BodyweightKg  float64 `db:"bodyweight_kg"`
	AthleteCF     string  `db:"athlete_cf"`
	MeetCode      string  `db:"meet_code"`
	SetAt         time.Time `db:"set_at"`
}
