package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/otel/attribute"

	_ "modernc.org/sqlite"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know out of the box.
	// SQLite accepts $N parameters bound by position, so the store shares
	// the query builder's dollar placeholders with the postgres archive.
	sqlx.BindDriver("sqlite", sqlx.DOLLAR)
}

// Open connects to the single-file local store. WAL allows concurrent reads
// while the per-meet command lock serializes writes above this layer.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("local db path cannot be empty")
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := otelsqlx.Open("sqlite", dsn,
		otelsql.WithAttributes(attribute.String("db.system", "sqlite")),
		otelsql.WithDBName("meet-local"),
	)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	// A file database wants exactly one writer connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping local store: %w", err)
	}

	return db, nil
}

func isNotFound(err error) bool {
	return err == sql.ErrNoRows
}

// isBusy reports the lock contention errors worth an internal retry.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
