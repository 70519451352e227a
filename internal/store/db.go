package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

// Store-level sentinel errors. Repositories translate driver errors into
// these so callers can use errors.Is without knowing the backend.
var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

// DB wraps sql.DB together with the driver it was opened with, so queries
// written with ? placeholders can be rebound for postgres.
type DB struct {
	Client *sql.DB
	driver string
}

// Open connects to the configured backend and runs schema migration.
// driver is "sqlite3" (dsn is a file path or ":memory:") or "pgx" (dsn is a
// postgres connection string).
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case "sqlite3":
		if dsn != ":memory:" {
			if dir := filepath.Dir(dsn); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("create db dir: %w", err)
				}
			}
			dsn += "?_journal_mode=WAL&_busy_timeout=5000"
		}
	case "pgx":
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == "sqlite3" && dsn == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{Client: db, driver: driver}
	if err := d.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

func (d *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		id           TEXT PRIMARY KEY,
		student_id   TEXT UNIQUE NOT NULL,
		last_name    TEXT NOT NULL,
		first_name   TEXT NOT NULL,
		middle_name  TEXT NOT NULL DEFAULT '',
		school       TEXT NOT NULL,
		year_level   TEXT NOT NULL DEFAULT '',
		program      TEXT NOT NULL DEFAULT '',
		major        TEXT NOT NULL DEFAULT '',
		semester     TEXT NOT NULL DEFAULT '',
		grade_level  TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT 'active',
		photo_url    TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS time_records (
		id           TEXT PRIMARY KEY,
		student_id   TEXT NOT NULL,
		ts           TIMESTAMP NOT NULL,
		record_date  TEXT NOT NULL,
		record_type  TEXT NOT NULL,
		school       TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS admins (
		id            TEXT PRIMARY KEY,
		username      TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_students_school      ON students(school);
	CREATE INDEX IF NOT EXISTS idx_students_status      ON students(status);
	CREATE INDEX IF NOT EXISTS idx_students_semester    ON students(semester);
	CREATE INDEX IF NOT EXISTS idx_records_student      ON time_records(student_id);
	CREATE INDEX IF NOT EXISTS idx_records_date         ON time_records(record_date);
	CREATE INDEX IF NOT EXISTS idx_records_school       ON time_records(school);
	CREATE INDEX IF NOT EXISTS idx_records_student_date ON time_records(student_id, record_date);
	`
	_, err := d.Client.Exec(schema)
	return err
}

// Rebind rewrites ? placeholders to $N when the backend is postgres.
func (d *DB) Rebind(query string) string {
	if d.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsDuplicate reports whether err is a uniqueness violation on either backend.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// Healthy verifies database connectivity.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
