package batch

import (
	"context"
	"fmt"
	"time"

	"timetrack/internal/model"
	"timetrack/internal/store"
)

// Mutator performs scoped bulk writes that no single-entity CRUD call can
// express. Every operation returns the number of affected rows. Each runs as
// one SQL statement, so the store applies it atomically.
type Mutator struct {
	db *store.DB
}

// NewMutator creates a mutator.
func NewMutator(db *store.DB) *Mutator {
	return &Mutator{db: db}
}

// RolloverSemester moves every student of the given school from one semester
// to the next. Equal from/to values are rejected before touching the store.
func (m *Mutator) RolloverSemester(ctx context.Context, from, to string, school model.School) (int, error) {
	if from == "" || to == "" {
		return 0, fmt.Errorf("%w: semester values required", model.ErrValidation)
	}
	if from == to {
		return 0, fmt.Errorf("%w: from and to semester are equal", model.ErrValidation)
	}
	if !school.Valid() {
		return 0, fmt.Errorf("%w: unknown school %q", model.ErrValidation, school)
	}
	res, err := m.db.Client.ExecContext(ctx, m.db.Rebind(`
		UPDATE students SET semester = ? WHERE semester = ? AND school = ?
	`), to, from, school)
	if err != nil {
		return 0, fmt.Errorf("rollover %s -> %s: %w", from, to, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// schoolScope appends a school clause that also catches legacy records whose
// denormalized school field is empty, by joining through the roster.
const schoolScope = ` AND (school = ? OR (school = '' AND student_id IN
	(SELECT student_id FROM students WHERE school = ?)))`

// PurgeAllRecords deletes every time record, optionally scoped to one
// school. Irreversible.
func (m *Mutator) PurgeAllRecords(ctx context.Context, school model.School) (int, error) {
	query := `DELETE FROM time_records WHERE 1=1`
	var args []any
	if school != "" {
		if !school.Valid() {
			return 0, fmt.Errorf("%w: unknown school %q", model.ErrValidation, school)
		}
		query += schoolScope
		args = append(args, school, school)
	}
	res, err := m.db.Client.ExecContext(ctx, m.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("purge records: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// PurgeRecordsInRange deletes time records with date in [start, end]
// inclusive, optionally scoped to one school. Dates are compared as ISO
// strings, which orders correctly for the YYYY-MM-DD layout.
func (m *Mutator) PurgeRecordsInRange(ctx context.Context, start, end string, school model.School) (int, error) {
	if _, err := time.Parse(model.DateLayout, start); err != nil {
		return 0, fmt.Errorf("%w: bad start date %q", model.ErrValidation, start)
	}
	if _, err := time.Parse(model.DateLayout, end); err != nil {
		return 0, fmt.Errorf("%w: bad end date %q", model.ErrValidation, end)
	}
	if start > end {
		return 0, fmt.Errorf("%w: start %s after end %s", model.ErrValidation, start, end)
	}
	query := `DELETE FROM time_records WHERE record_date >= ? AND record_date <= ?`
	args := []any{start, end}
	if school != "" {
		if !school.Valid() {
			return 0, fmt.Errorf("%w: unknown school %q", model.ErrValidation, school)
		}
		query += schoolScope
		args = append(args, school, school)
	}
	res, err := m.db.Client.ExecContext(ctx, m.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("purge records %s..%s: %w", start, end, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// BackfillSchoolField populates the denormalized school field on records
// that predate it, from the owning student's current school. Records whose
// student no longer exists are skipped. Safe to re-run: already-populated
// records are untouched, so a second run affects zero rows.
func (m *Mutator) BackfillSchoolField(ctx context.Context) (int, error) {
	res, err := m.db.Client.ExecContext(ctx, `
		UPDATE time_records
		SET school = (SELECT school FROM students WHERE students.student_id = time_records.student_id)
		WHERE school = ''
		  AND EXISTS (SELECT 1 FROM students WHERE students.student_id = time_records.student_id)
	`)
	if err != nil {
		return 0, fmt.Errorf("backfill school: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
