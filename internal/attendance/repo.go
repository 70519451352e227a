package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"timetrack/internal/model"
	"timetrack/internal/store"
)

const recordCols = "id, student_id, ts, record_date, record_type, school"

// Repository persists time records.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

func scanRecord(row interface{ Scan(...any) error }) (model.TimeRecord, error) {
	var rec model.TimeRecord
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.Timestamp, &rec.Date, &rec.Type, &rec.School)
	return rec, err
}

func (r *Repository) queryRecords(ctx context.Context, query string, args ...any) ([]model.TimeRecord, error) {
	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TimeRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Insert writes a new record.
func (r *Repository) Insert(ctx context.Context, rec model.TimeRecord) (model.TimeRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO time_records (`+recordCols+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`), rec.ID, rec.StudentID, rec.Timestamp, rec.Date, rec.Type, rec.School)
	if err != nil {
		if store.IsDuplicate(err) {
			return model.TimeRecord{}, fmt.Errorf("record %s: %w", rec.ID, store.ErrDuplicate)
		}
		return model.TimeRecord{}, err
	}
	return rec, nil
}

// GetByID fetches one record.
func (r *Repository) GetByID(ctx context.Context, id string) (model.TimeRecord, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+recordCols+` FROM time_records WHERE id = ?`), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TimeRecord{}, store.ErrNotFound
	}
	return rec, err
}

// ByStudentAndDate returns one student's records for a calendar day, oldest
// first. The id column breaks timestamp ties deterministically.
func (r *Repository) ByStudentAndDate(ctx context.Context, studentID, date string) ([]model.TimeRecord, error) {
	return r.queryRecords(ctx, `
		SELECT `+recordCols+` FROM time_records
		WHERE student_id = ? AND record_date = ?
		ORDER BY ts, id
	`, studentID, date)
}

// ByDate returns all records for a calendar day.
func (r *Repository) ByDate(ctx context.Context, date string) ([]model.TimeRecord, error) {
	return r.queryRecords(ctx, `
		SELECT `+recordCols+` FROM time_records
		WHERE record_date = ?
		ORDER BY ts, id
	`, date)
}

// ByStudent returns a student's full history, newest first.
func (r *Repository) ByStudent(ctx context.Context, studentID string, limit int) ([]model.TimeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.queryRecords(ctx, `
		SELECT `+recordCols+` FROM time_records
		WHERE student_id = ?
		ORDER BY ts DESC
		LIMIT ?
	`, studentID, limit)
}

// Update rewrites a record's timestamp, type, date and school.
func (r *Repository) Update(ctx context.Context, rec model.TimeRecord) error {
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		UPDATE time_records
		SET ts = ?, record_date = ?, record_type = ?, school = ?
		WHERE id = ?
	`), rec.Timestamp, rec.Date, rec.Type, rec.School, rec.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return store.ErrNotFound
	}
	return err
}

// Delete removes one record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(
		`DELETE FROM time_records WHERE id = ?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return store.ErrNotFound
	}
	return err
}

// Edit rewrites a record's timestamp and type. The denormalized date is
// recomputed from the new timestamp so the two can never disagree.
func (r *Repository) Edit(ctx context.Context, id string, ts time.Time, typ model.RecordType) (model.TimeRecord, error) {
	rec, err := r.GetByID(ctx, id)
	if err != nil {
		return model.TimeRecord{}, err
	}
	rec.Timestamp = ts
	rec.Date = model.LocalDate(ts)
	rec.Type = typ
	if err := r.Update(ctx, rec); err != nil {
		return model.TimeRecord{}, err
	}
	return rec, nil
}

// Count returns the total number of records.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Client.QueryRowContext(ctx, `SELECT COUNT(*) FROM time_records`).Scan(&n)
	return n, err
}
