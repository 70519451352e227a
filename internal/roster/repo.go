package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"timetrack/internal/model"
	"timetrack/internal/store"
)

const studentCols = "id, student_id, last_name, first_name, middle_name, school, year_level, program, major, semester, grade_level, status, photo_url"

// Repository persists students.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

func scanStudent(row interface{ Scan(...any) error }) (model.Student, error) {
	var s model.Student
	err := row.Scan(&s.ID, &s.StudentID, &s.LastName, &s.FirstName, &s.MiddleName,
		&s.School, &s.YearLevel, &s.Program, &s.Major, &s.Semester, &s.GradeLevel,
		&s.Status, &s.PhotoURL)
	return s, err
}

// Insert writes a new student. A studentId collision surfaces as
// store.ErrDuplicate; the row is not written.
func (r *Repository) Insert(ctx context.Context, s model.Student) (model.Student, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO students (`+studentCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), s.ID, s.StudentID, s.LastName, s.FirstName, s.MiddleName, s.School,
		s.YearLevel, s.Program, s.Major, s.Semester, s.GradeLevel, s.Status, s.PhotoURL)
	if err != nil {
		if store.IsDuplicate(err) {
			return model.Student{}, fmt.Errorf("student %s: %w", s.StudentID, store.ErrDuplicate)
		}
		return model.Student{}, err
	}
	return s, nil
}

// GetByID fetches a student by primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (model.Student, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+studentCols+` FROM students WHERE id = ?`), id)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Student{}, store.ErrNotFound
	}
	return s, err
}

// GetByStudentID fetches a student by the scanned human-facing identifier.
// Exact match, case-sensitive as stored.
func (r *Repository) GetByStudentID(ctx context.Context, studentID string) (model.Student, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+studentCols+` FROM students WHERE student_id = ?`), studentID)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Student{}, store.ErrNotFound
	}
	return s, err
}

// ListFilter narrows List results. Zero values mean no filter.
type ListFilter struct {
	School   model.School
	Status   model.Status
	Program  string
	Semester string
	Limit    int
	Offset   int
}

// List returns students matching the filter, ordered by last then first name.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]model.Student, error) {
	query := `SELECT ` + studentCols + ` FROM students`
	var clauses []string
	var args []any
	if f.School != "" {
		clauses = append(clauses, "school = ?")
		args = append(args, f.School)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Program != "" {
		clauses = append(clauses, "program = ?")
		args = append(args, f.Program)
	}
	if f.Semester != "" {
		clauses = append(clauses, "semester = ?")
		args = append(args, f.Semester)
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY last_name, first_name"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Update rewrites all mutable fields of a student.
func (r *Repository) Update(ctx context.Context, s model.Student) error {
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		UPDATE students
		SET student_id = ?, last_name = ?, first_name = ?, middle_name = ?,
		    school = ?, year_level = ?, program = ?, major = ?, semester = ?,
		    grade_level = ?, status = ?, photo_url = ?
		WHERE id = ?
	`), s.StudentID, s.LastName, s.FirstName, s.MiddleName, s.School,
		s.YearLevel, s.Program, s.Major, s.Semester, s.GradeLevel, s.Status,
		s.PhotoURL, s.ID)
	if err != nil {
		if store.IsDuplicate(err) {
			return fmt.Errorf("student %s: %w", s.StudentID, store.ErrDuplicate)
		}
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return store.ErrNotFound
	}
	return err
}

// Delete removes a student by primary key. Existing time records are left in
// place; reports resolve them to an unknown student.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(
		`DELETE FROM students WHERE id = ?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return store.ErrNotFound
	}
	return err
}

// Count returns the roster size.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Client.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n)
	return n, err
}

// CountBySchool returns the roster size for one school.
func (r *Repository) CountBySchool(ctx context.Context, school model.School) (int, error) {
	var n int
	err := r.db.Client.QueryRowContext(ctx, r.db.Rebind(
		`SELECT COUNT(*) FROM students WHERE school = ?`), school).Scan(&n)
	return n, err
}

// All returns the full roster without pagination, for statistics and joins.
func (r *Repository) All(ctx context.Context) ([]model.Student, error) {
	return r.List(ctx, ListFilter{})
}
