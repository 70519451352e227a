package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"timetrack/internal/model"
	"timetrack/internal/roster"
	"timetrack/internal/store"
)

// Scan failure taxonomy. ErrInactiveStudent still carries the student in the
// returned ScanResult so the caller can display who was rejected.
var (
	ErrUnknownStudent  = errors.New("unknown student")
	ErrInactiveStudent = errors.New("inactive student")
)

// ScanResult is what a successful (or inactive-rejected) scan returns.
type ScanResult struct {
	Student model.Student    `json:"student"`
	Record  model.TimeRecord `json:"record"`
}

// Resolver converts a scanned identifier into exactly one new time record
// with the correct in/out polarity. Calls for the same student are serialized
// with a per-student lock so overlapping scans cannot both read the same
// "most recent record" and write two same-type records.
type Resolver struct {
	students *roster.Repository
	records  *Repository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewResolver creates a resolver.
func NewResolver(students *roster.Repository, records *Repository) *Resolver {
	return &Resolver{
		students: students,
		records:  records,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (r *Resolver) lockFor(studentID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[studentID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[studentID] = l
	}
	return l
}

// ResolveScan looks up the student, applies the toggle rule against today's
// records and inserts the new record. No record is written on any failure
// path. Re-scans within a short window are a caller concern; two calls at the
// same instant still produce two toggling records.
func (r *Resolver) ResolveScan(ctx context.Context, identifier string, now time.Time) (ScanResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ScanResult{}, fmt.Errorf("%w: empty identifier", ErrUnknownStudent)
	}

	l := r.lockFor(identifier)
	l.Lock()
	defer l.Unlock()

	student, err := r.students.GetByStudentID(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ScanResult{}, fmt.Errorf("%w: %s", ErrUnknownStudent, identifier)
		}
		return ScanResult{}, fmt.Errorf("lookup %s: %w", identifier, err)
	}
	if student.Status == model.StatusInactive {
		return ScanResult{Student: student}, fmt.Errorf("%w: %s", ErrInactiveStudent, identifier)
	}

	today := model.LocalDate(now)
	todays, err := r.records.ByStudentAndDate(ctx, identifier, today)
	if err != nil {
		return ScanResult{}, fmt.Errorf("records for %s on %s: %w", identifier, today, err)
	}

	next := model.RecordIn
	if len(todays) > 0 {
		next = todays[len(todays)-1].Type.Opposite()
	}

	rec, err := r.records.Insert(ctx, model.TimeRecord{
		StudentID: student.StudentID,
		Timestamp: now,
		Date:      today,
		Type:      next,
		School:    student.School,
	})
	if err != nil {
		return ScanResult{}, fmt.Errorf("insert record for %s: %w", identifier, err)
	}
	return ScanResult{Student: student, Record: rec}, nil
}
