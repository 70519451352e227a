package model

import (
	"errors"
	"time"
)

// ErrValidation marks caller-supplied input that fails a precondition.
// Operations reject it before any store access.
var ErrValidation = errors.New("validation error")

// School partitions the roster and nearly all reporting.
type School string

const (
	SchoolHigherEducation School = "Higher Education"
	SchoolBasicEducation  School = "Basic Education"
)

// Valid reports whether s is a known school category.
func (s School) Valid() bool {
	return s == SchoolHigherEducation || s == SchoolBasicEducation
}

// Status marks whether a student may produce new time records.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether st is a known status.
func (st Status) Valid() bool {
	return st == StatusActive || st == StatusInactive
}

// RecordType is the polarity of a time record.
type RecordType string

const (
	RecordIn  RecordType = "in"
	RecordOut RecordType = "out"
)

// Opposite returns the toggled record type.
func (t RecordType) Opposite() RecordType {
	if t == RecordIn {
		return RecordOut
	}
	return RecordIn
}

// Student is a roster identity record. StudentID is the human-facing
// identifier scanned at the door and is unique across the roster; ID is the
// opaque storage key.
type Student struct {
	ID         string `json:"id"`
	StudentID  string `json:"student_id"`
	LastName   string `json:"last_name"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name,omitempty"`
	School     School `json:"school"`
	YearLevel  string `json:"year_level,omitempty"`
	Program    string `json:"program,omitempty"`
	Major      string `json:"major,omitempty"`
	Semester   string `json:"semester,omitempty"`
	GradeLevel string `json:"grade_level,omitempty"`
	Status     Status `json:"status"`
	PhotoURL   string `json:"photo_url,omitempty"`
}

// TimeRecord is one check-in or check-out event. Date is the local calendar
// day of Timestamp, stored denormalized for day-scoped queries; School is a
// denormalized copy of the owning student's school at creation time and may
// be empty on records that predate the field (see batch.BackfillSchoolField).
type TimeRecord struct {
	ID        string     `json:"id"`
	StudentID string     `json:"student_id"`
	Timestamp time.Time  `json:"timestamp"`
	Date      string     `json:"date"`
	Type      RecordType `json:"type"`
	School    School     `json:"school,omitempty"`
}

// DateLayout is the calendar-day format used by TimeRecord.Date. It sorts
// lexicographically, which the range purge relies on.
const DateLayout = "2006-01-02"

// LocalDate returns the calendar day of ts in local time, in DateLayout form.
func LocalDate(ts time.Time) string {
	return ts.Local().Format(DateLayout)
}

// StudentStats is the dashboard summary over the whole roster.
type StudentStats struct {
	TotalStudents        int            `json:"total_students"`
	ActiveStudents       int            `json:"active_students"`
	InactiveStudents     int            `json:"inactive_students"`
	HigherEducationCount int            `json:"higher_education_count"`
	BasicEducationCount  int            `json:"basic_education_count"`
	ProgramCounts        map[string]int `json:"program_counts"`
	YearLevelCounts      map[string]int `json:"year_level_counts"`
	GradeLevelCounts     map[string]int `json:"grade_level_counts"`
	SemesterCounts       map[string]int `json:"semester_counts"`
	MajorCounts          map[string]int `json:"major_counts"`
}
