package report

import (
	"context"
	"fmt"
	"sort"

	"timetrack/internal/attendance"
	"timetrack/internal/model"
	"timetrack/internal/roster"
)

// DailyEntry is one student's paired attendance for a report scope. Student
// is nil when the roster entry was deleted after the records were written.
type DailyEntry struct {
	StudentID string             `json:"student_id"`
	Student   *model.Student     `json:"student"`
	CheckIns  []model.TimeRecord `json:"check_ins"`
	CheckOuts []model.TimeRecord `json:"check_outs"`
	TotalTime string             `json:"total_time"`
}

// Aggregator produces report views over the record store and roster. It is
// read-only; a failed store call fails the whole operation.
type Aggregator struct {
	students *roster.Repository
	records  *attendance.Repository
}

// NewAggregator creates an aggregator.
func NewAggregator(students *roster.Repository, records *attendance.Repository) *Aggregator {
	return &Aggregator{students: students, records: records}
}

// DailyAttendance returns per-student paired summaries for one calendar day
// and school. typeFilter narrows the input to only check-ins or only
// check-outs when non-empty. Records that predate the denormalized school
// field are scoped through a roster join instead. Output is sorted by
// (last name, first name) with unknown students last.
func (a *Aggregator) DailyAttendance(ctx context.Context, date string, school model.School, typeFilter model.RecordType) ([]DailyEntry, error) {
	if !school.Valid() {
		return nil, fmt.Errorf("%w: unknown school %q", model.ErrValidation, school)
	}
	recs, err := a.records.ByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("records for %s: %w", date, err)
	}
	students, err := a.students.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}

	byStudentID := make(map[string]model.Student, len(students))
	for _, s := range students {
		byStudentID[s.StudentID] = s
	}

	grouped := make(map[string][]model.TimeRecord)
	var order []string
	for _, rec := range recs {
		if rec.School != "" {
			if rec.School != school {
				continue
			}
		} else if s, ok := byStudentID[rec.StudentID]; !ok || s.School != school {
			continue
		}
		if typeFilter != "" && rec.Type != typeFilter {
			continue
		}
		if _, ok := grouped[rec.StudentID]; !ok {
			order = append(order, rec.StudentID)
		}
		grouped[rec.StudentID] = append(grouped[rec.StudentID], rec)
	}

	entries := make([]DailyEntry, 0, len(order))
	for _, id := range order {
		paired := attendance.PairSessions(grouped[id])
		entry := DailyEntry{
			StudentID: id,
			CheckIns:  paired.CheckIns,
			CheckOuts: paired.CheckOuts,
			TotalTime: paired.TotalFormatted(),
		}
		if s, ok := byStudentID[id]; ok {
			student := s
			entry.Student = &student
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		si, sj := entries[i].Student, entries[j].Student
		if si == nil {
			return false
		}
		if sj == nil {
			return true
		}
		if si.LastName != sj.LastName {
			return si.LastName < sj.LastName
		}
		return si.FirstName < sj.FirstName
	})
	return entries, nil
}

// Statistics tallies the whole roster in one pass. Students missing a
// category field are excluded from that field's table only.
func (a *Aggregator) Statistics(ctx context.Context) (model.StudentStats, error) {
	students, err := a.students.All(ctx)
	if err != nil {
		return model.StudentStats{}, fmt.Errorf("roster: %w", err)
	}

	stats := model.StudentStats{
		ProgramCounts:    make(map[string]int),
		YearLevelCounts:  make(map[string]int),
		GradeLevelCounts: make(map[string]int),
		SemesterCounts:   make(map[string]int),
		MajorCounts:      make(map[string]int),
	}
	for _, s := range students {
		stats.TotalStudents++
		switch s.Status {
		case model.StatusActive:
			stats.ActiveStudents++
		case model.StatusInactive:
			stats.InactiveStudents++
		}
		switch s.School {
		case model.SchoolHigherEducation:
			stats.HigherEducationCount++
		case model.SchoolBasicEducation:
			stats.BasicEducationCount++
		}
		if s.Program != "" {
			stats.ProgramCounts[s.Program]++
		}
		if s.YearLevel != "" {
			stats.YearLevelCounts[s.YearLevel]++
		}
		if s.GradeLevel != "" {
			stats.GradeLevelCounts[s.GradeLevel]++
		}
		if s.Semester != "" {
			stats.SemesterCounts[s.Semester]++
		}
		if s.Major != "" {
			stats.MajorCounts[s.Major]++
		}
	}
	return stats, nil
}
