package roster

import (
	"context"
	"fmt"
	"strings"

	"timetrack/internal/model"
)

// ErrValidation aliases the shared validation sentinel for callers that only
// import this package.
var ErrValidation = model.ErrValidation

// Service validates roster input before delegating to the repository.
type Service struct {
	repo *Repository
}

// NewService creates a roster service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func validate(s model.Student) error {
	if strings.TrimSpace(s.StudentID) == "" {
		return fmt.Errorf("%w: student_id required", ErrValidation)
	}
	if strings.TrimSpace(s.LastName) == "" || strings.TrimSpace(s.FirstName) == "" {
		return fmt.Errorf("%w: name required", ErrValidation)
	}
	if !s.School.Valid() {
		return fmt.Errorf("%w: unknown school %q", ErrValidation, s.School)
	}
	if !s.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, s.Status)
	}
	switch s.School {
	case model.SchoolHigherEducation:
		if s.GradeLevel != "" {
			return fmt.Errorf("%w: grade_level not applicable to higher education", ErrValidation)
		}
		if s.Program != "" {
			p, ok := model.ProgramByCode(s.Program)
			if !ok {
				return fmt.Errorf("%w: unknown program %q", ErrValidation, s.Program)
			}
			if s.Major != "" && !p.HasMajors {
				return fmt.Errorf("%w: program %s has no majors", ErrValidation, s.Program)
			}
		}
	case model.SchoolBasicEducation:
		if s.Program != "" || s.Major != "" || s.Semester != "" || s.YearLevel != "" {
			return fmt.Errorf("%w: higher education fields not applicable to basic education", ErrValidation)
		}
		if s.GradeLevel != "" && !model.ValidGradeLevel(s.GradeLevel) {
			return fmt.Errorf("%w: unknown grade level %q", ErrValidation, s.GradeLevel)
		}
	}
	return nil
}

// Create validates and inserts a new student.
func (s *Service) Create(ctx context.Context, st model.Student) (model.Student, error) {
	if st.Status == "" {
		st.Status = model.StatusActive
	}
	if err := validate(st); err != nil {
		return model.Student{}, err
	}
	return s.repo.Insert(ctx, st)
}

// Update validates and rewrites an existing student.
func (s *Service) Update(ctx context.Context, st model.Student) error {
	if st.ID == "" {
		return fmt.Errorf("%w: id required", ErrValidation)
	}
	if err := validate(st); err != nil {
		return err
	}
	return s.repo.Update(ctx, st)
}

// BulkImport inserts students one by one and returns how many were written.
// The first failing insert stops the import; earlier rows stay.
func (s *Service) BulkImport(ctx context.Context, students []model.Student) (int, error) {
	added := 0
	for _, st := range students {
		if _, err := s.Create(ctx, st); err != nil {
			return added, fmt.Errorf("row %d: %w", added, err)
		}
		added++
	}
	return added, nil
}
