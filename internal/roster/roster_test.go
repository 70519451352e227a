package roster

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"timetrack/internal/model"
	"timetrack/internal/store"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func active(studentID, last, first string, school model.School) model.Student {
	return model.Student{
		StudentID: studentID, LastName: last, FirstName: first,
		School: school, Status: model.StatusActive,
	}
}

func TestCreateAndLookup(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db))

	created, err := svc.Create(context.Background(), active("S100", "Reyes", "Ana", model.SchoolHigherEducation))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := NewRepository(db).GetByStudentID(context.Background(), "S100")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.LastName != "Reyes" {
		t.Fatalf("unexpected student: %+v", got)
	}

	// Lookup is exact and case-sensitive.
	if _, err := NewRepository(db).GetByStudentID(context.Background(), "s100"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for wrong case, got %v", err)
	}
}

func TestDuplicateStudentIDRejected(t *testing.T) {
	svc := NewService(NewRepository(newTestDB(t)))

	if _, err := svc.Create(context.Background(), active("S100", "Reyes", "Ana", model.SchoolHigherEducation)); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.Create(context.Background(), active("S100", "Cruz", "Ben", model.SchoolBasicEducation))
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestValidationRules(t *testing.T) {
	svc := NewService(NewRepository(newTestDB(t)))
	ctx := context.Background()

	cases := []struct {
		name    string
		student model.Student
	}{
		{"missing student id", model.Student{LastName: "A", FirstName: "B", School: model.SchoolBasicEducation}},
		{"unknown school", active("S1", "A", "B", "Night School")},
		{"grade level on higher ed", func() model.Student {
			s := active("S2", "A", "B", model.SchoolHigherEducation)
			s.GradeLevel = "Grade 4"
			return s
		}()},
		{"semester on basic ed", func() model.Student {
			s := active("S3", "A", "B", model.SchoolBasicEducation)
			s.Semester = "1st Semester"
			return s
		}()},
		{"unknown program", func() model.Student {
			s := active("S4", "A", "B", model.SchoolHigherEducation)
			s.Program = "BXYZ"
			return s
		}()},
		{"major on majorless program", func() model.Student {
			s := active("S5", "A", "B", model.SchoolHigherEducation)
			s.Program = "BEEd"
			s.Major = "ENGLISH"
			return s
		}()},
		{"unknown grade level", func() model.Student {
			s := active("S6", "A", "B", model.SchoolBasicEducation)
			s.GradeLevel = "Grade 13"
			return s
		}()},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, tc.student); !errors.Is(err, model.ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestListFiltersAndPagination(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(NewRepository(db))
	ctx := context.Background()

	for _, s := range []model.Student{
		active("S1", "Abad", "Ana", model.SchoolHigherEducation),
		active("S2", "Cruz", "Ben", model.SchoolHigherEducation),
		active("S3", "Diaz", "Eva", model.SchoolBasicEducation),
	} {
		if _, err := svc.Create(ctx, s); err != nil {
			t.Fatalf("create %s: %v", s.StudentID, err)
		}
	}

	repo := NewRepository(db)
	higher, err := repo.List(ctx, ListFilter{School: model.SchoolHigherEducation})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(higher) != 2 {
		t.Fatalf("expected 2 higher-ed students, got %d", len(higher))
	}
	if higher[0].LastName != "Abad" {
		t.Fatalf("expected name ordering, got %s first", higher[0].LastName)
	}

	page, err := repo.List(ctx, ListFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 1 || page[0].LastName != "Diaz" {
		t.Fatalf("unexpected page: %+v", page)
	}

	n, err := repo.CountBySchool(ctx, model.SchoolBasicEducation)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 basic-ed student, got %d", n)
	}
}

func TestDeleteLeavesNoGhost(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	created, err := NewService(repo).Create(ctx, active("S1", "Abad", "Ana", model.SchoolHigherEducation))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestBulkImportStopsAtFirstFailure(t *testing.T) {
	svc := NewService(NewRepository(newTestDB(t)))

	added, err := svc.BulkImport(context.Background(), []model.Student{
		active("S1", "Abad", "Ana", model.SchoolHigherEducation),
		active("S1", "Cruz", "Ben", model.SchoolHigherEducation), // duplicate
		active("S2", "Diaz", "Eva", model.SchoolHigherEducation),
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if added != 1 {
		t.Fatalf("expected 1 row imported before failure, got %d", added)
	}
}
