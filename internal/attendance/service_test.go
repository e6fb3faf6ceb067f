package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/classmark/attendance/internal/domain"
	"github.com/classmark/attendance/internal/repo"
	"github.com/classmark/attendance/internal/store"
	"github.com/classmark/attendance/pkg/events"
)

func newTestService(t *testing.T) (Service, repo.AttendanceRepository) {
	t.Helper()
	fs, err := store.OpenFile(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	records := repo.NewAttendanceRepository(fs.Collection("attendance"))
	students := repo.NewStudentRepository(fs.Collection("students"))

	ctx := context.Background()
	for _, s := range []string{"s1", "s2"} {
		if err := students.Insert(ctx, &domain.Student{
			StudentID: s, Name: "Student " + s, CreatedAt: time.Now(),
		}); err != nil {
			t.Fatalf("seed student: %v", err)
		}
	}

	return NewService(records, students, events.NopPublisher{}), records
}

func TestMarkOncePerDay(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	when := time.Date(2026, 8, 26, 9, 30, 0, 0, time.Local)

	record, err := svc.Mark(ctx, "s1", 1, when, "CS101", domain.MethodManualEntry, "teacher1")
	if err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if record.Date != "2026-08-26" || record.Status != 1 || record.Method != domain.MethodManualEntry {
		t.Errorf("record = %+v", record)
	}

	// Same student, same day: rejected regardless of time or path.
	_, err = svc.Mark(ctx, "s1", 1, when.Add(3*time.Hour), "CS101", domain.MethodSessionLink, "teacher2")
	if !domain.IsCode(err, domain.CodeAlreadyMarked) {
		t.Fatalf("second mark code = %q, want ALREADY_MARKED", domain.CodeOf(err))
	}

	// Next day is a fresh key.
	if _, err := svc.Mark(ctx, "s1", 1, when.AddDate(0, 0, 1), "CS101", domain.MethodManualEntry, "teacher1"); err != nil {
		t.Errorf("next-day mark: %v", err)
	}
	// Other students are unaffected.
	if _, err := svc.Mark(ctx, "s2", 1, when, "CS101", domain.MethodManualEntry, "teacher1"); err != nil {
		t.Errorf("other student mark: %v", err)
	}
}

func TestMarkValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Mark(ctx, "", 1, time.Now(), "", domain.MethodManualEntry, "teacher1")
	if !domain.IsCode(err, domain.CodeInvalidInput) {
		t.Errorf("empty id code = %q, want INVALID_INPUT", domain.CodeOf(err))
	}

	_, err = svc.Mark(ctx, "ghost", 1, time.Now(), "", domain.MethodManualEntry, "teacher1")
	if !domain.IsCode(err, domain.CodeStudentNotFound) {
		t.Errorf("unknown student code = %q, want STUDENT_NOT_FOUND", domain.CodeOf(err))
	}
}

func TestMarkDefaults(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	record, err := svc.Mark(ctx, "s1", 7, time.Time{}, "", domain.MethodPersonalLink, "")
	if err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if record.Status != 1 {
		t.Errorf("status = %d, want coerced 1", record.Status)
	}
	if record.CreatedBy != "anonymous" {
		t.Errorf("created_by = %q, want anonymous", record.CreatedBy)
	}
	if record.Date != domain.DateOf(time.Now()) {
		t.Errorf("date = %q, want today", record.Date)
	}
}

func TestConcurrentMarksSingleWinner(t *testing.T) {
	ctx := context.Background()
	svc, records := newTestService(t)
	when := time.Date(2026, 8, 26, 9, 0, 0, 0, time.Local)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Mark(ctx, "s1", 1, when, "CS101", domain.MethodSessionLink, "teacher1")
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case domain.IsCode(err, domain.CodeAlreadyMarked):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}

	got, err := records.FindByKey(ctx, "s1", "2026-08-26")
	if err != nil || got == nil {
		t.Fatalf("FindByKey: %v, %v", got, err)
	}
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	svc, records := newTestService(t)
	when := time.Date(2026, 8, 26, 9, 0, 0, 0, time.Local)

	if _, err := svc.Mark(ctx, "s1", 1, when, "CS101", domain.MethodManualEntry, "teacher1"); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	if err := svc.UpdateStatus(ctx, "s1", "2026-08-26", 0, "teacher1"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, err := records.FindByKey(ctx, "s1", "2026-08-26")
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if got.Status != 0 {
		t.Errorf("status = %d after edit, want 0", got.Status)
	}

	err = svc.UpdateStatus(ctx, "s1", "2026-08-27", 0, "teacher1")
	if !domain.IsCode(err, domain.CodeRecordNotFound) {
		t.Errorf("missing record code = %q, want RECORD_NOT_FOUND", domain.CodeOf(err))
	}
}

func TestListRange(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.Local)
	for i := 0; i < 5; i++ {
		if _, err := svc.Mark(ctx, "s1", 1, base.AddDate(0, 0, i), "CS101", domain.MethodManualEntry, "t"); err != nil {
			t.Fatalf("Mark day %d: %v", i, err)
		}
	}

	records, err := svc.ListRange(ctx, "2026-08-21", "2026-08-23", "")
	if err != nil {
		t.Fatalf("ListRange: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("records = %d, want 3", len(records))
	}

	none, err := svc.ListRange(ctx, "2026-08-21", "2026-08-23", "MATH200")
	if err != nil {
		t.Fatalf("ListRange course filter: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("course-filtered records = %d, want 0", len(none))
	}
}
