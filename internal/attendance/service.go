// Package attendance guards the one-record-per-student-per-day invariant on
// every marking path.
package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/classmark/attendance/internal/domain"
	"github.com/classmark/attendance/internal/repo"
	"github.com/classmark/attendance/internal/store"
	"github.com/classmark/attendance/pkg/events"
	"github.com/classmark/attendance/pkg/logger"
)

type Service interface {
	Mark(ctx context.Context, studentID string, status int, when time.Time, course, method, actor string) (*domain.AttendanceRecord, error)
	UpdateStatus(ctx context.Context, studentID, date string, status int, actor string) error
	ListRange(ctx context.Context, start, end, course string) ([]domain.AttendanceRecord, error)
}

type service struct {
	records  repo.AttendanceRepository
	students repo.StudentRepository
	bus      events.Publisher
}

func NewService(records repo.AttendanceRepository, students repo.StudentRepository, bus events.Publisher) Service {
	return &service{records: records, students: students, bus: bus}
}

// Mark inserts one attendance record keyed by (studentID, local date of
// when). The pre-check gives a friendly rejection; correctness under
// concurrent marks comes from the store's unique constraint, which maps a
// losing insert to the same already-marked answer.
func (s *service) Mark(ctx context.Context, studentID string, status int, when time.Time, course, method, actor string) (*domain.AttendanceRecord, error) {
	if studentID == "" {
		return nil, domain.Validation(domain.CodeInvalidInput, "Student ID is required")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, domain.Storage(err)
	}
	if student == nil {
		return nil, domain.NotFound(domain.CodeStudentNotFound, "Student ID not found")
	}

	if when.IsZero() {
		when = time.Now()
	}
	if actor == "" {
		actor = "anonymous"
	}

	date := domain.DateOf(when)

	existing, err := s.records.FindByKey(ctx, studentID, date)
	if err != nil {
		return nil, domain.Storage(err)
	}
	if existing != nil {
		return nil, domain.Conflict(domain.CodeAlreadyMarked, "Attendance already marked for today")
	}

	record := &domain.AttendanceRecord{
		StudentID: studentID,
		Date:      date,
		Time:      when.Format("15:04:05"),
		Status:    domain.CoerceStatus(status),
		Course:    course,
		Method:    method,
		Timestamp: when,
		CreatedBy: actor,
	}

	if err := s.records.Insert(ctx, record); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, domain.Conflict(domain.CodeAlreadyMarked, "Attendance already marked for today")
		}
		return nil, domain.Storage(err)
	}

	s.publish(ctx, events.AttendanceMarked, events.AttendanceMarkedEvent{
		StudentID: record.StudentID,
		Date:      record.Date,
		Status:    record.Status,
		Method:    record.Method,
		CreatedBy: record.CreatedBy,
		MarkedAt:  record.Timestamp,
	})
	logger.InfoContext(ctx, "Attendance marked",
		"student_id", studentID, "date", date, "method", method, "created_by", actor)
	return record, nil
}

// UpdateStatus is the authenticated edit path. It may change status, never
// the (studentID, date) key.
func (s *service) UpdateStatus(ctx context.Context, studentID, date string, status int, actor string) error {
	ok, err := s.records.UpdateStatus(ctx, studentID, date, domain.CoerceStatus(status))
	if err != nil {
		return domain.Storage(err)
	}
	if !ok {
		return domain.NotFound(domain.CodeRecordNotFound, "No attendance record for that student and date")
	}
	logger.InfoContext(ctx, "Attendance status updated",
		"student_id", studentID, "date", date, "status", domain.CoerceStatus(status), "updated_by", actor)
	return nil
}

func (s *service) ListRange(ctx context.Context, start, end, course string) ([]domain.AttendanceRecord, error) {
	records, err := s.records.ListRange(ctx, start, end, course)
	if err != nil {
		return nil, domain.Storage(err)
	}
	return records, nil
}

func (s *service) publish(ctx context.Context, subject string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}
