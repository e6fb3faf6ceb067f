package repo

import (
	"context"
	"errors"

	"github.com/classmark/attendance/internal/domain"
	"github.com/classmark/attendance/internal/store"
)

type AttendanceRepository interface {
	FindByKey(ctx context.Context, studentID, date string) (*domain.AttendanceRecord, error)
	Insert(ctx context.Context, record *domain.AttendanceRecord) error
	UpdateStatus(ctx context.Context, studentID, date string, status int) (bool, error)
	ListRange(ctx context.Context, start, end, course string) ([]domain.AttendanceRecord, error)
	CountForDate(ctx context.Context, date string) (int64, error)
}

type attendanceRepository struct {
	col store.Collection
}

func NewAttendanceRepository(col store.Collection) AttendanceRepository {
	return &attendanceRepository{col: col}
}

func (r *attendanceRepository) FindByKey(ctx context.Context, studentID, date string) (*domain.AttendanceRecord, error) {
	doc, err := r.col.FindOne(ctx, store.Filter{"student_id": studentID, "date": date})
	if errors.Is(err, store.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return docToRecord(doc), nil
}

// Insert surfaces store.ErrDuplicateKey unchanged; the service maps it to
// the already-marked rejection.
func (r *attendanceRepository) Insert(ctx context.Context, rec *domain.AttendanceRecord) error {
	return r.col.InsertOne(ctx, store.Document{
		"student_id": rec.StudentID,
		"date":       rec.Date,
		"time":       rec.Time,
		"status":     rec.Status,
		"course":     rec.Course,
		"method":     rec.Method,
		"ts":         rec.Timestamp,
		"created_by": rec.CreatedBy,
	})
}

// UpdateStatus is the authenticated edit path: it may flip status but never
// touches the (student_id, date) key.
func (r *attendanceRepository) UpdateStatus(ctx context.Context, studentID, date string, status int) (bool, error) {
	return r.col.UpdateOne(ctx, store.Filter{"student_id": studentID, "date": date}, store.Update{
		Set: map[string]any{"status": status},
	})
}

func (r *attendanceRepository) ListRange(ctx context.Context, start, end, course string) ([]domain.AttendanceRecord, error) {
	filter := store.Filter{}
	if course != "" {
		filter["course"] = course
	}
	docs, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	// ISO dates compare lexicographically, so the range check is a plain
	// string comparison.
	var out []domain.AttendanceRecord
	for _, doc := range docs {
		date := doc.String("date")
		if start != "" && date < start {
			continue
		}
		if end != "" && date > end {
			continue
		}
		out = append(out, *docToRecord(doc))
	}
	return out, nil
}

func (r *attendanceRepository) CountForDate(ctx context.Context, date string) (int64, error) {
	return r.col.CountDocuments(ctx, store.Filter{"date": date})
}

func docToRecord(doc store.Document) *domain.AttendanceRecord {
	rec := &domain.AttendanceRecord{
		StudentID: doc.String("student_id"),
		Date:      doc.String("date"),
		Time:      doc.String("time"),
		Status:    int(doc.Int64("status")),
		Course:    doc.String("course"),
		Method:    doc.String("method"),
		CreatedBy: doc.String("created_by"),
	}
	if t, ok := doc.Time("ts"); ok {
		rec.Timestamp = t
	}
	return rec
}
