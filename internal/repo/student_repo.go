package repo

import (
	"context"
	"errors"

	"github.com/classmark/attendance/internal/domain"
	"github.com/classmark/attendance/internal/store"
)

type StudentRepository interface {
	Insert(ctx context.Context, student *domain.Student) error
	FindByID(ctx context.Context, studentID string) (*domain.Student, error)
	List(ctx context.Context) ([]domain.Student, error)
}

type studentRepository struct {
	col store.Collection
}

func NewStudentRepository(col store.Collection) StudentRepository {
	return &studentRepository{col: col}
}

func (r *studentRepository) Insert(ctx context.Context, s *domain.Student) error {
	return r.col.InsertOne(ctx, store.Document{
		"student_id": s.StudentID,
		"name":       s.Name,
		"course":     s.Course,
		"created_by": s.CreatedBy,
		"created_at": s.CreatedAt,
	})
}

func (r *studentRepository) FindByID(ctx context.Context, studentID string) (*domain.Student, error) {
	doc, err := r.col.FindOne(ctx, store.Filter{"student_id": studentID})
	if errors.Is(err, store.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return docToStudent(doc), nil
}

func (r *studentRepository) List(ctx context.Context) ([]domain.Student, error) {
	docs, err := r.col.Find(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}
	students := make([]domain.Student, 0, len(docs))
	for _, doc := range docs {
		students = append(students, *docToStudent(doc))
	}
	return students, nil
}

func docToStudent(doc store.Document) *domain.Student {
	s := &domain.Student{
		StudentID: doc.String("student_id"),
		Name:      doc.String("name"),
		Course:    doc.String("course"),
		CreatedBy: doc.String("created_by"),
	}
	if t, ok := doc.Time("created_at"); ok {
		s.CreatedAt = t
	}
	return s
}
