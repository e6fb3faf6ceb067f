package repo

import (
	"context"
	"errors"
	"time"

	"github.com/classmark/attendance/internal/domain"
	"github.com/classmark/attendance/internal/store"
)

type SessionRepository interface {
	Insert(ctx context.Context, session *domain.Session) error
	FindByID(ctx context.Context, sessionID string) (*domain.Session, error)
	ListByCreator(ctx context.Context, createdBy string) ([]domain.Session, error)
	IncrementAttendance(ctx context.Context, sessionID string) error
	Deactivate(ctx context.Context, sessionID string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionRepository struct {
	col store.Collection
}

func NewSessionRepository(col store.Collection) SessionRepository {
	return &sessionRepository{col: col}
}

func (r *sessionRepository) Insert(ctx context.Context, s *domain.Session) error {
	return r.col.InsertOne(ctx, store.Document{
		"session_id":       s.SessionID,
		"course":           s.Course,
		"description":      s.Description,
		"created_by":       s.CreatedBy,
		"created_at":       s.CreatedAt,
		"expires_at":       s.ExpiresAt,
		"is_active":        s.IsActive,
		"attendance_count": s.AttendanceCount,
	})
}

func (r *sessionRepository) FindByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	doc, err := r.col.FindOne(ctx, store.Filter{"session_id": sessionID})
	if errors.Is(err, store.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return docToSession(doc), nil
}

func (r *sessionRepository) ListByCreator(ctx context.Context, createdBy string) ([]domain.Session, error) {
	docs, err := r.col.Find(ctx, store.Filter{"created_by": createdBy})
	if err != nil {
		return nil, err
	}
	sessions := make([]domain.Session, 0, len(docs))
	for _, doc := range docs {
		sessions = append(sessions, *docToSession(doc))
	}
	return sessions, nil
}

func (r *sessionRepository) IncrementAttendance(ctx context.Context, sessionID string) error {
	_, err := r.col.UpdateOne(ctx, store.Filter{"session_id": sessionID}, store.Update{
		Inc: map[string]int64{"attendance_count": 1},
	})
	return err
}

func (r *sessionRepository) Deactivate(ctx context.Context, sessionID string) (bool, error) {
	return r.col.UpdateOne(ctx, store.Filter{"session_id": sessionID}, store.Update{
		Set: map[string]any{"is_active": false},
	})
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.col.DeleteMany(ctx, store.Filter{"expires_at": store.Lt(now)})
}

func docToSession(doc store.Document) *domain.Session {
	s := &domain.Session{
		SessionID:       doc.String("session_id"),
		Course:          doc.String("course"),
		Description:     doc.String("description"),
		CreatedBy:       doc.String("created_by"),
		IsActive:        doc.Bool("is_active"),
		AttendanceCount: doc.Int64("attendance_count"),
	}
	if t, ok := doc.Time("created_at"); ok {
		s.CreatedAt = t
	}
	if t, ok := doc.Time("expires_at"); ok {
		s.ExpiresAt = t
	}
	return s
}
