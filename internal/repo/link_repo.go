package repo

import (
	"context"
	"errors"
	"time"

	"github.com/classmark/attendance/internal/domain"
	"github.com/classmark/attendance/internal/store"
)

type LinkRepository interface {
	Insert(ctx context.Context, link *domain.PersonalLink) error
	FindByID(ctx context.Context, linkID string) (*domain.PersonalLink, error)
	IncrementUses(ctx context.Context, linkID string) error
	SetMaxUses(ctx context.Context, linkID string, maxUses int64) (bool, error)
	Deactivate(ctx context.Context, linkID string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type linkRepository struct {
	col store.Collection
}

func NewLinkRepository(col store.Collection) LinkRepository {
	return &linkRepository{col: col}
}

func (r *linkRepository) Insert(ctx context.Context, l *domain.PersonalLink) error {
	doc := store.Document{
		"link_id":    l.LinkID,
		"student_id": l.StudentID,
		"created_by": l.CreatedBy,
		"created_at": l.CreatedAt,
		"expires_at": l.ExpiresAt,
		"is_active":  l.IsActive,
		"uses":       l.Uses,
	}
	if l.MaxUses != nil {
		doc["max_uses"] = *l.MaxUses
	} else {
		doc["max_uses"] = nil
	}
	return r.col.InsertOne(ctx, doc)
}

func (r *linkRepository) FindByID(ctx context.Context, linkID string) (*domain.PersonalLink, error) {
	doc, err := r.col.FindOne(ctx, store.Filter{"link_id": linkID})
	if errors.Is(err, store.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return docToLink(doc), nil
}

func (r *linkRepository) IncrementUses(ctx context.Context, linkID string) error {
	_, err := r.col.UpdateOne(ctx, store.Filter{"link_id": linkID}, store.Update{
		Inc: map[string]int64{"uses": 1},
	})
	return err
}

func (r *linkRepository) SetMaxUses(ctx context.Context, linkID string, maxUses int64) (bool, error) {
	return r.col.UpdateOne(ctx, store.Filter{"link_id": linkID}, store.Update{
		Set: map[string]any{"max_uses": maxUses},
	})
}

func (r *linkRepository) Deactivate(ctx context.Context, linkID string) (bool, error) {
	return r.col.UpdateOne(ctx, store.Filter{"link_id": linkID}, store.Update{
		Set: map[string]any{"is_active": false},
	})
}

func (r *linkRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.col.DeleteMany(ctx, store.Filter{"expires_at": store.Lt(now)})
}

func docToLink(doc store.Document) *domain.PersonalLink {
	l := &domain.PersonalLink{
		LinkID:    doc.String("link_id"),
		StudentID: doc.String("student_id"),
		CreatedBy: doc.String("created_by"),
		IsActive:  doc.Bool("is_active"),
		Uses:      doc.Int64("uses"),
	}
	if doc.Has("max_uses") {
		max := doc.Int64("max_uses")
		l.MaxUses = &max
	}
	if t, ok := doc.Time("created_at"); ok {
		l.CreatedAt = t
	}
	if t, ok := doc.Time("expires_at"); ok {
		l.ExpiresAt = t
	}
	return l
}
