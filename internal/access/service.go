// Package access issues and validates the two ephemeral token kinds:
// class-wide attendance sessions and single-student personal links.
package access

import (
	"context"
	"time"

	"github.com/classmark/attendance/internal/domain"
	"github.com/classmark/attendance/internal/repo"
	"github.com/classmark/attendance/pkg/config"
	"github.com/classmark/attendance/pkg/events"
	"github.com/classmark/attendance/pkg/logger"
	"github.com/classmark/attendance/pkg/token"
)

type Service interface {
	CreateSession(ctx context.Context, req *domain.CreateSessionRequest, issuedBy string) (*domain.Session, error)
	CreatePersonalLink(ctx context.Context, req *domain.CreateLinkRequest, issuedBy string) (*domain.PersonalLink, error)
	ResolveSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ResolvePersonalLink(ctx context.Context, linkID string) (*domain.PersonalLink, error)
	RecordSessionUse(ctx context.Context, sessionID string) error
	RecordLinkUse(ctx context.Context, linkID string) error
	SetLinkMaxUses(ctx context.Context, linkID string, maxUses int64) error
	DeactivateSession(ctx context.Context, sessionID string) error
	DeactivateLink(ctx context.Context, linkID string) error
	ListSessions(ctx context.Context, createdBy string) ([]domain.Session, error)
}

type service struct {
	sessions repo.SessionRepository
	links    repo.LinkRepository
	students repo.StudentRepository
	bus      events.Publisher
	cfg      *config.Config
}

func NewService(
	sessions repo.SessionRepository,
	links repo.LinkRepository,
	students repo.StudentRepository,
	bus events.Publisher,
	cfg *config.Config,
) Service {
	return &service{
		sessions: sessions,
		links:    links,
		students: students,
		bus:      bus,
		cfg:      cfg,
	}
}

func (s *service) CreateSession(ctx context.Context, req *domain.CreateSessionRequest, issuedBy string) (*domain.Session, error) {
	duration := time.Duration(req.DurationHours) * time.Hour
	if duration <= 0 {
		duration = s.cfg.Access.SessionDefaultTTL
	}

	now := time.Now()
	session := &domain.Session{
		SessionID:   token.New(),
		Course:      req.Course,
		Description: req.Description,
		CreatedBy:   issuedBy,
		CreatedAt:   now,
		ExpiresAt:   now.Add(duration),
		IsActive:    true,
	}

	if err := s.sessions.Insert(ctx, session); err != nil {
		return nil, domain.Storage(err)
	}

	s.publish(ctx, events.SessionCreated, events.SessionCreatedEvent{
		SessionID: session.SessionID,
		Course:    session.Course,
		CreatedBy: session.CreatedBy,
		ExpiresAt: session.ExpiresAt,
	})
	logger.InfoContext(ctx, "Attendance session created",
		"session_id", session.SessionID, "course", session.Course, "expires_at", session.ExpiresAt)
	return session, nil
}

func (s *service) CreatePersonalLink(ctx context.Context, req *domain.CreateLinkRequest, issuedBy string) (*domain.PersonalLink, error) {
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, domain.Storage(err)
	}
	if student == nil {
		return nil, domain.NotFound(domain.CodeStudentNotFound, "Student not found")
	}

	duration := time.Duration(req.DurationHours) * time.Hour
	if duration <= 0 {
		duration = s.cfg.Access.LinkDefaultTTL
	}

	now := time.Now()
	link := &domain.PersonalLink{
		LinkID:    token.New(),
		StudentID: req.StudentID,
		CreatedBy: issuedBy,
		CreatedAt: now,
		ExpiresAt: now.Add(duration),
		IsActive:  true,
	}

	if err := s.links.Insert(ctx, link); err != nil {
		return nil, domain.Storage(err)
	}

	s.publish(ctx, events.LinkCreated, events.LinkCreatedEvent{
		LinkID:    link.LinkID,
		StudentID: link.StudentID,
		CreatedBy: link.CreatedBy,
		ExpiresAt: link.ExpiresAt,
	})
	logger.InfoContext(ctx, "Personal attendance link created",
		"link_id", link.LinkID, "student_id", link.StudentID, "expires_at", link.ExpiresAt)
	return link, nil
}

// ResolveSession validates a session for use. Expiry is checked here on
// every call: a token past its expiry is dead even if the sweep has not yet
// removed the record.
func (s *service) ResolveSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, domain.Storage(err)
	}
	if session == nil {
		return nil, domain.NotFound(domain.CodeSessionNotFound, "Invalid or expired attendance session")
	}
	if session.IsExpired(time.Now()) {
		return nil, domain.State(domain.CodeTokenExpired, "This attendance session has expired")
	}
	if !session.IsActive {
		return nil, domain.State(domain.CodeTokenInactive, "This attendance session is no longer active")
	}
	return session, nil
}

func (s *service) ResolvePersonalLink(ctx context.Context, linkID string) (*domain.PersonalLink, error) {
	link, err := s.links.FindByID(ctx, linkID)
	if err != nil {
		return nil, domain.Storage(err)
	}
	if link == nil {
		return nil, domain.NotFound(domain.CodeLinkNotFound, "Invalid or expired attendance link")
	}
	if link.IsExpired(time.Now()) {
		return nil, domain.State(domain.CodeTokenExpired, "This attendance link has expired")
	}
	if !link.IsActive {
		return nil, domain.State(domain.CodeTokenInactive, "This attendance link is no longer active")
	}
	if link.UsageExceeded() {
		return nil, domain.State(domain.CodeUsageExceeded, "This attendance link has reached its usage limit")
	}
	return link, nil
}

func (s *service) RecordSessionUse(ctx context.Context, sessionID string) error {
	if err := s.sessions.IncrementAttendance(ctx, sessionID); err != nil {
		return domain.Storage(err)
	}
	return nil
}

func (s *service) RecordLinkUse(ctx context.Context, linkID string) error {
	if err := s.links.IncrementUses(ctx, linkID); err != nil {
		return domain.Storage(err)
	}
	return nil
}

func (s *service) SetLinkMaxUses(ctx context.Context, linkID string, maxUses int64) error {
	if maxUses <= 0 {
		return domain.Validation(domain.CodeInvalidInput, "max_uses must be positive")
	}
	ok, err := s.links.SetMaxUses(ctx, linkID, maxUses)
	if err != nil {
		return domain.Storage(err)
	}
	if !ok {
		return domain.NotFound(domain.CodeLinkNotFound, "Link not found")
	}
	return nil
}

func (s *service) DeactivateSession(ctx context.Context, sessionID string) error {
	ok, err := s.sessions.Deactivate(ctx, sessionID)
	if err != nil {
		return domain.Storage(err)
	}
	if !ok {
		return domain.NotFound(domain.CodeSessionNotFound, "Session not found")
	}
	return nil
}

func (s *service) DeactivateLink(ctx context.Context, linkID string) error {
	ok, err := s.links.Deactivate(ctx, linkID)
	if err != nil {
		return domain.Storage(err)
	}
	if !ok {
		return domain.NotFound(domain.CodeLinkNotFound, "Link not found")
	}
	return nil
}

func (s *service) ListSessions(ctx context.Context, createdBy string) ([]domain.Session, error) {
	sessions, err := s.sessions.ListByCreator(ctx, createdBy)
	if err != nil {
		return nil, domain.Storage(err)
	}
	return sessions, nil
}

func (s *service) publish(ctx context.Context, subject string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}
