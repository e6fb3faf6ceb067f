package access

import (
	"context"
	"testing"
	"time"

	"github.com/classmark/attendance/internal/domain"
	"github.com/classmark/attendance/internal/repo"
	"github.com/classmark/attendance/internal/store"
	"github.com/classmark/attendance/pkg/config"
	"github.com/classmark/attendance/pkg/events"
)

type testEnv struct {
	svc      Service
	sessions store.Collection
	links    store.Collection
	sweeper  *Sweeper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fs, err := store.OpenFile(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	sessionCol := fs.Collection("attendance_sessions")
	linkCol := fs.Collection("attendance_links")
	sessionRepo := repo.NewSessionRepository(sessionCol)
	linkRepo := repo.NewLinkRepository(linkCol)
	studentRepo := repo.NewStudentRepository(fs.Collection("students"))

	if err := studentRepo.Insert(context.Background(), &domain.Student{
		StudentID: "s1", Name: "Alice", CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed student: %v", err)
	}

	cfg := &config.Config{
		Access: config.AccessConfig{
			SessionDefaultTTL: 24 * time.Hour,
			LinkDefaultTTL:    168 * time.Hour,
			SweepInterval:     time.Minute,
		},
	}
	return &testEnv{
		svc:      NewService(sessionRepo, linkRepo, studentRepo, events.NopPublisher{}, cfg),
		sessions: sessionCol,
		links:    linkCol,
		sweeper:  NewSweeper(sessionRepo, linkRepo, time.Minute),
	}
}

// age rewrites expires_at without purging the record, so the resolution
// path sees an expired-but-present token.
func age(t *testing.T, col store.Collection, filter store.Filter) {
	t.Helper()
	// The file backend lazily drops expired TTL records on load, so the
	// doctored expiry sits just far enough in the past to be expired at
	// resolution time while the surrounding assertions run.
	ok, err := col.UpdateOne(context.Background(), filter, store.Update{
		Set: map[string]any{"expires_at": time.Now().Add(-time.Millisecond)},
	})
	if err != nil || !ok {
		t.Fatalf("aging record: ok=%v err=%v", ok, err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	session, err := env.svc.CreateSession(ctx, &domain.CreateSessionRequest{
		Course: "CS101", DurationHours: 2,
	}, "teacher1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.SessionID == "" || !session.IsActive {
		t.Fatalf("session = %+v", session)
	}
	if want := 2 * time.Hour; session.ExpiresAt.Sub(session.CreatedAt) != want {
		t.Errorf("ttl = %v, want %v", session.ExpiresAt.Sub(session.CreatedAt), want)
	}

	got, err := env.svc.ResolveSession(ctx, session.SessionID)
	if err != nil {
		t.Fatalf("ResolveSession: %v", err)
	}
	if got.Course != "CS101" || got.CreatedBy != "teacher1" {
		t.Errorf("resolved = %+v", got)
	}

	if err := env.svc.RecordSessionUse(ctx, session.SessionID); err != nil {
		t.Fatalf("RecordSessionUse: %v", err)
	}
	got, _ = env.svc.ResolveSession(ctx, session.SessionID)
	if got.AttendanceCount != 1 {
		t.Errorf("attendance_count = %d, want 1", got.AttendanceCount)
	}

	listed, err := env.svc.ListSessions(ctx, "teacher1")
	if err != nil || len(listed) != 1 {
		t.Fatalf("ListSessions = %v, %v", listed, err)
	}

	if err := env.svc.DeactivateSession(ctx, session.SessionID); err != nil {
		t.Fatalf("DeactivateSession: %v", err)
	}
	_, err = env.svc.ResolveSession(ctx, session.SessionID)
	if !domain.IsCode(err, domain.CodeTokenInactive) {
		t.Errorf("deactivated code = %q, want TOKEN_INACTIVE", domain.CodeOf(err))
	}
}

func TestSessionDefaultTTL(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	session, err := env.svc.CreateSession(ctx, &domain.CreateSessionRequest{}, "teacher1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if want := 24 * time.Hour; session.ExpiresAt.Sub(session.CreatedAt) != want {
		t.Errorf("default ttl = %v, want %v", session.ExpiresAt.Sub(session.CreatedAt), want)
	}
}

func TestResolveUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.ResolveSession(context.Background(), "nope")
	if !domain.IsCode(err, domain.CodeSessionNotFound) {
		t.Errorf("code = %q, want SESSION_NOT_FOUND", domain.CodeOf(err))
	}
}

func TestExpiredSessionRejectedEvenIfActive(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	session, err := env.svc.CreateSession(ctx, &domain.CreateSessionRequest{DurationHours: 1}, "teacher1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	age(t, env.sessions, store.Filter{"session_id": session.SessionID})

	_, err = env.svc.ResolveSession(ctx, session.SessionID)
	if err == nil {
		t.Fatal("expired session resolved")
	}
	// Either the resolution sees the record and reports expiry, or the
	// lazy purge already dropped it; both refuse access.
	code := domain.CodeOf(err)
	if code != domain.CodeTokenExpired && code != domain.CodeSessionNotFound {
		t.Errorf("code = %q, want TOKEN_EXPIRED or SESSION_NOT_FOUND", code)
	}
}

func TestPersonalLinkLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	link, err := env.svc.CreatePersonalLink(ctx, &domain.CreateLinkRequest{
		StudentID: "s1", DurationHours: 48,
	}, "teacher1")
	if err != nil {
		t.Fatalf("CreatePersonalLink: %v", err)
	}

	got, err := env.svc.ResolvePersonalLink(ctx, link.LinkID)
	if err != nil {
		t.Fatalf("ResolvePersonalLink: %v", err)
	}
	if got.StudentID != "s1" {
		t.Errorf("student_id = %q", got.StudentID)
	}

	if err := env.svc.DeactivateLink(ctx, link.LinkID); err != nil {
		t.Fatalf("DeactivateLink: %v", err)
	}
	_, err = env.svc.ResolvePersonalLink(ctx, link.LinkID)
	if !domain.IsCode(err, domain.CodeTokenInactive) {
		t.Errorf("deactivated code = %q, want TOKEN_INACTIVE", domain.CodeOf(err))
	}
}

func TestPersonalLinkUnknownStudent(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.CreatePersonalLink(context.Background(), &domain.CreateLinkRequest{
		StudentID: "ghost",
	}, "teacher1")
	if !domain.IsCode(err, domain.CodeStudentNotFound) {
		t.Errorf("code = %q, want STUDENT_NOT_FOUND", domain.CodeOf(err))
	}
}

func TestPersonalLinkUsageCap(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	link, err := env.svc.CreatePersonalLink(ctx, &domain.CreateLinkRequest{StudentID: "s1"}, "teacher1")
	if err != nil {
		t.Fatalf("CreatePersonalLink: %v", err)
	}

	if err := env.svc.SetLinkMaxUses(ctx, link.LinkID, 0); !domain.IsCode(err, domain.CodeInvalidInput) {
		t.Errorf("zero cap code = %q, want INVALID_INPUT", domain.CodeOf(err))
	}
	if err := env.svc.SetLinkMaxUses(ctx, link.LinkID, 1); err != nil {
		t.Fatalf("SetLinkMaxUses: %v", err)
	}

	// First use passes, and is recorded after the mark succeeds.
	if _, err := env.svc.ResolvePersonalLink(ctx, link.LinkID); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if err := env.svc.RecordLinkUse(ctx, link.LinkID); err != nil {
		t.Fatalf("RecordLinkUse: %v", err)
	}

	_, err = env.svc.ResolvePersonalLink(ctx, link.LinkID)
	if !domain.IsCode(err, domain.CodeUsageExceeded) {
		t.Errorf("exhausted code = %q, want USAGE_EXCEEDED", domain.CodeOf(err))
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	dead, err := env.svc.CreateSession(ctx, &domain.CreateSessionRequest{DurationHours: 1}, "teacher1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	live, err := env.svc.CreateSession(ctx, &domain.CreateSessionRequest{DurationHours: 1}, "teacher1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	age(t, env.sessions, store.Filter{"session_id": dead.SessionID})

	env.sweeper.SweepOnce(ctx)
	// Idempotent: a second sweep finds nothing new to delete.
	env.sweeper.SweepOnce(ctx)

	n, err := env.sessions.CountDocuments(ctx, store.Filter{})
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if n != 1 {
		t.Errorf("sessions after sweep = %d, want 1", n)
	}
	if _, err := env.svc.ResolveSession(ctx, live.SessionID); err != nil {
		t.Errorf("live session swept: %v", err)
	}
}
