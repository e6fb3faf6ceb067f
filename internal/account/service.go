// Package account orchestrates signup, authentication with lockout, and
// password change/reset.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/classmark/attendance/internal/domain"
	"github.com/classmark/attendance/internal/mailer"
	"github.com/classmark/attendance/internal/policy"
	"github.com/classmark/attendance/internal/repo"
	"github.com/classmark/attendance/internal/store"
	"github.com/classmark/attendance/pkg/config"
	"github.com/classmark/attendance/pkg/events"
	"github.com/classmark/attendance/pkg/logger"
	"github.com/classmark/attendance/pkg/token"
)

type Service interface {
	Create(ctx context.Context, req *domain.CreateUserRequest) (*domain.Profile, error)
	Authenticate(ctx context.Context, username, password string) (*domain.Profile, error)
	Revalidate(ctx context.Context, username string) (*domain.Profile, error)
	ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error
	GenerateResetToken(ctx context.Context, username string) (string, error)
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
	BootstrapAdmin(ctx context.Context) error
}

type service struct {
	users  repo.UserRepository
	mailer mailer.Service
	bus    events.Publisher
	cfg    *config.Config
}

func NewService(users repo.UserRepository, mail mailer.Service, bus events.Publisher, cfg *config.Config) Service {
	return &service{
		users:  users,
		mailer: mail,
		bus:    bus,
		cfg:    cfg,
	}
}

func (s *service) Create(ctx context.Context, req *domain.CreateUserRequest) (*domain.Profile, error) {
	req.Normalize()

	if len(req.Username) < 3 {
		return nil, domain.Validation(domain.CodeInvalidInput, "Username must be at least 3 characters")
	}
	if !policy.ValidateEmail(req.Email) {
		return nil, domain.Validation(domain.CodeInvalidInput, "Invalid email format")
	}
	if !domain.IsValidRole(req.Role) {
		return nil, domain.Validation(domain.CodeInvalidInput, "Invalid role: %s", req.Role)
	}

	existing, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, domain.Storage(err)
	}
	if existing != nil {
		return nil, domain.Conflict(domain.CodeUsernameExists, "Username already exists")
	}

	existing, err = s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, domain.Storage(err)
	}
	if existing != nil {
		return nil, domain.Conflict(domain.CodeEmailExists, "Email already exists")
	}

	if err := policy.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	hash, err := hashPassword(req.Password, s.cfg.Auth.HashIterations)
	if err != nil {
		return nil, domain.Storage(err)
	}

	user := &domain.User{
		Username:     req.Username,
		PasswordHash: hash,
		Email:        req.Email,
		Name:         req.Name,
		Role:         req.Role,
		// Accounts auto-activate; there is no verification step.
		Status:    domain.StatusActive,
		CreatedAt: time.Now(),
	}

	if err := s.users.Insert(ctx, user); err != nil {
		return nil, mapInsertError(err)
	}

	s.publish(ctx, events.UserCreated, events.UserCreatedEvent{
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	})

	logger.InfoContext(ctx, "User created", "username", user.Username, "role", user.Role)
	return user.ToProfile(), nil
}

func (s *service) Authenticate(ctx context.Context, username, password string) (*domain.Profile, error) {
	user, err := s.loadForAuth(ctx, username)
	if err != nil {
		return nil, err
	}

	if verifyPassword(user.PasswordHash, password) {
		if err := s.users.RecordLoginSuccess(ctx, username, time.Now()); err != nil {
			return nil, domain.Storage(err)
		}
		return user.ToProfile(), nil
	}

	// Counter updates are best effort under concurrent attempts; the
	// threshold is defense in depth, not an exact-once counter.
	attempts := user.FailedAttempts + 1
	if attempts >= s.cfg.Auth.LockoutThreshold {
		until := time.Now().Add(s.cfg.Auth.LockoutDuration)
		if err := s.users.RecordLoginFailure(ctx, username, attempts, &until); err != nil {
			return nil, domain.Storage(err)
		}
		s.publish(ctx, events.UserLocked, events.UserLockedEvent{
			Username:     username,
			LockoutUntil: until,
			Attempts:     attempts,
		})
		logger.WarnContext(ctx, "Account locked after repeated failures",
			"username", username, "attempts", attempts)
		return nil, domain.State(domain.CodeAccountLocked,
			"Account locked until %s", until.Format(time.RFC3339))
	}

	if err := s.users.RecordLoginFailure(ctx, username, attempts, nil); err != nil {
		return nil, domain.Storage(err)
	}
	return nil, domain.State(domain.CodeInvalidPassword, "Invalid password")
}

// Revalidate is the lightweight "is this still a valid account" check for a
// previously issued, server-set session token. It never touches failure
// counters and must not be reachable from untrusted input.
func (s *service) Revalidate(ctx context.Context, username string) (*domain.Profile, error) {
	user, err := s.loadForAuth(ctx, username)
	if err != nil {
		return nil, err
	}
	return user.ToProfile(), nil
}

// loadForAuth applies the account-state gates shared by password and
// session checks: unknown user, active lock (with auto-clear of stale
// locks), inactive status.
func (s *service) loadForAuth(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, domain.Storage(err)
	}
	if user == nil {
		return nil, domain.NotFound(domain.CodeUserNotFound, "User not found")
	}

	if user.IsLocked {
		if user.LockedNow(time.Now()) {
			return nil, domain.State(domain.CodeAccountLocked,
				"Account locked until %s", user.LockoutUntil.Format(time.RFC3339))
		}
		// Stale lock: the window has passed, clear it and continue.
		if err := s.users.ClearLockout(ctx, username); err != nil {
			return nil, domain.Storage(err)
		}
		user.IsLocked = false
		user.FailedAttempts = 0
		user.LockoutUntil = nil
	}

	if user.Status != domain.StatusActive {
		return nil, domain.State(domain.CodeAccountInactive, "Account is inactive")
	}
	return user, nil
}

func (s *service) ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error {
	if _, err := s.Authenticate(ctx, username, currentPassword); err != nil {
		if domain.IsCode(err, domain.CodeInvalidPassword) {
			return domain.State(domain.CodeInvalidPassword, "Current password is incorrect")
		}
		return err
	}

	if err := policy.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := hashPassword(newPassword, s.cfg.Auth.HashIterations)
	if err != nil {
		return domain.Storage(err)
	}
	if err := s.users.SetPasswordHash(ctx, username, hash, time.Now()); err != nil {
		return domain.Storage(err)
	}

	logger.InfoContext(ctx, "Password changed", "username", username)
	return nil
}

// GenerateResetToken stores a fresh single-use token with a bounded expiry
// and hands it to the mailer. The token is also returned so dev mode can
// surface it without email delivery.
func (s *service) GenerateResetToken(ctx context.Context, username string) (string, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return "", domain.Storage(err)
	}
	if user == nil {
		return "", domain.NotFound(domain.CodeUserNotFound, "User not found")
	}

	resetToken := token.New()
	expires := time.Now().Add(s.cfg.Auth.ResetTokenTTL)
	if err := s.users.SetResetToken(ctx, username, resetToken, expires); err != nil {
		return "", domain.Storage(err)
	}

	resetURL := fmt.Sprintf("%s/reset-password?reset_token=%s", s.cfg.Server.BaseURL, resetToken)
	if err := s.mailer.SendPasswordResetEmail(user.Email, user.Name, resetURL, resetToken); err != nil {
		// The token was stored; delivery failure is logged, not fatal.
		logger.ErrorContext(ctx, "Failed to send reset email", "error", err, "username", username)
	}

	return resetToken, nil
}

func (s *service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if err := policy.ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.FindByResetToken(ctx, resetToken, time.Now())
	if err != nil {
		return domain.Storage(err)
	}
	if user == nil {
		return domain.State(domain.CodeInvalidOrExpiredToken, "Invalid or expired reset token")
	}

	hash, err := hashPassword(newPassword, s.cfg.Auth.HashIterations)
	if err != nil {
		return domain.Storage(err)
	}

	ok, err := s.users.ConsumeResetToken(ctx, resetToken, hash, time.Now())
	if err != nil {
		return domain.Storage(err)
	}
	if !ok {
		// Consumed concurrently between lookup and update.
		return domain.State(domain.CodeInvalidOrExpiredToken, "Invalid or expired reset token")
	}

	s.publish(ctx, events.PasswordReset, events.PasswordResetEvent{
		Username: user.Username,
		ResetAt:  time.Now(),
	})
	logger.InfoContext(ctx, "Password reset", "username", user.Username)
	return nil
}

// BootstrapAdmin creates the initial admin account on an empty store so a
// fresh deployment is reachable.
func (s *service) BootstrapAdmin(ctx context.Context) error {
	if !s.cfg.Auth.BootstrapAdmin {
		return nil
	}
	n, err := s.users.Count(ctx)
	if err != nil {
		return domain.Storage(err)
	}
	if n > 0 {
		return nil
	}

	_, err = s.Create(ctx, &domain.CreateUserRequest{
		Username: "admin",
		Password: s.cfg.Auth.BootstrapPassword,
		Email:    "admin@classmark.local",
		Name:     "Administrator",
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		return err
	}
	logger.Warn("Bootstrap admin account created; change its password immediately", "username", "admin")
	return nil
}

func (s *service) publish(ctx context.Context, subject string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}

// mapInsertError classifies a storage-level uniqueness violation that won
// the race against the application-level pre-checks.
func mapInsertError(err error) error {
	if errors.Is(err, store.ErrDuplicateKey) {
		return domain.Conflict(domain.CodeUsernameExists, "Username or email already exists")
	}
	return domain.Storage(err)
}
