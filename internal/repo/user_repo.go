package repo

import (
	"context"
	"errors"
	"time"

	"github.com/classmark/attendance/internal/domain"
	"github.com/classmark/attendance/internal/store"
)

type UserRepository interface {
	Insert(ctx context.Context, user *domain.User) error
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByResetToken(ctx context.Context, token string, now time.Time) (*domain.User, error)
	Count(ctx context.Context) (int64, error)
	RecordLoginSuccess(ctx context.Context, username string, at time.Time) error
	RecordLoginFailure(ctx context.Context, username string, attempts int, lockedUntil *time.Time) error
	ClearLockout(ctx context.Context, username string) error
	SetPasswordHash(ctx context.Context, username, hash string, at time.Time) error
	SetResetToken(ctx context.Context, username, token string, expires time.Time) error
	ConsumeResetToken(ctx context.Context, token, hash string, at time.Time) (bool, error)
}

type userRepository struct {
	col store.Collection
}

func NewUserRepository(col store.Collection) UserRepository {
	return &userRepository{col: col}
}

func (r *userRepository) Insert(ctx context.Context, user *domain.User) error {
	return r.col.InsertOne(ctx, userToDoc(user))
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, store.Filter{"username": username})
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, store.Filter{"email": email})
}

// FindByResetToken only matches tokens whose expiry is still in the future,
// so expired tokens are indistinguishable from unknown ones.
func (r *userRepository) FindByResetToken(ctx context.Context, token string, now time.Time) (*domain.User, error) {
	return r.findOne(ctx, store.Filter{
		"password_reset_token":   token,
		"password_reset_expires": store.Gt(now),
	})
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, store.Filter{})
}

func (r *userRepository) RecordLoginSuccess(ctx context.Context, username string, at time.Time) error {
	_, err := r.col.UpdateOne(ctx, store.Filter{"username": username}, store.Update{
		Set: map[string]any{
			"last_login":      at,
			"failed_attempts": 0,
			"is_locked":       false,
			"lockout_until":   nil,
		},
	})
	return err
}

func (r *userRepository) RecordLoginFailure(ctx context.Context, username string, attempts int, lockedUntil *time.Time) error {
	set := map[string]any{
		"failed_attempts": attempts,
		"is_locked":       lockedUntil != nil,
	}
	if lockedUntil != nil {
		set["lockout_until"] = *lockedUntil
	} else {
		set["lockout_until"] = nil
	}
	_, err := r.col.UpdateOne(ctx, store.Filter{"username": username}, store.Update{Set: set})
	return err
}

func (r *userRepository) ClearLockout(ctx context.Context, username string) error {
	_, err := r.col.UpdateOne(ctx, store.Filter{"username": username}, store.Update{
		Set: map[string]any{
			"is_locked":       false,
			"failed_attempts": 0,
			"lockout_until":   nil,
		},
	})
	return err
}

func (r *userRepository) SetPasswordHash(ctx context.Context, username, hash string, at time.Time) error {
	_, err := r.col.UpdateOne(ctx, store.Filter{"username": username}, store.Update{
		Set: map[string]any{
			"password":      hash,
			"last_modified": at,
		},
	})
	return err
}

func (r *userRepository) SetResetToken(ctx context.Context, username, token string, expires time.Time) error {
	_, err := r.col.UpdateOne(ctx, store.Filter{"username": username}, store.Update{
		Set: map[string]any{
			"password_reset_token":   token,
			"password_reset_expires": expires,
		},
	})
	return err
}

// ConsumeResetToken stores the new hash and clears both token fields in one
// update keyed on the token itself, which makes the token single-use.
func (r *userRepository) ConsumeResetToken(ctx context.Context, token, hash string, at time.Time) (bool, error) {
	return r.col.UpdateOne(ctx, store.Filter{"password_reset_token": token}, store.Update{
		Set: map[string]any{
			"password":               hash,
			"password_reset_token":   nil,
			"password_reset_expires": nil,
			"last_modified":          at,
		},
	})
}

func (r *userRepository) findOne(ctx context.Context, filter store.Filter) (*domain.User, error) {
	doc, err := r.col.FindOne(ctx, filter)
	if errors.Is(err, store.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return docToUser(doc), nil
}

func userToDoc(u *domain.User) store.Document {
	doc := store.Document{
		"username":           u.Username,
		"password":           u.PasswordHash,
		"email":              u.Email,
		"name":               u.Name,
		"role":               u.Role,
		"status":             u.Status,
		"created_at":         u.CreatedAt,
		"failed_attempts":    u.FailedAttempts,
		"is_locked":          u.IsLocked,
		"two_factor_enabled": u.TwoFactorEnabled,
	}
	if u.LastLogin != nil {
		doc["last_login"] = *u.LastLogin
	} else {
		doc["last_login"] = nil
	}
	if u.LockoutUntil != nil {
		doc["lockout_until"] = *u.LockoutUntil
	} else {
		doc["lockout_until"] = nil
	}
	return doc
}

func docToUser(doc store.Document) *domain.User {
	u := &domain.User{
		Username:           doc.String("username"),
		PasswordHash:       doc.String("password"),
		Email:              doc.String("email"),
		Name:               doc.String("name"),
		Role:               doc.String("role"),
		Status:             doc.String("status"),
		FailedAttempts:     int(doc.Int64("failed_attempts")),
		IsLocked:           doc.Bool("is_locked"),
		PasswordResetToken: doc.String("password_reset_token"),
		TwoFactorEnabled:   doc.Bool("two_factor_enabled"),
	}
	if t, ok := doc.Time("created_at"); ok {
		u.CreatedAt = t
	}
	if t, ok := doc.Time("last_login"); ok {
		u.LastLogin = &t
	}
	if t, ok := doc.Time("lockout_until"); ok {
		u.LockoutUntil = &t
	}
	if t, ok := doc.Time("password_reset_expires"); ok {
		u.PasswordResetExpires = &t
	}
	return u
}
