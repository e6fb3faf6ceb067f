package domain

import (
	"strings"
	"time"
)

type User struct {
	Username             string     `json:"username"`
	PasswordHash         string     `json:"-"`
	Email                string     `json:"email"`
	Name                 string     `json:"name"`
	Role                 string     `json:"role"`
	Status               string     `json:"status"`
	CreatedAt            time.Time  `json:"created_at"`
	LastLogin            *time.Time `json:"last_login,omitempty"`
	FailedAttempts       int        `json:"failed_attempts"`
	IsLocked             bool       `json:"is_locked"`
	LockoutUntil         *time.Time `json:"lockout_until,omitempty"`
	PasswordResetToken   string     `json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
	TwoFactorEnabled     bool       `json:"two_factor_enabled"`
}

// Profile is the public slice of an account returned on successful
// authentication.
type Profile struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// Valid user roles
const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Account lifecycle states. New accounts auto-activate; there is no email
// verification step, so "pending" only appears for admin-created accounts
// that were explicitly held back.
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusInactive = "inactive"
)

var validRoles = map[string]bool{
	RoleTeacher: true,
	RoleAdmin:   true,
}

func IsValidRole(role string) bool {
	return validRoles[role]
}

func (r *CreateUserRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
	if r.Role == "" {
		r.Role = RoleTeacher
	}
}

func (r *LoginRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
}

// LockedNow reports whether the account is locked as of now. A lock whose
// lockout_until has passed is stale and due for auto-clear by the caller.
func (u *User) LockedNow(now time.Time) bool {
	return u.IsLocked && u.LockoutUntil != nil && u.LockoutUntil.After(now)
}

func (u *User) ToProfile() *Profile {
	return &Profile{
		Username: u.Username,
		Role:     u.Role,
		Name:     u.Name,
		Email:    u.Email,
	}
}
