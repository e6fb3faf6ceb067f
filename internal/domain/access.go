package domain

import "time"

// Session is a class-wide, multi-use, time-boxed grant: anyone holding the
// session ID may mark their own attendance until it expires.
type Session struct {
	SessionID       string    `json:"session_id"`
	Course          string    `json:"course,omitempty"`
	Description     string    `json:"description,omitempty"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	IsActive        bool      `json:"is_active"`
	AttendanceCount int64     `json:"attendance_count"`
}

// PersonalLink is the single-student variant, with an optional usage cap.
type PersonalLink struct {
	LinkID    string    `json:"link_id"`
	StudentID string    `json:"student_id"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IsActive  bool      `json:"is_active"`
	Uses      int64     `json:"uses"`
	MaxUses   *int64    `json:"max_uses,omitempty"`
}

type CreateSessionRequest struct {
	Course        string `json:"course,omitempty"`
	DurationHours int    `json:"duration_hours"`
	Description   string `json:"description,omitempty"`
}

type CreateLinkRequest struct {
	StudentID     string `json:"student_id"`
	DurationHours int    `json:"duration_hours"`
}

// Expiry is checked on every use; the background sweep is storage hygiene
// only and never load-bearing.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

func (l *PersonalLink) IsExpired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

func (l *PersonalLink) UsageExceeded() bool {
	return l.MaxUses != nil && l.Uses >= *l.MaxUses
}
