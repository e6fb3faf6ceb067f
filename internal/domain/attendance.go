package domain

import "time"

// AttendanceRecord is keyed by (student_id, date); the pair is unique
// across the whole ledger and bounds marking to once per student per day.
type AttendanceRecord struct {
	StudentID string    `json:"student_id"`
	Date      string    `json:"date"` // local calendar date, 2006-01-02
	Time      string    `json:"time"` // wall clock, 15:04:05
	Status    int       `json:"status"`
	Course    string    `json:"course,omitempty"`
	Method    string    `json:"method"`
	Timestamp time.Time `json:"ts"`
	CreatedBy string    `json:"created_by"`
}

// Provenance tags for the marking path. Audit/reporting only, never logic.
const (
	MethodManualEntry  = "manual_entry"
	MethodCameraScan   = "camera_scan"
	MethodSessionLink  = "session_link"
	MethodPersonalLink = "personal_link"
)

// DateOf renders the idempotency-key date component for a point in time.
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// CoerceStatus clamps any caller-supplied status to present(1)/absent(0).
func CoerceStatus(status int) int {
	if status != 0 {
		return 1
	}
	return 0
}
