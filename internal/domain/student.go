package domain

import "time"

type Student struct {
	StudentID string    `json:"student_id"`
	Name      string    `json:"name"`
	Course    string    `json:"course,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
