package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classmark/attendance/internal/attendance"
	"github.com/classmark/attendance/internal/domain"
	"github.com/classmark/attendance/internal/http/middleware"
	"github.com/classmark/attendance/internal/http/response"
	"github.com/classmark/attendance/internal/repo"
	"github.com/classmark/attendance/internal/store"
)

// AttendanceHandler is the authenticated ledger surface: manual marking,
// status edits, range queries, and the student roster.
type AttendanceHandler struct {
	Attendance attendance.Service
	Students   repo.StudentRepository
}

func NewAttendanceHandler(attendanceSvc attendance.Service, students repo.StudentRepository) *AttendanceHandler {
	return &AttendanceHandler{Attendance: attendanceSvc, Students: students}
}

func (h *AttendanceHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/attendance", h.mark)
	r.Get("/attendance", h.listRange)
	r.Patch("/attendance/{studentID}/{date}", h.updateStatus)
	r.Post("/students", h.createStudent)
	r.Get("/students", h.listStudents)
	return r
}

func (h *AttendanceHandler) mark(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)

	var req struct {
		StudentID string `json:"student_id"`
		Status    int    `json:"status"`
		Course    string `json:"course"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	record, err := h.Attendance.Mark(r.Context(), req.StudentID, req.Status, time.Now(),
		req.Course, domain.MethodManualEntry, claims.Username)
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, map[string]any{"record": record})
}

func (h *AttendanceHandler) listRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := h.Attendance.ListRange(r.Context(), q.Get("start"), q.Get("end"), q.Get("course"))
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (h *AttendanceHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)

	var req struct {
		Status int `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	err := h.Attendance.UpdateStatus(r.Context(),
		chi.URLParam(r, "studentID"), chi.URLParam(r, "date"), req.Status, claims.Username)
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"message": "Attendance updated"})
}

func (h *AttendanceHandler) createStudent(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)

	var student domain.Student
	if err := json.NewDecoder(r.Body).Decode(&student); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if student.StudentID == "" || student.Name == "" {
		response.BadRequest(w, "student_id and name are required")
		return
	}
	student.CreatedBy = claims.Username
	student.CreatedAt = time.Now()

	if err := h.Students.Insert(r.Context(), &student); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			response.WriteError(w, http.StatusConflict, "Student already exists", domain.CodeStudentExists)
			return
		}
		response.InternalError(w, "Failed to create student")
		return
	}
	response.WriteJSON(w, http.StatusCreated, student)
}

func (h *AttendanceHandler) listStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.Students.List(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to list students")
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"students": students})
}
