package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classmark/attendance/internal/access"
	"github.com/classmark/attendance/internal/attendance"
	"github.com/classmark/attendance/internal/domain"
	"github.com/classmark/attendance/internal/http/middleware"
	"github.com/classmark/attendance/internal/http/response"
	"github.com/classmark/attendance/pkg/config"
)

// AccessHandler covers both sides of ephemeral access: the authenticated
// management surface (issue, list, deactivate) and the anonymous marking
// surface students hit with a session or personal link token.
type AccessHandler struct {
	Access     access.Service
	Attendance attendance.Service
	Cfg        *config.Config
}

func NewAccessHandler(accessSvc access.Service, attendanceSvc attendance.Service, cfg *config.Config) *AccessHandler {
	return &AccessHandler{Access: accessSvc, Attendance: attendanceSvc, Cfg: cfg}
}

func (h *AccessHandler) ManageRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/sessions", h.createSession)
	r.Get("/sessions", h.listSessions)
	r.Delete("/sessions/{sessionID}", h.deactivateSession)
	r.Post("/links", h.createLink)
	r.Put("/links/{linkID}/max-uses", h.setLinkMaxUses)
	r.Delete("/links/{linkID}", h.deactivateLink)
	return r
}

// PublicRoutes serve students holding a token. GET shows what the token is
// for; POST marks attendance through it.
func (h *AccessHandler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/mark", h.describeToken)
	r.Post("/mark", h.markWithToken)
	return r
}

func (h *AccessHandler) createSession(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)

	var req domain.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	session, err := h.Access.CreateSession(r.Context(), &req, claims.Username)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, map[string]any{
		"session":  session,
		"mark_url": fmt.Sprintf("%s/attend/mark?session=%s", h.Cfg.Server.BaseURL, session.SessionID),
	})
}

func (h *AccessHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)
	sessions, err := h.Access.ListSessions(r.Context(), claims.Username)
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *AccessHandler) deactivateSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Access.DeactivateSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		response.DomainError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"message": "Session deactivated"})
}

func (h *AccessHandler) createLink(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)

	var req domain.CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.StudentID == "" {
		response.BadRequest(w, "student_id is required")
		return
	}

	link, err := h.Access.CreatePersonalLink(r.Context(), &req, claims.Username)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, map[string]any{
		"link":     link,
		"mark_url": fmt.Sprintf("%s/attend/mark?student_link=%s", h.Cfg.Server.BaseURL, link.LinkID),
	})
}

func (h *AccessHandler) setLinkMaxUses(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxUses int64 `json:"max_uses"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.Access.SetLinkMaxUses(r.Context(), chi.URLParam(r, "linkID"), req.MaxUses); err != nil {
		response.DomainError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"message": "Usage limit updated"})
}

func (h *AccessHandler) deactivateLink(w http.ResponseWriter, r *http.Request) {
	if err := h.Access.DeactivateLink(r.Context(), chi.URLParam(r, "linkID")); err != nil {
		response.DomainError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"message": "Link deactivated"})
}

func (h *AccessHandler) describeToken(w http.ResponseWriter, r *http.Request) {
	if sessionID := r.URL.Query().Get("session"); sessionID != "" {
		session, err := h.Access.ResolveSession(r.Context(), sessionID)
		if err != nil {
			response.DomainError(w, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, map[string]any{
			"type":       "session",
			"course":     session.Course,
			"expires_at": session.ExpiresAt,
		})
		return
	}

	if linkID := r.URL.Query().Get("student_link"); linkID != "" {
		link, err := h.Access.ResolvePersonalLink(r.Context(), linkID)
		if err != nil {
			response.DomainError(w, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, map[string]any{
			"type":       "personal_link",
			"student_id": link.StudentID,
			"expires_at": link.ExpiresAt,
		})
		return
	}

	response.BadRequest(w, "Missing session or student_link token")
}

// markWithToken is the anonymous marking path. The token is validated on
// every call; usage is recorded only after the attendance insert wins, so a
// duplicate mark never burns a use.
func (h *AccessHandler) markWithToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID string `json:"student_id"`
		Status    int    `json:"status"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Status == 0 {
		req.Status = 1
	}

	if sessionID := r.URL.Query().Get("session"); sessionID != "" {
		session, err := h.Access.ResolveSession(r.Context(), sessionID)
		if err != nil {
			response.DomainError(w, err)
			return
		}
		if req.StudentID == "" {
			response.BadRequest(w, "student_id is required")
			return
		}

		record, err := h.Attendance.Mark(r.Context(), req.StudentID, req.Status, time.Now(),
			session.Course, domain.MethodSessionLink, session.CreatedBy)
		if err != nil {
			response.DomainError(w, err)
			return
		}
		if err := h.Access.RecordSessionUse(r.Context(), sessionID); err != nil {
			response.DomainError(w, err)
			return
		}
		response.WriteJSON(w, http.StatusCreated, map[string]any{"record": record})
		return
	}

	if linkID := r.URL.Query().Get("student_link"); linkID != "" {
		link, err := h.Access.ResolvePersonalLink(r.Context(), linkID)
		if err != nil {
			response.DomainError(w, err)
			return
		}

		record, err := h.Attendance.Mark(r.Context(), link.StudentID, req.Status, time.Now(),
			"", domain.MethodPersonalLink, link.CreatedBy)
		if err != nil {
			response.DomainError(w, err)
			return
		}
		if err := h.Access.RecordLinkUse(r.Context(), linkID); err != nil {
			response.DomainError(w, err)
			return
		}
		response.WriteJSON(w, http.StatusCreated, map[string]any{"record": record})
		return
	}

	response.BadRequest(w, "Missing session or student_link token")
}
