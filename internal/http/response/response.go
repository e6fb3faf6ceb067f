// Package response writes structured JSON replies and maps domain failures
// to HTTP statuses.
package response

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/classmark/attendance/internal/domain"
)

// ErrorResponse represents a structured JSON error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// DomainError maps a service failure onto an HTTP status. Storage failures
// are reported generically; everything else surfaces its specific reason.
func DomainError(w http.ResponseWriter, err error) {
	code := domain.CodeOf(err)

	switch domain.KindOf(err) {
	case domain.KindValidation:
		WriteError(w, http.StatusBadRequest, err.Error(), code)
	case domain.KindNotFound:
		WriteError(w, http.StatusNotFound, err.Error(), code)
	case domain.KindConflict:
		WriteError(w, http.StatusConflict, err.Error(), code)
	case domain.KindState:
		WriteError(w, http.StatusForbidden, err.Error(), code)
	default:
		WriteError(w, http.StatusInternalServerError, "Internal server error", domain.CodeStorageError)
	}
}

// AuthError reports a login failure. The reason stays specific (wrong
// password vs. locked vs. inactive vs. not found) but the status is a
// uniform 401 for credential mismatches.
func AuthError(w http.ResponseWriter, err error) {
	code := domain.CodeOf(err)
	switch code {
	case domain.CodeUserNotFound, domain.CodeInvalidPassword:
		WriteError(w, http.StatusUnauthorized, err.Error(), code)
	case domain.CodeAccountLocked, domain.CodeAccountInactive:
		WriteError(w, http.StatusForbidden, err.Error(), code)
	default:
		DomainError(w, err)
	}
}

func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, domain.CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, "UNAUTHORIZED")
}

func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message, "FORBIDDEN")
}

func RateLimit(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message, "RATE_LIMIT_EXCEEDED")
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, "INTERNAL_ERROR")
}
