package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/classmark/attendance/internal/account"
	"github.com/classmark/attendance/internal/domain"
	"github.com/classmark/attendance/internal/http/middleware"
	"github.com/classmark/attendance/internal/http/response"
	"github.com/classmark/attendance/pkg/auth"
	"github.com/classmark/attendance/pkg/config"
)

type AuthHandler struct {
	Accounts account.Service
	Cfg      *config.Config
}

func NewAuthHandler(accounts account.Service, cfg *config.Config) *AuthHandler {
	return &AuthHandler{Accounts: accounts, Cfg: cfg}
}

// PublicRoutes are reachable without a session token.
func (h *AuthHandler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Post("/forgot-password", h.forgotPassword)
	r.Post("/reset-password", h.resetPassword) // POST ?reset_token=...
	return r
}

// AuthedRoutes require a valid session token.
func (h *AuthHandler) AuthedRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/change-password", h.changePassword)
	r.Get("/me", h.me)
	return r
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	// Self-service signup never grants admin.
	if req.Role == domain.RoleAdmin {
		response.Forbidden(w, "Cannot self-register as admin")
		return
	}

	profile, err := h.Accounts.Create(r.Context(), &req)
	if err != nil {
		response.DomainError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, profile)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	req.Normalize()
	if req.Username == "" || req.Password == "" {
		response.BadRequest(w, "Username and password are required")
		return
	}

	profile, err := h.Accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		response.AuthError(w, err)
		return
	}

	tok, err := auth.NewSessionToken(profile.Username, profile.Role, profile.Name,
		h.Cfg.Auth.JWTSecret, h.Cfg.Auth.SessionTTL)
	if err != nil {
		response.InternalError(w, "Failed to issue session token")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": tok,
		"user":         profile,
	})
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)
	profile, err := h.Accounts.Revalidate(r.Context(), claims.Username)
	if err != nil {
		response.AuthError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, profile)
}

func (h *AuthHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)

	var req domain.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.Accounts.ChangePassword(r.Context(), claims.Username, req.CurrentPassword, req.NewPassword); err != nil {
		response.DomainError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}

// forgotPassword always answers 200 so the endpoint cannot be used to probe
// which usernames exist.
func (h *AuthHandler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		response.BadRequest(w, "Username is required")
		return
	}

	resp := map[string]string{"message": "If the account exists, a reset email has been sent"}

	tok, err := h.Accounts.GenerateResetToken(r.Context(), req.Username)
	if err != nil {
		if domain.IsCode(err, domain.CodeUserNotFound) {
			response.WriteJSON(w, http.StatusOK, resp)
			return
		}
		response.DomainError(w, err)
		return
	}
	if h.Cfg.Email.DevMode {
		resp["dev_reset_token"] = tok
	}
	response.WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	resetToken := r.URL.Query().Get("reset_token")
	if resetToken == "" {
		response.BadRequest(w, "Missing reset_token")
		return
	}

	var req domain.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.Accounts.ResetPassword(r.Context(), resetToken, req.NewPassword); err != nil {
		response.DomainError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset"})
}
