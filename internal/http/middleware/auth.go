package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/classmark/attendance/internal/account"
	"github.com/classmark/attendance/internal/domain"
	"github.com/classmark/attendance/internal/http/response"
	"github.com/classmark/attendance/pkg/auth"
	"github.com/classmark/attendance/pkg/logger"
)

type ctxKey string

const CtxClaims ctxKey = "claims"

// Authenticator guards the teacher/admin surface. A valid signature is not
// enough: the account is re-checked on every request so a lockout or
// deactivation takes effect immediately, not at token expiry.
type Authenticator struct {
	accounts account.Service
	secret   string
}

func NewAuthenticator(accounts account.Service, secret string) *Authenticator {
	return &Authenticator{accounts: accounts, secret: secret}
}

func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			response.Unauthorized(w, "Missing or invalid authorization header")
			return
		}

		claims, err := auth.Parse(strings.TrimPrefix(authz, "Bearer "), a.secret)
		if err != nil {
			response.Unauthorized(w, "Invalid or expired token")
			return
		}

		if _, err := a.accounts.Revalidate(r.Context(), claims.Username); err != nil {
			response.AuthError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), CtxClaims, claims)
		ctx = context.WithValue(ctx, logger.UsernameKey, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole layers a role check on top of RequireAuth.
func (a *Authenticator) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := Claims(r)
			if claims == nil {
				response.Unauthorized(w, "Authentication required")
				return
			}
			if claims.Role != role && claims.Role != domain.RoleAdmin {
				response.Forbidden(w, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Claims returns the authenticated claims, or nil outside RequireAuth.
func Claims(r *http.Request) *auth.Claims {
	v := r.Context().Value(CtxClaims)
	if v == nil {
		return nil
	}
	return v.(*auth.Claims)
}
