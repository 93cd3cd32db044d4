package api

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"securehr/internal/auth"
	"securehr/internal/storage"
)

type contextKey string

const claimsKey contextKey = "claims"

// requireAuth authenticates the request and, if role is non-empty, rejects
// callers with any other role. Candidate-only and recruiter-only surfaces
// both hang off this.
func (a *API) requireAuth(role storage.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := a.tokens.Verify(r.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		if role != "" && claims.Role != string(role) {
			a.logger.Warn("role denied",
				zap.String("user_id", claims.Subject),
				zap.String("role", claims.Role),
				zap.String("path", r.URL.Path))
			writeError(w, http.StatusForbidden, "insufficient permissions")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

func requestClaims(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return claims
}
