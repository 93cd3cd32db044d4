package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"securehr/internal/storage"
)

type profileUpdateRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Location  string `json:"location"`
}

// ProfileHandler serves the caller's own profile. GET works for any role;
// PUT and DELETE are candidate operations (recruiters have no mutable
// profile fields or CV data to cascade).
// @Summary Own profile
// @Description Read, update or delete the authenticated account. DELETE removes the profile row and the committed CV vector; vector removal is retried by the reconciliation sweep if the index is down.
// @Tags profile
// @Accept json
// @Produce json
// @Success 200 {object} storage.User
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /profile/me [get]
func (a *API) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	claims := requestClaims(r)

	switch r.Method {
	case http.MethodGet:
		user, err := a.db.GetUserByID(r.Context(), claims.Subject)
		if err != nil {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeJSON(w, http.StatusOK, user)

	case http.MethodPut:
		if claims.Role != string(storage.RoleCandidate) {
			writeError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		var req profileUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if err := a.db.UpdateCandidateProfile(r.Context(), claims.Subject, req.FirstName, req.LastName, req.Location); err != nil {
			a.logger.Error("profile update failed", zap.String("user_id", claims.Subject), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "profile update failed")
			return
		}
		user, err := a.db.GetUserByID(r.Context(), claims.Subject)
		if err != nil {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeJSON(w, http.StatusOK, user)

	case http.MethodDelete:
		if claims.Role != string(storage.RoleCandidate) {
			writeError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		if err := a.guard.DeleteCandidate(r.Context(), claims.Subject); err != nil {
			a.logger.Error("account deletion failed", zap.String("user_id", claims.Subject), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "account deletion failed")
			return
		}
		a.logger.Info("account deleted", zap.String("user_id", claims.Subject))
		a.trail.AccountDeletion(claims.Subject)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
