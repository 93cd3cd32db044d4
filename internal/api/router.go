package api

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"securehr/internal/storage"
)

func NewRouter(a *API) http.Handler {
	mux := http.NewServeMux()

	// Swagger documentation - must be registered first
	mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Health check (for Railway, k8s, etc.)
	mux.HandleFunc("/health", a.HealthHandler)

	// Auth
	mux.HandleFunc("/api/auth/register/candidate", a.RegisterCandidateHandler)
	mux.HandleFunc("/api/auth/register/recruiter", a.RegisterRecruiterHandler)
	mux.HandleFunc("/api/auth/login", a.LoginHandler)
	mux.HandleFunc("/api/auth/logout", a.requireAuth("", a.LogoutHandler))

	// Profile (GET any role; PUT/DELETE candidate-only, enforced inside)
	mux.HandleFunc("/api/profile/me", a.requireAuth("", a.ProfileHandler))

	// CV ingestion
	mux.HandleFunc("/api/cv/upload", a.requireAuth(storage.RoleCandidate, a.CVUploadHandler))
	mux.HandleFunc("/api/cv/status", a.requireAuth(storage.RoleCandidate, a.CVStatusHandler))
	mux.HandleFunc("/api/cv/{candidate_id}/text", a.requireAuth(storage.RoleRecruiter, a.CVDetailHandler))

	// Search
	mux.HandleFunc("/api/search", a.requireAuth(storage.RoleRecruiter, a.SearchHandler))
	mux.HandleFunc("/api/search/saved", a.requireAuth(storage.RoleRecruiter, a.SavedSearchesHandler))
	mux.HandleFunc("/api/search/saved/run", a.requireAuth(storage.RoleRecruiter, a.RunSavedSearchHandler))

	return mux
}

// HealthHandler probes the relational store, the vector index and Redis
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	// The endpoint is unauthenticated: failed checks report a fixed
	// marker and the real error stays in the log.
	checks := map[string]string{
		"database":     "ok",
		"vector_index": "ok",
	}
	healthy := true

	if err := a.db.Ping(r.Context()); err != nil {
		a.logger.Warn("health: database check failed", zap.Error(err))
		checks["database"] = "unavailable"
		healthy = false
	}
	if err := a.index.Health(r.Context()); err != nil {
		a.logger.Warn("health: vector index check failed", zap.Error(err))
		checks["vector_index"] = "unavailable"
		healthy = false
	}
	if a.sessions != nil {
		checks["redis"] = "ok"
		if err := a.sessions.Ping(r.Context()); err != nil {
			a.logger.Warn("health: redis check failed", zap.Error(err))
			checks["redis"] = "unavailable"
			healthy = false
		}
	}

	status := http.StatusOK
	checks["status"] = "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		checks["status"] = "degraded"
	}
	writeJSON(w, status, checks)
}
