package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"securehr/internal/search"
	"securehr/internal/storage"
)

type savedSearchRequest struct {
	Name         string          `json:"name"`
	Requirements string          `json:"requirements"`
	Filters      *search.Filters `json:"filters,omitempty"`
	Limit        int             `json:"limit,omitempty"`
}

// SearchHandler runs a semantic candidate search
// @Summary Search candidates
// @Description Embed the requirements text and return the closest completed CVs, joined with live profile data
// @Tags search
// @Accept json
// @Produce json
// @Param body body search.Request true "Search request"
// @Success 200 {object} search.Response
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /search [post]
func (a *API) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	a.runSearch(w, r, &req)
}

func (a *API) runSearch(w http.ResponseWriter, r *http.Request, req *search.Request) {
	claims := requestClaims(r)

	resp, err := a.searcher.Search(r.Context(), claims.Subject, req)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrEmptyQuery),
			errors.Is(err, search.ErrQueryTooShort),
			errors.Is(err, search.ErrInvalidFilter):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, search.ErrUnavailable):
			writeError(w, http.StatusServiceUnavailable, "search temporarily unavailable")
		default:
			a.logger.Error("search failed", zap.String("recruiter_id", claims.Subject), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "search failed")
		}
		return
	}

	a.trail.SearchQuery(claims.Subject, req.Requirements, resp.TotalResults)
	writeJSON(w, http.StatusOK, resp)
}

// SavedSearchesHandler lists and creates the recruiter's saved searches
// @Summary Saved searches
// @Tags search
// @Accept json
// @Produce json
// @Success 200 {array} storage.SavedSearch
// @Router /search/saved [get]
func (a *API) SavedSearchesHandler(w http.ResponseWriter, r *http.Request) {
	claims := requestClaims(r)

	switch r.Method {
	case http.MethodGet:
		searches, err := a.db.ListSavedSearches(r.Context(), claims.Subject)
		if err != nil {
			a.logger.Error("list saved searches failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list saved searches")
			return
		}
		writeJSON(w, http.StatusOK, searches)

	case http.MethodPost:
		var req savedSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Requirements) == "" {
			writeError(w, http.StatusBadRequest, "name and requirements are required")
			return
		}
		if err := req.Filters.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		saved := &storage.SavedSearch{
			ID:           uuid.NewString(),
			RecruiterID:  claims.Subject,
			Name:         strings.TrimSpace(req.Name),
			Requirements: req.Requirements,
			ResultLimit:  req.Limit,
		}
		if req.Filters != nil {
			payload, err := json.Marshal(req.Filters)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid filters")
				return
			}
			saved.Filters = payload
		}

		if err := a.db.CreateSavedSearch(r.Context(), saved); err != nil {
			a.logger.Error("create saved search failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to save search")
			return
		}
		writeJSON(w, http.StatusCreated, saved)

	case http.MethodDelete:
		id := queryParam(r, "id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "id is required")
			return
		}
		if err := a.db.DeleteSavedSearch(r.Context(), claims.Subject, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, "saved search not found")
				return
			}
			a.logger.Error("delete saved search failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to delete saved search")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// RunSavedSearchHandler executes a stored search
// @Summary Run saved search
// @Tags search
// @Produce json
// @Param id query string true "Saved search ID"
// @Success 200 {object} search.Response
// @Failure 404 {object} map[string]string
// @Router /search/saved/run [post]
func (a *API) RunSavedSearchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	claims := requestClaims(r)

	id := queryParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	saved, err := a.db.GetSavedSearch(r.Context(), claims.Subject, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "saved search not found")
			return
		}
		a.logger.Error("load saved search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load saved search")
		return
	}

	req := &search.Request{
		Requirements: saved.Requirements,
		Limit:        saved.ResultLimit,
	}
	if len(saved.Filters) > 0 {
		var filters search.Filters
		if err := json.Unmarshal(saved.Filters, &filters); err != nil {
			writeError(w, http.StatusBadRequest, "stored filters are invalid")
			return
		}
		req.Filters = &filters
	}

	if err := a.db.TouchSavedSearch(r.Context(), claims.Subject, id); err != nil {
		a.logger.Warn("touch saved search failed", zap.String("id", id), zap.Error(err))
	}

	a.runSearch(w, r, req)
}
