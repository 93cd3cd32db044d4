package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"securehr/internal/cv"
	"securehr/internal/ingest"
	"securehr/internal/storage"
	"securehr/internal/vector"
)

type cvStatusResponse struct {
	CandidateID string     `json:"candidate_id"`
	Status      string     `json:"cv_processing_status"`
	Filename    string     `json:"cv_filename,omitempty"`
	UploadedAt  *time.Time `json:"cv_uploaded_at,omitempty"`
}

type cvDetailResponse struct {
	CandidateID     string `json:"candidate_id"`
	Contents        string `json:"contents"`
	Filename        string `json:"filename,omitempty"`
	ExperienceLevel string `json:"experience_level,omitempty"`
	TextLength      int    `json:"text_length"`
	ProcessedAt     string `json:"processed_at,omitempty"`
}

// CVUploadHandler accepts a CV file and queues it for processing
// @Summary Upload CV
// @Description Upload a CV file (PDF, DOC or DOCX, max 10MB). Processing is asynchronous; poll /cv/status for the outcome.
// @Tags cv
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CV file"
// @Success 202 {object} cvStatusResponse
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /cv/upload [post]
func (a *API) CVUploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	claims := requestClaims(r)

	r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(a.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid (max 10MB)")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	mimeType := cv.MIMEForFilename(header.Filename)
	if mimeType == "" {
		writeError(w, http.StatusBadRequest, "invalid file type (supported: PDF, DOC, DOCX)")
		return
	}

	// Best-effort early rejection of a duplicate upload; the status guard
	// in the worker is the authoritative check.
	if user, err := a.db.GetUserByID(r.Context(), claims.Subject); err == nil {
		if user.CVStatus == storage.CVStatusPending || user.CVStatus == storage.CVStatusProcessing {
			writeError(w, http.StatusConflict, "an upload is already being processed")
			return
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if int64(len(data)) > a.cfg.MaxUploadBytes {
		writeError(w, http.StatusBadRequest, "file too large (max 10MB)")
		return
	}

	if !a.queueIngestJob(claims.Subject, data, mimeType, header.Filename) {
		writeError(w, http.StatusServiceUnavailable, "upload queue full, try again later")
		return
	}

	a.trail.CVUpload(claims.Subject, header.Filename)

	// Accepted for processing, not processed. The caller polls /cv/status.
	writeJSON(w, http.StatusAccepted, cvStatusResponse{
		CandidateID: claims.Subject,
		Status:      string(storage.CVStatusPending),
		Filename:    header.Filename,
	})
}

// CVStatusHandler reports the caller's CV processing state
// @Summary CV processing status
// @Tags cv
// @Produce json
// @Success 200 {object} cvStatusResponse
// @Failure 404 {object} map[string]string
// @Router /cv/status [get]
func (a *API) CVStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	claims := requestClaims(r)

	user, err := a.db.GetUserByID(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	writeJSON(w, http.StatusOK, cvStatusResponse{
		CandidateID: user.ID,
		Status:      string(user.CVStatus),
		Filename:    user.CVFilename,
		UploadedAt:  user.CVUploadedAt,
	})
}

// CVDetailHandler returns the decrypted CV text for one candidate
// @Summary Candidate CV detail
// @Description Fetch the stored CV text for a single candidate. Only completed CVs are retrievable.
// @Tags cv
// @Produce json
// @Param candidate_id path string true "Candidate ID"
// @Success 200 {object} cvDetailResponse
// @Failure 404 {object} map[string]string
// @Router /cv/{candidate_id}/text [get]
func (a *API) CVDetailHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	candidateID := r.PathValue("candidate_id")
	if candidateID == "" {
		writeError(w, http.StatusBadRequest, "candidate_id is required")
		return
	}

	claims := requestClaims(r)

	user, err := a.db.GetUserByID(r.Context(), candidateID)
	if err != nil || user.Role != storage.RoleCandidate || user.CVStatus != storage.CVStatusCompleted {
		a.trail.DataAccess(claims.Subject, candidateID, "cv_text", false)
		writeError(w, http.StatusNotFound, "no CV available for this candidate")
		return
	}

	entry, err := a.index.Get(r.Context(), ingest.VectorKey(candidateID))
	if err != nil {
		if errors.Is(err, vector.ErrNotFound) {
			// Profile says completed but the index disagrees; the sweep
			// will repair this, callers just see no CV.
			a.logger.Warn("completed CV missing from index", zap.String("candidate_id", candidateID))
			a.trail.DataAccess(claims.Subject, candidateID, "cv_text", false)
			writeError(w, http.StatusNotFound, "no CV available for this candidate")
			return
		}
		a.logger.Error("vector index get failed", zap.String("candidate_id", candidateID), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "CV store temporarily unavailable")
		return
	}

	a.trail.DataAccess(claims.Subject, candidateID, "cv_text", true)
	writeJSON(w, http.StatusOK, cvDetailResponse{
		CandidateID:     candidateID,
		Contents:        entry.Contents,
		Filename:        entry.Metadata.Filename,
		ExperienceLevel: entry.Metadata.ExperienceLevel,
		TextLength:      entry.Metadata.TextLength,
		ProcessedAt:     entry.Metadata.ProcessedAt,
	})
}
