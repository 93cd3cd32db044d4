package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"securehr/internal/auth"
	"securehr/internal/storage"
)

const minPasswordLen = 8

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`

	// Candidate fields
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Location  string `json:"location,omitempty"`

	// Recruiter fields
	CompanyName string `json:"company_name,omitempty"`
	JobTitle    string `json:"job_title,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
}

// RegisterCandidateHandler creates a candidate account
// @Summary Register candidate
// @Tags auth
// @Accept json
// @Produce json
// @Param body body registerRequest true "Account details"
// @Success 201 {object} storage.User
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /auth/register/candidate [post]
func (a *API) RegisterCandidateHandler(w http.ResponseWriter, r *http.Request) {
	a.register(w, r, storage.RoleCandidate)
}

// RegisterRecruiterHandler creates a recruiter account
// @Summary Register recruiter
// @Tags auth
// @Accept json
// @Produce json
// @Param body body registerRequest true "Account details"
// @Success 201 {object} storage.User
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /auth/register/recruiter [post]
func (a *API) RegisterRecruiterHandler(w http.ResponseWriter, r *http.Request) {
	a.register(w, r, storage.RoleRecruiter)
}

func (a *API) register(w http.ResponseWriter, r *http.Request, role storage.Role) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(req.Password) < minPasswordLen {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user := &storage.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Location:     req.Location,
		CVStatus:     storage.CVStatusNone,
		CompanyName:  req.CompanyName,
		JobTitle:     req.JobTitle,
	}

	if err := a.db.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		a.logger.Error("create user failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	a.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)))
	a.trail.Registration(user.ID, string(user.Role))
	writeJSON(w, http.StatusCreated, user)
}

// LoginHandler exchanges credentials for a bearer token
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param body body loginRequest true "Credentials"
// @Success 200 {object} tokenResponse
// @Failure 401 {object} map[string]string
// @Router /auth/login [post]
func (a *API) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, err := a.db.GetUserByEmail(r.Context(), req.Email)
	if err != nil || !user.IsActive || !auth.CheckPassword(user.PasswordHash, req.Password) {
		a.trail.AuthFailure(req.Email)
		// Same response for unknown email and wrong password.
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := a.tokens.Issue(user.ID, string(user.Role))
	if err != nil {
		a.logger.Error("token issue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	if err := a.db.RecordLogin(r.Context(), user.ID); err != nil {
		a.logger.Warn("record login failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	a.trail.Login(user.ID, string(user.Role))

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		UserID:      user.ID,
		Role:        string(user.Role),
	})
}

// LogoutHandler revokes the caller's token
// @Summary Logout
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/logout [post]
func (a *API) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	claims := requestClaims(r)
	if err := a.tokens.Revoke(r.Context(), claims); err != nil {
		a.logger.Error("token revoke failed", zap.String("user_id", claims.Subject), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	a.trail.Logout(claims.Subject)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func queryParam(r *http.Request, key string) string {
	v, _ := url.QueryUnescape(r.URL.Query().Get(key))
	return v
}
