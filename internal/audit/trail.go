// Package audit emits the privacy audit trail as structured log events:
// who touched whose data, search activity, and authentication outcomes.
// Query text is never recorded, only a hash.
package audit

import (
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"
)

// Event types recorded in the trail.
const (
	EventRegistration = "user_registration"
	EventLogin        = "user_login"
	EventLogout       = "user_logout"
	EventAuthFailure  = "authentication_failure"
	EventCVUpload     = "cv_upload"
	EventDataAccess   = "data_access"
	EventSearchQuery  = "search_query"
	EventAccountWipe  = "profile_deletion"
)

// Trail writes audit events through a dedicated named logger, so the trail
// can be routed and retained separately from application logs. A nil *Trail
// drops events.
type Trail struct {
	logger *zap.Logger
}

func NewTrail(logger *zap.Logger) *Trail {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trail{logger: logger.Named("audit")}
}

func (t *Trail) event(eventType string, fields ...zap.Field) {
	if t == nil {
		return
	}
	t.logger.Info(eventType,
		append([]zap.Field{zap.String("event_type", eventType)}, fields...)...)
}

func (t *Trail) Registration(userID, role string) {
	t.event(EventRegistration,
		zap.String("user_id", userID),
		zap.String("role", role))
}

func (t *Trail) Login(userID, role string) {
	t.event(EventLogin,
		zap.String("user_id", userID),
		zap.String("role", role))
}

// AuthFailure records a failed credential check. The email is hashed: the
// trail must not become a directory of attempted identities.
func (t *Trail) AuthFailure(email string) {
	t.event(EventAuthFailure, zap.String("email_hash", hashTag(email)))
}

func (t *Trail) Logout(userID string) {
	t.event(EventLogout, zap.String("user_id", userID))
}

func (t *Trail) CVUpload(candidateID, filename string) {
	t.event(EventCVUpload,
		zap.String("user_id", candidateID),
		zap.String("filename", filename))
}

// DataAccess records an attempt to read another user's data, granted or not.
func (t *Trail) DataAccess(actorID, resourceID, dataType string, granted bool) {
	t.event(EventDataAccess,
		zap.String("user_id", actorID),
		zap.String("resource_id", resourceID),
		zap.String("resource_type", dataType),
		zap.Bool("granted", granted))
}

// SearchQuery records search activity without the query text.
func (t *Trail) SearchQuery(recruiterID, query string, results int) {
	t.event(EventSearchQuery,
		zap.String("user_id", recruiterID),
		zap.String("query_hash", hashTag(query)),
		zap.Int("query_length", len(query)),
		zap.Int("results_count", results))
}

func (t *Trail) AccountDeletion(userID string) {
	t.event(EventAccountWipe, zap.String("user_id", userID))
}

// hashTag is a short stable digest for correlating events without storing
// the value itself.
func hashTag(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}
