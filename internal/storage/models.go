package storage

import "time"

type Role string

const (
	RoleCandidate Role = "candidate"
	RoleRecruiter Role = "recruiter"
)

// CVStatus is the candidate's CV processing state. Transitions are guarded
// in SQL so two pipeline runs cannot interleave:
//
//	none/failed/completed -> pending -> processing -> completed | failed
type CVStatus string

const (
	CVStatusNone       CVStatus = "none"
	CVStatusPending    CVStatus = "pending"
	CVStatusProcessing CVStatus = "processing"
	CVStatusCompleted  CVStatus = "completed"
	CVStatusFailed     CVStatus = "failed"
)

// User is a candidate or recruiter account. Candidate CV fields are kept on
// the same row so a status transition and the vector key commit are one
// relational write.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	IsActive     bool       `json:"is_active"`
	DeletedAt    *time.Time `json:"-"`

	// Candidate fields
	FirstName         string     `json:"first_name,omitempty"`
	LastName          string     `json:"last_name,omitempty"`
	Location          string     `json:"location,omitempty"`
	CVStatus          CVStatus   `json:"cv_processing_status,omitempty"`
	CVFilename        string     `json:"cv_filename,omitempty"`
	CVUploadedAt      *time.Time `json:"cv_uploaded_at,omitempty"`
	CVStatusChangedAt *time.Time `json:"-"`
	// VectorKey is set iff a vector is currently committed for this
	// candidate. After a failed re-upload it still points at the previous
	// committed entry.
	VectorKey string `json:"-"`

	// Recruiter fields
	CompanyName string `json:"company_name,omitempty"`
	JobTitle    string `json:"job_title,omitempty"`
}

// CandidateRef is the slim projection the search join resolves hits against.
type CandidateRef struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Location  string
	CVStatus  CVStatus
	Deleted   bool
}

// VectorRef pairs a completed candidate with its committed vector key, for
// the reconciliation sweep.
type VectorRef struct {
	CandidateID string
	VectorKey   string
}

// SavedSearch is a recruiter's stored query. The filter payload is an opaque
// blob here; validation happens in the search package when it is run.
type SavedSearch struct {
	ID           string     `json:"id"`
	RecruiterID  string     `json:"-"`
	Name         string     `json:"name"`
	Requirements string     `json:"requirements"`
	Filters      []byte     `json:"filters,omitempty"`
	ResultLimit  int        `json:"limit,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	UseCount     int        `json:"use_count"`
}
