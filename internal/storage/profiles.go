package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const userColumns = `id, email, password_hash, role, created_at, last_login_at, is_active, deleted_at,
	first_name, last_name, location, cv_processing_status, cv_filename, cv_uploaded_at,
	cv_status_changed_at, vector_key, company_name, job_title`

func scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.LastLoginAt, &u.IsActive, &u.DeletedAt,
		&u.FirstName, &u.LastName, &u.Location, &u.CVStatus, &u.CVFilename, &u.CVUploadedAt,
		&u.CVStatusChangedAt, &u.VectorKey, &u.CompanyName, &u.JobTitle,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (db *DB) CreateUser(ctx context.Context, u *User) error {
	query := `INSERT INTO users (id, email, password_hash, role, first_name, last_name, location,
	              cv_processing_status, company_name, job_title)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING created_at`
	status := u.CVStatus
	if status == "" {
		status = CVStatusNone
	}
	err := db.connection.QueryRowContext(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.Role, u.FirstName, u.LastName, u.Location,
		status, u.CompanyName, u.JobTitle,
	).Scan(&u.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrEmailTaken
	}
	return err
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND deleted_at IS NULL`
	return scanUser(db.connection.QueryRowContext(ctx, query, email))
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`
	return scanUser(db.connection.QueryRowContext(ctx, query, id))
}

func (db *DB) RecordLogin(ctx context.Context, id string) error {
	_, err := db.connection.ExecContext(ctx,
		`UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	return err
}

func (db *DB) UpdateCandidateProfile(ctx context.Context, id, firstName, lastName, location string) error {
	res, err := db.connection.ExecContext(ctx,
		`UPDATE users SET first_name = $2, last_name = $3, location = $4
		 WHERE id = $1 AND role = 'candidate' AND deleted_at IS NULL`,
		id, firstName, lastName, location)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// setCVStatus flips cv_processing_status to the target state, guarded by the
// set of states the transition is legal from. Zero rows updated means either
// the row is gone or another run holds the slot.
func (db *DB) setCVStatus(ctx context.Context, id string, from []CVStatus, to CVStatus) error {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	res, err := db.connection.ExecContext(ctx,
		`UPDATE users SET cv_processing_status = $2, cv_status_changed_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL AND cv_processing_status = ANY($3)`,
		id, to, pq.Array(allowed))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := db.GetUserByID(ctx, id); err != nil {
			return err
		}
		return ErrStatusConflict
	}
	return nil
}

// BeginCVUpload records upload intent (-> pending). Legal from terminal
// states only; a pending/processing row means another run is in flight.
func (db *DB) BeginCVUpload(ctx context.Context, id string) error {
	return db.setCVStatus(ctx, id,
		[]CVStatus{CVStatusNone, CVStatusFailed, CVStatusCompleted}, CVStatusPending)
}

func (db *DB) MarkCVProcessing(ctx context.Context, id string) error {
	return db.setCVStatus(ctx, id, []CVStatus{CVStatusPending}, CVStatusProcessing)
}

// CommitCVUpload flips the profile to completed in the same write that
// records the vector key. Only legal from processing, so a run whose status
// was swept away cannot commit.
func (db *DB) CommitCVUpload(ctx context.Context, id, vectorKey, filename string, uploadedAt time.Time) error {
	res, err := db.connection.ExecContext(ctx,
		`UPDATE users SET cv_processing_status = $2, cv_status_changed_at = NOW(),
		        vector_key = $3, cv_filename = $4, cv_uploaded_at = $5
		 WHERE id = $1 AND deleted_at IS NULL AND cv_processing_status = 'processing'`,
		id, CVStatusCompleted, vectorKey, filename, uploadedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := db.GetUserByID(ctx, id); err != nil {
			return err
		}
		return ErrStatusConflict
	}
	return nil
}

// MarkCVFailed is the catch-all failure transition. vector_key is left
// untouched: after a failed re-upload it still names the previous committed
// entry, which remains valid in the index.
func (db *DB) MarkCVFailed(ctx context.Context, id string) error {
	_, err := db.connection.ExecContext(ctx,
		`UPDATE users SET cv_processing_status = $2, cv_status_changed_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id, CVStatusFailed)
	return err
}

// FailStuckCVUpload fails a non-terminal run only if it is still older than
// the cutoff. A run that committed (or restarted) after the caller listed it
// no longer matches the predicate and is left alone.
func (db *DB) FailStuckCVUpload(ctx context.Context, id string, olderThan time.Duration) (bool, error) {
	res, err := db.connection.ExecContext(ctx,
		`UPDATE users SET cv_processing_status = 'failed', cv_status_changed_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL
		   AND cv_processing_status IN ('pending', 'processing')
		   AND cv_status_changed_at < NOW() - $2::interval`,
		id, fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearVectorKey detaches a candidate from a vector the sweep found missing.
func (db *DB) ClearVectorKey(ctx context.Context, id string) error {
	_, err := db.connection.ExecContext(ctx,
		`UPDATE users SET vector_key = '' WHERE id = $1`, id)
	return err
}

// Tombstone marks a user deleted without removing the row. The row survives
// until the vector is confirmed gone, so a crashed deletion stays
// recoverable.
func (db *DB) Tombstone(ctx context.Context, id string) error {
	res, err := db.connection.ExecContext(ctx,
		`UPDATE users SET deleted_at = NOW(), is_active = FALSE
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (db *DB) DeleteUserRow(ctx context.Context, id string) error {
	_, err := db.connection.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

func (db *DB) ListTombstoned(ctx context.Context) ([]string, error) {
	return db.listIDs(ctx, `SELECT id FROM users WHERE deleted_at IS NOT NULL`)
}

// ListStuckCVUploads returns candidates whose pipeline run recorded intent
// but never reached a terminal state within the cutoff.
func (db *DB) ListStuckCVUploads(ctx context.Context, olderThan time.Duration) ([]string, error) {
	return db.listIDs(ctx,
		`SELECT id FROM users
		 WHERE deleted_at IS NULL
		   AND cv_processing_status IN ('pending', 'processing')
		   AND cv_status_changed_at < NOW() - $1::interval`,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
}

func (db *DB) ListCompletedCVs(ctx context.Context) ([]VectorRef, error) {
	rows, err := db.connection.QueryContext(ctx,
		`SELECT id, vector_key FROM users
		 WHERE deleted_at IS NULL AND cv_processing_status = 'completed'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []VectorRef
	for rows.Next() {
		var r VectorRef
		if err := rows.Scan(&r.CandidateID, &r.VectorKey); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

func (db *DB) ListCandidateIDs(ctx context.Context) ([]string, error) {
	return db.listIDs(ctx, `SELECT id FROM users WHERE role = 'candidate'`)
}

// GetCandidatesByIDs resolves search hits against live relational state.
// Tombstoned rows are included (flagged) so the caller can drop them.
func (db *DB) GetCandidatesByIDs(ctx context.Context, ids []string) (map[string]*CandidateRef, error) {
	if len(ids) == 0 {
		return map[string]*CandidateRef{}, nil
	}
	rows, err := db.connection.QueryContext(ctx,
		`SELECT id, first_name, last_name, email, location, cv_processing_status, deleted_at IS NOT NULL
		 FROM users WHERE id = ANY($1) AND role = 'candidate'`,
		pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make(map[string]*CandidateRef, len(ids))
	for rows.Next() {
		r := &CandidateRef{}
		if err := rows.Scan(&r.ID, &r.FirstName, &r.LastName, &r.Email, &r.Location, &r.CVStatus, &r.Deleted); err != nil {
			return nil, err
		}
		refs[r.ID] = r
	}
	return refs, rows.Err()
}

func (db *DB) listIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := db.connection.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
