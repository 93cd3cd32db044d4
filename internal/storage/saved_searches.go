package storage

import (
	"context"
	"database/sql"
	"errors"
)

// Saved searches are a simple keyed blob store for recruiters; the filter
// payload round-trips opaquely.

func (db *DB) CreateSavedSearch(ctx context.Context, s *SavedSearch) error {
	query := `INSERT INTO saved_searches (id, recruiter_id, name, requirements, filters, result_limit)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING created_at`
	var filters interface{}
	if len(s.Filters) > 0 {
		filters = s.Filters
	}
	return db.connection.QueryRowContext(ctx, query,
		s.ID, s.RecruiterID, s.Name, s.Requirements, filters, s.ResultLimit,
	).Scan(&s.CreatedAt)
}

func (db *DB) GetSavedSearch(ctx context.Context, recruiterID, id string) (*SavedSearch, error) {
	query := `SELECT id, recruiter_id, name, requirements, filters, result_limit, created_at, last_used_at, use_count
	          FROM saved_searches WHERE id = $1 AND recruiter_id = $2`
	return scanSavedSearch(db.connection.QueryRowContext(ctx, query, id, recruiterID))
}

func (db *DB) ListSavedSearches(ctx context.Context, recruiterID string) ([]*SavedSearch, error) {
	query := `SELECT id, recruiter_id, name, requirements, filters, result_limit, created_at, last_used_at, use_count
	          FROM saved_searches WHERE recruiter_id = $1 ORDER BY created_at DESC`
	rows, err := db.connection.QueryContext(ctx, query, recruiterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SavedSearch
	for rows.Next() {
		s, err := scanSavedSearch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *DB) DeleteSavedSearch(ctx context.Context, recruiterID, id string) error {
	res, err := db.connection.ExecContext(ctx,
		`DELETE FROM saved_searches WHERE id = $1 AND recruiter_id = $2`, id, recruiterID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// TouchSavedSearch bumps usage stats when a saved search is executed.
func (db *DB) TouchSavedSearch(ctx context.Context, recruiterID, id string) error {
	_, err := db.connection.ExecContext(ctx,
		`UPDATE saved_searches SET last_used_at = NOW(), use_count = use_count + 1
		 WHERE id = $1 AND recruiter_id = $2`, id, recruiterID)
	return err
}

func scanSavedSearch(row interface{ Scan(...interface{}) error }) (*SavedSearch, error) {
	s := &SavedSearch{}
	var filters []byte
	err := row.Scan(&s.ID, &s.RecruiterID, &s.Name, &s.Requirements, &filters,
		&s.ResultLimit, &s.CreatedAt, &s.LastUsedAt, &s.UseCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.Filters = filters
	return s, nil
}
