package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"securehr/internal/storage"
	"securehr/internal/vector"
)

// fakeStore mimics the relational store's guarded status transitions in
// memory.
type fakeStore struct {
	mu    sync.Mutex
	users map[string]*storage.User

	stuck []string // returned by ListStuckCVUploads

	beginErr      error
	processingErr error
	commitErr     error
	deleteErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*storage.User)}
}

func (s *fakeStore) addCandidate(id string, status storage.CVStatus) *storage.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &storage.User{
		ID:       id,
		Role:     storage.RoleCandidate,
		IsActive: true,
		CVStatus: status,
	}
	s.users[id] = u
	return u
}

func (s *fakeStore) user(id string) *storage.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

func (s *fakeStore) setStatus(ctx context.Context, id string, from []storage.CVStatus, to storage.CVStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return storage.ErrNotFound
	}
	for _, f := range from {
		if u.CVStatus == f {
			u.CVStatus = to
			now := time.Now()
			u.CVStatusChangedAt = &now
			return nil
		}
	}
	return storage.ErrStatusConflict
}

func (s *fakeStore) BeginCVUpload(ctx context.Context, id string) error {
	if s.beginErr != nil {
		return s.beginErr
	}
	return s.setStatus(ctx, id,
		[]storage.CVStatus{storage.CVStatusNone, storage.CVStatusFailed, storage.CVStatusCompleted},
		storage.CVStatusPending)
}

func (s *fakeStore) MarkCVProcessing(ctx context.Context, id string) error {
	if s.processingErr != nil {
		return s.processingErr
	}
	return s.setStatus(ctx, id, []storage.CVStatus{storage.CVStatusPending}, storage.CVStatusProcessing)
}

func (s *fakeStore) CommitCVUpload(ctx context.Context, id, vectorKey, filename string, uploadedAt time.Time) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	if err := s.setStatus(ctx, id, []storage.CVStatus{storage.CVStatusProcessing}, storage.CVStatusCompleted); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	u.VectorKey = vectorKey
	u.CVFilename = filename
	u.CVUploadedAt = &uploadedAt
	return nil
}

func (s *fakeStore) MarkCVFailed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil
	}
	u.CVStatus = storage.CVStatusFailed
	return nil
}

func (s *fakeStore) ClearVectorKey(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.VectorKey = ""
	}
	return nil
}

func (s *fakeStore) Tombstone(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return storage.ErrNotFound
	}
	now := time.Now()
	u.DeletedAt = &now
	u.IsActive = false
	return nil
}

func (s *fakeStore) DeleteUserRow(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *fakeStore) GetUserByID(ctx context.Context, id string) (*storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

func (s *fakeStore) ListStuckCVUploads(ctx context.Context, olderThan time.Duration) ([]string, error) {
	return s.stuck, nil
}

func (s *fakeStore) FailStuckCVUpload(ctx context.Context, id string, olderThan time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return false, nil
	}
	if u.CVStatus != storage.CVStatusPending && u.CVStatus != storage.CVStatusProcessing {
		return false, nil
	}
	if u.CVStatusChangedAt != nil && time.Since(*u.CVStatusChangedAt) < olderThan {
		return false, nil
	}
	u.CVStatus = storage.CVStatusFailed
	now := time.Now()
	u.CVStatusChangedAt = &now
	return true, nil
}

func (s *fakeStore) ListTombstoned(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, u := range s.users {
		if u.DeletedAt != nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *fakeStore) ListCompletedCVs(ctx context.Context) ([]storage.VectorRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var refs []storage.VectorRef
	for id, u := range s.users {
		if u.DeletedAt == nil && u.CVStatus == storage.CVStatusCompleted {
			refs = append(refs, storage.VectorRef{CandidateID: id, VectorKey: u.VectorKey})
		}
	}
	return refs, nil
}

func (s *fakeStore) ListCandidateIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, u := range s.users {
		if u.Role == storage.RoleCandidate {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// fakeIndex is an in-memory stand-in for the vector index service.
type fakeIndex struct {
	mu      sync.Mutex
	entries map[string]*vector.Entry

	putErr     error
	deleteErr  error
	getErr     error
	getErrOnce error // returned by the next Get only, then cleared
	puts       int
	deletes    []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{entries: make(map[string]*vector.Entry)}
}

func (f *fakeIndex) Put(ctx context.Context, key string, vec []float32, contents string, md vector.Metadata) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	f.entries[key] = &vector.Entry{Key: key, Contents: contents, Metadata: md}
	return nil
}

func (f *fakeIndex) Get(ctx context.Context, key string) (*vector.Entry, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getErrOnce; err != nil {
		f.getErrOnce = nil
		return nil, err
	}
	e, ok := f.entries[key]
	if !ok {
		return nil, vector.ErrNotFound
	}
	return e, nil
}

func (f *fakeIndex) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, key)
	delete(f.entries, key)
	return nil
}

func (f *fakeIndex) ListKeys(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.entries {
		keys = append(keys, k)
	}
	return keys, nil
}

func (f *fakeIndex) entry(key string) *vector.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[key]
}

// fakeExtractor skips docconv and returns canned text.
type fakeExtractor struct {
	text        string
	validateErr error
	extractErr  error
}

func (f *fakeExtractor) Validate(mimeType string, size int64) error { return f.validateErr }

func (f *fakeExtractor) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	if f.extractErr != nil {
		return "", f.extractErr
	}
	return f.text, nil
}

// fakeEmbedder returns a fixed vector.
type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

var errBoom = errors.New("boom")
