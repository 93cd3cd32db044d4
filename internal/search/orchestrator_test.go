package search

import (
	"context"
	"errors"
	"testing"

	"securehr/internal/storage"
	"securehr/internal/vector"
)

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

type fakeIndex struct {
	hits      []vector.Hit
	err       error
	gotK      int
	gotFilter *vector.Filter
}

func (f *fakeIndex) Query(ctx context.Context, vec []float32, k int, filter *vector.Filter) ([]vector.Hit, error) {
	f.gotK = k
	f.gotFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

type fakeStore struct {
	refs map[string]*storage.CandidateRef
	err  error
}

func (f *fakeStore) GetCandidatesByIDs(ctx context.Context, ids []string) (map[string]*storage.CandidateRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.refs, nil
}

func hit(id string, score float64, skills ...string) vector.Hit {
	return vector.Hit{
		Key:   "key-" + id,
		Score: score,
		Metadata: vector.Metadata{
			CandidateID:     id,
			ExperienceLevel: "mid",
			Skills:          skills,
		},
	}
}

func ref(id string, status storage.CVStatus) *storage.CandidateRef {
	return &storage.CandidateRef{
		ID:        id,
		FirstName: "First-" + id,
		Email:     id + "@example.com",
		Location:  "Berlin",
		CVStatus:  status,
	}
}

func newTestOrchestrator(em *fakeEmbedder, ix *fakeIndex, st *fakeStore) *Orchestrator {
	return NewOrchestrator(em, ix, st, nil)
}

const query = "senior backend engineer with go experience"

func TestSearchRejectsBadQueries(t *testing.T) {
	o := newTestOrchestrator(&fakeEmbedder{vec: []float32{0.1}}, &fakeIndex{}, &fakeStore{})

	tests := []struct {
		name  string
		query string
		want  error
	}{
		{"empty", "", ErrEmptyQuery},
		{"whitespace only", "   \t\n ", ErrEmptyQuery},
		{"symbols only", "??? !!!", ErrEmptyQuery},
		{"too short", "go dev", ErrQueryTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Search(context.Background(), "rec-1", &Request{Requirements: tt.query})
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSearchRejectsInvalidFilters(t *testing.T) {
	o := newTestOrchestrator(&fakeEmbedder{vec: []float32{0.1}}, &fakeIndex{}, &fakeStore{})

	_, err := o.Search(context.Background(), "rec-1", &Request{
		Requirements: query,
		Filters:      &Filters{ExperienceLevel: "wizard"},
	})
	if !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("got %v, want ErrInvalidFilter", err)
	}

	_, err = o.Search(context.Background(), "rec-1", &Request{
		Requirements: query,
		Filters:      &Filters{MinScore: 1.5},
	})
	if !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("got %v, want ErrInvalidFilter", err)
	}
}

func TestSearchUnavailableUpstreams(t *testing.T) {
	t.Run("embedder down", func(t *testing.T) {
		o := newTestOrchestrator(&fakeEmbedder{err: errors.New("boom")}, &fakeIndex{}, &fakeStore{})
		_, err := o.Search(context.Background(), "rec-1", &Request{Requirements: query})
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("got %v, want ErrUnavailable", err)
		}
	})
	t.Run("index down", func(t *testing.T) {
		o := newTestOrchestrator(&fakeEmbedder{vec: []float32{0.1}}, &fakeIndex{err: errors.New("boom")}, &fakeStore{})
		_, err := o.Search(context.Background(), "rec-1", &Request{Requirements: query})
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("got %v, want ErrUnavailable", err)
		}
	})
}

func TestSearchLimitClamping(t *testing.T) {
	tests := []struct {
		limit int
		want  int
	}{
		{0, DefaultLimit},
		{-5, DefaultLimit},
		{7, 7},
		{MaxLimit, MaxLimit},
		{500, MaxLimit},
	}
	for _, tt := range tests {
		ix := &fakeIndex{}
		o := newTestOrchestrator(&fakeEmbedder{vec: []float32{0.1}}, ix, &fakeStore{})
		if _, err := o.Search(context.Background(), "rec-1", &Request{Requirements: query, Limit: tt.limit}); err != nil {
			t.Fatalf("Search(limit=%d): %v", tt.limit, err)
		}
		if ix.gotK != tt.want {
			t.Errorf("limit %d: index asked for %d, want %d", tt.limit, ix.gotK, tt.want)
		}
	}
}

func TestSearchJoinDropsDeadHits(t *testing.T) {
	ix := &fakeIndex{hits: []vector.Hit{
		hit("live", 0.9, "go"),
		hit("vanished", 0.95),    // no profile row anymore
		hit("tombstoned", 0.93),  // deletion in progress
		hit("reuploading", 0.91), // status regressed mid-flight
	}}
	st := &fakeStore{refs: map[string]*storage.CandidateRef{
		"live":        ref("live", storage.CVStatusCompleted),
		"tombstoned":  {ID: "tombstoned", CVStatus: storage.CVStatusCompleted, Deleted: true},
		"reuploading": ref("reuploading", storage.CVStatusProcessing),
	}}
	o := newTestOrchestrator(&fakeEmbedder{vec: []float32{0.1}}, ix, st)

	resp, err := o.Search(context.Background(), "rec-1", &Request{Requirements: query})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if resp.TotalResults != 1 {
		t.Fatalf("TotalResults = %d, want 1 (dead hits dropped, not errored)", resp.TotalResults)
	}
	got := resp.Results[0]
	if got.CandidateID != "live" {
		t.Errorf("survivor = %q, want live", got.CandidateID)
	}
	if got.FirstName != "First-live" || got.Email != "live@example.com" {
		t.Errorf("profile fields not joined: %+v", got)
	}
}

func TestSearchStoreFailureDegradesToEmpty(t *testing.T) {
	ix := &fakeIndex{hits: []vector.Hit{hit("a", 0.9)}}
	o := newTestOrchestrator(&fakeEmbedder{vec: []float32{0.1}}, ix, &fakeStore{err: errors.New("db down")})

	resp, err := o.Search(context.Background(), "rec-1", &Request{Requirements: query})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalResults != 0 || len(resp.Results) != 0 {
		t.Errorf("expected empty result set, got %+v", resp)
	}
}

func TestSearchOrderingAndTruncation(t *testing.T) {
	ix := &fakeIndex{hits: []vector.Hit{
		hit("b", 0.8),
		hit("a", 0.8), // tie with b, id breaks it
		hit("c", 0.95),
		hit("d", 0.5),
	}}
	st := &fakeStore{refs: map[string]*storage.CandidateRef{
		"a": ref("a", storage.CVStatusCompleted),
		"b": ref("b", storage.CVStatusCompleted),
		"c": ref("c", storage.CVStatusCompleted),
		"d": ref("d", storage.CVStatusCompleted),
	}}
	o := newTestOrchestrator(&fakeEmbedder{vec: []float32{0.1}}, ix, st)

	resp, err := o.Search(context.Background(), "rec-1", &Request{Requirements: query, Limit: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	want := []string{"c", "a", "b"}
	if len(resp.Results) != len(want) {
		t.Fatalf("len = %d, want %d", len(resp.Results), len(want))
	}
	for i, id := range want {
		if resp.Results[i].CandidateID != id {
			t.Errorf("results[%d] = %q, want %q", i, resp.Results[i].CandidateID, id)
		}
	}
}

func TestSearchFilters(t *testing.T) {
	t.Run("experience and skills reach the index", func(t *testing.T) {
		ix := &fakeIndex{}
		o := newTestOrchestrator(&fakeEmbedder{vec: []float32{0.1}}, ix, &fakeStore{})
		_, err := o.Search(context.Background(), "rec-1", &Request{
			Requirements: query,
			Filters:      &Filters{ExperienceLevel: "Senior", Skills: []string{" Go ", "docker"}},
		})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if ix.gotFilter == nil {
			t.Fatal("index filter not sent")
		}
		if ix.gotFilter.ExperienceLevel != "senior" {
			t.Errorf("experience filter = %q, want normalized senior", ix.gotFilter.ExperienceLevel)
		}
		if len(ix.gotFilter.Skills) != 2 || ix.gotFilter.Skills[0] != "go" {
			t.Errorf("skills filter = %v", ix.gotFilter.Skills)
		}
	})

	t.Run("location applied at the join", func(t *testing.T) {
		ix := &fakeIndex{hits: []vector.Hit{hit("berlin", 0.9), hit("munich", 0.9)}}
		munich := ref("munich", storage.CVStatusCompleted)
		munich.Location = "Munich"
		st := &fakeStore{refs: map[string]*storage.CandidateRef{
			"berlin": ref("berlin", storage.CVStatusCompleted),
			"munich": munich,
		}}
		o := newTestOrchestrator(&fakeEmbedder{vec: []float32{0.1}}, ix, st)

		resp, err := o.Search(context.Background(), "rec-1", &Request{
			Requirements: query,
			Filters:      &Filters{Location: "berl"},
		})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if resp.TotalResults != 1 || resp.Results[0].CandidateID != "berlin" {
			t.Errorf("results = %+v, want only berlin", resp.Results)
		}
		// Location must not leak into the index pre-filter.
		if ix.gotFilter != nil {
			t.Errorf("index filter = %+v, want nil for location-only filters", ix.gotFilter)
		}
	})

	t.Run("min score trims after the join", func(t *testing.T) {
		ix := &fakeIndex{hits: []vector.Hit{hit("hi", 0.9), hit("lo", 0.4)}}
		st := &fakeStore{refs: map[string]*storage.CandidateRef{
			"hi": ref("hi", storage.CVStatusCompleted),
			"lo": ref("lo", storage.CVStatusCompleted),
		}}
		o := newTestOrchestrator(&fakeEmbedder{vec: []float32{0.1}}, ix, st)

		resp, err := o.Search(context.Background(), "rec-1", &Request{
			Requirements: query,
			Filters:      &Filters{MinScore: 0.5},
		})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if resp.TotalResults != 1 || resp.Results[0].CandidateID != "hi" {
			t.Errorf("results = %+v, want only hi", resp.Results)
		}
	})
}

func TestSearchMatchedSkills(t *testing.T) {
	ix := &fakeIndex{hits: []vector.Hit{hit("a", 0.9, "go", "docker", "redis")}}
	st := &fakeStore{refs: map[string]*storage.CandidateRef{
		"a": ref("a", storage.CVStatusCompleted),
	}}
	o := newTestOrchestrator(&fakeEmbedder{vec: []float32{0.1}}, ix, st)

	// "go" is mentioned in the requirements text, "redis" only in the
	// explicit filter; "docker" in neither.
	resp, err := o.Search(context.Background(), "rec-1", &Request{
		Requirements: "backend engineer who knows go deeply",
		Filters:      &Filters{Skills: []string{"redis"}},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	got := resp.Results[0].MatchedSkills
	want := map[string]bool{"go": true, "redis": true}
	if len(got) != 2 {
		t.Fatalf("matched skills = %v, want go and redis", got)
	}
	for _, s := range got {
		if !want[s] {
			t.Errorf("unexpected matched skill %q", s)
		}
	}
}

func TestPreprocessQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  senior   go\tdeveloper  ", "senior go developer"},
		{"c++ & c# developer!", "c++ c# developer"},
		{"data scientist (nlp), 5 yrs", "data scientist (nlp), 5 yrs"},
		{"???", ""},
	}
	for _, tt := range tests {
		if got := preprocessQuery(tt.in); got != tt.want {
			t.Errorf("preprocessQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
