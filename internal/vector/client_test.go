package vector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", "cvs", nil), srv
}

func TestClientPut(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody struct {
		Items []struct {
			ID       string    `json:"id"`
			Vector   []float32 `json:"vector"`
			Contents string    `json:"contents"`
			Metadata Metadata  `json:"metadata"`
		} `json:"items"`
	}

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})

	md := Metadata{CandidateID: "cand-1", ExperienceLevel: "senior", Skills: []string{"go"}}
	err := c.Put(context.Background(), "key-1", []float32{0.1, 0.2}, "cv text", md)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if gotPath != "/v1/indexes/cvs/upsert" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if len(gotBody.Items) != 1 || gotBody.Items[0].ID != "key-1" {
		t.Fatalf("unexpected items: %+v", gotBody.Items)
	}
	if gotBody.Items[0].Contents != "cv text" {
		t.Errorf("contents = %q", gotBody.Items[0].Contents)
	}
	if gotBody.Items[0].Metadata.CandidateID != "cand-1" {
		t.Errorf("metadata candidate id = %q", gotBody.Items[0].Metadata.CandidateID)
	}
}

func TestClientPutUnavailable(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := c.Put(context.Background(), "key-1", []float32{0.1}, "", Metadata{})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}

func TestClientQueryScoreConversion(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"id": "a", "distance": 0.2, "metadata": map[string]string{"candidate_id": "cand-a"}},
				{"id": "b", "distance": 1.7}, // similarity would be negative
				{"id": "c", "distance": -0.1},
			},
		})
	})

	hits, err := c.Query(context.Background(), []float32{0.5}, 10, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("len(hits) = %d, want 3", len(hits))
	}

	if got := hits[0].Score; got < 0.799 || got > 0.801 {
		t.Errorf("hits[0].Score = %v, want 0.8", got)
	}
	if hits[0].Metadata.CandidateID != "cand-a" {
		t.Errorf("hits[0] metadata = %+v", hits[0].Metadata)
	}
	// Out-of-range distances clamp into [0,1].
	if hits[1].Score != 0 {
		t.Errorf("hits[1].Score = %v, want 0", hits[1].Score)
	}
	if hits[2].Score != 1 {
		t.Errorf("hits[2].Score = %v, want 1", hits[2].Score)
	}
}

func TestClientQuerySendsFilter(t *testing.T) {
	var gotBody map[string]json.RawMessage
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"results":[]}`))
	})

	_, err := c.Query(context.Background(), []float32{0.5}, 5, &Filter{ExperienceLevel: "mid"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if _, ok := gotBody["filter"]; !ok {
		t.Error("filter missing from request body")
	}

	gotBody = nil
	if _, err := c.Query(context.Background(), []float32{0.5}, 5, nil); err != nil {
		t.Fatalf("Query without filter: %v", err)
	}
	if _, ok := gotBody["filter"]; ok {
		t.Error("nil filter should be omitted from request body")
	}
}

func TestClientGet(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]interface{}{
				{"id": "key-1", "contents": "full cv text", "metadata": map[string]string{"candidate_id": "cand-1"}},
			},
		})
	})

	entry, err := c.Get(context.Background(), "key-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Contents != "full cv text" || entry.Metadata.CandidateID != "cand-1" {
		t.Errorf("entry = %+v", entry)
	}
}

func TestClientGetNotFound(t *testing.T) {
	t.Run("http 404", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "not found", http.StatusNotFound)
		})
		if _, err := c.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("empty items", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"items":[]}`))
		})
		if _, err := c.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})
}

func TestClientDeleteIdempotent(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	if err := c.Delete(context.Background(), "already-gone"); err != nil {
		t.Errorf("deleting a missing key should succeed, got %v", err)
	}
}

func TestClientListKeys(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		w.Write([]byte(`{"ids":["k1","k2"]}`))
	})

	keys, err := c.ListKeys(context.Background())
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "k1" || keys[1] != "k2" {
		t.Errorf("keys = %v", keys)
	}
}
