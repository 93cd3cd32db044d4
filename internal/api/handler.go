package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"securehr/internal/audit"
	"securehr/internal/auth"
	"securehr/internal/config"
	"securehr/internal/cv"
	"securehr/internal/embedding"
	"securehr/internal/ingest"
	"securehr/internal/search"
	"securehr/internal/storage"
	"securehr/internal/vector"
)

type API struct {
	cfg        *config.Config
	db         *storage.DB
	index      *vector.Client
	sessions   *auth.SessionStore
	tokens     *auth.Manager
	pipeline   *ingest.Pipeline
	guard      *ingest.Guard
	reconciler *ingest.Reconciler
	searcher   *search.Orchestrator
	trail      *audit.Trail
	logger     *zap.Logger

	ingestQueue chan ingestJob // Background queue for async CV ingestion
}

func NewAPI(cfg *config.Config, db *storage.DB, logger *zap.Logger) *API {
	index := vector.NewClient(cfg.VectorIndexURL, cfg.VectorIndexAPIKey, cfg.VectorIndexName, logger)
	embedder := embedding.NewService(cfg.EmbeddingURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, logger)
	extractor := cv.NewExtractor(logger)

	guard := ingest.NewGuard(db, index, logger)
	pipeline := ingest.NewPipeline(db, guard, extractor, embedder, logger)
	reconciler := ingest.NewReconciler(db, index, guard, cfg.ReconcileStuckAfter, logger)
	searcher := search.NewOrchestrator(embedder, index, db, logger)

	// Session store is optional: without Redis, logout is a client-side
	// token drop and tokens stay valid until expiry.
	var sessions *auth.SessionStore
	var revoked auth.RevocationStore
	if cfg.RedisAddr != "" {
		sessions = auth.NewSessionStore(cfg.RedisAddr)
		revoked = sessions
	}
	tokens := auth.NewManager(cfg.JWTSecret, cfg.AccessTokenTTL, revoked)

	api := &API{
		cfg:         cfg,
		db:          db,
		index:       index,
		sessions:    sessions,
		tokens:      tokens,
		pipeline:    pipeline,
		guard:       guard,
		reconciler:  reconciler,
		searcher:    searcher,
		trail:       audit.NewTrail(logger),
		logger:      logger,
		ingestQueue: make(chan ingestJob, 50), // Buffer for 50 CV ingestion jobs
	}

	api.StartBackgroundWorkers()

	return api
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
