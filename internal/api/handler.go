// Package api implements the hosted ISH-LUNC REST API.
// It provides run and read endpoints backed by Postgres and blob storage.
package api

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/ishlunc/ishlunc/internal/artifact"
	"github.com/ishlunc/ishlunc/internal/store"
	"github.com/ishlunc/ishlunc/pkg/pipeline"
)

// Handler is the top-level API handler for the hosted ISH-LUNC service.
type Handler struct {
	db           *sql.DB
	storeSvc     *store.Service
	storage      artifact.StorageClient
	orchestrator *pipeline.Orchestrator
}

// NewHandler creates a new API handler.
func NewHandler(db *sql.DB, storeSvc *store.Service, storage artifact.StorageClient, orch *pipeline.Orchestrator) *Handler {
	if orch == nil {
		orch = pipeline.New()
	}
	return &Handler{
		db:           db,
		storeSvc:     storeSvc,
		storage:      storage,
		orchestrator: orch,
	}
}

// RegisterRoutes registers all API routes on the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Write endpoints
	mux.HandleFunc("POST /api/v1/runs", h.handleSubmitRun)

	// Read endpoints
	mux.HandleFunc("GET /api/v1/scenarios", h.handleListScenarios)
	mux.HandleFunc("GET /api/v1/scenarios/{name}/runs", h.handleListRuns)
	mux.HandleFunc("GET /api/v1/runs/{runID}", h.handleGetRun)
	mux.HandleFunc("GET /api/v1/runs/{runID}/scores", h.handleGetScores)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
