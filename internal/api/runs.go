package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ishlunc/ishlunc/internal/store"
	"github.com/ishlunc/ishlunc/pkg/aggregate"
	"github.com/ishlunc/ishlunc/pkg/hydro"
	"github.com/ishlunc/ishlunc/pkg/pipeline"
)

// runRequest asks the service to execute one pipeline run over layers already
// uploaded to artifact storage.
type runRequest struct {
	Scenario      string   `json:"scenario"`
	SourceLayer   string   `json:"source_layer"`
	TargetLayer   string   `json:"target_layer"`
	EPSG          int      `json:"epsg"`
	SourceIDField string   `json:"source_id_field"`
	TargetIDField string   `json:"target_id_field"`
	Statistics    []string `json:"statistics"`
	TargetFields  []string `json:"target_fields"`
	Renormalize   bool     `json:"renormalize_weights"`
	Workers       int      `json:"overlay_workers"`
}

type runResponse struct {
	RunID      string            `json:"run_id"`
	Scenario   string            `json:"scenario"`
	Stats      pipeline.RunStats `json:"stats"`
	Statistics []string          `json:"statistics"`
	Fields     []string          `json:"fields"`
	CreatedAt  string            `json:"created_at,omitempty"`
}

func (h *Handler) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Scenario == "" || req.SourceLayer == "" || req.TargetLayer == "" {
		writeError(w, http.StatusBadRequest, "scenario, source_layer and target_layer are required")
		return
	}

	cfg, err := buildConfig(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	source, err := h.loadPartition(ctx, req.Scenario, req.SourceLayer, req.EPSG, req.SourceIDField)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	target, err := h.loadPartition(ctx, req.Scenario, req.TargetLayer, req.EPSG, req.TargetIDField)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	orch := h.orchestrator
	if req.Workers > 1 {
		o := *orch
		weighter := *o.Weighter
		weighter.Workers = req.Workers
		o.Weighter = &weighter
		orch = &o
	}

	result, err := orch.Run(ctx, pipeline.Scenario{
		Name:   req.Scenario,
		Source: source,
		Target: target,
		Config: cfg,
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	sc, err := h.storeSvc.UpsertScenario(ctx, req.Scenario, req.EPSG)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "persisting scenario failed")
		return
	}
	if err := h.storeSvc.SaveRun(ctx, sc.ID, result); err != nil {
		writeError(w, http.StatusInternalServerError, "persisting run failed")
		return
	}

	if blob, err := json.Marshal(result); err == nil {
		_ = h.storage.PutResult(ctx, req.Scenario, result.RunID, blob)
	}

	writeJSON(w, http.StatusCreated, runResponse{
		RunID:      result.RunID,
		Scenario:   result.Scenario,
		Stats:      result.Stats,
		Statistics: statisticNames(result.Statistics),
		Fields:     result.Fields,
	})
}

func buildConfig(req runRequest) (aggregate.Config, error) {
	statArgs := req.Statistics
	if len(statArgs) == 0 {
		statArgs = []string{"mean"}
	}
	stats, err := aggregate.ParseStatistics(statArgs)
	if err != nil {
		return aggregate.Config{}, err
	}
	fields, err := pipeline.ParseTargetFields(req.TargetFields)
	if err != nil {
		return aggregate.Config{}, err
	}
	return aggregate.Config{
		Statistics:         stats,
		TargetFields:       fields,
		RenormalizeWeights: req.Renormalize,
	}, nil
}

// loadPartition fetches a stored layer and parses it into a partition.
func (h *Handler) loadPartition(ctx context.Context, scenario, layer string, epsg int, idField string) (*hydro.Partition, error) {
	name := layerKey(layer)
	data, err := h.storage.GetPartition(ctx, scenario, name)
	if err != nil {
		return nil, fmt.Errorf("layer %s not found for scenario %s", name, scenario)
	}
	p, err := hydro.ParsePartition(data, hydro.LoadOptions{Name: name, EPSG: epsg, IDField: idField})
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", name, err)
	}
	return p, nil
}

func statisticNames(stats []aggregate.Statistic) []string {
	out := make([]string, len(stats))
	for i, s := range stats {
		out[i] = string(s)
	}
	return out
}

func (h *Handler) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := h.storeSvc.ListScenarios(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing scenarios failed")
		return
	}

	type scenarioResponse struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		EPSG      int    `json:"epsg"`
		CreatedAt string `json:"created_at"`
	}
	result := make([]scenarioResponse, 0, len(scenarios))
	for _, sc := range scenarios {
		result = append(result, scenarioResponse{
			ID:        sc.ID,
			Name:      sc.Name,
			EPSG:      sc.EPSG,
			CreatedAt: sc.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	sc, err := h.storeSvc.GetScenarioByName(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusNotFound, "scenario not found")
		return
	}

	runs, err := h.storeSvc.ListRunsByScenario(r.Context(), sc.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing runs failed")
		return
	}

	result := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		result = append(result, runRowToResponse(&run, name))
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")
	run, err := h.storeSvc.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, runRowToResponse(run, ""))
}

func (h *Handler) handleGetScores(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")
	if _, err := h.storeSvc.GetRun(r.Context(), runID); err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	rows, err := h.storeSvc.ListAggregatedByRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing scores failed")
		return
	}

	type scoreResponse struct {
		UnitID    int64    `json:"unit_id"`
		Column    string   `json:"column"`
		Value     *float64 `json:"value"`
		Coverage  float64  `json:"coverage"`
		Field     string   `json:"field"`
		Statistic string   `json:"statistic"`
	}
	result := make([]scoreResponse, 0, len(rows))
	for _, row := range rows {
		result = append(result, scoreResponse{
			UnitID:    row.UnitID,
			Column:    row.Field + "_" + row.Statistic,
			Value:     row.Value,
			Coverage:  row.Coverage,
			Field:     row.Field,
			Statistic: row.Statistic,
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func runRowToResponse(run *store.RunRow, scenario string) runResponse {
	return runResponse{
		RunID:    run.ID,
		Scenario: scenario,
		Stats: pipeline.RunStats{
			SourceUnits:   run.SourceUnits,
			TargetUnits:   run.TargetUnits,
			ScoredSources: run.ScoredSources,
			Intersections: run.Intersections,
			ElapsedMs:     run.ElapsedMs,
		},
		Statistics: run.Statistics,
		Fields:     run.TargetFields,
		CreatedAt:  run.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// layerKey normalizes a user-supplied layer name to the stored artifact name.
func layerKey(name string) string {
	return strings.TrimSuffix(name, ".geojson")
}
