// Package store persists scenarios and pipeline runs in Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ishlunc/ishlunc/pkg/pipeline"
)

// Service provides scenario and run persistence backed by Postgres.
type Service struct {
	db *sql.DB
}

// Scenario is a named analysis context: one basin layer plus its dimension
// tables, identified by name.
type Scenario struct {
	ID        string
	Name      string
	EPSG      int
	CreatedAt time.Time
}

// RunRow is the stored summary of one pipeline run.
type RunRow struct {
	ID            string
	ScenarioID    string
	Statistics    []string
	TargetFields  []string
	Renormalized  bool
	SourceUnits   int
	TargetUnits   int
	ScoredSources int
	Intersections int
	ElapsedMs     int64
	CreatedAt     time.Time
}

// AggregatedRow is one stored (target unit, field, statistic) value.
type AggregatedRow struct {
	RunID     string
	UnitID    int64
	Field     string
	Statistic string
	Value     *float64
	Coverage  float64
}

// NewService creates a new store Service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// UpsertScenario creates a scenario or returns the existing one by name.
func (s *Service) UpsertScenario(ctx context.Context, name string, epsg int) (*Scenario, error) {
	sc := &Scenario{}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO scenarios (name, epsg)
		 VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET epsg = EXCLUDED.epsg
		 RETURNING id, name, epsg, created_at`,
		name, epsg,
	).Scan(&sc.ID, &sc.Name, &sc.EPSG, &sc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert scenario %s: %w", name, err)
	}
	return sc, nil
}

// GetScenarioByName looks up a scenario by its name.
func (s *Service) GetScenarioByName(ctx context.Context, name string) (*Scenario, error) {
	sc := &Scenario{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, epsg, created_at FROM scenarios WHERE name = $1`,
		name,
	).Scan(&sc.ID, &sc.Name, &sc.EPSG, &sc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get scenario %s: %w", name, err)
	}
	return sc, nil
}

// ListScenarios returns all scenarios ordered by name.
func (s *Service) ListScenarios(ctx context.Context) ([]Scenario, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, epsg, created_at FROM scenarios ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []Scenario
	for rows.Next() {
		var sc Scenario
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.EPSG, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, rows.Err()
}

// SaveRun persists a run summary with its per-basin and per-target scores,
// atomically.
func (s *Service) SaveRun(ctx context.Context, scenarioID string, result *pipeline.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer tx.Rollback()

	stats := make([]string, len(result.Statistics))
	for i, st := range result.Statistics {
		stats[i] = string(st)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, scenario_id, statistics, target_fields, renormalized,
		                   source_units, target_units, scored_sources, intersections, elapsed_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		result.RunID, scenarioID, pq.Array(stats), pq.Array(result.Fields), result.Renormalized,
		result.Stats.SourceUnits, result.Stats.TargetUnits,
		result.Stats.ScoredSources, result.Stats.Intersections, result.Stats.ElapsedMs,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", result.RunID, err)
	}

	for i := range result.Sources {
		src := &result.Sources[i]
		dims, err := json.Marshal(src.Dimensions)
		if err != nil {
			return fmt.Errorf("marshal dimensions for unit %d: %w", src.UnitID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO source_scores (run_id, unit_id, dimensions, composite)
			 VALUES ($1, $2, $3, $4)`,
			result.RunID, src.UnitID, dims, src.Composite,
		)
		if err != nil {
			return fmt.Errorf("insert source score %d: %w", src.UnitID, err)
		}
	}

	for i := range result.Targets {
		t := &result.Targets[i]
		for field, byStat := range t.Values {
			for stat, value := range byStat {
				_, err = tx.ExecContext(ctx,
					`INSERT INTO aggregated_scores (run_id, unit_id, field, statistic, value, coverage)
					 VALUES ($1, $2, $3, $4, $5, $6)`,
					result.RunID, t.UnitID, field, string(stat), value, t.Coverage[field],
				)
				if err != nil {
					return fmt.Errorf("insert aggregated score %d/%s/%s: %w", t.UnitID, field, stat, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save run: %w", err)
	}
	return nil
}

// GetRun retrieves a run summary by id.
func (s *Service) GetRun(ctx context.Context, runID string) (*RunRow, error) {
	r := &RunRow{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, scenario_id, statistics, target_fields, renormalized,
		        source_units, target_units, scored_sources, intersections, elapsed_ms, created_at
		 FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.ScenarioID, pq.Array(&r.Statistics), pq.Array(&r.TargetFields), &r.Renormalized,
		&r.SourceUnits, &r.TargetUnits, &r.ScoredSources, &r.Intersections, &r.ElapsedMs, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return r, nil
}

// ListRunsByScenario returns the runs of a scenario, newest first.
func (s *Service) ListRunsByScenario(ctx context.Context, scenarioID string) ([]RunRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scenario_id, statistics, target_fields, renormalized,
		        source_units, target_units, scored_sources, intersections, elapsed_ms, created_at
		 FROM runs WHERE scenario_id = $1 ORDER BY created_at DESC`,
		scenarioID,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.ScenarioID, pq.Array(&r.Statistics), pq.Array(&r.TargetFields), &r.Renormalized,
			&r.SourceUnits, &r.TargetUnits, &r.ScoredSources, &r.Intersections, &r.ElapsedMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListAggregatedByRun returns every stored aggregated value of one run.
func (s *Service) ListAggregatedByRun(ctx context.Context, runID string) ([]AggregatedRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, unit_id, field, statistic, value, coverage
		 FROM aggregated_scores WHERE run_id = $1 ORDER BY unit_id, field, statistic`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list aggregated scores: %w", err)
	}
	defer rows.Close()

	var out []AggregatedRow
	for rows.Next() {
		var a AggregatedRow
		if err := rows.Scan(&a.RunID, &a.UnitID, &a.Field, &a.Statistic, &a.Value, &a.Coverage); err != nil {
			return nil, fmt.Errorf("scan aggregated score: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
