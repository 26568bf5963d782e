// Package pipeline sequences the ISH-LUNC stages: composite index over the
// source basins, overlay weights against the reporting partition, and
// aggregation per target unit.
package pipeline

import (
	"fmt"
	"time"

	"github.com/ishlunc/ishlunc/pkg/aggregate"
	"github.com/ishlunc/ishlunc/pkg/hydro"
)

// Scenario bundles the inputs of one pipeline run. Partitions are loaded by
// the caller and must share a planar CRS.
type Scenario struct {
	Name   string
	Source *hydro.Partition
	Target *hydro.Partition
	Config aggregate.Config
}

// SourceScore is the per-basin output row: the original dimension values and
// the composite index. Composite is nil when no dimension was scored.
type SourceScore struct {
	UnitID     int64                            `json:"unit_id"`
	Dimensions map[hydro.DimensionCode]*float64 `json:"dimensions,omitempty"`
	Composite  *float64                         `json:"composite"`
}

// TargetScore is the per-reporting-unit output row. Values maps a score field
// to its aggregated statistics; a nil statistic value means no scored basin
// intersects the unit for that field. Attributes are carried through from the
// target layer unchanged.
type TargetScore struct {
	UnitID     int64                                       `json:"unit_id"`
	Attributes map[string]any                              `json:"attributes,omitempty"`
	AreaKm2    float64                                     `json:"area_km2"`
	Values     map[string]map[aggregate.Statistic]*float64 `json:"values"`
	// Coverage is, per field, the summed raw area fraction of the pieces
	// that contributed. Below 1 it discloses that part of the unit is
	// covered only by unscored basins, or not at all.
	Coverage map[string]float64 `json:"coverage"`
}

// Column returns the output column name for one (field, statistic) pair,
// e.g. "cs_ish_mean".
func Column(field string, stat aggregate.Statistic) string {
	return field + "_" + string(stat)
}

// RunStats summarizes one run for display and persistence.
type RunStats struct {
	SourceUnits   int   `json:"source_units"`
	TargetUnits   int   `json:"target_units"`
	ScoredSources int   `json:"scored_sources"`
	Intersections int   `json:"intersections"`
	ElapsedMs     int64 `json:"elapsed_ms"`
}

// Result is the complete output of a run. Recomputed from scratch on every
// invocation; the pipeline keeps no state between runs.
type Result struct {
	RunID    string        `json:"run_id"`
	Scenario string        `json:"scenario"`
	Sources  []SourceScore `json:"sources"`
	Targets  []TargetScore `json:"targets"`
	Stats    RunStats      `json:"stats"`
	RanAt    time.Time     `json:"ran_at"`

	// Fields and Statistics record the configured order, so renderers can
	// lay out columns deterministically.
	Fields     []string              `json:"fields"`
	Statistics []aggregate.Statistic `json:"statistics"`
	// Renormalized records whether weights were rescaled to sum to 1 per
	// target unit before aggregation.
	Renormalized bool `json:"renormalized"`

	// Input partitions, retained so renderers can re-attach geometry.
	SourcePartition *hydro.Partition `json:"-"`
	TargetPartition *hydro.Partition `json:"-"`
}

// ParseTargetFields resolves user-facing field arguments into concrete output
// fields. "all" expands to the composite plus every registered dimension
// column; bare dimension codes are accepted as shorthand for their columns.
func ParseTargetFields(args []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}

	for _, arg := range args {
		switch arg {
		case "":
			continue
		case "all":
			add(hydro.CompositeColumn)
			for _, code := range hydro.KnownDimensions() {
				add(hydro.ColumnName(code))
			}
		case hydro.CompositeColumn:
			add(hydro.CompositeColumn)
		default:
			code := hydro.DimensionCode(arg)
			if hydro.IsKnownDimension(code) {
				add(hydro.ColumnName(code))
				continue
			}
			if c, ok := dimensionColumn(arg); ok && hydro.IsKnownDimension(c) {
				add(arg)
				continue
			}
			return nil, fmt.Errorf("unknown target field %q", arg)
		}
	}
	if len(out) == 0 {
		out = []string{hydro.CompositeColumn}
	}
	return out, nil
}

func dimensionColumn(field string) (hydro.DimensionCode, bool) {
	const prefix = "ire_cs_"
	if len(field) <= len(prefix) || field[:len(prefix)] != prefix {
		return "", false
	}
	return hydro.DimensionCode(field[len(prefix):]), true
}
