package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ishlunc/ishlunc/pkg/aggregate"
	"github.com/ishlunc/ishlunc/pkg/compose"
	"github.com/ishlunc/ishlunc/pkg/hydro"
	"github.com/ishlunc/ishlunc/pkg/overlay"
)

// Orchestrator wires the stages together. The join between source scores and
// overlay weights is purely spatial: source and target unit IDs live in
// independent namespaces and are never compared to each other.
type Orchestrator struct {
	Composer *compose.Composer
	Weighter *overlay.Weighter
}

// New creates an Orchestrator with the default composer and a sequential
// weighter.
func New() *Orchestrator {
	return &Orchestrator{
		Composer: compose.NewComposer(),
		Weighter: &overlay.Weighter{},
	}
}

// Run executes one scenario end to end: validate inputs, compose every
// source unit, compute overlay weights, join, and aggregate every configured
// statistic for every target unit. Inputs are treated as immutable; the
// result is derived state only.
func (o *Orchestrator) Run(ctx context.Context, sc Scenario) (*Result, error) {
	if err := validateScenario(sc); err != nil {
		return nil, err
	}
	composer := o.Composer
	if composer == nil {
		composer = compose.NewComposer()
	}
	return o.run(ctx, sc, ComposeAll(composer, sc.Source))
}

// RunComposed executes the overlay and aggregation stages over a source
// layer that already carries the composite column, lifting cs_ish from the
// layer instead of recomputing it.
func (o *Orchestrator) RunComposed(ctx context.Context, sc Scenario) (*Result, error) {
	if err := validateScenario(sc); err != nil {
		return nil, err
	}
	return o.run(ctx, sc, liftComposed(sc.Source))
}

func validateScenario(sc Scenario) error {
	if sc.Source == nil || sc.Target == nil {
		return fmt.Errorf("scenario %q: source and target partitions are required", sc.Name)
	}
	if err := sc.Source.Validate(); err != nil {
		return err
	}
	return sc.Target.Validate()
}

func (o *Orchestrator) run(ctx context.Context, sc Scenario, sources []SourceScore) (*Result, error) {
	started := time.Now()

	// Configuration problems fail the batch before any work happens.
	engine, err := aggregate.NewEngine(sc.Config)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:           uuid.New().String(),
		Scenario:        sc.Name,
		RanAt:           started.UTC(),
		Sources:         sources,
		Fields:          sc.Config.TargetFields,
		Statistics:      sc.Config.Statistics,
		Renormalized:    sc.Config.RenormalizeWeights,
		SourcePartition: sc.Source,
		TargetPartition: sc.Target,
	}

	scores := make(map[int64]*SourceScore, len(result.Sources))
	for i := range result.Sources {
		scores[result.Sources[i].UnitID] = &result.Sources[i]
		if result.Sources[i].Composite != nil {
			result.Stats.ScoredSources++
		}
	}

	weighter := o.Weighter
	if weighter == nil {
		weighter = &overlay.Weighter{}
	}
	weights, err := weighter.Weights(ctx, sc.Source, sc.Target)
	if err != nil {
		return nil, err
	}
	byTarget := make(map[int64][]hydro.IntersectionWeight)
	for _, w := range weights {
		byTarget[w.TargetID] = append(byTarget[w.TargetID], w)
	}

	// Join and aggregate. Every target unit gets a row, including units no
	// scored basin touches.
	for i := range sc.Target.Units {
		t := &sc.Target.Units[i]
		row := TargetScore{
			UnitID:     t.ID,
			Attributes: t.Attributes,
			AreaKm2:    t.Geometry.Area() / 1e6,
			Values:     make(map[string]map[aggregate.Statistic]*float64, len(sc.Config.TargetFields)),
			Coverage:   make(map[string]float64, len(sc.Config.TargetFields)),
		}
		for _, field := range sc.Config.TargetFields {
			contribs := joinContributions(byTarget[t.ID], scores, field)
			row.Values[field] = engine.Aggregate(contribs)
			row.Coverage[field] = aggregate.Coverage(contribs)
		}
		result.Targets = append(result.Targets, row)
	}

	result.Stats.SourceUnits = len(sc.Source.Units)
	result.Stats.TargetUnits = len(sc.Target.Units)
	result.Stats.Intersections = len(weights)
	result.Stats.ElapsedMs = time.Since(started).Milliseconds()
	return result, nil
}

// ComposeAll runs the composer over every unit of a source partition,
// producing one output row per basin.
func ComposeAll(c *compose.Composer, p *hydro.Partition) []SourceScore {
	rows := make([]SourceScore, 0, len(p.Units))
	for i := range p.Units {
		u := &p.Units[i]
		cs := c.Compose(u)
		rows = append(rows, SourceScore{UnitID: u.ID, Dimensions: u.Dimensions, Composite: cs.Composite})
	}
	return rows
}

// liftComposed builds source rows from a layer that already carries cs_ish
// as an attribute, preserving any dimension columns it also carries.
func liftComposed(p *hydro.Partition) []SourceScore {
	rows := make([]SourceScore, 0, len(p.Units))
	for i := range p.Units {
		u := &p.Units[i]
		var composite *float64
		if raw, ok := u.Attributes[hydro.CompositeColumn]; ok {
			if f, ok := raw.(float64); ok {
				v := f
				composite = &v
			}
		}
		rows = append(rows, SourceScore{UnitID: u.ID, Dimensions: u.Dimensions, Composite: composite})
	}
	return rows
}

// joinContributions pairs one target's intersection weights with the source
// scores for the given field, dropping pieces whose score is null. The raw
// area fractions survive the drop untouched; renormalization, when configured,
// happens inside the engine.
func joinContributions(ws []hydro.IntersectionWeight, scores map[int64]*SourceScore, field string) []aggregate.Contribution {
	var contribs []aggregate.Contribution
	for _, w := range ws {
		src, ok := scores[w.SourceID]
		if !ok {
			continue
		}
		v := fieldValue(src, field)
		if v == nil {
			continue
		}
		contribs = append(contribs, aggregate.Contribution{Score: *v, Weight: w.AreaFraction})
	}
	return contribs
}

// fieldValue picks the score a field refers to from a source row.
func fieldValue(src *SourceScore, field string) *float64 {
	if field == hydro.CompositeColumn {
		return src.Composite
	}
	if code, ok := dimensionColumn(field); ok {
		return src.Dimensions[code]
	}
	return nil
}
