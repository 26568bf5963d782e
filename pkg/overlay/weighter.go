// Package overlay computes area weights between two polygon partitions.
// Geometry predicates and intersections are delegated to simplefeatures;
// this package owns only weight derivation.
package overlay

import (
	"context"
	"fmt"
	"sync"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/ishlunc/ishlunc/pkg/hydro"
)

// Weighter produces one IntersectionWeight per (source, target) pair whose
// geometries overlap with positive area. It holds no state across calls.
type Weighter struct {
	// Workers bounds the number of goroutines computing intersections.
	// Values below 2 mean sequential execution. Output order is unspecified
	// either way; weights are keyed by unit IDs.
	Workers int
}

// Weights computes the area fraction of every positive-area intersection
// between source and target units: area(s ∩ t) / area(t).
//
// Preconditions: both partitions must declare the same CRS (reprojection
// happens before this call, elsewhere) and carry valid geometries. Violations
// are hard errors; nothing is silently repaired. Tangential touches with zero
// intersection area are skipped.
func (w *Weighter) Weights(ctx context.Context, source, target *hydro.Partition) ([]hydro.IntersectionWeight, error) {
	if source.EPSG != target.EPSG {
		return nil, fmt.Errorf("crs mismatch: source %q is EPSG:%d, target %q is EPSG:%d",
			source.Name, source.EPSG, target.Name, target.EPSG)
	}
	for i := range source.Units {
		if err := source.Units[i].Geometry.Validate(); err != nil {
			return nil, fmt.Errorf("source unit %d: invalid geometry: %w", source.Units[i].ID, err)
		}
	}

	targetAreas := make([]float64, len(target.Units))
	for i := range target.Units {
		t := &target.Units[i]
		if err := t.Geometry.Validate(); err != nil {
			return nil, fmt.Errorf("target unit %d: invalid geometry: %w", t.ID, err)
		}
		a := t.Geometry.Area()
		if a <= 0 {
			return nil, fmt.Errorf("target unit %d: degenerate geometry with zero area", t.ID)
		}
		targetAreas[i] = a
	}

	if w.Workers < 2 || len(target.Units) < 2 {
		return w.weightsRange(ctx, source, target, targetAreas, 0, len(target.Units))
	}
	return w.weightsParallel(ctx, source, target, targetAreas)
}

// weightsRange computes weights for target units in [lo, hi).
func (w *Weighter) weightsRange(ctx context.Context, source, target *hydro.Partition, targetAreas []float64, lo, hi int) ([]hydro.IntersectionWeight, error) {
	var out []hydro.IntersectionWeight
	for ti := lo; ti < hi; ti++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t := &target.Units[ti]
		for si := range source.Units {
			s := &source.Units[si]
			if !geom.Intersects(s.Geometry, t.Geometry) {
				continue
			}
			inter, err := geom.Intersection(s.Geometry, t.Geometry)
			if err != nil {
				return nil, fmt.Errorf("intersecting source %d with target %d: %w", s.ID, t.ID, err)
			}
			a := inter.Area()
			if a <= 0 {
				continue
			}
			out = append(out, hydro.IntersectionWeight{
				SourceID:     s.ID,
				TargetID:     t.ID,
				AreaFraction: a / targetAreas[ti],
			})
		}
	}
	return out, nil
}

// weightsParallel fans target-unit batches out over w.Workers goroutines.
// Batches touch disjoint output slices, so no locking happens on the hot path.
func (w *Weighter) weightsParallel(ctx context.Context, source, target *hydro.Partition, targetAreas []float64) ([]hydro.IntersectionWeight, error) {
	workers := w.Workers
	if workers > len(target.Units) {
		workers = len(target.Units)
	}

	batches := make([][]hydro.IntersectionWeight, workers)
	errs := make([]error, workers)
	per := (len(target.Units) + workers - 1) / workers

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		lo := i * per
		hi := lo + per
		if hi > len(target.Units) {
			hi = len(target.Units)
		}
		wg.Add(1)
		go func(i, lo, hi int) {
			defer wg.Done()
			batches[i], errs[i] = w.weightsRange(ctx, source, target, targetAreas, lo, hi)
		}(i, lo, hi)
	}
	wg.Wait()

	var out []hydro.IntersectionWeight
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			return nil, errs[i]
		}
		out = append(out, batches[i]...)
	}
	return out, nil
}
