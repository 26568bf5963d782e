package overlay_test

import (
	"context"
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/ishlunc/ishlunc/pkg/hydro"
	"github.com/ishlunc/ishlunc/pkg/overlay"
)

func mustGeom(t *testing.T, wkt string) geom.Geometry {
	t.Helper()
	g, err := geom.UnmarshalWKT(wkt)
	if err != nil {
		t.Fatalf("UnmarshalWKT(%q): %v", wkt, err)
	}
	return g
}

func square(t *testing.T, x, y, side float64) geom.Geometry {
	t.Helper()
	return mustGeom(t, fmt.Sprintf("POLYGON((%[1]f %[2]f,%[3]f %[2]f,%[3]f %[4]f,%[1]f %[4]f,%[1]f %[2]f))",
		x, y, x+side, y+side))
}

func partition(name string, epsg int, units ...hydro.SpatialUnit) *hydro.Partition {
	return &hydro.Partition{Name: name, EPSG: epsg, Units: units}
}

func sortWeights(ws []hydro.IntersectionWeight) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].TargetID != ws[j].TargetID {
			return ws[i].TargetID < ws[j].TargetID
		}
		return ws[i].SourceID < ws[j].SourceID
	})
}

func TestWeights_HalfOverlap(t *testing.T) {
	// Two unit squares side by side; the target square straddles them, so
	// each covers half its area.
	source := partition("basins", 4674,
		hydro.SpatialUnit{ID: 1, Geometry: square(t, 0, 0, 1)},
		hydro.SpatialUnit{ID: 2, Geometry: square(t, 1, 0, 1)},
	)
	target := partition("units", 4674,
		hydro.SpatialUnit{ID: 10, Geometry: mustGeom(t, "POLYGON((0.5 0,1.5 0,1.5 1,0.5 1,0.5 0))")},
	)

	ws, err := (&overlay.Weighter{}).Weights(context.Background(), source, target)
	if err != nil {
		t.Fatalf("Weights: %v", err)
	}
	sortWeights(ws)

	if len(ws) != 2 {
		t.Fatalf("expected 2 weights, got %d", len(ws))
	}
	for i, w := range ws {
		if w.TargetID != 10 {
			t.Errorf("weight %d: expected target 10, got %d", i, w.TargetID)
		}
		if math.Abs(w.AreaFraction-0.5) > 1e-9 {
			t.Errorf("weight %d: expected fraction 0.5, got %f", i, w.AreaFraction)
		}
	}
}

func TestWeights_FullContainment(t *testing.T) {
	source := partition("basins", 4674,
		hydro.SpatialUnit{ID: 1, Geometry: square(t, 0, 0, 4)},
	)
	target := partition("units", 4674,
		hydro.SpatialUnit{ID: 10, Geometry: square(t, 1, 1, 1)},
	)

	ws, err := (&overlay.Weighter{}).Weights(context.Background(), source, target)
	if err != nil {
		t.Fatalf("Weights: %v", err)
	}
	if len(ws) != 1 {
		t.Fatalf("expected 1 weight, got %d", len(ws))
	}
	if math.Abs(ws[0].AreaFraction-1.0) > 1e-9 {
		t.Errorf("expected fraction 1.0, got %f", ws[0].AreaFraction)
	}
}

func TestWeights_DisjointAndTouching(t *testing.T) {
	// One source is far away; the other only shares an edge with the target.
	// Neither produces a weight.
	source := partition("basins", 4674,
		hydro.SpatialUnit{ID: 1, Geometry: square(t, 10, 10, 1)},
		hydro.SpatialUnit{ID: 2, Geometry: square(t, 1, 0, 1)},
	)
	target := partition("units", 4674,
		hydro.SpatialUnit{ID: 10, Geometry: square(t, 0, 0, 1)},
	)

	ws, err := (&overlay.Weighter{}).Weights(context.Background(), source, target)
	if err != nil {
		t.Fatalf("Weights: %v", err)
	}
	if len(ws) != 0 {
		t.Errorf("expected no weights, got %v", ws)
	}
}

func TestWeights_CRSMismatch(t *testing.T) {
	source := partition("basins", 4674, hydro.SpatialUnit{ID: 1, Geometry: square(t, 0, 0, 1)})
	target := partition("units", 5880, hydro.SpatialUnit{ID: 10, Geometry: square(t, 0, 0, 1)})

	if _, err := (&overlay.Weighter{}).Weights(context.Background(), source, target); err == nil {
		t.Fatal("expected a CRS mismatch error")
	}
}

func TestWeights_ZeroAreaTarget(t *testing.T) {
	source := partition("basins", 4674, hydro.SpatialUnit{ID: 1, Geometry: square(t, 0, 0, 1)})
	target := partition("units", 4674,
		hydro.SpatialUnit{ID: 10, Geometry: mustGeom(t, "LINESTRING(0 0,1 1)")},
	)

	if _, err := (&overlay.Weighter{}).Weights(context.Background(), source, target); err == nil {
		t.Fatal("expected an error for a zero-area target unit")
	}
}

func TestWeights_CancelledContext(t *testing.T) {
	source := partition("basins", 4674, hydro.SpatialUnit{ID: 1, Geometry: square(t, 0, 0, 1)})
	target := partition("units", 4674, hydro.SpatialUnit{ID: 10, Geometry: square(t, 0, 0, 1)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := (&overlay.Weighter{}).Weights(ctx, source, target); err == nil {
		t.Fatal("expected a context error")
	}
}

func TestWeights_ParallelMatchesSequential(t *testing.T) {
	// A 4x4 grid of basins over a 2x2 grid of offset reporting units.
	var sourceUnits []hydro.SpatialUnit
	id := int64(1)
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			sourceUnits = append(sourceUnits, hydro.SpatialUnit{
				ID: id, Geometry: square(t, float64(x), float64(y), 1),
			})
			id++
		}
	}
	var targetUnits []hydro.SpatialUnit
	tid := int64(100)
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			targetUnits = append(targetUnits, hydro.SpatialUnit{
				ID: tid, Geometry: square(t, float64(x)*2+0.5, float64(y)*2+0.5, 1.5),
			})
			tid++
		}
	}
	source := partition("basins", 4674, sourceUnits...)
	target := partition("units", 4674, targetUnits...)

	seq, err := (&overlay.Weighter{}).Weights(context.Background(), source, target)
	if err != nil {
		t.Fatalf("sequential Weights: %v", err)
	}
	par, err := (&overlay.Weighter{Workers: 3}).Weights(context.Background(), source, target)
	if err != nil {
		t.Fatalf("parallel Weights: %v", err)
	}

	sortWeights(seq)
	sortWeights(par)
	if len(seq) != len(par) {
		t.Fatalf("expected %d weights from the parallel path, got %d", len(seq), len(par))
	}
	for i := range seq {
		if seq[i].SourceID != par[i].SourceID || seq[i].TargetID != par[i].TargetID {
			t.Fatalf("weight %d: pair mismatch: %+v vs %+v", i, seq[i], par[i])
		}
		if math.Abs(seq[i].AreaFraction-par[i].AreaFraction) > 1e-12 {
			t.Errorf("weight %d: fraction mismatch: %f vs %f", i, seq[i].AreaFraction, par[i].AreaFraction)
		}
	}
}
