package compose_test

import (
	"math"
	"testing"

	"github.com/ishlunc/ishlunc/pkg/compose"
	"github.com/ishlunc/ishlunc/pkg/hydro"
)

func f(v float64) *float64 { return &v }

func TestCompose_MeanOfPresentDimensions(t *testing.T) {
	c := compose.NewComposer()
	u := &hydro.SpatialUnit{
		ID: 1,
		Dimensions: map[hydro.DimensionCode]*float64{
			hydro.DimHuman:   f(4.0),
			hydro.DimEconomy: f(3.0),
			hydro.DimEcosys:  f(2.0),
			hydro.DimDrought: nil,
			hydro.DimFlood:   nil,
		},
	}

	got := c.Compose(u)
	if got.Composite == nil {
		t.Fatal("expected a composite score, got nil")
	}
	if math.Abs(*got.Composite-3.0) > 1e-9 {
		t.Errorf("expected composite 3.0, got %f", *got.Composite)
	}
	if got.Present != 3 {
		t.Errorf("expected 3 contributing dimensions, got %d", got.Present)
	}
}

func TestCompose_SingleDimension(t *testing.T) {
	// One present dimension means the composite equals it, with no penalty
	// for the four absent ones.
	c := compose.NewComposer()
	u := &hydro.SpatialUnit{
		ID:         2,
		Dimensions: map[hydro.DimensionCode]*float64{hydro.DimEcosys: f(4.0)},
	}

	got := c.Compose(u)
	if got.Composite == nil || *got.Composite != 4.0 {
		t.Fatalf("expected composite 4.0, got %v", got.Composite)
	}
	if got.Present != 1 {
		t.Errorf("expected 1 contributing dimension, got %d", got.Present)
	}
}

func TestCompose_AllNull(t *testing.T) {
	c := compose.NewComposer()

	tests := []struct {
		name string
		unit *hydro.SpatialUnit
	}{
		{"no dimensions at all", &hydro.SpatialUnit{ID: 3}},
		{"all dimensions null", &hydro.SpatialUnit{
			ID: 4,
			Dimensions: map[hydro.DimensionCode]*float64{
				hydro.DimHuman: nil, hydro.DimEconomy: nil, hydro.DimEcosys: nil,
				hydro.DimDrought: nil, hydro.DimFlood: nil,
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Compose(tt.unit)
			if got.Composite != nil {
				t.Errorf("expected nil composite, got %f", *got.Composite)
			}
			if got.Present != 0 {
				t.Errorf("expected 0 contributing dimensions, got %d", got.Present)
			}
		})
	}
}

func TestCompose_IgnoresUnrecognizedCodes(t *testing.T) {
	// An ire_cs_ column with an unknown suffix is captured at load time but
	// must not shift the mean or the divisor.
	c := compose.NewComposer()
	u := &hydro.SpatialUnit{
		ID: 5,
		Dimensions: map[hydro.DimensionCode]*float64{
			hydro.DimHuman:             f(4.0),
			hydro.DimEconomy:           f(2.0),
			hydro.DimensionCode("xyz"): f(100.0),
		},
	}

	got := c.Compose(u)
	if got.Composite == nil || math.Abs(*got.Composite-3.0) > 1e-9 {
		t.Fatalf("expected composite 3.0, got %v", got.Composite)
	}
	if got.Present != 2 {
		t.Errorf("expected 2 contributing dimensions, got %d", got.Present)
	}
}

func TestCompose_NoClamping(t *testing.T) {
	// Out-of-range inputs pass through arithmetic untouched.
	c := compose.NewComposer()
	u := &hydro.SpatialUnit{
		ID: 6,
		Dimensions: map[hydro.DimensionCode]*float64{
			hydro.DimHuman:   f(7.5),
			hydro.DimEconomy: f(6.5),
		},
	}

	got := c.Compose(u)
	if got.Composite == nil || *got.Composite != 7.0 {
		t.Fatalf("expected composite 7.0, got %v", got.Composite)
	}
}

func TestCompose_RestrictedRecognizedSet(t *testing.T) {
	c := compose.NewComposer(hydro.DimHuman, hydro.DimFlood)
	u := &hydro.SpatialUnit{
		ID: 7,
		Dimensions: map[hydro.DimensionCode]*float64{
			hydro.DimHuman:   f(2.0),
			hydro.DimEconomy: f(5.0),
			hydro.DimFlood:   f(4.0),
		},
	}

	got := c.Compose(u)
	if got.Composite == nil || *got.Composite != 3.0 {
		t.Fatalf("expected composite 3.0 over the restricted set, got %v", got.Composite)
	}
}
