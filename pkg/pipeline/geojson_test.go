package pipeline_test

import (
	"context"
	"math"
	"testing"

	"github.com/ishlunc/ishlunc/pkg/aggregate"
	"github.com/ishlunc/ishlunc/pkg/pipeline"
)

func TestSourceFeatureCollection(t *testing.T) {
	sc := twoBasinScenario(t, aggregate.DefaultConfig())
	result, err := pipeline.New().Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	fc, err := result.SourceFeatureCollection()
	if err != nil {
		t.Fatalf("SourceFeatureCollection: %v", err)
	}
	if len(fc) != 2 {
		t.Fatalf("expected 2 features, got %d", len(fc))
	}

	props := fc[0].Properties
	if props["cobacia"] != int64(1) {
		t.Errorf("expected cobacia 1, got %v", props["cobacia"])
	}
	if props["cs_ish"] != 4.0 {
		t.Errorf("expected cs_ish 4.0, got %v", props["cs_ish"])
	}
	if props["ire_cs_hum"] != 4.0 {
		t.Errorf("expected ire_cs_hum 4.0, got %v", props["ire_cs_hum"])
	}
	// Every registry column is present, explicit null when unscored.
	for _, col := range []string{"ire_cs_eco", "ire_cs_ecs", "ire_cs_res", "ire_cs_rei"} {
		v, ok := props[col]
		if !ok {
			t.Errorf("expected column %s to be present", col)
			continue
		}
		if v != nil {
			t.Errorf("expected %s to be null, got %v", col, v)
		}
	}
}

func TestTargetFeatureCollection(t *testing.T) {
	sc := twoBasinScenario(t, aggregate.Config{
		Statistics:   []aggregate.Statistic{aggregate.StatMean, aggregate.StatMax},
		TargetFields: []string{"cs_ish"},
	})
	result, err := pipeline.New().Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	fc, err := result.TargetFeatureCollection()
	if err != nil {
		t.Fatalf("TargetFeatureCollection: %v", err)
	}
	if len(fc) != 2 {
		t.Fatalf("expected 2 features, got %d", len(fc))
	}

	props := fc[0].Properties
	if props["nome"] != "central" {
		t.Errorf("expected original attribute nome, got %v", props["nome"])
	}
	area, ok := props["area_apresent_km2"].(float64)
	if !ok || area <= 0 {
		t.Errorf("expected a positive area_apresent_km2, got %v", props["area_apresent_km2"])
	}
	mean, ok := props["cs_ish_mean"].(float64)
	if !ok || math.Abs(mean-3.0) > 1e-9 {
		t.Errorf("expected cs_ish_mean 3.0, got %v", props["cs_ish_mean"])
	}
	if _, ok := props["cs_ish_max"]; !ok {
		t.Error("expected a cs_ish_max column")
	}

	// The uncovered unit keeps every aggregation column, null-valued.
	remote := fc[1].Properties
	for _, col := range []string{"cs_ish_mean", "cs_ish_max"} {
		v, ok := remote[col]
		if !ok {
			t.Errorf("expected column %s on the uncovered unit", col)
			continue
		}
		if v != nil {
			t.Errorf("expected %s to be null, got %v", col, v)
		}
	}
}
