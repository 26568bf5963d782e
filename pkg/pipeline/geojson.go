package pipeline

import (
	"fmt"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/ishlunc/ishlunc/pkg/hydro"
)

// SourceFeatures rebuilds a source layer with composite scores attached: one
// feature per basin carrying cobacia, every registered dimension column
// (explicit null when unscored) and cs_ish. Geometry and CRS pass through
// unchanged.
func SourceFeatures(p *hydro.Partition, sources []SourceScore) (geom.GeoJSONFeatureCollection, error) {
	fc := make(geom.GeoJSONFeatureCollection, 0, len(sources))
	for i := range sources {
		s := &sources[i]
		unit := p.UnitByID(s.UnitID)
		if unit == nil {
			return nil, fmt.Errorf("source unit %d missing from partition", s.UnitID)
		}

		props := map[string]any{"cobacia": s.UnitID}
		for _, code := range hydro.KnownDimensions() {
			props[hydro.ColumnName(code)] = nullable(s.Dimensions[code])
		}
		props[hydro.CompositeColumn] = nullable(s.Composite)

		fc = append(fc, geom.GeoJSONFeature{
			ID:         s.UnitID,
			Geometry:   unit.Geometry,
			Properties: props,
		})
	}
	return fc, nil
}

// TargetFeatures rebuilds a reporting layer with one column per
// (field, statistic) pair, e.g. cs_ish_mean. Original target attributes are
// preserved untouched; a unit no scored basin intersects keeps every
// aggregation column with an explicit null.
func TargetFeatures(p *hydro.Partition, targets []TargetScore) (geom.GeoJSONFeatureCollection, error) {
	fc := make(geom.GeoJSONFeatureCollection, 0, len(targets))
	for i := range targets {
		t := &targets[i]
		unit := p.UnitByID(t.UnitID)
		if unit == nil {
			return nil, fmt.Errorf("target unit %d missing from partition", t.UnitID)
		}

		props := make(map[string]any, len(t.Attributes)+len(t.Values)*4+2)
		for k, v := range t.Attributes {
			props[k] = v
		}
		props["area_apresent_km2"] = t.AreaKm2
		for field, stats := range t.Values {
			for stat, v := range stats {
				props[Column(field, stat)] = nullable(v)
			}
		}

		fc = append(fc, geom.GeoJSONFeature{
			ID:         t.UnitID,
			Geometry:   unit.Geometry,
			Properties: props,
		})
	}
	return fc, nil
}

// SourceFeatureCollection renders the run's source layer.
func (r *Result) SourceFeatureCollection() (geom.GeoJSONFeatureCollection, error) {
	if r.SourcePartition == nil {
		return nil, fmt.Errorf("result has no source partition attached")
	}
	return SourceFeatures(r.SourcePartition, r.Sources)
}

// TargetFeatureCollection renders the run's reporting layer.
func (r *Result) TargetFeatureCollection() (geom.GeoJSONFeatureCollection, error) {
	if r.TargetPartition == nil {
		return nil, fmt.Errorf("result has no target partition attached")
	}
	return TargetFeatures(r.TargetPartition, r.Targets)
}

// nullable widens *float64 to any so that JSON encoding emits null rather
// than a typed nil.
func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
