// Package hydro defines the core spatial data model for ISH-LUNC.
// These types are the shared vocabulary across all pipeline stages.
package hydro

import (
	"fmt"

	"github.com/peterstace/simplefeatures/geom"
)

// DimensionCode identifies one of the index dimensions.
type DimensionCode string

// The five dimensions of the water security index.
const (
	DimHuman   DimensionCode = "hum" // human supply
	DimEconomy DimensionCode = "eco" // economic uses
	DimEcosys  DimensionCode = "ecs" // ecosystemic
	DimDrought DimensionCode = "res" // drought resilience
	DimFlood   DimensionCode = "rei" // flood resilience
)

// KnownDimensions returns the fixed registry of dimension codes, in the
// canonical output order. "all" expansions resolve against this set, never
// against whatever columns happen to be present in an input layer.
func KnownDimensions() []DimensionCode {
	return []DimensionCode{DimHuman, DimEconomy, DimEcosys, DimDrought, DimFlood}
}

// IsKnownDimension reports whether code is in the registry.
func IsKnownDimension(code DimensionCode) bool {
	switch code {
	case DimHuman, DimEconomy, DimEcosys, DimDrought, DimFlood:
		return true
	}
	return false
}

// ColumnName returns the attribute column carrying a dimension score,
// e.g. "ire_cs_hum".
func ColumnName(code DimensionCode) string {
	return "ire_cs_" + string(code)
}

// CompositeColumn is the attribute column carrying the composite index.
const CompositeColumn = "cs_ish"

// SpatialUnit is a single polygon feature with an identity, an optional set
// of dimension scores, and pass-through attributes.
type SpatialUnit struct {
	ID         int64                      `json:"id"`
	Geometry   geom.Geometry              `json:"geometry"`
	Dimensions map[DimensionCode]*float64 `json:"dimensions,omitempty"`
	Attributes map[string]any             `json:"attributes,omitempty"`
}

// Dimension returns the unit's score for code, or nil when absent.
func (u *SpatialUnit) Dimension(code DimensionCode) *float64 {
	if u.Dimensions == nil {
		return nil
	}
	return u.Dimensions[code]
}

// Partition is a set of spatial units sharing one planar CRS.
// Partitions are immutable once loaded; the pipeline never mutates them.
type Partition struct {
	Name  string        `json:"name"`
	EPSG  int           `json:"epsg"`
	Units []SpatialUnit `json:"units"`
}

// Validate checks the partition invariants: unit IDs must be unique and every
// geometry must be structurally valid. Gaps and overlaps between units are
// tolerated and treated as given.
func (p *Partition) Validate() error {
	seen := make(map[int64]bool, len(p.Units))
	for i := range p.Units {
		u := &p.Units[i]
		if seen[u.ID] {
			return fmt.Errorf("partition %q: duplicate unit id %d", p.Name, u.ID)
		}
		seen[u.ID] = true
		if err := u.Geometry.Validate(); err != nil {
			return fmt.Errorf("partition %q: unit %d: invalid geometry: %w", p.Name, u.ID, err)
		}
	}
	return nil
}

// UnitByID returns the unit with the given ID, or nil when absent.
func (p *Partition) UnitByID(id int64) *SpatialUnit {
	for i := range p.Units {
		if p.Units[i].ID == id {
			return &p.Units[i]
		}
	}
	return nil
}

// IntersectionWeight records how much of a target unit's area one source
// unit covers. AreaFraction is area(source ∩ target) / area(target).
type IntersectionWeight struct {
	SourceID     int64   `json:"source_id"`
	TargetID     int64   `json:"target_id"`
	AreaFraction float64 `json:"area_fraction"`
}
