package hydro

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterstace/simplefeatures/geom"
)

// LoadOptions controls how a GeoJSON layer is interpreted as a Partition.
type LoadOptions struct {
	// Name labels the partition in error messages and outputs.
	Name string
	// EPSG is the planar CRS the layer coordinates are expressed in.
	// GeoJSON itself carries no CRS, so the caller must declare it.
	EPSG int
	// IDField is the property holding the unit identifier. When empty, or
	// when the property is absent on a feature, the feature "id" member is
	// used instead.
	IDField string
}

// LoadPartition reads a GeoJSON FeatureCollection from disk and builds a
// Partition. Properties named ire_cs_<code> become dimension scores (null
// properties stay null); every other property is preserved untouched as an
// attribute. Geometries are validated during unmarshalling; a malformed
// feature fails the whole load.
func LoadPartition(path string, opts LoadOptions) (*Partition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading partition: %w", err)
	}
	name := opts.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	p, err := ParsePartition(data, LoadOptions{Name: name, EPSG: opts.EPSG, IDField: opts.IDField})
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return p, nil
}

// ParsePartition builds a Partition from raw GeoJSON FeatureCollection bytes.
func ParsePartition(data []byte, opts LoadOptions) (*Partition, error) {
	var fc geom.GeoJSONFeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("unmarshaling feature collection: %w", err)
	}

	p := &Partition{Name: opts.Name, EPSG: opts.EPSG, Units: make([]SpatialUnit, 0, len(fc))}
	for i, feat := range fc {
		id, err := featureID(feat, opts.IDField)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}

		unit := SpatialUnit{ID: id, Geometry: feat.Geometry}
		for key, val := range feat.Properties {
			if key == opts.IDField {
				continue
			}
			if code, ok := dimensionFromColumn(key); ok {
				unit.setDimension(code, numericProperty(val))
				continue
			}
			if unit.Attributes == nil {
				unit.Attributes = make(map[string]any)
			}
			unit.Attributes[key] = val
		}
		p.Units = append(p.Units, unit)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (u *SpatialUnit) setDimension(code DimensionCode, v *float64) {
	if u.Dimensions == nil {
		u.Dimensions = make(map[DimensionCode]*float64)
	}
	u.Dimensions[code] = v
}

// dimensionFromColumn maps an attribute column like "ire_cs_hum" to its
// dimension code. Unrecognized suffixes are still captured as dimensions so
// downstream stages can decide to ignore them; arbitrary columns are not.
func dimensionFromColumn(column string) (DimensionCode, bool) {
	const prefix = "ire_cs_"
	if !strings.HasPrefix(column, prefix) {
		return "", false
	}
	return DimensionCode(strings.TrimPrefix(column, prefix)), true
}

// featureID resolves the unit identifier for one feature.
func featureID(feat geom.GeoJSONFeature, idField string) (int64, error) {
	if idField != "" {
		if raw, ok := feat.Properties[idField]; ok && raw != nil {
			id, err := toInt64(raw)
			if err != nil {
				return 0, fmt.Errorf("property %q: %w", idField, err)
			}
			return id, nil
		}
	}
	if feat.ID == nil {
		return 0, fmt.Errorf("no usable identifier (id field %q absent and feature has no id)", idField)
	}
	id, err := toInt64(feat.ID)
	if err != nil {
		return 0, fmt.Errorf("feature id: %w", err)
	}
	return id, nil
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case string:
		id, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("non-numeric identifier %q", t)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("unsupported identifier type %T", v)
	}
}

// numericProperty converts a GeoJSON property value to an optional score.
// Null and non-numeric values become nil rather than zero.
func numericProperty(v any) *float64 {
	switch t := v.(type) {
	case float64:
		f := t
		return &f
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(t, ",", "."), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
