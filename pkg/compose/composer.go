// Package compose implements the composite index calculation: one score per
// basin from its non-null dimension scores.
package compose

import (
	"github.com/ishlunc/ishlunc/pkg/hydro"
)

// Score is the result of composing one unit. Composite is nil when the unit
// has no recognized non-null dimension value.
type Score struct {
	Composite *float64
	// Present is the number of recognized dimensions that contributed.
	Present int
}

// Composer turns a unit's dimension scores into a composite index. It is a
// pure function over its input; distinct units may be composed concurrently.
type Composer struct {
	recognized map[hydro.DimensionCode]bool
}

// NewComposer creates a Composer over the given dimension codes, defaulting
// to the full registry when none are given.
func NewComposer(codes ...hydro.DimensionCode) *Composer {
	if len(codes) == 0 {
		codes = hydro.KnownDimensions()
	}
	recognized := make(map[hydro.DimensionCode]bool, len(codes))
	for _, c := range codes {
		recognized[c] = true
	}
	return &Composer{recognized: recognized}
}

// Compose computes the unweighted mean of the unit's non-null recognized
// dimension values. Absent dimensions neither penalize nor are imputed, and
// codes outside the recognized set never count. Values are used as-is: range
// validation is the caller's concern.
func (c *Composer) Compose(u *hydro.SpatialUnit) Score {
	var sum float64
	var k int
	for code, v := range u.Dimensions {
		if v == nil || !c.recognized[code] {
			continue
		}
		sum += *v
		k++
	}
	if k == 0 {
		return Score{}
	}
	mean := sum / float64(k)
	return Score{Composite: &mean, Present: k}
}
