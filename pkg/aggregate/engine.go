package aggregate

import (
	"fmt"
	"sort"

	"github.com/ishlunc/ishlunc/pkg/hydro"
)

// Config is the explicit aggregation configuration. It replaces any ambient
// flag state: callers construct it once and pass it in.
type Config struct {
	// Statistics to compute per target unit.
	Statistics []Statistic
	// TargetFields are the score fields to aggregate: "cs_ish" and/or
	// individual ire_cs_* columns.
	TargetFields []string
	// RenormalizeWeights scales each target's weights to sum to 1 after
	// null-score exclusion. Off by default: raw fractions of the target
	// area disclose partial coverage by scored basins. Mean and median are
	// invariant under this scaling; it only changes the weights reported
	// alongside them.
	RenormalizeWeights bool
}

// Validate fails fast on an unusable configuration, before any aggregation.
func (c Config) Validate() error {
	if len(c.Statistics) == 0 {
		return fmt.Errorf("no statistics configured")
	}
	seen := make(map[Statistic]bool)
	for _, s := range c.Statistics {
		switch s {
		case StatMean, StatMedian, StatMax, StatMin:
		default:
			return fmt.Errorf("unsupported statistic %q", s)
		}
		if seen[s] {
			return fmt.Errorf("statistic %q configured twice", s)
		}
		seen[s] = true
	}
	if len(c.TargetFields) == 0 {
		return fmt.Errorf("no target fields configured")
	}
	for _, f := range c.TargetFields {
		if f == hydro.CompositeColumn {
			continue
		}
		if code, ok := dimensionField(f); !ok || !hydro.IsKnownDimension(code) {
			return fmt.Errorf("unknown target field %q", f)
		}
	}
	return nil
}

// DefaultConfig aggregates the composite score with the mean statistic.
func DefaultConfig() Config {
	return Config{
		Statistics:   []Statistic{StatMean},
		TargetFields: []string{hydro.CompositeColumn},
	}
}

func dimensionField(field string) (hydro.DimensionCode, bool) {
	const prefix = "ire_cs_"
	if len(field) <= len(prefix) || field[:len(prefix)] != prefix {
		return "", false
	}
	return hydro.DimensionCode(field[len(prefix):]), true
}

// Contribution is one scored source piece intersecting a target unit: the
// source unit's score paired with the fraction of the target's area the
// intersection covers. Pieces whose source score is null never become
// contributions; they are filtered out during the join.
type Contribution struct {
	Score  float64
	Weight float64
}

// Engine computes weighted statistics over contribution sets. All statistics
// for one target unit are computed from the same filtered set, so they never
// disagree about which pieces were included.
type Engine struct {
	cfg Config
}

// NewEngine validates the configuration and creates an engine. A bad
// configuration fails the whole batch here, before any target is aggregated.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("aggregation config: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Aggregate computes every configured statistic over one target's
// contributions. An empty contribution set yields a null for every statistic:
// no scored basin touches the target, which is missing data, not an error.
func (e *Engine) Aggregate(contribs []Contribution) map[Statistic]*float64 {
	out := make(map[Statistic]*float64, len(e.cfg.Statistics))
	for _, s := range e.cfg.Statistics {
		out[s] = nil
	}
	if len(contribs) == 0 {
		return out
	}

	if e.cfg.RenormalizeWeights {
		contribs = renormalize(contribs)
	}

	for _, s := range e.cfg.Statistics {
		var v float64
		switch s {
		case StatMean:
			v = weightedMean(contribs)
		case StatMedian:
			v = weightedMedian(contribs)
		case StatMax:
			v = extremum(contribs, func(a, b float64) bool { return a > b })
		case StatMin:
			v = extremum(contribs, func(a, b float64) bool { return a < b })
		}
		val := v
		out[s] = &val
	}
	return out
}

// Coverage is the summed raw area fraction of a contribution set. Under the
// default policy it may be below 1 when part of the target is covered only by
// unscored basins, or not covered at all.
func Coverage(contribs []Contribution) float64 {
	var sum float64
	for _, c := range contribs {
		sum += c.Weight
	}
	return sum
}

func renormalize(contribs []Contribution) []Contribution {
	total := Coverage(contribs)
	if total == 0 {
		return contribs
	}
	out := make([]Contribution, len(contribs))
	for i, c := range contribs {
		out[i] = Contribution{Score: c.Score, Weight: c.Weight / total}
	}
	return out
}

// weightedMean is Σ(score·weight) / Σ(weight). The denominator is the summed
// weight of the contributions actually present, not the full target area.
func weightedMean(contribs []Contribution) float64 {
	var num, den float64
	for _, c := range contribs {
		num += c.Score * c.Weight
		den += c.Weight
	}
	if den == 0 {
		// All-zero weights cannot happen for positive-area intersections,
		// but guard the division anyway.
		return contribs[0].Score
	}
	return num / den
}

// weightedMedian sorts contributions by score and returns the first score at
// which the cumulative weight reaches or exceeds half the total weight. An
// exact boundary hit therefore selects the lower of the two candidate scores;
// the rule is deterministic and covered by tests.
func weightedMedian(contribs []Contribution) float64 {
	sorted := make([]Contribution, len(contribs))
	copy(sorted, contribs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })

	half := Coverage(sorted) / 2
	var cum float64
	for _, c := range sorted {
		cum += c.Weight
		if cum >= half {
			return c.Score
		}
	}
	return sorted[len(sorted)-1].Score
}

// extremum returns the unweighted max or min score. Any source unit with a
// positive-area intersection counts once, regardless of how much area it
// contributes.
func extremum(contribs []Contribution, better func(a, b float64) bool) float64 {
	best := contribs[0].Score
	for _, c := range contribs[1:] {
		if better(c.Score, best) {
			best = c.Score
		}
	}
	return best
}
