// Package aggregate computes area-weighted statistics of basin scores over
// the units of a reporting partition.
package aggregate

import (
	"fmt"
	"strings"
)

// Statistic names one supported aggregation.
type Statistic string

const (
	StatMean   Statistic = "mean"
	StatMedian Statistic = "median"
	StatMax    Statistic = "max"
	StatMin    Statistic = "min"
)

// SupportedStatistics returns the statistics in canonical output order.
func SupportedStatistics() []Statistic {
	return []Statistic{StatMean, StatMedian, StatMax, StatMin}
}

// ParseStatistics resolves user-facing statistic arguments. Each argument may
// itself be a comma-separated list; "all" expands to the full supported set.
// Unknown names are an error, raised before any aggregation runs.
func ParseStatistics(args []string) ([]Statistic, error) {
	var out []Statistic
	seen := make(map[Statistic]bool)
	add := func(s Statistic) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			name := strings.ToLower(strings.TrimSpace(part))
			if name == "" {
				continue
			}
			if name == "all" {
				for _, s := range SupportedStatistics() {
					add(s)
				}
				continue
			}
			s := Statistic(name)
			switch s {
			case StatMean, StatMedian, StatMax, StatMin:
				add(s)
			default:
				return nil, fmt.Errorf("unsupported statistic %q (supported: mean, median, max, min, all)", name)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no statistics requested")
	}
	return out, nil
}
