package surface

import (
	"fmt"
	"io"
	"os"

	"github.com/ishlunc/ishlunc/pkg/pipeline"
)

// TerminalRenderer renders a pipeline result as colored terminal output.
type TerminalRenderer struct {
	// MaxRows bounds how many target rows are printed; 0 means the default.
	MaxRows int
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

const defaultMaxRows = 20

func scoreColor(v float64) string {
	if noColor() {
		return ""
	}
	switch {
	case v >= 4:
		return colorGreen
	case v >= 2.5:
		return colorYellow
	default:
		return colorRed
	}
}

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func bold(s string) string {
	if noColor() {
		return s
	}
	return colorBold + s + colorReset
}

func dim(s string) string {
	if noColor() {
		return s
	}
	return colorDim + s + colorReset
}

func colored(s, color string) string {
	if noColor() || color == "" {
		return s
	}
	return color + s + colorReset
}

func (r *TerminalRenderer) Render(w io.Writer, result *pipeline.Result) error {
	fmt.Fprintf(w, "%s\n\n", bold(fmt.Sprintf("ISH-LUNC: scenario %s", result.Scenario)))

	fmt.Fprintf(w, "Analyzed: %d basins (%d scored) / %d reporting units / %d intersections (%d ms)\n\n",
		result.Stats.SourceUnits, result.Stats.ScoredSources,
		result.Stats.TargetUnits, result.Stats.Intersections, result.Stats.ElapsedMs)

	maxRows := r.MaxRows
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}

	shown := 0
	for i := range result.Targets {
		if shown >= maxRows {
			fmt.Fprintf(w, "  %s\n", dim(fmt.Sprintf("... and %d more units", len(result.Targets)-shown)))
			break
		}
		t := &result.Targets[i]
		fmt.Fprintf(w, "  %s", bold(fmt.Sprintf("unit %d", t.UnitID)))
		for _, field := range result.Fields {
			stats := t.Values[field]
			for _, stat := range result.Statistics {
				col := pipeline.Column(field, stat)
				v := stats[stat]
				if v == nil {
					fmt.Fprintf(w, "  %s", dim(col+"=null"))
					continue
				}
				fmt.Fprintf(w, "  %s=%s", col, colored(fmt.Sprintf("%.2f", *v), scoreColor(*v)))
			}
		}
		if cov, ok := t.Coverage[firstField(result.Fields)]; ok && cov < 0.999 {
			fmt.Fprintf(w, "  %s", dim(fmt.Sprintf("coverage=%.2f", cov)))
		}
		fmt.Fprintln(w)
		shown++
	}
	fmt.Fprintln(w)

	return nil
}

func firstField(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
