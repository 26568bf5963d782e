package surface

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ishlunc/ishlunc/pkg/pipeline"
)

// CSVRenderer writes the target table as CSV: one row per reporting unit,
// one column per (field, statistic) pair. Nulls are written as empty cells.
type CSVRenderer struct{}

func (r *CSVRenderer) Render(w io.Writer, result *pipeline.Result) error {
	cw := csv.NewWriter(w)

	header := []string{"unit_id", "area_apresent_km2"}
	for _, field := range result.Fields {
		for _, stat := range result.Statistics {
			header = append(header, pipeline.Column(field, stat))
		}
		header = append(header, field+"_coverage")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i := range result.Targets {
		t := &result.Targets[i]
		row := []string{
			strconv.FormatInt(t.UnitID, 10),
			strconv.FormatFloat(t.AreaKm2, 'f', 6, 64),
		}
		for _, field := range result.Fields {
			stats := t.Values[field]
			for _, stat := range result.Statistics {
				row = append(row, formatCell(stats[stat]))
			}
			row = append(row, strconv.FormatFloat(t.Coverage[field], 'f', 6, 64))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing unit %d: %w", t.UnitID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}
