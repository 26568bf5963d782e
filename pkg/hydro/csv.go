package hydro

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DimensionTable holds one dimension's scores keyed by basin id, as loaded
// from a dim_*.csv file.
type DimensionTable struct {
	// Column is the dimension column header, e.g. "ire_cs_hum".
	Column string
	// Code is the dimension code parsed from the column name. It may be a
	// code outside the registry; the composer ignores those.
	Code DimensionCode
	// Values maps basin id to score. Blank, unparseable and non-positive
	// cells are stored as nil.
	Values map[int64]*float64
}

// LoadDimensionCSV reads a dimension table from disk.
func LoadDimensionCSV(path string) (*DimensionTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dimension table: %w", err)
	}
	defer f.Close()

	t, err := ReadDimensionTable(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return t, nil
}

// ReadDimensionTable parses a dimension CSV. The table must have a "cobacia"
// column and exactly one other column, which carries the dimension scores.
// Headers are matched case-insensitively. Both comma- and semicolon-separated
// files occur in the wild (semicolon files pair with decimal commas), so the
// separator is sniffed from the header line.
func ReadDimensionTable(r io.Reader) (*DimensionTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}

	cr := csv.NewReader(strings.NewReader(string(data)))
	cr.Comma = sniffSeparator(data)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	idCol := -1
	dimCol := -1
	var dimName string
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "cobacia" {
			idCol = i
			continue
		}
		if dimCol >= 0 {
			return nil, fmt.Errorf("expected exactly one dimension column, found %q and %q", dimName, name)
		}
		dimCol = i
		dimName = name
	}
	if idCol < 0 {
		return nil, fmt.Errorf("missing cobacia column")
	}
	if dimCol < 0 {
		return nil, fmt.Errorf("missing dimension column")
	}

	code, ok := dimensionFromColumn(dimName)
	if !ok {
		code = DimensionCode(dimName)
	}

	t := &DimensionTable{Column: dimName, Code: code, Values: make(map[int64]*float64)}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(rec[idCol]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: cobacia %q is not an integer", line, rec[idCol])
		}
		t.Values[id] = parseScore(rec[dimCol])
	}
	return t, nil
}

// sniffSeparator picks the separator from the header line.
func sniffSeparator(data []byte) rune {
	line, _, _ := strings.Cut(string(data), "\n")
	if strings.Contains(line, ";") {
		return ';'
	}
	return ','
}

// parseScore converts one cell to an optional score. Blanks and unparseable
// values are null. Non-positive values are also treated as null: upstream
// dimension exports use 0 to mean "not evaluated", and a real score is never
// below 1 on the grading scale.
func parseScore(cell string) *float64 {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return nil
	}
	if f <= 0 {
		return nil
	}
	return &f
}

// ApplyDimension merges a dimension table into a source partition, the CSV
// counterpart of a left join on cobacia. Basins absent from the table keep a
// null score; table rows for unknown basins are ignored.
func ApplyDimension(p *Partition, t *DimensionTable) {
	for i := range p.Units {
		u := &p.Units[i]
		v, ok := t.Values[u.ID]
		if !ok {
			v = nil
		}
		u.setDimension(t.Code, v)
	}
}
