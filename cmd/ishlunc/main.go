// Package main provides the ishlunc CLI entry point.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/spf13/cobra"

	"github.com/ishlunc/ishlunc/pkg/compose"
	"github.com/ishlunc/ishlunc/pkg/config"
	"github.com/ishlunc/ishlunc/pkg/hydro"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "ishlunc",
		Short: "Water security index over hydrographic basins",
		Long: `ishlunc computes the composite water security index (ISH) per ottobacia
and re-expresses it over arbitrary reporting units via area-weighted
aggregation.`,
		Version: version,
	}

	rootCmd.AddCommand(
		newComposeCmd(),
		newAggregateCmd(),
		newRunCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadCLIConfig finds and loads the nearest .ishlunc/config.yaml, falling
// back to defaults.
func loadCLIConfig() *config.Config {
	wd, err := os.Getwd()
	if err != nil {
		return config.DefaultConfig()
	}
	cfg, err := config.Load(config.FindConfigFile(wd))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: bad config file, using defaults: %v\n", err)
		return config.DefaultConfig()
	}
	return cfg
}

// loadSourceLayer reads the basin layer and merges every dim_*.csv table
// found next to it.
func loadSourceLayer(inputDir string, opts hydro.LoadOptions) (*hydro.Partition, error) {
	layerPath := filepath.Join(inputDir, "bho_area.geojson")
	p, err := hydro.LoadPartition(layerPath, opts)
	if err != nil {
		return nil, err
	}

	tables, err := filepath.Glob(filepath.Join(inputDir, "dim_*.csv"))
	if err != nil {
		return nil, fmt.Errorf("listing dimension tables: %w", err)
	}
	sort.Strings(tables)
	for _, path := range tables {
		t, err := hydro.LoadDimensionCSV(path)
		if err != nil {
			return nil, err
		}
		hydro.ApplyDimension(p, t)
		fmt.Fprintf(os.Stderr, "  Merged %s (%d basins)\n", filepath.Base(path), len(t.Values))
	}
	return p, nil
}

// writeFeatureCollection saves a GeoJSON layer, replacing any existing file.
func writeFeatureCollection(path string, fc geom.GeoJSONFeatureCollection) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling layer: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing layer: %w", err)
	}
	return nil
}

// newComposer builds the composer, honoring a configured dimension subset.
func newComposer(sc config.ScenarioConfig) *compose.Composer {
	codes := make([]hydro.DimensionCode, 0, len(sc.Dimensions))
	for _, c := range sc.Dimensions {
		codes = append(codes, hydro.DimensionCode(c))
	}
	return compose.NewComposer(codes...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
