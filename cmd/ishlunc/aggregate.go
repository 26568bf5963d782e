package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ishlunc/ishlunc/pkg/aggregate"
	"github.com/ishlunc/ishlunc/pkg/config"
	"github.com/ishlunc/ishlunc/pkg/hydro"
	"github.com/ishlunc/ishlunc/pkg/overlay"
	"github.com/ishlunc/ishlunc/pkg/pipeline"
	"github.com/ishlunc/ishlunc/pkg/surface"
)

func newAggregateCmd() *cobra.Command {
	var (
		rootDir     string
		inputLayer  string
		idField     string
		epsg        int
		aggs        []string
		fields      []string
		renormalize bool
		workers     int
		outputFmt   string
	)

	cmd := &cobra.Command{
		Use:   "aggregate <scenario> <presentation.geojson>",
		Short: "Aggregate basin scores onto a presentation layer",
		Long: `Loads a scored basin layer and a presentation layer, computes the area
fraction of every basin/unit intersection, and aggregates the requested
statistics per presentation unit.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(cmd, aggregateOpts{
				scenario:     args[0],
				presentation: args[1],
				rootDir:      rootDir,
				inputLayer:   inputLayer,
				idField:      idField,
				epsg:         epsg,
				aggs:         aggs,
				fields:       fields,
				renormalize:  renormalize,
				workers:      workers,
				outputFmt:    outputFmt,
			})
		},
	}

	cmd.Flags().StringVar(&rootDir, "root", ".", "Directory containing the cnr_<scenario> folder")
	cmd.Flags().StringVar(&inputLayer, "input-layer", "", "Scored basin layer (default: cnr_<scenario>/output/ish_cnr_<scenario>.geojson)")
	cmd.Flags().StringVar(&idField, "id-field", "", "Identifier property in the presentation layer (default from config, usually id_apresent)")
	cmd.Flags().IntVar(&epsg, "epsg", 0, "Planar CRS of the layers (default from config)")
	cmd.Flags().StringSliceVar(&aggs, "agg", nil, "Statistics: mean, median, max, min or all (repeatable)")
	cmd.Flags().StringSliceVar(&fields, "field", nil, "Score fields to aggregate: cs_ish, dimension codes, or all (repeatable)")
	cmd.Flags().BoolVar(&renormalize, "renormalize", false, "Rescale weights to sum to 1 per unit after null-score exclusion")
	cmd.Flags().IntVar(&workers, "workers", 0, "Overlay worker goroutines (default from config; 0 = sequential)")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text, json or csv")

	return cmd
}

type aggregateOpts struct {
	scenario     string
	presentation string
	rootDir      string
	inputLayer   string
	idField      string
	epsg         int
	aggs         []string
	fields       []string
	renormalize  bool
	workers      int
	outputFmt    string
}

func runAggregate(cmd *cobra.Command, opts aggregateOpts) error {
	cfg := loadCLIConfig()

	aggCfg, err := buildAggregateConfig(cfg.Scenario, opts)
	if err != nil {
		return err
	}

	epsg := opts.epsg
	if epsg == 0 {
		epsg = cfg.Scenario.EPSG
	}

	inputLayer := opts.inputLayer
	if inputLayer == "" {
		inputLayer = filepath.Join(config.OutputDir(opts.rootDir, opts.scenario),
			fmt.Sprintf("ish_cnr_%s.geojson", opts.scenario))
	}

	fmt.Fprintf(os.Stderr, "Loading scored basins: %s\n", inputLayer)
	source, err := hydro.LoadPartition(inputLayer, hydro.LoadOptions{
		EPSG:    epsg,
		IDField: cfg.Scenario.SourceIDField,
	})
	if err != nil {
		return err
	}

	idField := firstNonEmpty(opts.idField, cfg.Scenario.TargetIDField)
	fmt.Fprintf(os.Stderr, "Loading presentation layer: %s\n", opts.presentation)
	target, err := hydro.LoadPartition(opts.presentation, hydro.LoadOptions{
		EPSG:    epsg,
		IDField: idField,
	})
	if err != nil {
		return err
	}

	workers := opts.workers
	if workers == 0 {
		workers = cfg.Scenario.OverlayWorkers
	}

	orch := &pipeline.Orchestrator{
		Composer: nil, // the input layer is already composed
		Weighter: &overlay.Weighter{Workers: workers},
	}

	fmt.Fprintf(os.Stderr, "Computing intersections (this may take time)...\n")
	result, err := runComposedAggregation(cmd, orch, opts.scenario, source, target, aggCfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "  %d intersections across %d units\n",
		result.Stats.Intersections, result.Stats.TargetUnits)

	// Persist the aggregated layer next to the composed one.
	fc, err := result.TargetFeatureCollection()
	if err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(opts.presentation), filepath.Ext(opts.presentation))
	outPath := filepath.Join(config.OutputDir(opts.rootDir, opts.scenario),
		fmt.Sprintf("agg_%s.geojson", base))
	if err := writeFeatureCollection(outPath, fc); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Layer saved: %s\n", outPath)

	return renderResult(opts.outputFmt, result)
}

// buildAggregateConfig resolves flags against the config file defaults,
// failing on unknown statistics or fields before any work happens.
func buildAggregateConfig(sc config.ScenarioConfig, opts aggregateOpts) (aggregate.Config, error) {
	statArgs := opts.aggs
	if len(statArgs) == 0 {
		statArgs = sc.Statistics
	}
	stats, err := aggregate.ParseStatistics(statArgs)
	if err != nil {
		return aggregate.Config{}, err
	}

	fieldArgs := opts.fields
	if len(fieldArgs) == 0 {
		fieldArgs = sc.TargetFields
	}
	fields, err := pipeline.ParseTargetFields(fieldArgs)
	if err != nil {
		return aggregate.Config{}, err
	}

	return aggregate.Config{
		Statistics:         stats,
		TargetFields:       fields,
		RenormalizeWeights: opts.renormalize || sc.RenormalizeWeights,
	}, nil
}

// runComposedAggregation runs the overlay and aggregation stages over an
// already-composed source layer.
func runComposedAggregation(cmd *cobra.Command, orch *pipeline.Orchestrator, scenario string, source, target *hydro.Partition, aggCfg aggregate.Config) (*pipeline.Result, error) {
	// The layer already carries cs_ish; re-composing would double-count it.
	result, err := orch.RunComposed(cmd.Context(), pipeline.Scenario{
		Name:   scenario,
		Source: source,
		Target: target,
		Config: aggCfg,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func renderResult(format string, result *pipeline.Result) error {
	var renderer surface.Renderer
	switch format {
	case "json":
		renderer = &surface.JSONRenderer{}
	case "csv":
		renderer = &surface.CSVRenderer{}
	case "text", "":
		renderer = &surface.TerminalRenderer{}
	default:
		return fmt.Errorf("unknown output format %q (want text, json or csv)", format)
	}
	return renderer.Render(os.Stdout, result)
}
