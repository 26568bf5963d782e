package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ishlunc/ishlunc/pkg/config"
	"github.com/ishlunc/ishlunc/pkg/hydro"
	"github.com/ishlunc/ishlunc/pkg/overlay"
	"github.com/ishlunc/ishlunc/pkg/pipeline"
)

func newRunCmd() *cobra.Command {
	var (
		rootDir     string
		idField     string
		targetID    string
		epsg        int
		aggs        []string
		fields      []string
		renormalize bool
		workers     int
		outputFmt   string
	)

	cmd := &cobra.Command{
		Use:   "run <scenario> <presentation.geojson>",
		Short: "Compose and aggregate in one pass",
		Long: `Runs the full pipeline: merges the scenario's dimension tables into the
basin layer, composes the index, intersects with the presentation layer,
and writes both the scored and the aggregated layers.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFullPipeline(cmd, runOpts{
				scenario:     args[0],
				presentation: args[1],
				rootDir:      rootDir,
				idField:      idField,
				targetID:     targetID,
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
	cmd.Flags().StringVar(&idField, "id-field", "", "Basin identifier property (default from config, usually cobacia)")
	cmd.Flags().StringVar(&targetID, "target-id-field", "", "Identifier property in the presentation layer (default from config)")
	cmd.Flags().IntVar(&epsg, "epsg", 0, "Planar CRS of the layers (default from config)")
	cmd.Flags().StringSliceVar(&aggs, "agg", nil, "Statistics: mean, median, max, min or all (repeatable)")
	cmd.Flags().StringSliceVar(&fields, "field", nil, "Score fields to aggregate: cs_ish, dimension codes, or all (repeatable)")
	cmd.Flags().BoolVar(&renormalize, "renormalize", false, "Rescale weights to sum to 1 per unit after null-score exclusion")
	cmd.Flags().IntVar(&workers, "workers", 0, "Overlay worker goroutines (default from config; 0 = sequential)")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text, json or csv")

	return cmd
}

type runOpts struct {
	scenario     string
	presentation string
	rootDir      string
	idField      string
	targetID     string
	epsg         int
	aggs         []string
	fields       []string
	renormalize  bool
	workers      int
	outputFmt    string
}

func runFullPipeline(cmd *cobra.Command, opts runOpts) error {
	cfg := loadCLIConfig()

	aggCfg, err := buildAggregateConfig(cfg.Scenario, aggregateOpts{
		aggs:        opts.aggs,
		fields:      opts.fields,
		renormalize: opts.renormalize,
	})
	if err != nil {
		return err
	}

	epsg := opts.epsg
	if epsg == 0 {
		epsg = cfg.Scenario.EPSG
	}

	if err := config.EnsureScenarioDirs(opts.rootDir, opts.scenario); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Running scenario %s\n", opts.scenario)
	source, err := loadSourceLayer(config.InputDir(opts.rootDir, opts.scenario), hydro.LoadOptions{
		Name:    "bho_area",
		EPSG:    epsg,
		IDField: firstNonEmpty(opts.idField, cfg.Scenario.SourceIDField),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Loading presentation layer: %s\n", opts.presentation)
	target, err := hydro.LoadPartition(opts.presentation, hydro.LoadOptions{
		EPSG:    epsg,
		IDField: firstNonEmpty(opts.targetID, cfg.Scenario.TargetIDField),
	})
	if err != nil {
		return err
	}

	workers := opts.workers
	if workers == 0 {
		workers = cfg.Scenario.OverlayWorkers
	}
	orch := &pipeline.Orchestrator{
		Composer: newComposer(cfg.Scenario),
		Weighter: &overlay.Weighter{Workers: workers},
	}

	result, err := orch.Run(cmd.Context(), pipeline.Scenario{
		Name:   opts.scenario,
		Source: source,
		Target: target,
		Config: aggCfg,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "  Composed %d basins (%d scored), %d intersections\n",
		result.Stats.SourceUnits, result.Stats.ScoredSources, result.Stats.Intersections)

	sourceFC, err := result.SourceFeatureCollection()
	if err != nil {
		return err
	}
	scoredPath := filepath.Join(config.OutputDir(opts.rootDir, opts.scenario),
		fmt.Sprintf("ish_cnr_%s.geojson", opts.scenario))
	if err := writeFeatureCollection(scoredPath, sourceFC); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Layer saved: %s\n", scoredPath)

	targetFC, err := result.TargetFeatureCollection()
	if err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(opts.presentation), filepath.Ext(opts.presentation))
	aggPath := filepath.Join(config.OutputDir(opts.rootDir, opts.scenario),
		fmt.Sprintf("agg_%s.geojson", base))
	if err := writeFeatureCollection(aggPath, targetFC); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Layer saved: %s\n", aggPath)

	return renderResult(opts.outputFmt, result)
}
