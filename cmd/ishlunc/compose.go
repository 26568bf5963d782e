package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ishlunc/ishlunc/pkg/config"
	"github.com/ishlunc/ishlunc/pkg/hydro"
	"github.com/ishlunc/ishlunc/pkg/pipeline"
)

func newComposeCmd() *cobra.Command {
	var (
		rootDir string
		idField string
		epsg    int
		output  string
	)

	cmd := &cobra.Command{
		Use:   "compose <scenario>",
		Short: "Compute the composite index per basin",
		Long: `Loads the scenario's basin layer and dimension tables, computes the
composite index per ottobacia, and writes the scored layer.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompose(composeOpts{
				scenario: args[0],
				rootDir:  rootDir,
				idField:  idField,
				epsg:     epsg,
				output:   output,
			})
		},
	}

	cmd.Flags().StringVar(&rootDir, "root", ".", "Directory containing the cnr_<scenario> folder")
	cmd.Flags().StringVar(&idField, "id-field", "", "Basin identifier property (default from config, usually cobacia)")
	cmd.Flags().IntVar(&epsg, "epsg", 0, "Planar CRS of the layers (default from config)")
	cmd.Flags().StringVar(&output, "output", "", "Output path (default: cnr_<scenario>/output/ish_cnr_<scenario>.geojson)")

	return cmd
}

type composeOpts struct {
	scenario string
	rootDir  string
	idField  string
	epsg     int
	output   string
}

func runCompose(opts composeOpts) error {
	cfg := loadCLIConfig()
	idField := firstNonEmpty(opts.idField, cfg.Scenario.SourceIDField)
	epsg := opts.epsg
	if epsg == 0 {
		epsg = cfg.Scenario.EPSG
	}

	if err := config.EnsureScenarioDirs(opts.rootDir, opts.scenario); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Composing scenario %s\n", opts.scenario)
	source, err := loadSourceLayer(config.InputDir(opts.rootDir, opts.scenario), hydro.LoadOptions{
		Name:    "bho_area",
		EPSG:    epsg,
		IDField: idField,
	})
	if err != nil {
		return err
	}

	scores := pipeline.ComposeAll(newComposer(cfg.Scenario), source)
	scored := 0
	for i := range scores {
		if scores[i].Composite != nil {
			scored++
		}
	}
	fmt.Fprintf(os.Stderr, "  Composed %d basins (%d scored)\n", len(scores), scored)

	fc, err := pipeline.SourceFeatures(source, scores)
	if err != nil {
		return err
	}

	outPath := opts.output
	if outPath == "" {
		outPath = filepath.Join(config.OutputDir(opts.rootDir, opts.scenario),
			fmt.Sprintf("ish_cnr_%s.geojson", opts.scenario))
	}
	if err := writeFeatureCollection(outPath, fc); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Layer saved: %s\n", outPath)
	return nil
}
