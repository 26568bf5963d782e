// Package config handles loading and managing ISH-LUNC configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Scenario ScenarioConfig `yaml:"scenario"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
}

// ScenarioConfig controls pipeline behavior.
type ScenarioConfig struct {
	// EPSG is the planar CRS both layers are expected in.
	EPSG int `yaml:"epsg"`
	// SourceIDField is the basin identifier property in the source layer.
	SourceIDField string `yaml:"source_id_field"`
	// TargetIDField is the identifier property in the presentation layer.
	TargetIDField string `yaml:"target_id_field"`
	// Dimensions restricts which dimension codes the composer recognizes.
	// Empty means the full registry.
	Dimensions []string `yaml:"dimensions"`
	// Statistics to compute by default when the CLI gets no --agg flag.
	Statistics []string `yaml:"statistics"`
	// TargetFields to aggregate by default.
	TargetFields []string `yaml:"target_fields"`
	// RenormalizeWeights scales weights to sum to 1 per target unit after
	// null-score exclusion.
	RenormalizeWeights bool `yaml:"renormalize_weights"`
	// OverlayWorkers bounds overlay parallelism; 0 or 1 means sequential.
	OverlayWorkers int `yaml:"overlay_workers"`
}

// DatabaseConfig configures the daemon's postgres store.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig configures the artifact store backend.
type StorageConfig struct {
	Backend   string `yaml:"backend"` // local, s3 or gcs
	BaseDir   string `yaml:"base_dir"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scenario: ScenarioConfig{
			EPSG:          4674, // SIRGAS 2000, the national basin layer datum
			SourceIDField: "cobacia",
			TargetIDField: "id_apresent",
			Statistics:    []string{"mean"},
			TargetFields:  []string{"cs_ish"},
		},
		Storage: StorageConfig{
			Backend: "local",
			BaseDir: filepath.Join(os.TempDir(), "ishlunc-data"),
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// FindConfigFile looks for .ishlunc/config.yaml in the given directory and
// its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".ishlunc", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// ScenarioDir returns the base directory of a scenario under root,
// e.g. cnr_atlas2035.
func ScenarioDir(root, scenario string) string {
	return filepath.Join(root, "cnr_"+scenario)
}

// InputDir returns the scenario's input directory.
func InputDir(root, scenario string) string {
	return filepath.Join(ScenarioDir(root, scenario), "input")
}

// OutputDir returns the scenario's output directory.
func OutputDir(root, scenario string) string {
	return filepath.Join(ScenarioDir(root, scenario), "output")
}

// EnsureScenarioDirs creates the scenario's input and output directories.
func EnsureScenarioDirs(root, scenario string) error {
	for _, dir := range []string{InputDir(root, scenario), OutputDir(root, scenario)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
