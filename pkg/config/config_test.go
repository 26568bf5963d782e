package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Scenario.EPSG != 4674 {
		t.Errorf("expected default EPSG 4674, got %d", cfg.Scenario.EPSG)
	}
	if cfg.Scenario.SourceIDField != "cobacia" {
		t.Errorf("expected default source id field cobacia, got %q", cfg.Scenario.SourceIDField)
	}
	if cfg.Scenario.TargetIDField != "id_apresent" {
		t.Errorf("expected default target id field id_apresent, got %q", cfg.Scenario.TargetIDField)
	}
	if len(cfg.Scenario.Statistics) != 1 || cfg.Scenario.Statistics[0] != "mean" {
		t.Errorf("expected default statistics [mean], got %v", cfg.Scenario.Statistics)
	}
	if cfg.Storage.Backend != "local" {
		t.Errorf("expected default storage backend local, got %q", cfg.Storage.Backend)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "non-existent file returns defaults",
			yaml: "", // signal: don't create a file
			check: func(t *testing.T, cfg *Config) {
				if cfg.Scenario.EPSG != 4674 {
					t.Errorf("expected default EPSG, got %d", cfg.Scenario.EPSG)
				}
			},
		},
		{
			name: "valid YAML overrides defaults",
			yaml: `
scenario:
  epsg: 5880
  statistics:
    - mean
    - median
  target_fields:
    - cs_ish
    - ire_cs_hum
  renormalize_weights: true
  overlay_workers: 4
storage:
  backend: s3
  bucket: ishlunc-artifacts
`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Scenario.EPSG != 5880 {
					t.Errorf("expected EPSG 5880, got %d", cfg.Scenario.EPSG)
				}
				if len(cfg.Scenario.Statistics) != 2 {
					t.Errorf("expected 2 statistics, got %v", cfg.Scenario.Statistics)
				}
				if !cfg.Scenario.RenormalizeWeights {
					t.Error("expected renormalize_weights to be set")
				}
				if cfg.Scenario.OverlayWorkers != 4 {
					t.Errorf("expected 4 overlay workers, got %d", cfg.Scenario.OverlayWorkers)
				}
				// Untouched sections keep their defaults.
				if cfg.Scenario.SourceIDField != "cobacia" {
					t.Errorf("expected default source id field, got %q", cfg.Scenario.SourceIDField)
				}
				if cfg.Storage.Backend != "s3" || cfg.Storage.Bucket != "ishlunc-artifacts" {
					t.Errorf("expected s3 storage config, got %+v", cfg.Storage)
				}
			},
		},
		{
			name:    "malformed YAML",
			yaml:    "scenario: [not a map",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if tt.yaml != "" {
				if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
					t.Fatalf("writing config: %v", err)
				}
			}

			cfg, err := Load(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && err == nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgDir := filepath.Join(root, ".ishlunc")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := filepath.Join(cfgDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("scenario:\n  epsg: 4674\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	if got := FindConfigFile(nested); got != cfgPath {
		t.Errorf("expected %q from a nested directory, got %q", cfgPath, got)
	}
	if got := FindConfigFile(t.TempDir()); got != "" {
		t.Errorf("expected no config file, got %q", got)
	}
}

func TestScenarioDirs(t *testing.T) {
	if got := ScenarioDir("/data", "atlas"); got != filepath.Join("/data", "cnr_atlas") {
		t.Errorf("unexpected scenario dir %q", got)
	}
	if got := InputDir("/data", "atlas"); got != filepath.Join("/data", "cnr_atlas", "input") {
		t.Errorf("unexpected input dir %q", got)
	}
	if got := OutputDir("/data", "atlas"); got != filepath.Join("/data", "cnr_atlas", "output") {
		t.Errorf("unexpected output dir %q", got)
	}
}

func TestEnsureScenarioDirs(t *testing.T) {
	root := t.TempDir()
	if err := EnsureScenarioDirs(root, "atlas"); err != nil {
		t.Fatalf("EnsureScenarioDirs: %v", err)
	}
	for _, dir := range []string{InputDir(root, "atlas"), OutputDir(root, "atlas")} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory %s, err=%v", dir, err)
		}
	}
}
