package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/imgprep/errors"
)

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Split         struct {
		Percentages []float64 `mapstructure:"percentages"`
		Names       []string  `mapstructure:"names"`
	} `mapstructure:"split"`
	Output struct {
		Format  string `mapstructure:"format"`
		Storage struct {
			BasePath string `mapstructure:"base_path"`
		} `mapstructure:"storage"`
	} `mapstructure:"output"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestServiceConfig_ApplyDefaults(t *testing.T) {
	cfg := ServiceConfig{Debug: true}
	cfg.ApplyDefaults()
	if cfg.Name != "imgprep" || cfg.Environment != "development" {
		t.Errorf("defaults = %q/%q", cfg.Name, cfg.Environment)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.ServiceName != "imgprep" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestServiceConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*ServiceConfig)
	}{
		{"bad environment", func(c *ServiceConfig) { c.Environment = "qa" }},
		{"bad log level", func(c *ServiceConfig) { c.Logging.Level = "loud" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := ServiceConfig{}
			cfg.ApplyDefaults()
			tc.mod(&cfg)
			if err := cfg.Validate(); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
				t.Fatalf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestLoadConfig_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "prep.yml", `
name: prep-test
environment: staging
split:
  percentages: [0.7, 0.3]
  names: [train, val]
output:
  format: png
  storage:
    base_path: out
`)
	t.Setenv("IMGPREP_OUTPUT_FORMAT", "jpeg")
	t.Setenv("IMGPREP_SPLIT_PERCENTAGES", "0.8,0.2")
	t.Setenv("IMGPREP_OUTPUT_STORAGE_BASE_PATH", "/data/out")
	t.Setenv("OUTPUT_FORMAT", "bmp")

	var cfg testConfig
	if err := LoadConfig("imgprep", &cfg, WithConfigFile(file), WithFileSystem(RealFileSystem{})); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "prep-test" || cfg.Environment != "staging" {
		t.Errorf("service = %q/%q", cfg.Name, cfg.Environment)
	}
	if diff := cmp.Diff([]float64{0.8, 0.2}, cfg.Split.Percentages); diff != "" {
		t.Errorf("percentages (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"train", "val"}, cfg.Split.Names); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if cfg.Output.Format != "jpeg" {
		t.Errorf("format = %q, unprefixed env must not apply", cfg.Output.Format)
	}
	if cfg.Output.Storage.BasePath != "/data/out" {
		t.Errorf("base path = %q", cfg.Output.Storage.BasePath)
	}
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "prep.yml", "name: from-file\n")
	env := writeFile(t, dir, ".env", "IMGPREP_ENVIRONMENT=production\n")
	t.Cleanup(func() { os.Unsetenv("IMGPREP_ENVIRONMENT") })

	var cfg testConfig
	if err := LoadConfig("imgprep", &cfg, WithConfigFile(file), WithEnvFile(env)); err != nil {
		t.Fatal(err)
	}
	if cfg.Environment != "production" {
		t.Errorf("environment = %q", cfg.Environment)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("imgprep", &cfg, WithConfigFile(filepath.Join(t.TempDir(), "nope.yml")))
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestLoadConfig_BrokenYAML(t *testing.T) {
	file := writeFile(t, t.TempDir(), "bad.yml", "split: [unterminated\n")
	var cfg testConfig
	if err := LoadConfig("imgprep", &cfg, WithConfigFile(file)); !errors.HasCode(err, errors.ErrCodeIO) {
		t.Fatalf("expected IO error, got %v", err)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool { return m.files[path] }
func (m *mockFS) LoadEnv(string) error    { return nil }

func TestResolver_SearchOrder(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./config/imgprep.yml": true,
		"./config.yml":         true,
		"./.env":               true,
	}}
	got := (&Resolver{FileSystem: fs}).ResolveFiles("imgprep", LoaderConfig{})
	want := ResolvedFiles{ConfigFile: "./config/imgprep.yml", EnvFile: "./.env"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resolved (-want +got):\n%s", diff)
	}

	explicit := (&Resolver{FileSystem: fs}).ResolveFiles("imgprep", LoaderConfig{ConfigFile: "x.yml"})
	if explicit.ConfigFile != "x.yml" {
		t.Errorf("explicit path replaced by %q", explicit.ConfigFile)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("SPLIT_PERCENTAGES")
	if diff := cmp.Diff([]string{"split_percentages", "split.percentages"}, got); diff != "" {
		t.Errorf("variants (-want +got):\n%s", diff)
	}
	found := false
	for _, v := range envKeyVariants("OUTPUT_STORAGE_BASE_PATH") {
		if v == "output.storage.base_path" {
			found = true
		}
	}
	if !found {
		t.Error("nested variant missing")
	}
	if diff := cmp.Diff([]string{"debug"}, envKeyVariants("DEBUG")); diff != "" {
		t.Errorf("single key (-want +got):\n%s", diff)
	}
}
