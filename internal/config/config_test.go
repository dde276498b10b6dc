package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
[general]
output_dir = "./output"
timeout = "60s"
user_agent = "titerplot-test/1.0"

[source]
url = "https://doi.org/10.1371/journal.pone.0131531"
table_index = 2
header_row = 1

[normalize]
below_detection = "<10"
detection_floor = 5.0
no_sample = "n/a"

[derive]
elderly_age = 60

[plot]
width = 1200
height = 800
confidence = 0.99
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.General.OutputDir != "./output" {
		t.Errorf("expected output_dir ./output, got %s", cfg.General.OutputDir)
	}
	if cfg.General.Timeout != "60s" {
		t.Errorf("expected timeout 60s, got %s", cfg.General.Timeout)
	}
	if cfg.Source.TableIndex != 2 || cfg.Source.HeaderRow != 1 {
		t.Errorf("source layout not loaded: %+v", cfg.Source)
	}
	if cfg.Normalize.BelowDetection != "<10" || cfg.Normalize.DetectionFloor != 5 {
		t.Errorf("normalize section not loaded: %+v", cfg.Normalize)
	}
	if cfg.Derive.ElderlyAge != 60 {
		t.Errorf("expected elderly_age 60, got %d", cfg.Derive.ElderlyAge)
	}
	if cfg.Plot.Width != 1200 || cfg.Plot.Confidence != 0.99 {
		t.Errorf("plot section not loaded: %+v", cfg.Plot)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	content := `
[source]
url = "https://example.com/article"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.General.OutputDir != "./results" {
		t.Errorf("expected default output_dir ./results, got %s", cfg.General.OutputDir)
	}
	if cfg.General.Timeout != "30s" {
		t.Errorf("expected default timeout 30s, got %s", cfg.General.Timeout)
	}
	if cfg.Source.TableIndex != 0 || cfg.Source.HeaderRow != 0 {
		t.Errorf("expected first-table/first-row defaults, got %+v", cfg.Source)
	}
	if cfg.Normalize.BelowDetection != "<4" || cfg.Normalize.DetectionFloor != 1 || cfg.Normalize.NoSample != "NS" {
		t.Errorf("expected sentinel defaults, got %+v", cfg.Normalize)
	}
	if cfg.Derive.ElderlyAge != 65 {
		t.Errorf("expected default elderly_age 65, got %d", cfg.Derive.ElderlyAge)
	}
	if cfg.Plot.Width != 900 || cfg.Plot.Height != 600 || cfg.Plot.Confidence != 0.95 {
		t.Errorf("expected plot defaults, got %+v", cfg.Plot)
	}
}

func TestDefault_MatchesKnownSource(t *testing.T) {
	cfg := Default()

	if cfg.Source.URL != DefaultSourceURL {
		t.Errorf("expected default source URL, got %s", cfg.Source.URL)
	}
	if cfg.Source.TableIndex != 0 {
		t.Errorf("expected target table to be the first, got %d", cfg.Source.TableIndex)
	}
	if cfg.Normalize.BelowDetection != "<4" || cfg.Normalize.NoSample != "NS" {
		t.Errorf("unexpected default sentinels: %+v", cfg.Normalize)
	}
}

func TestLoad_MissingFileError(t *testing.T) {
	_, err := Load("/nonexistent/path/config.toml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoad_InvalidTOMLError(t *testing.T) {
	_, err := Load(writeConfig(t, `this is not valid toml [[[`))
	if err == nil {
		t.Fatal("expected error for invalid TOML, got nil")
	}
}

func TestLoad_PathTraversal(t *testing.T) {
	_, err := Load("../../etc/config.toml")
	if err == nil {
		t.Fatal("expected error for traversal path, got nil")
	}
}

func TestLoad_BadTableIndex(t *testing.T) {
	content := `
[source]
table_index = -2
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("expected error for negative table index, got nil")
	}
	if err.Error() != "table_index must be >= 0, got -2" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestLoad_BadHeaderRow(t *testing.T) {
	content := `
[source]
header_row = -3
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("expected error for bad header row, got nil")
	}
	if err.Error() != "header_row must be >= -1, got -3" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestLoad_BadScheme(t *testing.T) {
	content := `
[source]
url = "ftp://example.com/data"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("expected error for non-http scheme, got nil")
	}
}

func TestLoad_BadDetectionFloor(t *testing.T) {
	content := `
[normalize]
detection_floor = -1.0
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("expected error for negative detection floor, got nil")
	}
	if err.Error() != "detection_floor must be > 0, got -1" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestLoad_BadConfidence(t *testing.T) {
	content := `
[plot]
confidence = 0.5
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("expected error for unsupported confidence level, got nil")
	}
	if err.Error() != "plot confidence must be one of 0.90, 0.95 or 0.99, got 0.5" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestSave_LoadRoundtrip(t *testing.T) {
	original := Default()
	original.General.OutputDir = "./test-output"
	original.Source.TableIndex = 1
	original.Plot.Confidence = 0.99

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "roundtrip.toml")

	if err := original.Save(configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.General.OutputDir != original.General.OutputDir {
		t.Errorf("output_dir mismatch: %s vs %s", loaded.General.OutputDir, original.General.OutputDir)
	}
	if loaded.Source.TableIndex != original.Source.TableIndex {
		t.Errorf("table_index mismatch: %d vs %d", loaded.Source.TableIndex, original.Source.TableIndex)
	}
	if loaded.Plot.Confidence != original.Plot.Confidence {
		t.Errorf("confidence mismatch: %v vs %v", loaded.Plot.Confidence, original.Plot.Confidence)
	}
}

func TestTimeoutDuration_Parse(t *testing.T) {
	tests := []struct {
		input    string
		expected int64 // milliseconds
	}{
		{"30s", 30000},
		{"1m", 60000},
		{"500ms", 500},
		{"2h", 7200000},
	}

	for _, tt := range tests {
		g := GeneralConfig{Timeout: tt.input}
		d := g.TimeoutDuration()
		if d.Milliseconds() != tt.expected {
			t.Errorf("TimeoutDuration(%s) = %dms, want %dms", tt.input, d.Milliseconds(), tt.expected)
		}
	}
}

func TestTimeoutDuration_Invalid(t *testing.T) {
	g := GeneralConfig{Timeout: "invalid"}
	d := g.TimeoutDuration()
	if d != 30000000000 { // 30s in nanoseconds
		t.Errorf("expected default 30s for invalid duration, got %v", d)
	}
}
