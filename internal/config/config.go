// Package config provides configuration loading and validation for the
// titer analysis pipeline.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultSourceURL is the DOI resolver link of the publication hosting the
// titer table.
const DefaultSourceURL = "https://doi.org/10.1371/journal.pone.0131531"

// defaultUserAgent identifies the tool to the publisher's servers.
const defaultUserAgent = "titerplot/1.0 (+https://github.com/serolab/titerplot)"

// Config represents the main configuration structure
type Config struct {
	General   GeneralConfig   `toml:"general"`
	Source    SourceConfig    `toml:"source"`
	Normalize NormalizeConfig `toml:"normalize"`
	Derive    DeriveConfig    `toml:"derive"`
	Plot      PlotConfig      `toml:"plot"`
}

// GeneralConfig contains general settings
type GeneralConfig struct {
	OutputDir string `toml:"output_dir"`
	Timeout   string `toml:"timeout"`
	UserAgent string `toml:"user_agent"`
}

// SourceConfig pins down where the table lives: the page URL, the table's
// position among all tables on the page, and the position of the embedded
// column-header row. These are the layout assumptions most likely to break
// when the publisher changes the page, so they live in one place.
type SourceConfig struct {
	URL        string `toml:"url"`
	TableIndex int    `toml:"table_index"`
	// HeaderRow is -1 when the table carries no embedded column-header row.
	HeaderRow int `toml:"header_row"`
}

// NormalizeConfig names the sentinel strings used by the source table.
type NormalizeConfig struct {
	BelowDetection string  `toml:"below_detection"`
	DetectionFloor float64 `toml:"detection_floor"`
	NoSample       string  `toml:"no_sample"`
}

// DeriveConfig controls the derived cohort descriptors.
type DeriveConfig struct {
	ElderlyAge int `toml:"elderly_age"`
}

// PlotConfig controls the rendered scatter plot.
type PlotConfig struct {
	Width      int     `toml:"width"`
	Height     int     `toml:"height"`
	Confidence float64 `toml:"confidence"`
}

// TimeoutDuration parses the timeout string into a Duration
func (g GeneralConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(g.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Default returns the built-in configuration for the known source layout.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// validatePath checks for path traversal attempts
func validatePath(path string) error {
	cleanPath := filepath.Clean(path)

	// Reject sequences that climb above the working directory.
	if strings.HasPrefix(cleanPath, "..") || strings.Contains(cleanPath, "../") {
		return fmt.Errorf("path contains invalid traversal sequence: %s", path)
	}

	return nil
}

// Load reads and parses the TOML configuration file
func Load(path string) (*Config, error) {
	// Validate path for security
	if err := validatePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	// #nosec G304 - Path validated above, this is intentional file inclusion
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.General.OutputDir == "" {
		cfg.General.OutputDir = "./results"
	}
	if cfg.General.Timeout == "" {
		cfg.General.Timeout = "30s"
	}
	if cfg.General.UserAgent == "" {
		cfg.General.UserAgent = defaultUserAgent
	}
	if cfg.Source.URL == "" {
		cfg.Source.URL = DefaultSourceURL
	}
	if cfg.Normalize.BelowDetection == "" {
		cfg.Normalize.BelowDetection = "<4"
	}
	if cfg.Normalize.DetectionFloor == 0 {
		cfg.Normalize.DetectionFloor = 1
	}
	if cfg.Normalize.NoSample == "" {
		cfg.Normalize.NoSample = "NS"
	}
	if cfg.Derive.ElderlyAge == 0 {
		cfg.Derive.ElderlyAge = 65
	}
	if cfg.Plot.Width == 0 {
		cfg.Plot.Width = 900
	}
	if cfg.Plot.Height == 0 {
		cfg.Plot.Height = 600
	}
	if cfg.Plot.Confidence == 0 {
		cfg.Plot.Confidence = 0.95
	}
}

func validate(cfg *Config) error {
	sourceURL, err := url.Parse(cfg.Source.URL)
	if err != nil {
		return fmt.Errorf("source URL is invalid: %w", err)
	}
	if sourceURL.Scheme != "http" && sourceURL.Scheme != "https" {
		return fmt.Errorf("source URL must use http or https, got %q", cfg.Source.URL)
	}
	if cfg.Source.TableIndex < 0 {
		return fmt.Errorf("table_index must be >= 0, got %d", cfg.Source.TableIndex)
	}
	if cfg.Source.HeaderRow < -1 {
		return fmt.Errorf("header_row must be >= -1, got %d", cfg.Source.HeaderRow)
	}
	if cfg.Normalize.DetectionFloor <= 0 {
		return fmt.Errorf("detection_floor must be > 0, got %v", cfg.Normalize.DetectionFloor)
	}
	if cfg.Derive.ElderlyAge <= 0 {
		return fmt.Errorf("elderly_age must be > 0, got %d", cfg.Derive.ElderlyAge)
	}
	if cfg.Plot.Width <= 0 || cfg.Plot.Height <= 0 {
		return fmt.Errorf("plot dimensions must be > 0, got %dx%d", cfg.Plot.Width, cfg.Plot.Height)
	}
	switch cfg.Plot.Confidence {
	case 0.90, 0.95, 0.99:
	default:
		return fmt.Errorf("plot confidence must be one of 0.90, 0.95 or 0.99, got %v", cfg.Plot.Confidence)
	}
	return nil
}

// Save writes the configuration to a TOML file
func (c *Config) Save(path string) error {
	// Validate path for security
	if err := validatePath(path); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}

	// #nosec G304 - Path validated above, this is intentional file creation
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
