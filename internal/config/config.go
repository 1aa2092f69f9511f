// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package config loads the application configuration from YAML and supplies
// documented defaults for everything not set.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration. The core consumes these
// options but does not own them; every field has a default so an empty file
// (or no file) yields a working setup.
type Config struct {
	Defaults struct {
		Language string   `yaml:"language"`
		Entities []string `yaml:"entities"`
		Debug    bool     `yaml:"debug"`
		NoColor  bool     `yaml:"no_color"`
	} `yaml:"defaults"`

	Detection struct {
		MinConfidence    float64 `yaml:"min_confidence"`
		QuestionableHigh float64 `yaml:"questionable_high"`
		// Aggregation of per-token model scores into a span confidence:
		// "min" or "mean".
		Aggregation string `yaml:"confidence_aggregation"`
	} `yaml:"detection"`

	Masking struct {
		Mode          string `yaml:"mode"`           // mask | redact | remove
		MaskFormat    string `yaml:"mask_format"`    // TOKEN | PARTIAL_REVEAL
		ReviewQueue   bool   `yaml:"review_queue"`   // route questionable entities to review
		OutputDir     string `yaml:"output_dir"`     // masked artifact destination
		DryRun        bool   `yaml:"dry_run"`        // detect and report without writing
		PartialReveal bool   `yaml:"-"`              // derived from MaskFormat
	} `yaml:"masking"`

	Validation struct {
		ResidualPolicy string `yaml:"residual_policy"` // warn | fail | block-output
	} `yaml:"validation"`

	Processing struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"processing"`

	Caps struct {
		MaxRows     int   `yaml:"max_rows"`
		MaxPDFPages int   `yaml:"max_pdf_pages"`
		MaxBytes    int64 `yaml:"max_bytes"`
	} `yaml:"caps"`

	Models struct {
		PrimaryPath       string `yaml:"primary_path"`
		SecondaryPath     string `yaml:"secondary_path"`
		MaxSequenceLength int    `yaml:"max_sequence_length"`
	} `yaml:"models"`
}

// LoadConfig loads configuration from the specified file path. An empty
// path returns the defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := defaultConfig()

	if configPath == "" {
		return config, nil
	}

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	config.Masking.PartialReveal = config.Masking.MaskFormat == "PARTIAL_REVEAL"
	return config, nil
}

// LoadConfigOrDefault loads configuration from configFile (or searches
// standard locations when configFile is empty). If loading fails, it
// returns the default configuration; callers should not crash on a
// missing or bad config file.
func LoadConfigOrDefault(configFile string) *Config {
	configPath := configFile
	if configPath == "" {
		configPath = FindConfigFile()
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		cfg, _ = LoadConfig("")
	}
	return cfg
}

func defaultConfig() *Config {
	config := &Config{}

	config.Defaults.Language = "en"
	config.Defaults.Entities = []string{"all"}

	config.Detection.MinConfidence = 0.35
	config.Detection.QuestionableHigh = 0.65
	config.Detection.Aggregation = "min"

	config.Masking.Mode = "mask"
	config.Masking.MaskFormat = "TOKEN"
	config.Masking.OutputDir = "./masked"

	config.Validation.ResidualPolicy = "warn"

	config.Processing.Concurrency = defaultConcurrency()

	config.Caps.MaxRows = 100000
	config.Caps.MaxPDFPages = 100
	config.Caps.MaxBytes = 10 << 20

	config.Models.MaxSequenceLength = 4096

	return config
}

// defaultConcurrency targets laptop-grade hardware: all cores, capped so a
// big machine does not swamp the model with parallel inference calls.
func defaultConcurrency() int {
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}

func validate(config *Config) error {
	d := &config.Detection
	if d.MinConfidence < 0 || d.MinConfidence > 1 {
		return fmt.Errorf("min_confidence %v out of range [0,1]", d.MinConfidence)
	}
	if d.QuestionableHigh < 0 || d.QuestionableHigh > 1 {
		return fmt.Errorf("questionable_high %v out of range [0,1]", d.QuestionableHigh)
	}
	if d.MinConfidence > d.QuestionableHigh {
		return fmt.Errorf("min_confidence %v above questionable_high %v", d.MinConfidence, d.QuestionableHigh)
	}
	if d.Aggregation != "" && d.Aggregation != "min" && d.Aggregation != "mean" {
		return fmt.Errorf("unknown confidence_aggregation %q", d.Aggregation)
	}

	switch config.Masking.Mode {
	case "", "mask", "redact", "remove":
	default:
		return fmt.Errorf("unknown masking mode %q", config.Masking.Mode)
	}

	switch config.Validation.ResidualPolicy {
	case "", "warn", "fail", "block-output":
	default:
		return fmt.Errorf("unknown residual_policy %q", config.Validation.ResidualPolicy)
	}

	if config.Processing.Concurrency < 0 {
		return fmt.Errorf("concurrency must be positive, got %d", config.Processing.Concurrency)
	}

	return nil
}

// EnabledEntities converts the configured entity list into an
// enabled-checks map. An empty list or ["all"] enables every type.
func (c *Config) EnabledEntities(known []string) map[string]bool {
	result := make(map[string]bool, len(known))
	for _, t := range known {
		result[t] = false
	}

	if len(c.Defaults.Entities) == 0 ||
		(len(c.Defaults.Entities) == 1 && c.Defaults.Entities[0] == "all") {
		for t := range result {
			result[t] = true
		}
		return result
	}

	for _, t := range c.Defaults.Entities {
		if _, exists := result[t]; exists {
			result[t] = true
		}
	}
	return result
}

// FindConfigFile looks for a configuration file in standard locations.
func FindConfigFile() string {
	for _, name := range []string{"config.yaml", "cloak-scan.yaml", "cloak-scan.yml", ".cloak-scan.yaml"} {
		if fileExists(name) {
			return name
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	for _, name := range []string{"config.yaml", "config.yml"} {
		candidate := filepath.Join(xdgConfig, "cloak-scan", name)
		if fileExists(candidate) {
			return candidate
		}
	}

	return ""
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
