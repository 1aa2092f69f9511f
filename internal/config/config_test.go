// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 0.35, cfg.Detection.MinConfidence)
	assert.Equal(t, 0.65, cfg.Detection.QuestionableHigh)
	assert.Equal(t, "min", cfg.Detection.Aggregation)
	assert.Equal(t, "mask", cfg.Masking.Mode)
	assert.Equal(t, "TOKEN", cfg.Masking.MaskFormat)
	assert.Equal(t, "warn", cfg.Validation.ResidualPolicy)
	assert.Equal(t, 100000, cfg.Caps.MaxRows)
	assert.Equal(t, 100, cfg.Caps.MaxPDFPages)
	assert.Positive(t, cfg.Processing.Concurrency)
	assert.LessOrEqual(t, cfg.Processing.Concurrency, 8)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
detection:
  min_confidence: 0.4
  questionable_high: 0.8
  confidence_aggregation: mean
masking:
  mode: redact
  mask_format: PARTIAL_REVEAL
  review_queue: true
validation:
  residual_policy: block-output
processing:
  concurrency: 2
caps:
  max_rows: 500
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0.4, cfg.Detection.MinConfidence)
	assert.Equal(t, 0.8, cfg.Detection.QuestionableHigh)
	assert.Equal(t, "mean", cfg.Detection.Aggregation)
	assert.Equal(t, "redact", cfg.Masking.Mode)
	assert.True(t, cfg.Masking.PartialReveal)
	assert.True(t, cfg.Masking.ReviewQueue)
	assert.Equal(t, "block-output", cfg.Validation.ResidualPolicy)
	assert.Equal(t, 2, cfg.Processing.Concurrency)
	assert.Equal(t, 500, cfg.Caps.MaxRows)
	// Untouched sections keep their defaults.
	assert.Equal(t, 100, cfg.Caps.MaxPDFPages)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"confidence out of range", "detection:\n  min_confidence: 1.5\n"},
		{"inverted thresholds", "detection:\n  min_confidence: 0.9\n  questionable_high: 0.5\n"},
		{"bad aggregation", "detection:\n  confidence_aggregation: median\n"},
		{"bad mode", "masking:\n  mode: shred\n"},
		{"bad policy", "validation:\n  residual_policy: explode\n"},
		{"negative concurrency", "processing:\n  concurrency: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigOrDefaultFallsBack(t *testing.T) {
	cfg := LoadConfigOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NotNil(t, cfg)
	assert.Equal(t, "mask", cfg.Masking.Mode)
}

func TestEnabledEntities(t *testing.T) {
	known := []string{"EMAIL", "PHONE", "PERSON"}

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	enabled := cfg.EnabledEntities(known)
	assert.True(t, enabled["EMAIL"] && enabled["PHONE"] && enabled["PERSON"])

	cfg.Defaults.Entities = []string{"EMAIL", "UNKNOWN"}
	enabled = cfg.EnabledEntities(known)
	assert.True(t, enabled["EMAIL"])
	assert.False(t, enabled["PHONE"])
	_, hasUnknown := enabled["UNKNOWN"]
	assert.False(t, hasUnknown)
}
