// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"
	"time"

	"cloak-scan/internal/entity"
)

// Report summarizes one document run: entity counts by type and band,
// per-stage errors, and whether detection was degraded to rule-only mode.
// It never contains entity text.
type Report struct {
	RunID     string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	UnitCount int            `json:"unit_count"`
	ByType    map[string]int `json:"by_type"`
	ByBand    map[string]int `json:"by_band"`
	Residual  int            `json:"residual_findings"`
	RuleOnly  bool           `json:"rule_only"`
	Errors    []StageError   `json:"errors,omitempty"`
}

// StageError records a non-fatal failure isolated to one unit and stage.
type StageError struct {
	UnitID  string `json:"unit_id,omitempty"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

func newReport(runID string, unitCount int) *Report {
	return &Report{
		RunID:     runID,
		StartedAt: time.Now(),
		UnitCount: unitCount,
		ByType:    make(map[string]int),
		ByBand:    make(map[string]int),
	}
}

func (r *Report) countEntities(entities []entity.FusedEntity) {
	for _, ent := range entities {
		r.ByType[ent.Type]++
		r.ByBand[ent.Band.String()]++
	}
}

func (r *Report) addError(unitID, stage string, err error) {
	r.Errors = append(r.Errors, StageError{
		UnitID:  unitID,
		Stage:   stage,
		Message: err.Error(),
	})
}

func (r *Report) finish(elapsed time.Duration, findings []entity.ResidualFinding, ruleOnly bool) {
	r.Duration = elapsed
	r.Residual = len(findings)
	r.RuleOnly = ruleOnly
}

// EntityTotal returns the total number of fused entities counted.
func (r *Report) EntityTotal() int {
	total := 0
	for _, n := range r.ByType {
		total += n
	}
	return total
}

// Summary renders a short human-readable summary line for CLI output.
func (r *Report) Summary() string {
	return fmt.Sprintf("run %s: %d units, %d entities (%d accepted, %d questionable), %d residual finding(s) in %s",
		r.RunID, r.UnitCount, r.EntityTotal(),
		r.ByBand[entity.BandAccepted.String()],
		r.ByBand[entity.BandQuestionable.String()],
		r.Residual, r.Duration.Round(time.Millisecond))
}
