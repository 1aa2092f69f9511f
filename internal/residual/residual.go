// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package residual re-runs detection over masked output to confirm no PII
// survived masking. This is the pipeline's core correctness check.
package residual

import (
	"context"
	"fmt"
	"strings"

	"cloak-scan/internal/entity"
	"cloak-scan/internal/errs"
	"cloak-scan/internal/fusion"
)

// Policy decides what a residual finding does to the run.
type Policy int

const (
	// PolicyWarn reports findings without failing the run.
	PolicyWarn Policy = iota
	// PolicyFail reports findings and signals a policy violation.
	PolicyFail
	// PolicyBlockOutput discards the masked artifact and reports failure.
	PolicyBlockOutput
)

// ParsePolicy maps a config string to a Policy, defaulting to warn.
func ParsePolicy(s string) Policy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fail":
		return PolicyFail
	case "block-output":
		return PolicyBlockOutput
	default:
		return PolicyWarn
	}
}

// String returns the string representation of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyFail:
		return "fail"
	case PolicyBlockOutput:
		return "block-output"
	default:
		return "warn"
	}
}

// DetectFunc runs the full detection stack (rules plus tagger) over one
// unit and returns raw matches.
type DetectFunc func(ctx context.Context, unit entity.TextUnit) ([]entity.EntityMatch, error)

// Validator re-extracts entities from masked units. Any fused entity that
// is not rejected-band counts as residual PII.
type Validator struct {
	detect DetectFunc
	engine *fusion.Engine
	policy Policy
}

// NewValidator creates a Validator using the same detection stack and
// thresholds as the first pass.
func NewValidator(detect DetectFunc, engine *fusion.Engine, policy Policy) *Validator {
	return &Validator{detect: detect, engine: engine, policy: policy}
}

// Policy returns the validator's residual policy.
func (v *Validator) Policy() Policy { return v.policy }

// Validate scans the masked units. A detection error on one unit does not
// hide findings from the others; the first error is returned alongside
// whatever was found.
func (v *Validator) Validate(ctx context.Context, maskedUnits []entity.TextUnit) ([]entity.ResidualFinding, error) {
	var findings []entity.ResidualFinding
	var firstErr error

	for _, unit := range maskedUnits {
		if err := ctx.Err(); err != nil {
			return findings, err
		}

		matches, err := v.detect(ctx, unit)
		if err != nil {
			if firstErr == nil {
				firstErr = &errs.MatcherError{UnitID: unit.ID, Detector: "residual", Err: err}
			}
			continue
		}

		for _, ent := range v.engine.Fuse(unit, matches) {
			if ent.Band == entity.BandRejected {
				continue
			}
			findings = append(findings, entity.ResidualFinding{
				UnitID: unit.ID,
				Entity: ent,
			})
		}
	}

	return findings, firstErr
}

// Enforce applies the residual policy to the findings. Warn never errors;
// fail and block-output surface a PolicyViolation. Callers honoring
// block-output must discard the masked artifact before reporting.
func (v *Validator) Enforce(findings []entity.ResidualFinding) error {
	if len(findings) == 0 || v.policy == PolicyWarn {
		return nil
	}
	return &errs.PolicyViolation{
		Reason: fmt.Sprintf("%d residual PII finding(s) after masking (policy %s)", len(findings), v.policy),
	}
}
