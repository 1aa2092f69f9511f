// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package fusion merges rule and ML matches for one TextUnit into a single
// non-overlapping, confidence-banded entity list.
package fusion

import (
	"sort"

	"cloak-scan/internal/entity"
)

// Default confidence thresholds. Below MinConfidence a match is rejected
// outright; from MinConfidence up to (but excluding) QuestionableHigh it is
// routed to review; at QuestionableHigh and above it is accepted.
const (
	DefaultMinConfidence    = 0.35
	DefaultQuestionableHigh = 0.65
)

// Engine fuses per-unit matches. It is stateless and safe for concurrent
// use.
type Engine struct {
	minConfidence    float64
	questionableHigh float64
}

// NewEngine creates an Engine with the given thresholds. Zero values fall
// back to the defaults.
func NewEngine(minConfidence, questionableHigh float64) *Engine {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	if questionableHigh <= 0 {
		questionableHigh = DefaultQuestionableHigh
	}
	return &Engine{
		minConfidence:    minConfidence,
		questionableHigh: questionableHigh,
	}
}

// Band classifies a confidence value. Banding is total: every value lands
// in exactly one band, with both thresholds inclusive on their upper side.
func (e *Engine) Band(confidence float64) entity.Band {
	switch {
	case confidence < e.minConfidence:
		return entity.BandRejected
	case confidence < e.questionableHigh:
		return entity.BandQuestionable
	default:
		return entity.BandAccepted
	}
}

// Fuse resolves overlaps between all matches for one unit and returns the
// surviving entities, banded, normalized, ordered by start. Rejected-band
// matches are dropped and never surfaced. The returned entities never
// overlap.
func (e *Engine) Fuse(unit entity.TextUnit, matches []entity.EntityMatch) []entity.FusedEntity {
	if len(matches) == 0 {
		return nil
	}

	sorted := make([]entity.EntityMatch, len(matches))
	copy(sorted, matches)

	// Earliest start first; ties go to the longer span, then the higher
	// confidence, then rule before ML so output is deterministic.
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End > b.End
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.Source < b.Source
	})

	var accepted []entity.EntityMatch
	for _, m := range sorted {
		if m.End <= m.Start || m.Start < 0 || m.End > len(unit.Text) {
			continue
		}

		var overlapping []int
		for i, a := range accepted {
			if m.Start < a.End && m.End > a.Start {
				overlapping = append(overlapping, i)
			}
		}

		if len(overlapping) == 0 {
			accepted = append(accepted, m)
			continue
		}

		// The incoming match survives only if it beats every entity it
		// overlaps; otherwise the earlier-sorted winners stand.
		wins := true
		for _, i := range overlapping {
			if !beats(m, accepted[i]) {
				wins = false
				break
			}
		}
		if !wins {
			continue
		}

		kept := accepted[:0]
		skip := make(map[int]bool, len(overlapping))
		for _, i := range overlapping {
			skip[i] = true
		}
		for i, a := range accepted {
			if !skip[i] {
				kept = append(kept, a)
			}
		}
		accepted = append(kept, m)
	}

	var fused []entity.FusedEntity
	for _, m := range accepted {
		band := e.Band(m.Confidence)
		if band == entity.BandRejected {
			continue
		}
		fused = append(fused, entity.FusedEntity{
			Type:       m.Type,
			Start:      m.Start,
			End:        m.End,
			Text:       m.Text,
			Normalized: entity.Normalize(m.Type, m.Text),
			Confidence: m.Confidence,
			Band:       band,
		})
	}

	sort.Slice(fused, func(i, j int) bool { return fused[i].Start < fused[j].Start })
	return fused
}

// beats reports whether the incoming match displaces an already-accepted
// one it overlaps. Format validation is stronger evidence than a soft
// classifier, so a rule match for a structured type always wins against an
// ML match. True ties keep the earlier-sorted (longer) span.
func beats(incoming, existing entity.EntityMatch) bool {
	if incoming.Source == entity.SourceRule && entity.IsStructured(incoming.Type) &&
		existing.Source == entity.SourceML {
		return true
	}
	if existing.Source == entity.SourceRule && entity.IsStructured(existing.Type) &&
		incoming.Source == entity.SourceML {
		return false
	}
	return incoming.Confidence > existing.Confidence
}
