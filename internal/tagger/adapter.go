// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package tagger wraps the black-box sequence-tagging model behind a small
// Model interface and converts its token-level BIO output into entity spans.
// When no model is usable the adapter degrades to an empty match list so the
// pipeline can keep running in rule-only mode.
package tagger

import (
	"context"
	"sync"

	"cloak-scan/internal/entity"
	"cloak-scan/internal/observability"
)

// TokenLabel is one labeled token from the model: a BIO-style label, a
// half-open byte span into the input text, and a per-token score.
type TokenLabel struct {
	Label string
	Start int
	End   int
	Score float64
}

// Model is the black-box token classifier. Predict must return labels in
// input order with offsets relative to text.
type Model interface {
	Name() string
	// MaxSequenceLength is the longest input, in bytes, the model accepts
	// in one call. Longer units are chunked by the adapter.
	MaxSequenceLength() int
	Predict(ctx context.Context, text string) ([]TokenLabel, error)
}

// Aggregation selects how a merged span's confidence is derived from its
// token scores.
type Aggregation int

const (
	// AggregationMin takes the weakest token score. Default: a span is
	// only as trustworthy as its least certain token.
	AggregationMin Aggregation = iota
	// AggregationMean averages the token scores.
	AggregationMean
)

// ParseAggregation maps a config string to an Aggregation, defaulting to min.
func ParseAggregation(s string) Aggregation {
	if s == "mean" {
		return AggregationMean
	}
	return AggregationMin
}

// Adapter runs the primary model and falls back to the secondary one on
// inference errors. It is safe for concurrent use.
type Adapter struct {
	primary   Model
	secondary Model
	agg       Aggregation
	observer  *observability.StandardObserver

	mu       sync.Mutex
	degraded bool
}

// New creates an Adapter. Either model may be nil; with both nil the adapter
// is permanently degraded and every Detect call returns no matches.
func New(primary, secondary Model, agg Aggregation, observer *observability.StandardObserver) *Adapter {
	a := &Adapter{
		primary:   primary,
		secondary: secondary,
		agg:       agg,
		observer:  observer,
	}
	if primary == nil && secondary == nil {
		a.degraded = true
	}
	return a
}

// Available reports whether a model is still usable. False means the
// pipeline is running rule-only and output metadata should say so.
func (a *Adapter) Available() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.degraded
}

// Detect runs the model over the unit's text, chunking when the unit
// exceeds the model's maximum sequence length. It returns ml-sourced
// matches with offsets relative to the unit's text. Model failure never
// fails the unit: the adapter falls back, then degrades to empty output.
func (a *Adapter) Detect(ctx context.Context, unit entity.TextUnit) ([]entity.EntityMatch, error) {
	if !a.Available() || unit.Text == "" {
		return nil, nil
	}

	var finish func(bool, map[string]interface{})
	if a.observer != nil {
		finish = a.observer.StartTiming("ml_tagger", "detect", unit.ID)
	}

	spans, err := a.predict(ctx, a.primary, unit.Text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		spans, err = a.predict(ctx, a.secondary, unit.Text)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Both models failed: switch to rule-only mode for the rest of
		// the run instead of aborting the document.
		a.mu.Lock()
		a.degraded = true
		a.mu.Unlock()
		if finish != nil {
			finish(false, map[string]interface{}{"error": err.Error(), "degraded": true})
		}
		return nil, nil
	}

	if finish != nil {
		finish(true, map[string]interface{}{"match_count": len(spans)})
	}
	return spans, nil
}

// predict chunks the text if needed, runs the model per chunk, merges BIO
// labels into spans, and de-duplicates matches found in overlap regions.
func (a *Adapter) predict(ctx context.Context, m Model, text string) ([]entity.EntityMatch, error) {
	if m == nil {
		return nil, errNoModel
	}

	maxLen := m.MaxSequenceLength()
	if maxLen <= 0 || len(text) <= maxLen {
		labels, err := m.Predict(ctx, text)
		if err != nil {
			return nil, err
		}
		return mergeBIO(text, labels, 0, a.agg), nil
	}

	// Chunk with bounded overlap so an entity straddling a boundary is
	// seen whole by at least one chunk.
	overlap := maxLen / 8
	if overlap > 256 {
		overlap = 256
	}
	step := maxLen - overlap

	var all []chunkedMatch
	for offset := 0; offset < len(text); offset += step {
		// Cooperative cancellation between chunks: a user cancel must
		// not wait for the whole document.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := offset + maxLen
		if end > len(text) {
			end = len(text)
		}
		labels, err := m.Predict(ctx, text[offset:end])
		if err != nil {
			return nil, err
		}
		for _, match := range mergeBIO(text[offset:end], labels, offset, a.agg) {
			all = append(all, chunkedMatch{
				match:   match,
				context: contextWindow(match, offset, end),
			})
		}
		if end == len(text) {
			break
		}
	}

	return dedupOverlaps(all), nil
}

// chunkedMatch carries the context window a match was seen with: the
// distance to the nearest chunk edge. Matches rediscovered in an overlap
// region keep the occurrence with the larger window.
type chunkedMatch struct {
	match   entity.EntityMatch
	context int
}

func contextWindow(m entity.EntityMatch, chunkStart, chunkEnd int) int {
	before := m.Start - chunkStart
	after := chunkEnd - m.End
	if before < after {
		return before
	}
	return after
}

// dedupOverlaps removes duplicate detections of the same entity from
// adjacent chunks. Two matches duplicate each other when they share a type
// and their spans overlap; the one seen with more surrounding context wins.
func dedupOverlaps(matches []chunkedMatch) []entity.EntityMatch {
	var kept []chunkedMatch
	for _, cm := range matches {
		replaced := false
		dup := false
		for i, k := range kept {
			if cm.match.Type != k.match.Type {
				continue
			}
			if cm.match.Start < k.match.End && cm.match.End > k.match.Start {
				dup = true
				if cm.context > k.context {
					kept[i] = cm
					replaced = true
				}
				break
			}
		}
		if !dup && !replaced {
			kept = append(kept, cm)
		}
	}

	out := make([]entity.EntityMatch, 0, len(kept))
	for _, k := range kept {
		out = append(out, k.match)
	}
	return out
}
