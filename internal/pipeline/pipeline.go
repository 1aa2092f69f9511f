// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pipeline wires detection, fusion, token assignment, masking, and
// residual validation into one document run, and exposes the four
// operations external collaborators call: Detect, RegisterReviewed, Mask,
// and Validate.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"cloak-scan/internal/entity"
	"cloak-scan/internal/errs"
	"cloak-scan/internal/fusion"
	"cloak-scan/internal/masking"
	"cloak-scan/internal/observability"
	"cloak-scan/internal/residual"
	"cloak-scan/internal/rules"
	"cloak-scan/internal/tagger"
	"cloak-scan/internal/tokens"
)

// Options configures a Pipeline.
type Options struct {
	Matcher     *rules.Matcher
	Tagger      *tagger.Adapter
	Fusion      *fusion.Engine
	Masker      *masking.Engine
	Residual    *residual.Validator
	Observer    *observability.StandardObserver
	Concurrency int
	// AutoAcceptQuestionable masks questionable-band entities without
	// review. Off, they are surfaced as ReviewItems and stay unmasked
	// until a decision is registered.
	AutoAcceptQuestionable bool
}

// Pipeline runs the detection and masking stages for one document at a
// time. Reviewer decisions are the only state it accumulates; everything
// else is per-call.
type Pipeline struct {
	matcher     *rules.Matcher
	tagger      *tagger.Adapter
	fusion      *fusion.Engine
	masker      *masking.Engine
	residual    *residual.Validator
	observer    *observability.StandardObserver
	concurrency int
	autoAccept  bool

	mu        sync.Mutex
	decisions map[reviewKey]bool // true = accepted, false = rejected
}

type reviewKey struct {
	unitID     string
	entityType string
	start      int
	end        int
}

// New creates a Pipeline. A nil Residual validator disables the post-mask
// check (tests only; production configs always set one).
func New(opts Options) *Pipeline {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		matcher:     opts.Matcher,
		tagger:      opts.Tagger,
		fusion:      opts.Fusion,
		masker:      opts.Masker,
		residual:    opts.Residual,
		observer:    opts.Observer,
		concurrency: concurrency,
		autoAccept:  opts.AutoAcceptQuestionable,
		decisions:   make(map[reviewKey]bool),
	}
}

// RuleOnly reports whether the run is degraded to rule-only detection.
func (p *Pipeline) RuleOnly() bool {
	return p.tagger == nil || !p.tagger.Available()
}

// Detect runs both detection sources over one unit and fuses the results.
// It is side-effect-free over its input: the unit is never modified and no
// reviewer or registry state is touched. A tagger failure costs only the ML
// matches for this unit.
func (p *Pipeline) Detect(ctx context.Context, unit entity.TextUnit) ([]entity.FusedEntity, error) {
	matches, err := p.rawMatches(ctx, unit)
	if err != nil {
		return nil, err
	}
	return p.fusion.Fuse(unit, matches), nil
}

// rawMatches collects rule and ML matches for one unit.
func (p *Pipeline) rawMatches(ctx context.Context, unit entity.TextUnit) ([]entity.EntityMatch, error) {
	matches := p.matcher.Detect(unit)

	if p.tagger != nil {
		mlMatches, err := p.tagger.Detect(ctx, unit)
		if err != nil {
			// Cancellation aborts the run; any other tagger error has
			// already been absorbed by the adapter's fallback chain.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return matches, nil
		}
		matches = append(matches, mlMatches...)
	}

	return matches, nil
}

// RegisterReviewed integrates reviewer decisions. Accepted items become
// maskable; rejected items are dropped permanently for this run.
func (p *Pipeline) RegisterReviewed(accepted, rejected []entity.ReviewItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, item := range accepted {
		p.decisions[keyFor(item)] = true
	}
	for _, item := range rejected {
		p.decisions[keyFor(item)] = false
	}
}

func keyFor(item entity.ReviewItem) reviewKey {
	return reviewKey{
		unitID:     item.UnitID,
		entityType: item.Entity.Type,
		start:      item.Entity.Start,
		end:        item.Entity.End,
	}
}

// Mask derives directives for one unit from its fused entities, applying
// the review decisions registered so far.
func (p *Pipeline) Mask(unit entity.TextUnit, entities []entity.FusedEntity, registry *tokens.Registry) ([]entity.MaskDirective, []entity.ReviewItem, error) {
	maskable, pending := p.splitForMasking(unit, entities)
	directives, err := p.masker.Directives(unit, maskable, registry)
	if err != nil {
		return nil, nil, err
	}
	return directives, pending, nil
}

// splitForMasking separates the entities that get masked now from the
// questionable ones still waiting on review.
func (p *Pipeline) splitForMasking(unit entity.TextUnit, entities []entity.FusedEntity) (maskable []entity.FusedEntity, pending []entity.ReviewItem) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ent := range entities {
		switch ent.Band {
		case entity.BandAccepted:
			maskable = append(maskable, ent)
		case entity.BandQuestionable:
			item := entity.ReviewItem{UnitID: unit.ID, Entity: ent}
			decision, decided := p.decisions[keyFor(item)]
			switch {
			case decided && decision:
				maskable = append(maskable, ent)
			case decided && !decision:
				// rejected in review: dropped for this run
			case p.autoAccept:
				maskable = append(maskable, ent)
			default:
				pending = append(pending, item)
			}
		}
	}
	return maskable, pending
}

// Validate re-runs detection over masked units and returns residual
// findings.
func (p *Pipeline) Validate(ctx context.Context, maskedUnits []entity.TextUnit) ([]entity.ResidualFinding, error) {
	if p.residual == nil {
		return nil, nil
	}
	return p.residual.Validate(ctx, maskedUnits)
}

// Result is the outcome of one document run.
type Result struct {
	MaskedUnits []entity.TextUnit
	Directives  []entity.MaskDirective
	Dropped     map[string]bool
	ReviewItems []entity.ReviewItem
	Findings    []entity.ResidualFinding
	Report      *Report
	// Blocked is set when the residual policy is block-output and
	// findings exist; MaskedUnits is nil in that case.
	Blocked bool
}

// ProcessDocument runs the full pipeline over one document's units.
// Detection runs on a bounded worker pool; token assignment and masking
// then run sequentially in unit order so tokens and directives are
// identical across runs for the same input and configuration.
func (p *Pipeline) ProcessDocument(ctx context.Context, units []entity.TextUnit) (*Result, error) {
	started := time.Now()
	report := newReport(uuid.NewString(), len(units))

	var finish func(bool, map[string]interface{})
	if p.observer != nil {
		finish = p.observer.StartTiming("pipeline", "process_document", report.RunID)
	}

	detected, err := p.detectAll(ctx, units, report)
	if err != nil {
		return nil, err
	}

	registry := tokens.NewRegistry()
	masked := make([]entity.TextUnit, 0, len(units))
	dropped := make(map[string]bool)
	var allDirectives []entity.MaskDirective
	var allPending []entity.ReviewItem

	for i, unit := range units {
		entities := detected[i]
		report.countEntities(entities)

		directives, pending, err := p.Mask(unit, entities, registry)
		if err != nil {
			// Structured-identifier policy violations always escalate.
			if _, ok := err.(*errs.PolicyViolation); ok {
				return nil, err
			}
			report.addError(unit.ID, "mask", err)
			masked = append(masked, unit)
			continue
		}
		allPending = append(allPending, pending...)
		allDirectives = append(allDirectives, directives...)

		maskedUnit := entity.TextUnit{
			ID:   unit.ID,
			Text: masking.Apply(unit.Text, directives),
			Loc:  unit.Loc,
		}
		for _, d := range directives {
			if d.DropNode {
				dropped[unit.ID] = true
			}
		}
		masked = append(masked, maskedUnit)
	}

	findings, err := p.Validate(ctx, masked)
	if err != nil && ctx.Err() != nil {
		return nil, err
	}
	if err != nil {
		report.addError("", "residual", err)
	}
	report.finish(time.Since(started), findings, p.RuleOnly())

	result := &Result{
		MaskedUnits: masked,
		Directives:  allDirectives,
		Dropped:     dropped,
		ReviewItems: allPending,
		Findings:    findings,
		Report:      report,
	}

	if p.residual != nil {
		if enforceErr := p.residual.Enforce(findings); enforceErr != nil {
			if p.residual.Policy() == residual.PolicyBlockOutput {
				result.MaskedUnits = nil
				result.Blocked = true
			}
			if finish != nil {
				finish(false, map[string]interface{}{"residual_findings": len(findings)})
			}
			return result, enforceErr
		}
	}

	if finish != nil {
		finish(true, map[string]interface{}{
			"units":    len(units),
			"entities": report.EntityTotal(),
		})
	}
	return result, nil
}

// detectAll fans detection out over the worker pool and returns per-unit
// fused entities indexed by unit position.
func (p *Pipeline) detectAll(ctx context.Context, units []entity.TextUnit, report *Report) ([][]entity.FusedEntity, error) {
	type job struct {
		index int
		unit  entity.TextUnit
	}
	type outcome struct {
		index    int
		entities []entity.FusedEntity
		err      error
	}

	jobs := make(chan job)
	results := make(chan outcome, len(units))

	workers := p.concurrency
	if workers > len(units) {
		workers = len(units)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				entities, err := p.Detect(ctx, j.unit)
				select {
				case results <- outcome{index: j.index, entities: entities, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

feed:
	for i, unit := range units {
		select {
		case jobs <- job{index: i, unit: unit}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	detected := make([][]entity.FusedEntity, len(units))
	for r := range results {
		if r.err != nil {
			// One failed unit contributes zero matches, not a failed
			// document.
			report.addError(units[r.index].ID, "detect", r.err)
			continue
		}
		detected[r.index] = r.entities
	}
	return detected, nil
}
