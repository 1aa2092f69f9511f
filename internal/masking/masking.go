// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package masking turns fused entities into MaskDirectives and applies them
// to unit text. The structural location decides how a replacement may be
// spliced; formula cells only ever have their string literals rewritten.
package masking

import (
	"sort"
	"strings"
	"unicode/utf8"

	"cloak-scan/internal/entity"
	"cloak-scan/internal/errs"
	"cloak-scan/internal/tokens"
)

// Mode is the masking mode applied to accepted entities.
type Mode int

const (
	// ModeMask replaces a span with its assigned token, [TYPE_NNN].
	ModeMask Mode = iota
	// ModeRedact replaces a span with the literal [REDACTED].
	ModeRedact
	// ModeRemove deletes the span, and the containing structural node
	// when the location supports it.
	ModeRemove
)

// ParseMode maps a config string to a Mode, defaulting to mask.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "redact":
		return ModeRedact
	case "remove":
		return ModeRemove
	default:
		return ModeMask
	}
}

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeRedact:
		return "redact"
	case ModeRemove:
		return "remove"
	default:
		return "mask"
	}
}

// Engine builds directives for one unit at a time. partialReveal keeps a
// recognizable first letter for PERSON and BRAND entities under mask mode;
// it can never apply to structured identifiers, which is enforced here as a
// hard invariant rather than left to configuration.
type Engine struct {
	mode          Mode
	partialReveal bool
}

// NewEngine creates a masking engine for the given mode.
func NewEngine(mode Mode, partialReveal bool) *Engine {
	return &Engine{mode: mode, partialReveal: partialReveal}
}

// Mode returns the engine's masking mode.
func (e *Engine) Mode() Mode { return e.mode }

// Directives derives one MaskDirective per entity. Entities must be the
// accepted set for the unit (immediately-accepted plus reviewer-accepted).
// An entity whose span falls outside the unit's bounds, or that cannot be
// masked without breaking a structural constraint, yields a PolicyViolation.
func (e *Engine) Directives(unit entity.TextUnit, entities []entity.FusedEntity, registry *tokens.Registry) ([]entity.MaskDirective, error) {
	if len(entities) == 0 {
		return nil, nil
	}

	var literals []span
	if _, isFormula := unit.Loc.(entity.FormulaLocation); isFormula {
		literals = stringLiterals(unit.Text)
	}

	var directives []entity.MaskDirective
	for _, ent := range entities {
		if ent.Start < 0 || ent.End > len(unit.Text) || ent.End <= ent.Start {
			return nil, &errs.PolicyViolation{
				UnitID: unit.ID,
				Reason: "entity span outside unit text bounds",
			}
		}

		if literals != nil && !insideAny(ent, literals) {
			// A match over formula structure (references, functions)
			// cannot be rewritten without corrupting the formula.
			return nil, &errs.PolicyViolation{
				UnitID: unit.ID,
				Reason: "detected value overlaps formula structure, not a string literal",
			}
		}

		directives = append(directives, entity.MaskDirective{
			UnitID:      unit.ID,
			Start:       ent.Start,
			End:         ent.End,
			Replacement: e.replacement(ent, registry),
			DropNode:    e.dropNode(unit, entities),
		})
	}

	return directives, nil
}

// replacement computes the replacement text for one entity under the
// engine's mode and reveal policy.
func (e *Engine) replacement(ent entity.FusedEntity, registry *tokens.Registry) string {
	switch e.mode {
	case ModeRedact:
		return "[REDACTED]"
	case ModeRemove:
		return ""
	default:
		token := registry.Assign(ent.Type, ent.Normalized)
		if e.partialReveal && !entity.IsStructured(ent.Type) &&
			(ent.Type == entity.TypePerson || ent.Type == entity.TypeBrand) {
			if r, size := utf8.DecodeRuneInString(ent.Text); size > 0 {
				return string(r) + ". [" + token + "]"
			}
		}
		return "[" + token + "]"
	}
}

// dropNode decides whether remove mode should delete the containing
// structural node: the whole unit must be PII and the location must support
// node removal.
func (e *Engine) dropNode(unit entity.TextUnit, entities []entity.FusedEntity) bool {
	if e.mode != ModeRemove || !entity.SupportsNodeDrop(unit.Loc) {
		return false
	}
	covered := 0
	for _, ent := range entities {
		covered += ent.End - ent.Start
	}
	return covered >= len(strings.TrimSpace(unit.Text))
}

// Apply splices directives into the unit text, right to left by descending
// start so earlier offsets stay valid as lengths change.
func Apply(text string, directives []entity.MaskDirective) string {
	if len(directives) == 0 {
		return text
	}

	ordered := make([]entity.MaskDirective, len(directives))
	copy(ordered, directives)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start > ordered[j].Start })

	for _, d := range ordered {
		if d.Start < 0 || d.End > len(text) || d.End < d.Start {
			continue
		}
		text = text[:d.Start] + d.Replacement + text[d.End:]
	}
	return text
}

type span struct{ start, end int }

// stringLiterals returns the double-quoted literal regions of a formula,
// excluding the quotes themselves. Doubled quotes inside a literal are the
// spreadsheet escape for a single quote character.
func stringLiterals(formula string) []span {
	spans := []span{}
	inLiteral := false
	start := 0
	for i := 0; i < len(formula); i++ {
		if formula[i] != '"' {
			continue
		}
		if inLiteral {
			if i+1 < len(formula) && formula[i+1] == '"' {
				i++ // escaped quote
				continue
			}
			spans = append(spans, span{start: start, end: i})
			inLiteral = false
		} else {
			inLiteral = true
			start = i + 1
		}
	}
	return spans
}

func insideAny(ent entity.FusedEntity, literals []span) bool {
	for _, l := range literals {
		if ent.Start >= l.start && ent.End <= l.end {
			return true
		}
	}
	return false
}
