// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package tagger

import (
	"errors"
	"strings"

	"cloak-scan/internal/entity"
)

var errNoModel = errors.New("no tagging model configured")

// labelTypes maps model label names (after stripping BIO prefixes) to
// entity types. Models differ in vocabulary; anything unmapped is ignored.
var labelTypes = map[string]string{
	"PER":         entity.TypePerson,
	"PERSON":      entity.TypePerson,
	"NAME":        entity.TypePerson,
	"ORG":         entity.TypeBrand,
	"BRAND":       entity.TypeBrand,
	"LOC":         entity.TypeGeo,
	"GPE":         entity.TypeGeo,
	"LOCATION":    entity.TypeGeo,
	"ADDRESS":     entity.TypeAddress,
	"STREET":      entity.TypeAddress,
	"EMAIL":       entity.TypeEmail,
	"PHONE":       entity.TypePhone,
	"PHONENUMBER": entity.TypePhone,
	"USERNAME":    entity.TypeUsername,
	"DOB":         entity.TypeDOB,
	"DATE_BIRTH":  entity.TypeDOB,
	"ID_NUM":      entity.TypeNationalID,
	"SSN":         entity.TypeNationalID,
	"CARD_NUMBER": entity.TypeCreditCard,
	"BANK_ACCT":   entity.TypeBankAcct,
	"IP":          entity.TypeIP,
}

// splitBIO splits a model label into its BIO prefix and bare name.
// Labels without a prefix (already-aggregated model output) are treated as
// span beginnings.
func splitBIO(label string) (prefix byte, name string) {
	if strings.HasPrefix(label, "B-") {
		return 'B', label[2:]
	}
	if strings.HasPrefix(label, "I-") {
		return 'I', label[2:]
	}
	return 'B', label
}

// mergeBIO converts token-level BIO labels into contiguous entity spans by
// merging consecutive inside-tagged tokens of the same type. Offsets in the
// returned matches are shifted by offset into the full unit text.
func mergeBIO(text string, labels []TokenLabel, offset int, agg Aggregation) []entity.EntityMatch {
	var matches []entity.EntityMatch

	var (
		open     bool
		openType string
		start    int
		end      int
		scores   []float64
	)

	flush := func() {
		if !open {
			return
		}
		open = false
		raw := text[start:end]
		// Single characters and bare punctuation are tokenizer noise.
		if len(strings.TrimSpace(raw)) < 2 {
			return
		}
		matches = append(matches, entity.EntityMatch{
			Type:       openType,
			Start:      offset + start,
			End:        offset + end,
			Text:       raw,
			Confidence: aggregate(scores, agg),
			Source:     entity.SourceML,
		})
	}

	for _, tok := range labels {
		if tok.Label == "O" || tok.Start < 0 || tok.End > len(text) || tok.End <= tok.Start {
			flush()
			continue
		}
		prefix, name := splitBIO(tok.Label)
		mapped, ok := labelTypes[strings.ToUpper(name)]
		if !ok {
			flush()
			continue
		}

		continues := open && mapped == openType && prefix == 'I' && tok.Start >= end && tok.Start-end <= 1
		if continues {
			end = tok.End
			scores = append(scores, tok.Score)
			continue
		}

		flush()
		open = true
		openType = mapped
		start, end = tok.Start, tok.End
		scores = scores[:0]
		scores = append(scores, tok.Score)
	}
	flush()

	return matches
}

// aggregate reduces per-token scores to one span confidence.
func aggregate(scores []float64, agg Aggregation) float64 {
	if len(scores) == 0 {
		return 0
	}
	switch agg {
	case AggregationMean:
		sum := 0.0
		for _, s := range scores {
			sum += s
		}
		return sum / float64(len(scores))
	default:
		min := scores[0]
		for _, s := range scores[1:] {
			if s < min {
				min = s
			}
		}
		return min
	}
}
