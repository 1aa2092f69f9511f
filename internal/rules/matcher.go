// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package rules implements the deterministic pattern detectors for
// structured identifiers. Each detector pairs a compiled regex with a
// validation function; a pattern match that fails validation is discarded
// outright, never down-weighted.
package rules

import (
	"regexp"
	"strconv"
	"strings"

	"cloak-scan/internal/entity"
)

// Confidence constants for rule matches. Format-validated matches are
// certain; heuristic-only patterns carry a fixed lower confidence so they
// land in the questionable band for review.
const (
	ConfidenceValidated = 1.0
	ConfidenceHeuristic = 0.6
)

// detector is one pattern plus its optional validator. The regex finds
// candidates; validate (when non-nil) decides whether a candidate survives.
type detector struct {
	entityType string
	regex      *regexp.Regexp
	confidence float64
	validate   func(string) bool
}

// Matcher runs all enabled detectors over a TextUnit. It is stateless and
// safe for concurrent use.
type Matcher struct {
	detectors []detector
}

// NewMatcher creates a Matcher with every detector enabled.
func NewMatcher() *Matcher {
	return NewMatcherForTypes(nil)
}

// NewMatcherForTypes creates a Matcher restricted to the given entity types.
// A nil or empty map enables everything.
func NewMatcherForTypes(enabled map[string]bool) *Matcher {
	all := []detector{
		{
			entityType: entity.TypeEmail,
			regex:      regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
			confidence: ConfidenceValidated,
			validate:   validEmail,
		},
		{
			entityType: entity.TypePhone,
			regex:      regexp.MustCompile(`\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`),
			confidence: ConfidenceValidated,
			validate:   validPhone,
		},
		{
			// Bare 10-digit runs have no format evidence beyond length;
			// heuristic-only, routed to review via the questionable band.
			entityType: entity.TypePhone,
			regex:      regexp.MustCompile(`\b\d{10}\b`),
			confidence: ConfidenceHeuristic,
			validate:   validPhone,
		},
		{
			entityType: entity.TypeIP,
			regex:      regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
			confidence: ConfidenceValidated,
			validate:   validIP,
		},
		{
			entityType: entity.TypeCreditCard,
			regex:      regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b|\b3[47]\d{2}[-\s]?\d{6}[-\s]?\d{5}\b`),
			confidence: ConfidenceValidated,
			validate:   validCreditCard,
		},
		{
			entityType: entity.TypeBankAcct,
			regex:      regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`),
			confidence: ConfidenceValidated,
			validate:   validIBAN,
		},
		{
			entityType: entity.TypeNationalID,
			regex:      regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			confidence: ConfidenceValidated,
			validate:   validSSN,
		},
	}

	m := &Matcher{}
	for _, d := range all {
		if enabled == nil || len(enabled) == 0 || enabled[d.entityType] {
			m.detectors = append(m.detectors, d)
		}
	}
	return m
}

// Detect returns all rule matches for the unit. It is a pure function over
// the unit's text: no side effects, deterministic output order (detector
// order, then match position). Matches from a single detector never overlap;
// overlaps across detectors are resolved later by the fusion engine.
func (m *Matcher) Detect(unit entity.TextUnit) []entity.EntityMatch {
	var matches []entity.EntityMatch

	for _, d := range m.detectors {
		for _, span := range d.regex.FindAllStringIndex(unit.Text, -1) {
			raw := unit.Text[span[0]:span[1]]
			if d.validate != nil && !d.validate(raw) {
				continue
			}
			matches = append(matches, entity.EntityMatch{
				Type:       d.entityType,
				Start:      span[0],
				End:        span[1],
				Text:       raw,
				Confidence: d.confidence,
				Source:     entity.SourceRule,
			})
		}
	}

	return matches
}

// validEmail rejects degenerate local parts and bare-word domains.
func validEmail(s string) bool {
	parts := strings.SplitN(s, "@", 2)
	if len(parts) != 2 {
		return false
	}
	local, domain := parts[0], parts[1]
	if local == "" || len(domain) < 4 {
		return false
	}
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") &&
		!strings.HasSuffix(domain, ".")
}

// validPhone checks digit count and rejects trivially repeated digits.
func validPhone(s string) bool {
	digits := digitCount(s)
	if digits < 10 || digits > 11 {
		return false
	}
	first, same := byte(0), true
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			continue
		}
		if first == 0 {
			first = s[i]
		} else if s[i] != first {
			same = false
			break
		}
	}
	return !same
}

// validIP checks that every octet parses into 0-255.
func validIP(s string) bool {
	octets := strings.Split(s, ".")
	if len(octets) != 4 {
		return false
	}
	for _, o := range octets {
		if len(o) > 1 && o[0] == '0' {
			return false
		}
		n, err := strconv.Atoi(o)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

// validCreditCard requires a plausible PAN length and a passing Luhn
// checksum.
func validCreditCard(s string) bool {
	digits := stripNonDigits(s)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	return luhnCheck(digits)
}

// luhnCheck implements the standard Luhn mod-10 checksum over a digit
// string.
func luhnCheck(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// validIBAN implements the ISO 13616 mod-97 check.
func validIBAN(s string) bool {
	if len(s) < 15 || len(s) > 34 {
		return false
	}
	// Move the country code and check digits to the end, then expand
	// letters to their numeric values (A=10 .. Z=35).
	rearranged := s[4:] + s[:4]
	rem := 0
	for i := 0; i < len(rearranged); i++ {
		c := rearranged[i]
		switch {
		case c >= '0' && c <= '9':
			rem = (rem*10 + int(c-'0')) % 97
		case c >= 'A' && c <= 'Z':
			v := int(c-'A') + 10
			rem = (rem*100 + v) % 97
		default:
			return false
		}
	}
	return rem == 1
}

// validSSN applies the SSA format rules: area must not be 000, 666, or
// 9xx; group must not be 00; serial must not be 0000.
func validSSN(s string) bool {
	digits := stripNonDigits(s)
	if len(digits) != 9 {
		return false
	}
	area, group, serial := digits[:3], digits[3:5], digits[5:]
	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	return group != "00" && serial != "0000"
}

func digitCount(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			n++
		}
	}
	return n
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
