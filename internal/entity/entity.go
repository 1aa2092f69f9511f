// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package entity defines the shared data model passed between the extraction
// adapters, the detection engine, and the masking engine.
package entity

// Entity type constants. Structured identifiers have a verifiable format and
// are always fully masked; free-form types may allow a partial reveal.
const (
	TypeEmail      = "EMAIL"
	TypePhone      = "PHONE"
	TypeIP         = "IP"
	TypeCreditCard = "CREDIT_CARD"
	TypeBankAcct   = "BANK_ACCT"
	TypeNationalID = "NATIONAL_ID"
	TypePerson     = "PERSON"
	TypeBrand      = "BRAND"
	TypeAddress    = "ADDRESS"
	TypeUsername   = "USERNAME"
	TypeDOB        = "DOB"
	TypeGeo        = "GEO"
)

// structuredTypes is the set of entity types that must never appear, even
// partially, in masked output.
var structuredTypes = map[string]bool{
	TypeEmail:      true,
	TypePhone:      true,
	TypeIP:         true,
	TypeCreditCard: true,
	TypeBankAcct:   true,
	TypeNationalID: true,
}

// IsStructured reports whether entityType is a structured identifier.
func IsStructured(entityType string) bool {
	return structuredTypes[entityType]
}

// AllTypes returns the entity types the engine knows about, in a fixed order.
func AllTypes() []string {
	return []string{
		TypeEmail, TypePhone, TypeIP, TypeCreditCard, TypeBankAcct,
		TypeNationalID, TypePerson, TypeBrand, TypeAddress, TypeUsername,
		TypeDOB, TypeGeo,
	}
}

// Source identifies which detection path produced a match.
type Source int

const (
	// SourceRule marks matches from the deterministic pattern detectors.
	SourceRule Source = iota
	// SourceML marks matches from the statistical sequence tagger.
	SourceML
)

// String returns the string representation of the source.
func (s Source) String() string {
	switch s {
	case SourceRule:
		return "rule"
	case SourceML:
		return "ml"
	default:
		return "unknown"
	}
}

// TextUnit is one extracted unit of text plus its structural address in the
// original document. Units are immutable once produced by an extraction
// adapter; all detection offsets are relative to Text.
type TextUnit struct {
	ID   string
	Text string
	Loc  Location
}

// EntityMatch is a raw detection from one source over one TextUnit.
// Start and End are a half-open byte range into TextUnit.Text.
type EntityMatch struct {
	Type       string
	Start      int
	End        int
	Text       string
	Confidence float64
	Source     Source
}

// Band classifies a fused entity's confidence.
type Band int

const (
	// BandRejected is below the minimum confidence; never surfaced.
	BandRejected Band = iota
	// BandQuestionable is routed to human review before masking.
	BandQuestionable
	// BandAccepted is masked immediately.
	BandAccepted
)

// String returns the string representation of the band.
func (b Band) String() string {
	switch b {
	case BandRejected:
		return "rejected"
	case BandQuestionable:
		return "questionable"
	case BandAccepted:
		return "accepted"
	default:
		return "unknown"
	}
}

// FusedEntity is the fusion engine's output: one non-overlapping,
// confidence-banded entity within a TextUnit. Normalized carries the
// canonical value used for token assignment.
type FusedEntity struct {
	Type       string
	Start      int
	End        int
	Text       string
	Normalized string
	Confidence float64
	Band       Band
}

// Overlaps reports whether two half-open spans intersect.
func (e FusedEntity) Overlaps(other FusedEntity) bool {
	return e.Start < other.End && e.End > other.Start
}

// MaskDirective is the atomic rewrite instruction sent to the document
// writer. The span must lie fully inside the source unit's text bounds.
// DropNode asks the writer to remove the containing structural node when the
// unit's location supports it (remove mode only).
type MaskDirective struct {
	UnitID      string
	Start       int
	End         int
	Replacement string
	DropNode    bool
}

// ReviewItem is a questionable entity exposed to the review collaborator.
type ReviewItem struct {
	UnitID string
	Entity FusedEntity
}

// ResidualFinding is PII still detectable after masking — a correctness
// failure reported by the residual validator.
type ResidualFinding struct {
	UnitID string
	Entity FusedEntity
}
