// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"testing"

	"cloak-scan/internal/entity"
)

func detect(t *testing.T, text string) []entity.EntityMatch {
	t.Helper()
	return NewMatcher().Detect(entity.TextUnit{ID: "u1", Text: text})
}

func TestDetectEmailAndPhone(t *testing.T) {
	matches := detect(t, "Contact: jane.doe@example.com or 415-555-0100")

	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(matches), matches)
	}

	email := matches[0]
	if email.Type != entity.TypeEmail || email.Text != "jane.doe@example.com" {
		t.Errorf("unexpected email match: %+v", email)
	}
	if email.Confidence != ConfidenceValidated {
		t.Errorf("expected validated confidence for email, got %v", email.Confidence)
	}

	phone := matches[1]
	if phone.Type != entity.TypePhone || phone.Text != "415-555-0100" {
		t.Errorf("unexpected phone match: %+v", phone)
	}
	if phone.Confidence != ConfidenceValidated {
		t.Errorf("expected validated confidence for phone, got %v", phone.Confidence)
	}
}

func TestDetectLuhnValidCard(t *testing.T) {
	matches := detect(t, "card 4111 1111 1111 1111 on file")

	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d: %+v", len(matches), matches)
	}
	if matches[0].Type != entity.TypeCreditCard {
		t.Errorf("expected CREDIT_CARD, got %s", matches[0].Type)
	}
	if matches[0].Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %v", matches[0].Confidence)
	}
}

func TestDetectLuhnInvalidCardYieldsNothing(t *testing.T) {
	// Fails the checksum: discarded entirely, never down-weighted.
	matches := detect(t, "card 4111 1111 1111 1112 on file")
	if len(matches) != 0 {
		t.Fatalf("expected no matches for invalid checksum, got %+v", matches)
	}
}

func TestDetectBarePhoneIsHeuristic(t *testing.T) {
	matches := detect(t, "call 4155550100 today")

	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d: %+v", len(matches), matches)
	}
	if matches[0].Confidence != ConfidenceHeuristic {
		t.Errorf("expected heuristic confidence, got %v", matches[0].Confidence)
	}
}

func TestDetectSSN(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"ssn 123-45-6789", 1},
		{"ssn 666-45-6789", 0}, // area 666 never issued
		{"ssn 000-45-6789", 0},
		{"ssn 923-45-6789", 0}, // 9xx area invalid
		{"ssn 123-00-6789", 0},
		{"ssn 123-45-0000", 0},
	}
	for _, tt := range tests {
		matches := detect(t, tt.text)
		if len(matches) != tt.want {
			t.Errorf("%q: expected %d matches, got %d", tt.text, tt.want, len(matches))
		}
	}
}

func TestDetectIP(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"host 192.168.1.1", 1},
		{"host 256.1.1.1", 0},   // octet out of range
		{"host 01.2.3.4", 0},    // leading zero
		{"host 10.0.0.255", 1},
	}
	for _, tt := range tests {
		matches := detect(t, tt.text)
		if len(matches) != tt.want {
			t.Errorf("%q: expected %d matches, got %d: %+v", tt.text, tt.want, len(matches), matches)
		}
	}
}

func TestDetectIBAN(t *testing.T) {
	matches := detect(t, "pay GB82WEST12345698765432 now")
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d: %+v", len(matches), matches)
	}
	if matches[0].Type != entity.TypeBankAcct {
		t.Errorf("expected BANK_ACCT, got %s", matches[0].Type)
	}

	matches = detect(t, "pay GB82WEST12345698765433 now")
	if len(matches) != 0 {
		t.Errorf("expected no matches for failing mod-97 check, got %+v", matches)
	}
}

func TestDetectRespectsEnabledTypes(t *testing.T) {
	m := NewMatcherForTypes(map[string]bool{entity.TypeEmail: true})
	matches := m.Detect(entity.TextUnit{ID: "u1", Text: "jane@example.com or 415-555-0100"})

	if len(matches) != 1 {
		t.Fatalf("expected only the email match, got %+v", matches)
	}
	if matches[0].Type != entity.TypeEmail {
		t.Errorf("expected EMAIL, got %s", matches[0].Type)
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	text := "a@b.co 1.2.3.4 then c@d.io and 415-555-0100"
	first := detect(t, text)
	for i := 0; i < 10; i++ {
		again := detect(t, text)
		if len(again) != len(first) {
			t.Fatalf("run %d: match count changed from %d to %d", i, len(first), len(again))
		}
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("run %d: match %d changed from %+v to %+v", i, j, first[j], again[j])
			}
		}
	}
}

func TestLuhnCheck(t *testing.T) {
	if !luhnCheck("4111111111111111") {
		t.Error("expected 4111111111111111 to pass Luhn")
	}
	if luhnCheck("4111111111111112") {
		t.Error("expected 4111111111111112 to fail Luhn")
	}
	if !luhnCheck("378282246310005") { // Amex test number
		t.Error("expected 378282246310005 to pass Luhn")
	}
}
