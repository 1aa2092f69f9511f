// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package entity

import "strings"

// Normalize computes the canonical value for an entity so that textual
// variants of the same identifier map to one mask token. Emails are
// lower-cased and trimmed; digit-bearing identifiers keep digits only;
// everything else is whitespace-trimmed.
func Normalize(entityType, raw string) string {
	switch entityType {
	case TypeEmail:
		return strings.ToLower(strings.TrimSpace(raw))
	case TypePhone, TypeCreditCard, TypeNationalID, TypeBankAcct:
		return digitsOnly(raw)
	default:
		return strings.TrimSpace(raw)
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
