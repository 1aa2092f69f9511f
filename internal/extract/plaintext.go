// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"cloak-scan/internal/entity"
	"cloak-scan/internal/errs"
)

// PlainTextAdapter extracts one TextUnit per line of a plain-text file and
// writes masked lines back in order.
type PlainTextAdapter struct {
	caps Caps
}

// NewPlainTextAdapter creates the adapter with the given caps.
func NewPlainTextAdapter(caps Caps) *PlainTextAdapter {
	return &PlainTextAdapter{caps: caps}
}

// Extensions implements Adapter.
func (a *PlainTextAdapter) Extensions() []string {
	return []string{".txt", ".text", ".log", ".md"}
}

// Extract implements Adapter. Lines keep their 1-based index as location;
// the trailing newline convention is restored by Write.
func (a *PlainTextAdapter) Extract(path string) ([]entity.TextUnit, error) {
	if err := checkByteCap(path, a.caps.MaxBytes); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the scan request
	if err != nil {
		return nil, &errs.FatalIOError{Path: path, Err: err}
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	units := make([]entity.TextUnit, 0, len(lines))
	for i, line := range lines {
		units = append(units, entity.TextUnit{
			ID:   fmt.Sprintf("L%d", i+1),
			Text: line,
			Loc:  entity.LineLocation{Line: i + 1},
		})
	}
	return units, nil
}

// Write implements Writer. Lines in dropped are omitted entirely.
func (a *PlainTextAdapter) Write(path string, units []entity.TextUnit, dropped map[string]bool) error {
	ordered := make([]entity.TextUnit, len(units))
	copy(ordered, units)
	sort.Slice(ordered, func(i, j int) bool {
		li, _ := ordered[i].Loc.(entity.LineLocation)
		lj, _ := ordered[j].Loc.(entity.LineLocation)
		return li.Line < lj.Line
	})

	var b strings.Builder
	for _, unit := range ordered {
		if dropped[unit.ID] {
			continue
		}
		b.WriteString(unit.Text)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return &errs.FatalIOError{Path: path, Err: err}
	}
	return nil
}
