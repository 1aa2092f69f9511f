// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"cloak-scan/internal/entity"
	"cloak-scan/internal/errs"
)

// CSVAdapter extracts one TextUnit per cell so masking can address
// individual cells and remove mode can drop all-PII rows.
type CSVAdapter struct {
	caps Caps
}

// NewCSVAdapter creates the adapter with the given caps.
func NewCSVAdapter(caps Caps) *CSVAdapter {
	return &CSVAdapter{caps: caps}
}

// Extensions implements Adapter.
func (a *CSVAdapter) Extensions() []string { return []string{".csv"} }

// Extract implements Adapter. Every cell becomes a unit, empty cells
// included, so Write can reconstruct the exact table shape.
func (a *CSVAdapter) Extract(path string) ([]entity.TextUnit, error) {
	if err := checkByteCap(path, a.caps.MaxBytes); err != nil {
		return nil, err
	}

	f, err := os.Open(path) // #nosec G304 -- path comes from the scan request
	if err != nil {
		return nil, &errs.FatalIOError{Path: path, Err: err}
	}
	defer f.Close() //nolint:errcheck // read-only file

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // ragged rows are common in exported data

	var units []entity.TextUnit
	row := 0
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &errs.FatalIOError{Path: path, Err: err}
		}
		if a.caps.MaxRows > 0 && row >= a.caps.MaxRows {
			return nil, &errs.CapExceededError{
				Path:   path,
				Cap:    "rows",
				Limit:  int64(a.caps.MaxRows),
				Actual: int64(row + 1),
			}
		}
		for col, cell := range record {
			units = append(units, entity.TextUnit{
				ID:   fmt.Sprintf("r%dc%d", row, col),
				Text: cell,
				Loc:  entity.CSVCellLocation{Row: row, Col: col},
			})
		}
		row++
	}

	return units, nil
}

// Write implements Writer. A row is dropped when every one of its cells is
// marked dropped; otherwise dropped cells are written empty.
func (a *CSVAdapter) Write(path string, units []entity.TextUnit, dropped map[string]bool) error {
	maxRow := -1
	cells := make(map[entity.CSVCellLocation]entity.TextUnit, len(units))
	width := make(map[int]int)
	for _, unit := range units {
		loc, ok := unit.Loc.(entity.CSVCellLocation)
		if !ok {
			continue
		}
		cells[loc] = unit
		if loc.Row > maxRow {
			maxRow = loc.Row
		}
		if loc.Col+1 > width[loc.Row] {
			width[loc.Row] = loc.Col + 1
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304 -- destination under configured output dir
	if err != nil {
		return &errs.FatalIOError{Path: path, Err: err}
	}
	defer f.Close() //nolint:errcheck // error surfaced via writer.Flush below

	writer := csv.NewWriter(f)
	for row := 0; row <= maxRow; row++ {
		record := make([]string, width[row])
		allDropped := width[row] > 0
		for col := 0; col < width[row]; col++ {
			unit, ok := cells[entity.CSVCellLocation{Row: row, Col: col}]
			if !ok {
				allDropped = false
				continue
			}
			if dropped[unit.ID] {
				record[col] = ""
			} else {
				record[col] = unit.Text
				allDropped = false
			}
		}
		if allDropped {
			continue // row consisted solely of PII
		}
		if err := writer.Write(record); err != nil {
			return &errs.FatalIOError{Path: path, Err: err}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return &errs.FatalIOError{Path: path, Err: err}
	}
	return nil
}
