// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"cloak-scan/internal/entity"
	"cloak-scan/internal/errs"
)

// PDFAdapter extracts one TextUnit per page. PDF content streams cannot be
// rewritten in place without re-typesetting, so Write emits a masked
// plain-text rendition with page separators, mirroring the source layout as
// closely as extraction allows.
type PDFAdapter struct {
	caps Caps
}

// NewPDFAdapter creates the adapter with the given caps.
func NewPDFAdapter(caps Caps) *PDFAdapter {
	return &PDFAdapter{caps: caps}
}

// Extensions implements Adapter.
func (a *PDFAdapter) Extensions() []string { return []string{".pdf"} }

// Extract implements Adapter. The page cap is checked with pdfcpu before
// any page content is parsed.
func (a *PDFAdapter) Extract(path string) ([]entity.TextUnit, error) {
	if err := checkByteCap(path, a.caps.MaxBytes); err != nil {
		return nil, err
	}

	if a.caps.MaxPDFPages > 0 {
		pages, err := api.PageCountFile(path)
		if err != nil {
			return nil, &errs.FatalIOError{Path: path, Err: err}
		}
		if pages > a.caps.MaxPDFPages {
			return nil, &errs.CapExceededError{
				Path:   path,
				Cap:    "pdf_pages",
				Limit:  int64(a.caps.MaxPDFPages),
				Actual: int64(pages),
			}
		}
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, &errs.FatalIOError{Path: path, Err: err}
	}
	defer f.Close() //nolint:errcheck // read-only file

	var units []entity.TextUnit
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unparseable page loses that page only.
			continue
		}
		units = append(units, entity.TextUnit{
			ID:   fmt.Sprintf("p%d", i),
			Text: text,
			Loc:  entity.PDFPageLocation{Page: i},
		})
	}

	return units, nil
}

// Write implements Writer.
func (a *PDFAdapter) Write(path string, units []entity.TextUnit, dropped map[string]bool) error {
	ordered := make([]entity.TextUnit, len(units))
	copy(ordered, units)
	sort.Slice(ordered, func(i, j int) bool {
		pi, _ := ordered[i].Loc.(entity.PDFPageLocation)
		pj, _ := ordered[j].Loc.(entity.PDFPageLocation)
		return pi.Page < pj.Page
	})

	var b strings.Builder
	for _, unit := range ordered {
		if dropped[unit.ID] {
			continue
		}
		loc, _ := unit.Loc.(entity.PDFPageLocation)
		fmt.Fprintf(&b, "--- page %d ---\n", loc.Page)
		b.WriteString(unit.Text)
		if !strings.HasSuffix(unit.Text, "\n") {
			b.WriteByte('\n')
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return &errs.FatalIOError{Path: path, Err: err}
	}
	return nil
}
