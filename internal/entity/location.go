// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package entity

import "fmt"

// Location is the structural address of a TextUnit inside its source
// document. It is a closed union: the set of variants below is exhaustive
// and the masking engine switches on the concrete type to decide how to
// splice replacements back in.
type Location interface {
	isLocation()
	String() string
}

// LineLocation addresses one line of a plain-text file.
type LineLocation struct {
	Line int // 1-based
}

// CSVCellLocation addresses one cell of a CSV file.
type CSVCellLocation struct {
	Row int // 0-based record index
	Col int // 0-based field index
}

// SheetCellLocation addresses one cell of a spreadsheet.
type SheetCellLocation struct {
	Sheet string
	Row   int
	Col   int
}

// FormulaLocation addresses the formula text of a spreadsheet cell. Only
// string literals inside the formula may be rewritten; cell references must
// survive masking untouched.
type FormulaLocation struct {
	Sheet string
	Row   int
	Col   int
}

// ParagraphLocation addresses one run of one paragraph in a word-processing
// document.
type ParagraphLocation struct {
	Paragraph int
	Run       int
}

// SlideShapeLocation addresses the text frame of one shape on one slide.
type SlideShapeLocation struct {
	Slide int
	Shape int
}

// CommentLocation addresses a review comment attached to a document.
type CommentLocation struct {
	Index int
}

// PDFPageLocation addresses the extracted text of one PDF page.
type PDFPageLocation struct {
	Page int // 1-based
}

func (LineLocation) isLocation()       {}
func (CSVCellLocation) isLocation()    {}
func (SheetCellLocation) isLocation()  {}
func (FormulaLocation) isLocation()    {}
func (ParagraphLocation) isLocation()  {}
func (SlideShapeLocation) isLocation() {}
func (CommentLocation) isLocation()    {}
func (PDFPageLocation) isLocation()    {}

func (l LineLocation) String() string { return fmt.Sprintf("line %d", l.Line) }

func (l CSVCellLocation) String() string {
	return fmt.Sprintf("row %d, column %d", l.Row+1, l.Col+1)
}

func (l SheetCellLocation) String() string {
	return fmt.Sprintf("sheet %q, row %d, column %d", l.Sheet, l.Row+1, l.Col+1)
}

func (l FormulaLocation) String() string {
	return fmt.Sprintf("formula at sheet %q, row %d, column %d", l.Sheet, l.Row+1, l.Col+1)
}

func (l ParagraphLocation) String() string {
	return fmt.Sprintf("paragraph %d, run %d", l.Paragraph+1, l.Run+1)
}

func (l SlideShapeLocation) String() string {
	return fmt.Sprintf("slide %d, shape %d", l.Slide+1, l.Shape+1)
}

func (l CommentLocation) String() string { return fmt.Sprintf("comment %d", l.Index+1) }

func (l PDFPageLocation) String() string { return fmt.Sprintf("page %d", l.Page) }

// SupportsNodeDrop reports whether the location's containing structural node
// can be removed outright in remove mode. Formula cells never support it:
// dropping a cell that other formulas may reference would leave dangling
// references.
func SupportsNodeDrop(loc Location) bool {
	switch loc.(type) {
	case CSVCellLocation, SheetCellLocation, CommentLocation:
		return true
	default:
		return false
	}
}
