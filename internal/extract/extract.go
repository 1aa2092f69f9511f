// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package extract turns source documents into TextUnits and writes masked
// documents back out. File-level caps are enforced before any extraction
// starts: an oversized input is skipped whole, never silently truncated.
package extract

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"cloak-scan/internal/entity"
	"cloak-scan/internal/errs"
)

// Adapter extracts TextUnits from one document format.
type Adapter interface {
	// Extensions lists the lower-case file extensions the adapter handles.
	Extensions() []string
	// Extract reads the file and yields its text units in document order.
	Extract(path string) ([]entity.TextUnit, error)
}

// Writer reassembles a masked document from rewritten units. dropped holds
// the IDs of units whose structural node should be removed entirely.
type Writer interface {
	Write(path string, units []entity.TextUnit, dropped map[string]bool) error
}

// Caps are the file-level limits enforced before extraction.
type Caps struct {
	MaxRows     int
	MaxPDFPages int
	MaxBytes    int64
}

// ForFile returns the adapter and writer for the file's extension.
func ForFile(path string, caps Caps) (Adapter, Writer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text", ".log", ".md":
		a := NewPlainTextAdapter(caps)
		return a, a, nil
	case ".csv":
		a := NewCSVAdapter(caps)
		return a, a, nil
	case ".pdf":
		a := NewPDFAdapter(caps)
		return a, a, nil
	default:
		return nil, nil, &errs.FatalIOError{Path: path, Err: errUnsupported}
	}
}

var errUnsupported = errors.New("unsupported file type")

// checkByteCap rejects files over the byte cap before they are read.
func checkByteCap(path string, maxBytes int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return &errs.FatalIOError{Path: path, Err: err}
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return &errs.CapExceededError{
			Path:   path,
			Cap:    "bytes",
			Limit:  maxBytes,
			Actual: info.Size(),
		}
	}
	return nil
}
