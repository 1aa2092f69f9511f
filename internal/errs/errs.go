// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package errs defines the error taxonomy shared across the pipeline.
// Unit- and document-level errors are caught and converted into report
// entries; only fatal I/O errors abort a document, and policy violations
// are always surfaced to the caller, never silently fixed.
package errs

import "fmt"

// MatcherError means one detector failed on one unit. The unit still
// contributes the matches from its other detectors.
type MatcherError struct {
	UnitID   string
	Detector string
	Err      error
}

func (e *MatcherError) Error() string {
	return fmt.Sprintf("detector %s failed on unit %s: %v", e.Detector, e.UnitID, e.Err)
}

func (e *MatcherError) Unwrap() error { return e.Err }

// ModelUnavailableError means every tagging model failed to load or
// errored at inference; the run continues rule-only and output metadata is
// flagged accordingly.
type ModelUnavailableError struct {
	Err error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("tagging model unavailable, running rule-only: %v", e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// CapExceededError means a file-level cap was hit before extraction. The
// file is skipped and reported; the batch continues.
type CapExceededError struct {
	Path   string
	Cap    string
	Limit  int64
	Actual int64
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("%s exceeds %s cap: %d > %d", e.Path, e.Cap, e.Actual, e.Limit)
}

// PolicyViolation means residual PII was found after masking, or a
// structured-identifier reveal invariant would be broken. This class always
// escalates to the caller.
type PolicyViolation struct {
	Reason string
	UnitID string
}

func (e *PolicyViolation) Error() string {
	if e.UnitID != "" {
		return fmt.Sprintf("policy violation on unit %s: %s", e.UnitID, e.Reason)
	}
	return "policy violation: " + e.Reason
}

// FatalIOError means a source or destination location cannot be read or
// written. It aborts the affected document only.
type FatalIOError struct {
	Path string
	Err  error
}

func (e *FatalIOError) Error() string {
	return fmt.Sprintf("fatal I/O error on %s: %v", e.Path, e.Err)
}

func (e *FatalIOError) Unwrap() error { return e.Err }
