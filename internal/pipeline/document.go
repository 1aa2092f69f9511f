// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"

	"cloak-scan/internal/extract"
)

// FileResult pairs a Result with the path the masked document was written
// to. OutputPath is empty for dry runs and blocked output.
type FileResult struct {
	*Result
	InputPath  string
	OutputPath string
}

// ProcessFile extracts a document, runs the pipeline over its units, and
// writes the masked document to outputPath. An empty outputPath makes the
// run a dry run: detection and validation happen, nothing is written.
//
// Cap and policy errors come back typed; callers decide whether an
// over-cap file fails the batch or is skipped with a report entry.
func (p *Pipeline) ProcessFile(ctx context.Context, inputPath, outputPath string, caps extract.Caps) (*FileResult, error) {
	adapter, writer, err := extract.ForFile(inputPath, caps)
	if err != nil {
		return nil, err
	}

	units, err := adapter.Extract(inputPath)
	if err != nil {
		return nil, err
	}

	result, err := p.ProcessDocument(ctx, units)
	if err != nil && result == nil {
		return nil, err
	}
	fileResult := &FileResult{Result: result, InputPath: inputPath}
	if err != nil {
		// fail / block-output policy violation: no artifact is written.
		return fileResult, err
	}

	if outputPath == "" || result.Blocked {
		return fileResult, nil
	}

	if writeErr := writer.Write(outputPath, result.MaskedUnits, result.Dropped); writeErr != nil {
		return fileResult, writeErr
	}
	fileResult.OutputPath = outputPath
	return fileResult, nil
}
