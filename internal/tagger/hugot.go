// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package tagger

import (
	"context"
	"fmt"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"cloak-scan/internal/errs"
)

// HugotModel runs an ONNX token-classification model through hugot's pure-Go
// backend. Everything happens in-process; no network access at inference
// time.
type HugotModel struct {
	name     string
	maxSeq   int
	session  *hugot.Session
	pipeline *pipelines.TokenClassificationPipeline
}

// NewHugotModel loads the model at modelPath and builds a token
// classification pipeline for it. maxSeq bounds the input size handed to the
// model in one call; longer units are chunked by the Adapter.
func NewHugotModel(modelPath, name string, maxSeq int) (*HugotModel, error) {
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, &errs.ModelUnavailableError{Err: fmt.Errorf("failed to create hugot session: %w", err)}
	}

	config := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      name,
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}),
		},
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			err = fmt.Errorf("%w (cleanup error: %v)", err, destroyErr)
		}
		return nil, &errs.ModelUnavailableError{Err: fmt.Errorf("failed to create tagging pipeline: %w", err)}
	}

	return &HugotModel{
		name:     name,
		maxSeq:   maxSeq,
		session:  session,
		pipeline: pipeline,
	}, nil
}

// Name returns the configured pipeline name.
func (m *HugotModel) Name() string { return m.name }

// MaxSequenceLength returns the per-call input bound in bytes.
func (m *HugotModel) MaxSequenceLength() int { return m.maxSeq }

// Predict runs the pipeline over text. With simple aggregation enabled the
// pipeline returns one pre-merged entity per group of tokens; each is passed
// through as a single labeled span and the adapter's BIO merge handles any
// remaining prefixed labels.
func (m *HugotModel) Predict(ctx context.Context, text string) ([]TokenLabel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := m.pipeline.RunPipeline([]string{text})
	if err != nil {
		return nil, fmt.Errorf("tagging inference failed: %w", err)
	}
	if len(result.Entities) == 0 {
		return nil, nil
	}

	var labels []TokenLabel
	for _, e := range result.Entities[0] {
		labels = append(labels, TokenLabel{
			Label: e.Entity,
			Start: int(e.Start),
			End:   int(e.End),
			Score: float64(e.Score),
		})
	}
	return labels, nil
}

// Close releases the underlying hugot session.
func (m *HugotModel) Close() error {
	return m.session.Destroy()
}
