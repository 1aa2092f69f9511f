// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package tagger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cloak-scan/internal/entity"
)

// fakeModel finds occurrences of target in the input and labels them as two
// BIO tokens split at the first space. failures makes the first n Predict
// calls error.
type fakeModel struct {
	target   string
	label    string
	score    float64
	maxSeq   int
	failures int
	calls    int
}

func (m *fakeModel) Name() string           { return "fake" }
func (m *fakeModel) MaxSequenceLength() int { return m.maxSeq }

func (m *fakeModel) Predict(_ context.Context, text string) ([]TokenLabel, error) {
	m.calls++
	if m.failures > 0 {
		m.failures--
		return nil, errors.New("inference failed")
	}

	var labels []TokenLabel
	for from := 0; ; {
		i := strings.Index(text[from:], m.target)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(m.target)
		if space := strings.IndexByte(m.target, ' '); space > 0 {
			labels = append(labels,
				TokenLabel{Label: "B-" + m.label, Start: start, End: start + space, Score: m.score},
				TokenLabel{Label: "I-" + m.label, Start: start + space + 1, End: end, Score: m.score},
			)
		} else {
			labels = append(labels, TokenLabel{Label: "B-" + m.label, Start: start, End: end, Score: m.score})
		}
		from = end
	}
	return labels, nil
}

func unit(text string) entity.TextUnit {
	return entity.TextUnit{ID: "u1", Text: text, Loc: entity.LineLocation{Line: 1}}
}

func TestDetectMergesBIOSpans(t *testing.T) {
	model := &fakeModel{target: "Jane Doe", label: "PER", score: 0.9, maxSeq: 4096}
	a := New(model, nil, AggregationMin, nil)

	matches, err := a.Detect(context.Background(), unit("met Jane Doe yesterday"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %+v", matches)
	}
	m := matches[0]
	if m.Type != entity.TypePerson || m.Text != "Jane Doe" {
		t.Errorf("unexpected match: %+v", m)
	}
	if m.Start != 4 || m.End != 12 {
		t.Errorf("unexpected span: %d-%d", m.Start, m.End)
	}
	if m.Source != entity.SourceML {
		t.Errorf("expected ml source, got %v", m.Source)
	}
}

func TestDetectAggregationMinTakesWeakestToken(t *testing.T) {
	labels := []TokenLabel{
		{Label: "B-PER", Start: 0, End: 4, Score: 0.9},
		{Label: "I-PER", Start: 5, End: 8, Score: 0.4},
	}
	matches := mergeBIO("Jane Doe", labels, 0, AggregationMin)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %+v", matches)
	}
	if matches[0].Confidence != 0.4 {
		t.Errorf("expected min score 0.4, got %v", matches[0].Confidence)
	}

	matches = mergeBIO("Jane Doe", labels, 0, AggregationMean)
	if got := matches[0].Confidence; got < 0.649 || got > 0.651 {
		t.Errorf("expected mean score 0.65, got %v", got)
	}
}

func TestMergeBIOSplitsOnTypeChange(t *testing.T) {
	labels := []TokenLabel{
		{Label: "B-PER", Start: 0, End: 4, Score: 0.9},
		{Label: "B-ORG", Start: 5, End: 9, Score: 0.8},
	}
	matches := mergeBIO("Jane Acme", labels, 0, AggregationMin)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %+v", matches)
	}
	if matches[0].Type != entity.TypePerson || matches[1].Type != entity.TypeBrand {
		t.Errorf("unexpected types: %+v", matches)
	}
}

func TestMergeBIOIgnoresUnknownLabelsAndNoise(t *testing.T) {
	labels := []TokenLabel{
		{Label: "B-WIDGET", Start: 0, End: 4, Score: 0.9}, // unmapped vocabulary
		{Label: "O", Start: 5, End: 8, Score: 0.9},
		{Label: "B-PER", Start: 9, End: 10, Score: 0.9}, // single char: tokenizer noise
	}
	matches := mergeBIO("abcd efg h", labels, 0, AggregationMin)
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %+v", matches)
	}
}

func TestDetectFallsBackToSecondary(t *testing.T) {
	primary := &fakeModel{target: "Jane Doe", label: "PER", score: 0.9, maxSeq: 4096, failures: 1}
	secondary := &fakeModel{target: "Jane Doe", label: "PER", score: 0.8, maxSeq: 4096}
	a := New(primary, secondary, AggregationMin, nil)

	matches, err := a.Detect(context.Background(), unit("met Jane Doe yesterday"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].Confidence != 0.8 {
		t.Fatalf("expected secondary model's match, got %+v", matches)
	}
	if secondary.calls != 1 {
		t.Errorf("expected secondary to be called once, got %d", secondary.calls)
	}
	if !a.Available() {
		t.Error("adapter must stay available after a successful fallback")
	}
}

func TestDetectDegradesWhenBothModelsFail(t *testing.T) {
	primary := &fakeModel{target: "x", label: "PER", score: 0.9, maxSeq: 4096, failures: 10}
	secondary := &fakeModel{target: "x", label: "PER", score: 0.9, maxSeq: 4096, failures: 10}
	a := New(primary, secondary, AggregationMin, nil)

	matches, err := a.Detect(context.Background(), unit("met Jane Doe yesterday"))
	if err != nil {
		t.Fatalf("a degraded adapter must not fail the unit, got %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches from a degraded adapter, got %+v", matches)
	}
	if a.Available() {
		t.Error("adapter must report degraded after both models fail")
	}

	// Later units skip inference entirely.
	before := primary.calls
	if _, err := a.Detect(context.Background(), unit("more text")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary.calls != before {
		t.Error("degraded adapter must not call the model again")
	}
}

func TestDetectNilModelsIsPermanentlyDegraded(t *testing.T) {
	a := New(nil, nil, AggregationMin, nil)
	if a.Available() {
		t.Error("adapter with no models must start degraded")
	}
	matches, err := a.Detect(context.Background(), unit("jane@example.com"))
	if err != nil || matches != nil {
		t.Errorf("expected empty result, got %+v, %v", matches, err)
	}
}

func TestDetectChunksLongInputAndDedups(t *testing.T) {
	// maxSeq 64 gives chunks [0,64) and [56,104); the name occupies bytes
	// 56-64 so both chunks see it whole and the duplicate must collapse.
	var text strings.Builder
	text.WriteString(strings.Repeat("a ", 28)) // 56 bytes
	text.WriteString("Jane Doe")
	text.WriteString(strings.Repeat(" b", 20))

	model := &fakeModel{target: "Jane Doe", label: "PER", score: 0.9, maxSeq: 64}
	a := New(model, nil, AggregationMin, nil)

	matches, err := a.Detect(context.Background(), unit(text.String()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.calls < 2 {
		t.Fatalf("expected chunked inference, got %d call(s)", model.calls)
	}

	count := 0
	for _, m := range matches {
		if m.Text == "Jane Doe" {
			count++
			if m.Start != 56 || m.End != 64 {
				t.Errorf("expected span 56-64 in full-text offsets, got %d-%d", m.Start, m.End)
			}
		}
	}
	if count != 1 {
		t.Errorf("expected the straddling entity exactly once, got %d: %+v", count, matches)
	}
}

func TestDetectHonorsCancellation(t *testing.T) {
	model := &fakeModel{target: "x", label: "PER", score: 0.9, maxSeq: 10}
	a := New(model, nil, AggregationMin, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Detect(ctx, unit(strings.Repeat("long text ", 50)))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
