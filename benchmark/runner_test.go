package benchmark

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/ocr-bench/ocr"
)

// stubEngine returns canned results per call and can fail a chosen trial.
type stubEngine struct {
	calls     int
	failOnRun int
	results   func(call int) []ocr.Result
}

func (e *stubEngine) Predict(_ context.Context, imagePath string) ([]ocr.Result, error) {
	e.calls++
	time.Sleep(200 * time.Microsecond) // keep measured latency nonzero
	if e.failOnRun == e.calls {
		return nil, errors.New("decode error")
	}
	if e.results != nil {
		return e.results(e.calls), nil
	}
	return []ocr.Result{{Source: imagePath, Page: 1}}, nil
}

type stubScorer struct {
	value    float64
	err      error
	gotNames []string
}

func (s *stubScorer) Score(_ context.Context, imageName string) (float64, error) {
	s.gotNames = append(s.gotNames, imageName)
	return s.value, s.err
}

type stubSink struct {
	persisted [][]ocr.Result
	err       error
}

func (s *stubSink) Persist(_ io.Writer, _ string, results []ocr.Result) error {
	s.persisted = append(s.persisted, results)
	return s.err
}

func segments(texts ...string) []ocr.Segment {
	segs := make([]ocr.Segment, 0, len(texts))
	for _, t := range texts {
		segs = append(segs, ocr.Segment{Text: t})
	}
	return segs
}

func TestProcessImageSuccess(t *testing.T) {
	engine := &stubEngine{results: func(call int) []ocr.Result {
		return []ocr.Result{{Segments: segments("hello", "world")}}
	}}
	scorer := &stubScorer{value: 0.9}
	sink := &stubSink{}
	runner := &Runner{Engine: engine, Scorer: scorer, Sink: sink, Stdout: &bytes.Buffer{}}

	outcome := runner.ProcessImage(context.Background(), "/data/scan_01.png")

	require.False(t, outcome.Failed())
	require.NotNil(t, outcome.Metrics)
	assert.Equal(t, DefaultTrials, engine.calls)

	m := outcome.Metrics
	assert.Equal(t, "scan_01", m.Filename)
	assert.Equal(t, 10, m.TotalChars)
	assert.InDelta(t, 0.9, m.Accuracy, 1e-9)
	assert.Greater(t, m.InferenceMs, 0.0)
	assert.InDelta(t, 1000/m.InferenceMs, m.FPS, 1e-9)
	assert.InDelta(t, float64(m.TotalChars)*1000/m.InferenceMs, m.CharsPerSecond, 1e-9)

	assert.Equal(t, []string{"scan_01"}, scorer.gotNames)
}

func TestProcessImageRetainsFirstTrialOutput(t *testing.T) {
	engine := &stubEngine{results: func(call int) []ocr.Result {
		if call == 1 {
			return []ocr.Result{{Segments: segments("first")}}
		}
		return []ocr.Result{{Segments: segments("later", "noise")}}
	}}
	sink := &stubSink{}
	runner := &Runner{Engine: engine, Sink: sink, Stdout: &bytes.Buffer{}}

	outcome := runner.ProcessImage(context.Background(), "scan.png")

	require.False(t, outcome.Failed())
	require.Len(t, sink.persisted, 1)
	require.Len(t, sink.persisted[0], 1)
	assert.Equal(t, segments("first"), sink.persisted[0][0].Segments)
	assert.Equal(t, 5, outcome.Metrics.TotalChars)
}

func TestProcessImageTrialFailureMarksImageFailed(t *testing.T) {
	for failOn := 1; failOn <= DefaultTrials; failOn++ {
		engine := &stubEngine{failOnRun: failOn}
		sink := &stubSink{}
		runner := &Runner{Engine: engine, Sink: sink}

		outcome := runner.ProcessImage(context.Background(), "bad.png")

		assert.True(t, outcome.Failed(), "fail on trial %d", failOn)
		assert.Nil(t, outcome.Metrics)
		assert.Empty(t, sink.persisted, "nothing should persist on failure")
	}
}

func TestProcessImageScorerFailureRecordsZeroAccuracy(t *testing.T) {
	engine := &stubEngine{results: func(int) []ocr.Result {
		return []ocr.Result{{Segments: segments("text")}}
	}}
	scorer := &stubScorer{err: errors.New("scorer exploded")}
	runner := &Runner{Engine: engine, Scorer: scorer}

	outcome := runner.ProcessImage(context.Background(), "scan.png")

	require.False(t, outcome.Failed())
	assert.Zero(t, outcome.Metrics.Accuracy)
	assert.Equal(t, 4, outcome.Metrics.TotalChars)
}

func TestProcessImageSinkFailureStaysSuccessful(t *testing.T) {
	engine := &stubEngine{}
	sink := &stubSink{err: errors.New("disk full")}
	runner := &Runner{Engine: engine, Sink: sink}

	outcome := runner.ProcessImage(context.Background(), "scan.png")

	assert.False(t, outcome.Failed())
	require.NotNil(t, outcome.Metrics)
}

func TestProcessImageCustomTrialCount(t *testing.T) {
	engine := &stubEngine{}
	runner := &Runner{Engine: engine, Trials: 5}

	outcome := runner.ProcessImage(context.Background(), "scan.png")

	require.False(t, outcome.Failed())
	assert.Equal(t, 5, engine.calls)
}

func TestMeanLatency(t *testing.T) {
	measurements := []TrialMeasurement{
		{Run: 1, Milliseconds: 10.0},
		{Run: 2, Milliseconds: 12.0},
		{Run: 3, Milliseconds: 11.0},
	}
	assert.InDelta(t, 11.0, meanLatency(measurements), 1e-9)
	assert.Zero(t, meanLatency(nil))
}
