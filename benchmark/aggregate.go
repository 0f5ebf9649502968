package benchmark

import (
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/ocr-bench/log"
)

// ErrNoSuccessfulImages is returned by Summarize when zero images
// succeeded. Aggregate statistics are undefined in that case and must
// be reported as an explicit error, never as zero or NaN values.
var ErrNoSuccessfulImages = errors.New("no successful inferences completed")

// Aggregator accumulates per-image outcomes across the whole input set.
// Tallies are append-only; no other state crosses image boundaries.
type Aggregator struct {
	total      int
	successful int
	failed     int
	latencies  []float64
	metrics    []PerImageMetrics
}

// NewAggregator creates an aggregator for a batch of total images.
func NewAggregator(total int) *Aggregator {
	return &Aggregator{
		total:     total,
		latencies: make([]float64, 0, total),
		metrics:   make([]PerImageMetrics, 0, total),
	}
}

// Record folds one image's outcome into the running tallies.
func (a *Aggregator) Record(outcome Outcome) {
	if outcome.Failed() {
		a.failed++
		return
	}
	a.successful++
	a.latencies = append(a.latencies, outcome.Metrics.InferenceMs)
	a.metrics = append(a.metrics, *outcome.Metrics)
}

// Processed returns how many images have been recorded so far.
func (a *Aggregator) Processed() int {
	return a.successful + a.failed
}

// Metrics returns the recorded per-image metrics, in processing order.
func (a *Aggregator) Metrics() []PerImageMetrics {
	return a.metrics
}

// AtMilestone reports whether a progress line is due: every 10th image
// and at the final one.
func (a *Aggregator) AtMilestone() bool {
	processed := a.Processed()
	return processed > 0 && (processed%10 == 0 || processed == a.total)
}

// LogProgress emits the progress milestone for the current position.
func (a *Aggregator) LogProgress() {
	processed := a.Processed()
	progress := 100 * float64(processed) / float64(a.total)
	log.Infof("[PROGRESS] %d/%d images processed (%.1f%%) - Success: %d, Failed: %d",
		processed, a.total, progress, a.successful, a.failed)
}

// Summarize computes the batch-wide reduction. initDuration is the
// one-time engine construction time; totalDuration is the wall clock
// around the whole image loop.
func (a *Aggregator) Summarize(initDuration, totalDuration time.Duration) (*BatchSummary, error) {
	if a.successful == 0 {
		return nil, ErrNoSuccessfulImages
	}

	total := 0.0
	minMs := a.latencies[0]
	maxMs := a.latencies[0]
	for _, ms := range a.latencies {
		total += ms
		if ms < minMs {
			minMs = ms
		}
		if ms > maxMs {
			maxMs = ms
		}
	}
	avgMs := total / float64(a.successful)

	return &BatchSummary{
		TotalImages:      a.total,
		Successful:       a.successful,
		Failed:           a.failed,
		SuccessRate:      100 * float64(a.successful) / float64(a.total),
		InitDuration:     initDuration,
		TotalDuration:    totalDuration,
		TotalInferenceMs: total,
		AvgInferenceMs:   avgMs,
		MinInferenceMs:   minMs,
		MaxInferenceMs:   maxMs,
		AvgFPS:           1000 / avgMs,
		BatchFPS:         float64(a.successful) * 1000 / total,
	}, nil
}
