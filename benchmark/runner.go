package benchmark

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/ocr-bench/corpus"
	"github.com/nvr-ai/ocr-bench/log"
	"github.com/nvr-ai/ocr-bench/ocr"
)

// Engine is the inference capability the runner measures. The handle is
// constructed once per run and injected; the runner never creates or
// clones it.
type Engine interface {
	Predict(ctx context.Context, imagePath string) ([]ocr.Result, error)
}

// Scorer obtains a ground-truth accuracy in [0, 1] for the image with
// the given base name. Failures are recoverable: the runner records 0.0.
type Scorer interface {
	Score(ctx context.Context, imageName string) (float64, error)
}

// Sink persists the retained first-trial results of an image. Failures
// are recoverable warnings and never flip the image to failed.
type Sink interface {
	Persist(w io.Writer, imagePath string, results []ocr.Result) error
}

// Runner executes the repeated-trial measurement for single images.
type Runner struct {
	Engine Engine
	Scorer Scorer
	Sink   Sink

	// Trials per image; DefaultTrials when zero.
	Trials int

	// Stdout receives the plain-text rendering of retained results.
	Stdout io.Writer
}

// ProcessImage runs the trial loop for one image and returns its
// Outcome. Per-image failures are captured in the Outcome, never
// propagated; a bad input must not abort the batch.
//
// Only the first trial's results are retained for persistence and
// scoring; later trials exist solely to refine the latency estimate.
func (r *Runner) ProcessImage(ctx context.Context, imagePath string) Outcome {
	trials := r.Trials
	if trials <= 0 {
		trials = DefaultTrials
	}

	var retained []ocr.Result
	measurements := make([]TrialMeasurement, 0, trials)

	log.Infof("  [INFERENCE] running %d iterations for average metrics...", trials)
	for run := 1; run <= trials; run++ {
		start := time.Now()
		results, err := r.Engine.Predict(ctx, imagePath)
		elapsed := time.Since(start)
		if err != nil {
			return Outcome{
				Image: imagePath,
				Err:   errors.Wrapf(err, "trial %d/%d failed", run, trials),
			}
		}

		ms := float64(elapsed.Nanoseconds()) / 1e6
		measurements = append(measurements, TrialMeasurement{Run: run, Milliseconds: ms})
		log.Infof("    [RUN %d/%d] completed in %.2f ms", run, trials, ms)

		if run == 1 {
			retained = results
		}
	}

	avgMs := meanLatency(measurements)
	totalChars := 0
	for _, result := range retained {
		totalChars += result.TotalChars()
	}

	var fps, charsPerSecond float64
	if avgMs > 0 {
		fps = 1000 / avgMs
		charsPerSecond = float64(totalChars) * 1000 / avgMs
	}

	log.Infof("  [METRICS] average inference time: %.2f ms", avgMs)
	log.Infof("  [METRICS] FPS: %.2f", fps)
	log.Infof("  [METRICS] characters/second: %.2f chars/s", charsPerSecond)
	log.Infof("  [METRICS] total characters detected: %d", totalChars)

	if r.Sink != nil {
		if err := r.Sink.Persist(r.Stdout, imagePath, retained); err != nil {
			// The image already succeeded at inference; persistence
			// trouble is a warning, not a failure (see DESIGN.md).
			log.Warnf("failed to persist output for %s: %v", imagePath, err)
		}
	}

	baseName := corpus.BaseName(imagePath)
	accuracy := 0.0
	if r.Scorer != nil {
		value, err := r.Scorer.Score(ctx, baseName)
		if err != nil {
			log.Warnf("accuracy scoring failed for %s: %v", baseName, err)
		} else {
			accuracy = value
		}
	}

	return Outcome{
		Image: imagePath,
		Metrics: &PerImageMetrics{
			Filename:       baseName,
			InferenceMs:    avgMs,
			FPS:            fps,
			CharsPerSecond: charsPerSecond,
			TotalChars:     totalChars,
			Accuracy:       accuracy,
		},
	}
}

func meanLatency(measurements []TrialMeasurement) float64 {
	if len(measurements) == 0 {
		return 0
	}
	sum := 0.0
	for _, m := range measurements {
		sum += m.Milliseconds
	}
	return sum / float64(len(measurements))
}
