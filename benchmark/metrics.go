// Package benchmark - batch measurement of OCR pipeline performance.
//
// Images are processed strictly one at a time, trials within an image
// strictly one at a time. Overlapping work would contaminate the
// latency measurement with scheduling noise, so there is none.
package benchmark

import "time"

// DefaultTrials is how many inference trials run per image.
const DefaultTrials = 3

// TrialMeasurement is one latency sample for one inference call on one
// image. It exists only long enough to be folded into PerImageMetrics.
type TrialMeasurement struct {
	Run          int     `json:"run"`
	Milliseconds float64 `json:"milliseconds"`
}

// PerImageMetrics is the recorded outcome for one successfully
// processed image. Immutable once created. The field order mirrors the
// PER_IMAGE_RESULT wire line.
type PerImageMetrics struct {
	Filename       string  `json:"filename"`
	InferenceMs    float64 `json:"inference_ms"`
	FPS            float64 `json:"fps"`
	CharsPerSecond float64 `json:"chars_per_second"`
	TotalChars     int     `json:"total_chars"`
	Accuracy       float64 `json:"accuracy"`
}

// BatchSummary is the final reduction over all PerImageMetrics,
// computed once after the last image.
type BatchSummary struct {
	TotalImages int     `json:"total_images"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`

	InitDuration  time.Duration `json:"init_duration"`
	TotalDuration time.Duration `json:"total_duration"`

	TotalInferenceMs float64 `json:"total_inference_ms"`
	AvgInferenceMs   float64 `json:"avg_inference_ms"`
	MinInferenceMs   float64 `json:"min_inference_ms"`
	MaxInferenceMs   float64 `json:"max_inference_ms"`

	// AvgFPS is the per-image rate 1000/AvgInferenceMs; BatchFPS is the
	// aggregate rate Successful*1000/TotalInferenceMs.
	AvgFPS   float64 `json:"avg_fps"`
	BatchFPS float64 `json:"batch_fps"`
}

// Outcome is the result of processing one image: either Metrics is set
// (inference succeeded) or Err is set (some trial failed). Scoring and
// persistence failures do not produce a failed Outcome.
type Outcome struct {
	Image   string
	Metrics *PerImageMetrics
	Err     error
}

// Failed reports whether the image must be counted as failed.
func (o Outcome) Failed() bool {
	return o.Err != nil
}
