package benchmark

import (
	"fmt"
	"io"
	"strings"
)

// The stable stdout contract. Downstream tooling greps these prefixes;
// the formats below are frozen.
const (
	perImagePrefix   = "PER_IMAGE_RESULT:"
	timingInfoPrefix = "TIMING_INFO:"
)

// EmitPerImage writes one machine-parseable result line for a
// successfully processed image.
func EmitPerImage(w io.Writer, m *PerImageMetrics) {
	fmt.Fprintf(w,
		"%s{\"filename\":%q,\"inference_ms\":%.2f,\"fps\":%.2f,\"chars_per_second\":%.2f,\"total_chars\":%d,\"accuracy\":%.4f}\n",
		perImagePrefix, m.Filename, m.InferenceMs, m.FPS, m.CharsPerSecond, m.TotalChars, m.Accuracy)
}

// EmitTimingInfo writes the six timing lines emitted once at the end of
// a run with at least one successful image.
func EmitTimingInfo(w io.Writer, s *BatchSummary) {
	fmt.Fprintf(w, "%sINIT:%dms\n", timingInfoPrefix, s.InitDuration.Milliseconds())
	fmt.Fprintf(w, "%sTOTAL_INFERENCE:%.2fms\n", timingInfoPrefix, s.TotalInferenceMs)
	fmt.Fprintf(w, "%sAVG_INFERENCE:%.2fms\n", timingInfoPrefix, s.AvgInferenceMs)
	fmt.Fprintf(w, "%sAVG_FPS:%.2f\n", timingInfoPrefix, s.AvgFPS)
	fmt.Fprintf(w, "%sBATCH_FPS:%.2f\n", timingInfoPrefix, s.BatchFPS)
	fmt.Fprintf(w, "%sSUCCESS_RATE:%.2f%%\n", timingInfoPrefix, s.SuccessRate)
}

// WriteSummaryTable writes the human-readable results block.
func WriteSummaryTable(w io.Writer, s *BatchSummary) {
	heavy := strings.Repeat("=", 60)
	light := strings.Repeat("-", 60)

	fmt.Fprintln(w, heavy)
	fmt.Fprintln(w, "BENCHMARK RESULTS SUMMARY")
	fmt.Fprintln(w, heavy)
	fmt.Fprintf(w, "Total images processed: %d\n", s.TotalImages)
	fmt.Fprintf(w, "Successful: %d\n", s.Successful)
	fmt.Fprintf(w, "Failed: %d\n", s.Failed)
	fmt.Fprintf(w, "Success rate: %.1f%%\n", s.SuccessRate)
	fmt.Fprintln(w, light)
	fmt.Fprintf(w, "Initialization time: %d ms\n", s.InitDuration.Milliseconds())
	fmt.Fprintf(w, "Total processing time: %d ms\n", s.TotalDuration.Milliseconds())
	fmt.Fprintf(w, "Pure inference time: %.2f ms\n", s.TotalInferenceMs)
	fmt.Fprintln(w, light)
	fmt.Fprintf(w, "Average inference time: %.2f ms\n", s.AvgInferenceMs)
	fmt.Fprintf(w, "Min inference time: %.2f ms\n", s.MinInferenceMs)
	fmt.Fprintf(w, "Max inference time: %.2f ms\n", s.MaxInferenceMs)
	fmt.Fprintln(w, light)
	fmt.Fprintf(w, "Average FPS (per image): %.2f\n", s.AvgFPS)
	fmt.Fprintf(w, "Batch throughput FPS: %.2f\n", s.BatchFPS)
	fmt.Fprintln(w, heavy)
}
