package benchmark

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitPerImage(t *testing.T) {
	var buf bytes.Buffer
	EmitPerImage(&buf, &PerImageMetrics{
		Filename:       "general_ocr_002",
		InferenceMs:    11.0,
		FPS:            1000 / 11.0,
		CharsPerSecond: 50 * 1000 / 11.0,
		TotalChars:     50,
		Accuracy:       0.9517,
	})

	assert.Equal(t,
		`PER_IMAGE_RESULT:{"filename":"general_ocr_002","inference_ms":11.00,"fps":90.91,"chars_per_second":4545.45,"total_chars":50,"accuracy":0.9517}`+"\n",
		buf.String())
}

func TestEmitTimingInfo(t *testing.T) {
	var buf bytes.Buffer
	EmitTimingInfo(&buf, &BatchSummary{
		Successful:       3,
		TotalImages:      4,
		SuccessRate:      75.0,
		InitDuration:     2300 * time.Millisecond,
		TotalInferenceMs: 33.0,
		AvgInferenceMs:   11.0,
		AvgFPS:           1000 / 11.0,
		BatchFPS:         3 * 1000 / 33.0,
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Equal(t, []string{
		"TIMING_INFO:INIT:2300ms",
		"TIMING_INFO:TOTAL_INFERENCE:33.00ms",
		"TIMING_INFO:AVG_INFERENCE:11.00ms",
		"TIMING_INFO:AVG_FPS:90.91",
		"TIMING_INFO:BATCH_FPS:90.91",
		"TIMING_INFO:SUCCESS_RATE:75.00%",
	}, lines)
}

func TestWriteSummaryTable(t *testing.T) {
	var buf bytes.Buffer
	WriteSummaryTable(&buf, &BatchSummary{
		TotalImages:      2,
		Successful:       2,
		SuccessRate:      100.0,
		InitDuration:     time.Second,
		TotalDuration:    3 * time.Second,
		TotalInferenceMs: 40.0,
		AvgInferenceMs:   20.0,
		MinInferenceMs:   18.0,
		MaxInferenceMs:   22.0,
		AvgFPS:           50.0,
		BatchFPS:         50.0,
	})

	out := buf.String()
	assert.Contains(t, out, "BENCHMARK RESULTS SUMMARY")
	assert.Contains(t, out, "Total images processed: 2")
	assert.Contains(t, out, "Success rate: 100.0%")
	assert.Contains(t, out, "Initialization time: 1000 ms")
	assert.Contains(t, out, "Pure inference time: 40.00 ms")
	assert.Contains(t, out, "Batch throughput FPS: 50.00")
	// No TIMING_INFO lines leak into the human table.
	assert.NotContains(t, out, "TIMING_INFO:")
}
