package accuracy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shScorer builds a Scorer whose command is a shell script; the
// benchmark-supplied flags land in the script's positional parameters
// and are ignored.
func shScorer(script string) *Scorer {
	return &Scorer{
		Command:         []string{"sh", "-c", script, "scorer"},
		GroundTruthPath: "labels.json",
		OutputDir:       "output",
	}
}

func TestScoreParsesMarkerLine(t *testing.T) {
	s := shScorer(`echo 'progress...'; echo 'SINGLE_ACC: {"character_accuracy": 0.9517, "total_chars": 50}'`)

	acc, err := s.Score(context.Background(), "general_ocr_002")
	require.NoError(t, err)
	assert.InDelta(t, 0.9517, acc, 1e-9)
}

func TestScoreNoMarkerLine(t *testing.T) {
	s := shScorer(`echo 'nothing to see here'`)

	_, err := s.Score(context.Background(), "img")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SINGLE_ACC")
}

func TestScoreNonZeroExit(t *testing.T) {
	s := shScorer(`echo 'traceback'; exit 3`)

	_, err := s.Score(context.Background(), "img")
	assert.Error(t, err)
}

func TestScoreMalformedPayload(t *testing.T) {
	s := shScorer(`echo 'SINGLE_ACC: not-json'`)

	_, err := s.Score(context.Background(), "img")
	assert.Error(t, err)
}

func TestScoreOutOfRangeAccuracy(t *testing.T) {
	s := shScorer(`echo 'SINGLE_ACC: {"character_accuracy": 1.5}'`)

	_, err := s.Score(context.Background(), "img")
	assert.Error(t, err)
}

func TestScoreTimeout(t *testing.T) {
	s := shScorer(`sleep 5`)
	s.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := s.Score(context.Background(), "img")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestScoreUnconfigured(t *testing.T) {
	s := &Scorer{}
	_, err := s.Score(context.Background(), "img")
	assert.Error(t, err)
}

func TestParseAccuracyPrefersFirstMarker(t *testing.T) {
	out := []byte("SINGLE_ACC: {\"character_accuracy\": 0.25}\nSINGLE_ACC: {\"character_accuracy\": 0.75}\n")
	acc, err := parseAccuracy(out)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, acc, 1e-9)
}
