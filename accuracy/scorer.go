// Package accuracy obtains a ground-truth-based correctness score for
// one image's recognized text by invoking an external scoring process.
// The scoring algorithm itself is a black box; this package only owns
// the process boundary and the wire contract of its output.
package accuracy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// markerPrefix introduces the one structured line the scorer must emit
// on its combined output. The remainder of the line is a JSON payload.
const markerPrefix = "SINGLE_ACC:"

// DefaultTimeout bounds a single scorer invocation. The original tool
// waited forever; a hung scorer should fail one image, not the batch.
const DefaultTimeout = 60 * time.Second

// payload is the structured record the scorer emits after the marker.
type payload struct {
	CharacterAccuracy float64 `json:"character_accuracy"`
}

// Scorer invokes the external accuracy calculator for single images.
type Scorer struct {
	// Command is the scorer executable and any leading arguments,
	// e.g. {"python", "scripts/calculate_acc.py"}.
	Command []string

	// GroundTruthPath is the reference-text location passed through to
	// the scorer; its format is the scorer's business.
	GroundTruthPath string

	// OutputDir is where the benchmark persisted the image's OCR output;
	// the scorer correlates by base image name within it.
	OutputDir string

	// Timeout bounds one invocation. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Score runs the scorer for the image with the given base name
// (directory and extension already stripped) and returns the
// character-level accuracy in [0, 1].
//
// Any failure — spawn error, non-zero exit, timeout, missing marker
// line, malformed payload — is returned as an error; callers treat it
// as recoverable and record 0.0 for the image.
func (s *Scorer) Score(ctx context.Context, imageName string) (float64, error) {
	if len(s.Command) == 0 {
		return 0, errors.New("scorer command not configured")
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{}, s.Command[1:]...)
	args = append(args,
		"--ground_truth", s.GroundTruthPath,
		"--output_dir", s.OutputDir,
		"--image_name", imageName,
	)

	cmd := exec.CommandContext(ctx, s.Command[0], args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, errors.Wrapf(err, "scorer failed for %s: %s", imageName, firstLine(output))
	}

	value, err := parseAccuracy(output)
	if err != nil {
		return 0, errors.Wrapf(err, "scorer output for %s", imageName)
	}
	return value, nil
}

// parseAccuracy scans combined scorer output for the marker line and
// decodes the JSON payload that follows it.
func parseAccuracy(output []byte) (float64, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, markerPrefix) {
			continue
		}

		var p payload
		raw := strings.TrimSpace(strings.TrimPrefix(line, markerPrefix))
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return 0, errors.Wrap(err, "malformed accuracy payload")
		}
		if p.CharacterAccuracy < 0 || p.CharacterAccuracy > 1 {
			return 0, errors.Errorf("accuracy %v out of range [0, 1]", p.CharacterAccuracy)
		}
		return p.CharacterAccuracy, nil
	}
	return 0, errors.Errorf("no %q line found", markerPrefix)
}

func firstLine(output []byte) string {
	trimmed := strings.TrimSpace(string(output))
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		return trimmed[:idx]
	}
	return trimmed
}
