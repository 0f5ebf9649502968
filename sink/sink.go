// Package sink persists the retained OCR output of each processed
// image: one visualization artifact and one serialized-structure
// artifact per result element, named by the image's base filename.
package sink

import (
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/ocr-bench/corpus"
	"github.com/nvr-ai/ocr-bench/log"
	"github.com/nvr-ai/ocr-bench/ocr"
)

var boxColor = color.RGBA{0, 255, 0, 0}

// Sink writes output artifacts under a fixed directory.
type Sink struct {
	dir string
}

// New creates the output directory if needed and returns a sink over it.
func New(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create output directory")
	}
	return &Sink{dir: dir}, nil
}

// Dir returns the output directory artifacts are written under.
func (s *Sink) Dir() string {
	return s.dir
}

// Persist renders each result to w for operator inspection, then writes
// the visualization and JSON artifacts.
//
// A persistence failure is reported to the caller as an error but by
// design does not invalidate the image's already-recorded metrics:
// success accounting follows inference, not artifact I/O.
func (s *Sink) Persist(w io.Writer, imagePath string, results []ocr.Result) error {
	base := corpus.BaseName(imagePath)

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for j, result := range results {
		log.Infof("    [OUTPUT %d] rendering results...", j+1)
		if w != nil {
			result.Render(w)
		}

		name := base
		if len(results) > 1 {
			name = fmt.Sprintf("%s_%d", base, j)
		}

		log.Infof("    [OUTPUT %d] saving visualization...", j+1)
		keep(s.saveVisualization(imagePath, result, filepath.Join(s.dir, name+"_vis.png")))

		log.Infof("    [OUTPUT %d] saving JSON...", j+1)
		keep(s.saveJSON(result, filepath.Join(s.dir, name+"_res.json")))
	}

	return firstErr
}

// saveVisualization draws each recognized segment's box and text onto
// the source image and writes it to outPath.
func (s *Sink) saveVisualization(imagePath string, result ocr.Result, outPath string) error {
	img := gocv.IMRead(imagePath, gocv.IMReadColor)
	if img.Empty() {
		return errors.Errorf("failed to read %s for visualization", imagePath)
	}
	defer img.Close()

	for _, segment := range result.Segments {
		gocv.Rectangle(&img, segment.Box, boxColor, 2)
		gocv.PutText(&img, segment.Text, segment.Box.Min, gocv.FontHersheyPlain, 0.8, boxColor, 1)
	}

	if !gocv.IMWrite(outPath, img) {
		return errors.Errorf("failed to write visualization to %s", outPath)
	}
	return nil
}

func (s *Sink) saveJSON(result ocr.Result, outPath string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal result")
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write result to %s", outPath)
	}
	return nil
}
