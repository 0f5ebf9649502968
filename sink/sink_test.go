package sink

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/ocr-bench/ocr"
)

// writeTestPNG writes a small valid PNG so gocv can decode it back.
func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func testResult(source string) ocr.Result {
	return ocr.Result{
		Source: source,
		Page:   1,
		Segments: []ocr.Segment{
			{Text: "hello", Score: 0.91, Box: image.Rect(2, 2, 30, 12)},
		},
	}
}

func TestNewCreatesOutputDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")

	s, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPersistWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "scan_07.png")
	writeTestPNG(t, imagePath)

	s, err := New(filepath.Join(dir, "output"))
	require.NoError(t, err)

	var rendered bytes.Buffer
	err = s.Persist(&rendered, imagePath, []ocr.Result{testResult(imagePath)})
	require.NoError(t, err)

	assert.Contains(t, rendered.String(), "hello")
	assert.FileExists(t, filepath.Join(s.Dir(), "scan_07_vis.png"))

	data, err := os.ReadFile(filepath.Join(s.Dir(), "scan_07_res.json"))
	require.NoError(t, err)
	var decoded ocr.Result
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "hello", decoded.Segments[0].Text)
}

func TestPersistNamesMultiResultArtifacts(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "multi.png")
	writeTestPNG(t, imagePath)

	s, err := New(filepath.Join(dir, "output"))
	require.NoError(t, err)

	results := []ocr.Result{testResult(imagePath), testResult(imagePath)}
	require.NoError(t, s.Persist(nil, imagePath, results))

	assert.FileExists(t, filepath.Join(s.Dir(), "multi_0_res.json"))
	assert.FileExists(t, filepath.Join(s.Dir(), "multi_1_res.json"))
}

func TestPersistReportsVisualizationFailureButStillWritesJSON(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "output"))
	require.NoError(t, err)

	missing := filepath.Join(dir, "gone.png")
	err = s.Persist(nil, missing, []ocr.Result{testResult(missing)})

	assert.Error(t, err)
	assert.FileExists(t, filepath.Join(s.Dir(), "gone_res.json"))
}
