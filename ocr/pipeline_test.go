package ocr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetInputSize(t *testing.T) {
	tests := []struct {
		w, h, maxSide int
		wantW, wantH  int
	}{
		{640, 480, 960, 640, 480},
		{1920, 1080, 960, 960, 512},
		{100, 2000, 960, 32, 960},
		{10, 10, 960, 32, 32},
	}
	for _, tt := range tests {
		gotW, gotH := detInputSize(tt.w, tt.h, tt.maxSide)
		assert.Equal(t, tt.wantW, gotW, "width for %dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantH, gotH, "height for %dx%d", tt.w, tt.h)
		assert.Zero(t, gotW%32)
		assert.Zero(t, gotH%32)
	}
}

func TestDecodeCTCCollapsesRepeatsAndBlanks(t *testing.T) {
	dict := []string{"a", "b", "c"}
	// 5 steps, 4 classes (blank + dict). Large logits make the softmax
	// confidence approach 1 for the chosen class.
	logits := []float32{
		0, 10, 0, 0, // "a"
		0, 10, 0, 0, // repeat, collapsed
		10, 0, 0, 0, // blank
		0, 10, 0, 0, // "a" again after blank
		0, 0, 0, 10, // "c"
	}

	text, score := decodeCTC(logits, 5, 4, dict)
	assert.Equal(t, "aac", text)
	assert.InDelta(t, 1.0, float64(score), 1e-3)
}

func TestDecodeCTCEmptyOnAllBlanks(t *testing.T) {
	logits := []float32{
		10, 0, 0,
		10, 0, 0,
	}
	text, score := decodeCTC(logits, 2, 3, []string{"a", "b"})
	assert.Empty(t, text)
	assert.Zero(t, score)
}

func TestDecodeCTCIgnoresOutOfDictClasses(t *testing.T) {
	// Class index 2 has no dictionary entry.
	logits := []float32{
		0, 0, 10,
	}
	text, _ := decodeCTC(logits, 1, 3, []string{"a"})
	assert.Empty(t, text)
}

func TestLoadDict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dict.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\n字\n"), 0o644))

	dict, err := loadDict(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "字"}, dict)
}

func TestLoadDictMissing(t *testing.T) {
	_, err := loadDict(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestOrientationRotation(t *testing.T) {
	_, rotated := orientationRotation(0)
	assert.False(t, rotated)
	for class := 1; class <= 3; class++ {
		_, rotated := orientationRotation(class)
		assert.True(t, rotated)
	}
}
