package ocr

import (
	"image/color"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// ImageNet statistics used by the detector preprocess.
var (
	detMean = [3]float32{0.485, 0.456, 0.406}
	detStd  = [3]float32{0.229, 0.224, 0.225}
)

type normalizeFunc func(channel int, value float32) float32

// detNormalize applies per-channel ImageNet normalization.
func detNormalize(channel int, value float32) float32 {
	return (value/255 - detMean[channel]) / detStd[channel]
}

// recNormalize maps pixel values into [-1, 1], the convention of the
// recognition and classification stages.
func recNormalize(_ int, value float32) float32 {
	return (value/255 - 0.5) / 0.5
}

// detInputSize scales (w, h) so the longer side does not exceed
// maxSideLen and both sides are multiples of 32, the detector's stride.
func detInputSize(w, h, maxSideLen int) (int, int) {
	if maxSideLen <= 0 {
		maxSideLen = 960
	}
	ratio := 1.0
	if w > maxSideLen || h > maxSideLen {
		if w > h {
			ratio = float64(maxSideLen) / float64(w)
		} else {
			ratio = float64(maxSideLen) / float64(h)
		}
	}
	return roundToStride(float64(w)*ratio, 32), roundToStride(float64(h)*ratio, 32)
}

func roundToStride(v float64, stride int) int {
	rounded := (int(v) / stride) * stride
	if rounded < stride {
		rounded = stride
	}
	return rounded
}

// imageTensor resizes m to (inW, inH) and packs it into a [1,3,H,W]
// float32 tensor in RGB channel order with the given normalization.
// The caller owns the returned tensor.
func imageTensor(m gocv.Mat, inW, inH int, normalize normalizeFunc) (*ort.Tensor[float32], error) {
	src, err := m.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert Mat to image")
	}
	resized := resize.Resize(uint(inW), uint(inH), src, resize.Bilinear)

	plane := inW * inH
	data := make([]float32, 3*plane)
	bounds := resized.Bounds()
	for y := 0; y < inH; y++ {
		for x := 0; x < inW; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			idx := y*inW + x
			data[idx] = normalize(0, float32(r>>8))
			data[plane+idx] = normalize(1, float32(g>>8))
			data[2*plane+idx] = normalize(2, float32(b>>8))
		}
	}

	tensor, err := ort.NewTensor(ort.NewShape(1, 3, int64(inH), int64(inW)), data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create input tensor")
	}
	return tensor, nil
}

// colorFromCHW reads pixel idx of a [3,H,W] float plane in [0,1].
func colorFromCHW(data []float32, idx, plane int) color.RGBA {
	return color.RGBA{
		R: floatToByte(data[idx]),
		G: floatToByte(data[plane+idx]),
		B: floatToByte(data[2*plane+idx]),
		A: 255,
	}
}

func floatToByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v * 255)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
