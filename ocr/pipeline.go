// Package ocr wraps a PaddleOCR-style ONNX pipeline behind a single
// long-lived handle. Construction loads every configured stage model;
// Predict runs detection followed by per-line recognition.
package ocr

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

const (
	modelFileName = "inference.onnx"

	// Tensor names produced by paddle2onnx exports.
	tensorInputName  = "x"
	tensorOutputName = "save_infer_model/scale_0.tmp_1"

	recInputHeight   = 48
	recMaxInputWidth = 320
	recMinInputWidth = 16

	clsInputWidth  = 224
	clsInputHeight = 224

	unwarpInputSide = 736
)

// The ONNX runtime environment is process-wide and initialized once.
var (
	ortInit    sync.Once
	ortInitErr error
)

func initRuntime(libraryPath string) error {
	ortInit.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// Pipeline is the OCR engine handle. It is constructed exactly once per
// run, holds one ONNX session per enabled stage, and is not safe for
// concurrent Predict calls; the benchmark loop never makes any.
type Pipeline struct {
	cfg  *Config
	dict []string

	detection           *ort.DynamicAdvancedSession
	recognition         *ort.DynamicAdvancedSession
	docOrientation      *ort.DynamicAdvancedSession
	docUnwarping        *ort.DynamicAdvancedSession
	textlineOrientation *ort.DynamicAdvancedSession

	options *ort.SessionOptions
}

// NewPipeline constructs the engine from cfg. This is the expensive
// operation of a run (model loading); callers time it separately from
// inference.
func NewPipeline(cfg *Config) (*Pipeline, error) {
	if cfg.DetectionModelDir == "" || cfg.RecognitionModelDir == "" {
		return nil, errors.New("detection and recognition model directories are required")
	}
	if cfg.DictPath == "" {
		return nil, errors.New("recognition dictionary path is required")
	}

	if err := initRuntime(cfg.OnnxLibraryPath); err != nil {
		return nil, errors.Wrap(err, "failed to initialize onnxruntime environment")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}

	if strings.EqualFold(cfg.Device, "gpu") {
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			options.Destroy()
			return nil, errors.Wrap(err, "failed to create CUDA provider options")
		}
		err = options.AppendExecutionProviderCUDA(cudaOptions)
		cudaOptions.Destroy()
		if err != nil {
			options.Destroy()
			return nil, errors.Wrap(err, "failed to enable CUDA execution provider")
		}
	}

	p := &Pipeline{cfg: cfg, options: options}

	p.dict, err = loadDict(cfg.DictPath)
	if err != nil {
		p.Close()
		return nil, err
	}

	stages := []struct {
		name    string
		dir     string
		enabled bool
		session **ort.DynamicAdvancedSession
	}{
		{"detection", cfg.DetectionModelDir, true, &p.detection},
		{"recognition", cfg.RecognitionModelDir, true, &p.recognition},
		{"doc orientation", cfg.DocOrientationModelDir, cfg.DocOrientationEnabled(), &p.docOrientation},
		{"doc unwarping", cfg.DocUnwarpingModelDir, cfg.DocUnwarpingEnabled(), &p.docUnwarping},
		{"textline orientation", cfg.TextlineOrientationModelDir, cfg.TextlineOrientationEnabled(), &p.textlineOrientation},
	}
	for _, stage := range stages {
		if !stage.enabled {
			continue
		}
		session, err := newStageSession(stage.dir, options)
		if err != nil {
			p.Close()
			return nil, errors.Wrapf(err, "failed to load %s model", stage.name)
		}
		*stage.session = session
	}

	return p, nil
}

func newStageSession(modelDir string, options *ort.SessionOptions) (*ort.DynamicAdvancedSession, error) {
	modelPath := filepath.Join(modelDir, modelFileName)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, errors.Wrapf(err, "model file not found at %s", modelPath)
	}
	return ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{tensorInputName},
		[]string{tensorOutputName},
		options,
	)
}

func loadDict(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read recognition dictionary")
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	dict := make([]string, 0, len(lines))
	for _, line := range lines {
		dict = append(dict, strings.TrimRight(line, "\r"))
	}
	if len(dict) == 0 {
		return nil, errors.Errorf("recognition dictionary %s is empty", path)
	}
	return dict, nil
}

// Close releases every stage session. Safe to call more than once.
func (p *Pipeline) Close() error {
	var firstErr error
	for _, session := range []**ort.DynamicAdvancedSession{
		&p.detection, &p.recognition, &p.docOrientation, &p.docUnwarping, &p.textlineOrientation,
	} {
		if *session == nil {
			continue
		}
		if err := (*session).Destroy(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "error destroying ORT session")
		}
		*session = nil
	}
	if p.options != nil {
		p.options.Destroy()
		p.options = nil
	}
	return firstErr
}

// Predict runs the full pipeline on one image file and returns its
// ordered results. Errors are fatal to this image only; the caller
// records the image as failed and continues the batch.
func (p *Pipeline) Predict(ctx context.Context, imagePath string) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := gocv.IMRead(imagePath, gocv.IMReadColor)
	if src.Empty() {
		return nil, errors.Errorf("failed to decode image %s", imagePath)
	}
	defer src.Close()

	working := src.Clone()
	defer working.Close()

	if p.docOrientation != nil {
		class, err := p.classify(p.docOrientation, working, clsInputWidth, clsInputHeight)
		if err != nil {
			return nil, errors.Wrap(err, "doc orientation classification failed")
		}
		if code, rotated := orientationRotation(class); rotated {
			dst := gocv.NewMat()
			gocv.Rotate(working, &dst, code)
			working.Close()
			working = dst
		}
	}

	if p.docUnwarping != nil {
		unwarped, err := p.unwarp(working)
		if err != nil {
			return nil, errors.Wrap(err, "doc unwarping failed")
		}
		working.Close()
		working = unwarped
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	boxes, err := p.detect(working)
	if err != nil {
		return nil, errors.Wrap(err, "text detection failed")
	}

	segments := make([]Segment, 0, len(boxes))
	for _, box := range boxes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		crop := working.Region(box)
		segment, err := p.recognize(crop)
		crop.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "text recognition failed for region %v", box)
		}
		segment.Box = box
		if segment.Text != "" {
			segments = append(segments, segment)
		}
	}

	return []Result{{Source: imagePath, Page: 1, Segments: segments}}, nil
}

// detect runs the text detector and reduces its probability map to
// axis-aligned boxes in source coordinates, reading order.
func (p *Pipeline) detect(m gocv.Mat) ([]image.Rectangle, error) {
	srcW, srcH := m.Cols(), m.Rows()
	inW, inH := detInputSize(srcW, srcH, p.cfg.DetMaxSideLen)

	input, err := imageTensor(m, inW, inH, detNormalize)
	if err != nil {
		return nil, err
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := p.detection.Run([]ort.Value{input}, outputs); err != nil {
		return nil, errors.Wrap(err, "detection session run failed")
	}
	probTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.New("unexpected detection output tensor type")
	}
	defer probTensor.Destroy()

	shape := probTensor.GetShape()
	if len(shape) < 2 {
		return nil, errors.Errorf("unexpected detection output shape %v", shape)
	}
	mapH := int(shape[len(shape)-2])
	mapW := int(shape[len(shape)-1])
	probs := probTensor.GetData()

	mask := gocv.Zeros(mapH, mapW, gocv.MatTypeCV8U)
	defer mask.Close()
	for y := 0; y < mapH; y++ {
		for x := 0; x < mapW; x++ {
			if probs[y*mapW+x] > p.cfg.DetDBThresh {
				mask.SetUCharAt(y, x, 255)
			}
		}
	}

	contours := gocv.FindContours(mask, gocv.RetrievalList, gocv.ChainApproxSimple)
	defer contours.Close()

	scaleX := float64(srcW) / float64(mapW)
	scaleY := float64(srcH) / float64(mapH)

	var boxes []image.Rectangle
	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		if rect.Dx() < 3 || rect.Dy() < 3 {
			continue
		}
		// Unclip a little so the recognizer sees full glyphs.
		pad := rect.Dy() / 4
		box := image.Rect(
			int(float64(rect.Min.X)*scaleX)-pad,
			int(float64(rect.Min.Y)*scaleY)-pad,
			int(float64(rect.Max.X)*scaleX)+pad,
			int(float64(rect.Max.Y)*scaleY)+pad,
		)
		boxes = append(boxes, box.Intersect(image.Rect(0, 0, srcW, srcH)))
	}

	sort.Slice(boxes, func(i, j int) bool {
		if boxes[i].Min.Y != boxes[j].Min.Y {
			return boxes[i].Min.Y < boxes[j].Min.Y
		}
		return boxes[i].Min.X < boxes[j].Min.X
	})

	return boxes, nil
}

// recognize runs the recognizer on one text-line crop and decodes the
// CTC output greedily against the dictionary.
func (p *Pipeline) recognize(crop gocv.Mat) (Segment, error) {
	line := crop
	if p.textlineOrientation != nil {
		class, err := p.classify(p.textlineOrientation, crop, clsInputWidth, clsInputHeight)
		if err != nil {
			return Segment{}, errors.Wrap(err, "textline orientation classification failed")
		}
		if class == 1 {
			flipped := gocv.NewMat()
			gocv.Rotate(crop, &flipped, gocv.Rotate180Clockwise)
			defer flipped.Close()
			line = flipped
		}
	}

	inW := recInputHeight * line.Cols() / maxInt(line.Rows(), 1)
	inW = clampInt(inW, recMinInputWidth, recMaxInputWidth)

	input, err := imageTensor(line, inW, recInputHeight, recNormalize)
	if err != nil {
		return Segment{}, err
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := p.recognition.Run([]ort.Value{input}, outputs); err != nil {
		return Segment{}, errors.Wrap(err, "recognition session run failed")
	}
	logitsTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return Segment{}, errors.New("unexpected recognition output tensor type")
	}
	defer logitsTensor.Destroy()

	shape := logitsTensor.GetShape()
	if len(shape) != 3 {
		return Segment{}, errors.Errorf("unexpected recognition output shape %v", shape)
	}
	steps := int(shape[1])
	classes := int(shape[2])

	text, score := decodeCTC(logitsTensor.GetData(), steps, classes, p.dict)
	return Segment{Text: text, Score: score}, nil
}

// classify runs a classification stage on m and returns the argmax class.
func (p *Pipeline) classify(session *ort.DynamicAdvancedSession, m gocv.Mat, inW, inH int) (int, error) {
	input, err := imageTensor(m, inW, inH, recNormalize)
	if err != nil {
		return 0, err
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := session.Run([]ort.Value{input}, outputs); err != nil {
		return 0, errors.Wrap(err, "classification session run failed")
	}
	scoresTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return 0, errors.New("unexpected classification output tensor type")
	}
	defer scoresTensor.Destroy()

	class, _ := argmax(scoresTensor.GetData())
	return class, nil
}

// unwarp runs the document rectification stage and returns the
// rectified image as a new Mat owned by the caller.
func (p *Pipeline) unwarp(m gocv.Mat) (gocv.Mat, error) {
	input, err := imageTensor(m, unwarpInputSide, unwarpInputSide, recNormalize)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := p.docUnwarping.Run([]ort.Value{input}, outputs); err != nil {
		return gocv.Mat{}, errors.Wrap(err, "unwarping session run failed")
	}
	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return gocv.Mat{}, errors.New("unexpected unwarping output tensor type")
	}
	defer outTensor.Destroy()

	shape := outTensor.GetShape()
	if len(shape) != 4 || shape[1] != 3 {
		return gocv.Mat{}, errors.Errorf("unexpected unwarping output shape %v", shape)
	}
	outH := int(shape[2])
	outW := int(shape[3])
	data := outTensor.GetData()

	rectified := image.NewRGBA(image.Rect(0, 0, outW, outH))
	plane := outH * outW
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			idx := y*outW + x
			rectified.Set(x, y, colorFromCHW(data, idx, plane))
		}
	}

	mat, err := gocv.ImageToMatRGB(rectified)
	if err != nil {
		return gocv.Mat{}, errors.Wrap(err, "failed to convert rectified image")
	}
	return mat, nil
}

// decodeCTC greedily decodes a [steps x classes] logit sequence: class 0
// is the CTC blank, repeated classes collapse, and the confidence is the
// mean softmax probability over emitting steps.
func decodeCTC(logits []float32, steps, classes int, dict []string) (string, float32) {
	var builder strings.Builder
	var scoreSum float32
	emitted := 0
	lastClass := 0

	for t := 0; t < steps; t++ {
		row := logits[t*classes : (t+1)*classes]
		class, prob := softmaxArgmax(row)
		if class != 0 && class != lastClass {
			if class-1 < len(dict) {
				builder.WriteString(dict[class-1])
				scoreSum += prob
				emitted++
			}
		}
		lastClass = class
	}

	if emitted == 0 {
		return "", 0
	}
	return builder.String(), scoreSum / float32(emitted)
}

func argmax(values []float32) (int, float32) {
	best := 0
	bestValue := math32.Inf(-1)
	for i, v := range values {
		if v > bestValue {
			best = i
			bestValue = v
		}
	}
	return best, bestValue
}

func softmaxArgmax(logits []float32) (int, float32) {
	best, bestLogit := argmax(logits)
	var sum float32
	for _, v := range logits {
		sum += math32.Exp(v - bestLogit)
	}
	if sum == 0 {
		return best, 0
	}
	return best, 1 / sum
}

func orientationRotation(class int) (gocv.RotateFlag, bool) {
	switch class {
	case 1:
		return gocv.Rotate90CounterClockwise, true
	case 2:
		return gocv.Rotate180Clockwise, true
	case 3:
		return gocv.Rotate90Clockwise, true
	default:
		return 0, false
	}
}
