// Command ocr-bench measures the throughput, latency, and accuracy of
// an OCR pipeline across a batch of images.
//
// Usage: ocr-bench [flags] <path_or_file> [path_or_file ...]
//
// Exit code 0 when every discovered image produced metrics; 1 when
// discovery found nothing, at least one image failed, or usage was
// invalid.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvr-ai/ocr-bench/accuracy"
	"github.com/nvr-ai/ocr-bench/benchmark"
	"github.com/nvr-ai/ocr-bench/corpus"
	"github.com/nvr-ai/ocr-bench/log"
	"github.com/nvr-ai/ocr-bench/ocr"
	"github.com/nvr-ai/ocr-bench/sink"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configFile   = flag.String("config", "", "Path to engine configuration YAML")
		outputDir    = flag.String("output", "./output", "Output directory for per-image artifacts")
		groundTruth  = flag.String("ground-truth", "./images/labels.json", "Ground-truth data passed to the accuracy scorer")
		scorerCmd    = flag.String("scorer", "python scripts/calculate_acc.py", "External accuracy scorer command")
		trials       = flag.Int("trials", benchmark.DefaultTrials, "Inference trials per image")
		scoreTimeout = flag.Duration("score-timeout", accuracy.DefaultTimeout, "Timeout for one scorer invocation")
		logLevel     = flag.String("log-level", "info", "Log level (debug, info, warn, error)")

		device        = flag.String("device", "", "Execution device override (cpu or gpu)")
		detModel      = flag.String("det-model", "", "Text detection model directory")
		recModel      = flag.String("rec-model", "", "Text recognition model directory")
		dictPath      = flag.String("dict", "", "Recognition character dictionary path")
		docOriModel   = flag.String("doc-orientation-model", "", "Document orientation classifier model directory")
		unwarpModel   = flag.String("doc-unwarping-model", "", "Document unwarping model directory")
		textlineModel = flag.String("textline-model", "", "Text-line orientation classifier model directory")
	)
	flag.Parse()
	log.SetLevel(*logLevel)

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return 1
	}

	log.Infof("[INFO] collecting image paths from %d input arguments...", len(args))
	imagePaths := corpus.Collect(args)
	if len(imagePaths) == 0 {
		log.Errorf("[ERROR] no valid image files found")
		log.Errorf("[ERROR] check that the specified paths contain image files (.jpg, .jpeg, .png, .bmp, .tiff)")
		return 1
	}
	log.Infof("[SUCCESS] found %d images to process", len(imagePaths))
	logSample(imagePaths)

	cfg, err := buildConfig(*configFile, configOverrides{
		device:        *device,
		detModel:      *detModel,
		recModel:      *recModel,
		dictPath:      *dictPath,
		docOriModel:   *docOriModel,
		unwarpModel:   *unwarpModel,
		textlineModel: *textlineModel,
	})
	if err != nil {
		log.Errorf("[ERROR] %v", err)
		return 1
	}
	logEngineConfig(cfg)

	log.Infof("[INIT] starting OCR pipeline initialization...")
	initStart := time.Now()
	pipeline, err := ocr.NewPipeline(cfg)
	if err != nil {
		log.Errorf("[ERROR] failed to initialize OCR pipeline: %v", err)
		return 1
	}
	defer pipeline.Close()
	initDuration := time.Since(initStart)
	log.Infof("[SUCCESS] OCR pipeline initialized in %d ms", initDuration.Milliseconds())

	outputSink, err := sink.New(*outputDir)
	if err != nil {
		log.Errorf("[ERROR] %v", err)
		return 1
	}

	runner := &benchmark.Runner{
		Engine: pipeline,
		Sink:   outputSink,
		Scorer: &accuracy.Scorer{
			Command:         strings.Fields(*scorerCmd),
			GroundTruthPath: *groundTruth,
			OutputDir:       outputSink.Dir(),
			Timeout:         *scoreTimeout,
		},
		Trials: *trials,
		Stdout: os.Stdout,
	}
	aggregator := benchmark.NewAggregator(len(imagePaths))
	ctx := context.Background()

	log.Infof("[BATCH] starting batch processing of %d images...", len(imagePaths))
	totalStart := time.Now()

	for i, imagePath := range imagePaths {
		log.Infof("[PROCESS %d/%d] starting: %s", i+1, len(imagePaths), imagePath)

		outcome := runner.ProcessImage(ctx, imagePath)
		if outcome.Failed() {
			log.Warnf("failed to process %s: %v", imagePath, outcome.Err)
			log.Warnf("continuing with next image...")
		} else {
			benchmark.EmitPerImage(os.Stdout, outcome.Metrics)
		}

		aggregator.Record(outcome)
		if aggregator.AtMilestone() {
			aggregator.LogProgress()
		}
	}

	totalDuration := time.Since(totalStart)
	log.Infof("[BATCH] batch processing completed in %d ms", totalDuration.Milliseconds())

	summary, err := aggregator.Summarize(initDuration, totalDuration)
	if err != nil {
		log.Errorf("[ERROR] %v - cannot calculate statistics", err)
		return 1
	}

	benchmark.WriteSummaryTable(os.Stdout, summary)
	benchmark.EmitTimingInfo(os.Stdout, summary)

	if summary.Failed > 0 {
		return 1
	}
	return 0
}

type configOverrides struct {
	device        string
	detModel      string
	recModel      string
	dictPath      string
	docOriModel   string
	unwarpModel   string
	textlineModel string
}

// buildConfig loads the YAML configuration when given, then lets
// command-line overrides win over file values.
func buildConfig(configFile string, o configOverrides) (*ocr.Config, error) {
	cfg := ocr.DefaultConfig()
	if configFile != "" {
		loaded, err := ocr.LoadConfig(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if o.device != "" {
		cfg.Device = o.device
	}
	if o.detModel != "" {
		cfg.DetectionModelDir = o.detModel
	}
	if o.recModel != "" {
		cfg.RecognitionModelDir = o.recModel
	}
	if o.dictPath != "" {
		cfg.DictPath = o.dictPath
	}
	if o.docOriModel != "" {
		cfg.DocOrientationModelDir = o.docOriModel
	}
	if o.unwarpModel != "" {
		cfg.DocUnwarpingModelDir = o.unwarpModel
	}
	if o.textlineModel != "" {
		cfg.TextlineOrientationModelDir = o.textlineModel
	}

	return cfg, nil
}

func logSample(imagePaths []string) {
	log.Infof("[INFO] sample images to be processed:")
	limit := len(imagePaths)
	if limit > 5 {
		limit = 5
	}
	for i := 0; i < limit; i++ {
		log.Infof("  [%d] %s", i+1, imagePaths[i])
	}
	if len(imagePaths) > 5 {
		log.Infof("  ... and %d more images", len(imagePaths)-5)
	}
}

func logEngineConfig(cfg *ocr.Config) {
	orDefault := func(s string) string {
		if s == "" {
			return "default"
		}
		return s
	}
	orDisabled := func(enabled bool, s string) string {
		if !enabled {
			return "disabled"
		}
		return s
	}

	log.Infof("[INIT] initializing OCR pipeline with the following configuration:")
	log.Infof("  - Device: %s", orDefault(cfg.Device))
	log.Infof("  - Detection model: %s", orDefault(cfg.DetectionModelDir))
	log.Infof("  - Recognition model: %s", orDefault(cfg.RecognitionModelDir))
	log.Infof("  - Doc orientation model: %s", orDisabled(cfg.DocOrientationEnabled(), cfg.DocOrientationModelDir))
	log.Infof("  - Doc unwarping model: %s", orDisabled(cfg.DocUnwarpingEnabled(), cfg.DocUnwarpingModelDir))
	log.Infof("  - Textline orientation model: %s", orDisabled(cfg.TextlineOrientationEnabled(), cfg.TextlineOrientationModelDir))
}

func init() {
	flag.Usage = func() {
		program := filepath.Base(os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <path_or_file> [path_or_file ...]\n\n", program)
		fmt.Fprintf(os.Stderr, "Batch benchmark for OCR pipeline throughput, latency, and accuracy.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s ./general_ocr_002.png\n", program)
		fmt.Fprintf(os.Stderr, "  %s -config ./conf.yaml ./images/\n", program)
		fmt.Fprintf(os.Stderr, "  %s img1.png img2.jpg img3.png\n", program)
	}
}
