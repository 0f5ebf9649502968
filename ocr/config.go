package ocr

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the options handed to the pipeline at construction.
// Each option left at its zero value takes an engine-defined default.
// The struct is treated as immutable after NewPipeline.
type Config struct {
	// Model directories for each pipeline stage.
	DocOrientationModelDir      string `yaml:"doc_orientation_model_dir"`
	DocUnwarpingModelDir        string `yaml:"doc_unwarping_model_dir"`
	TextlineOrientationModelDir string `yaml:"textline_orientation_model_dir"`
	DetectionModelDir           string `yaml:"detection_model_dir"`
	RecognitionModelDir         string `yaml:"recognition_model_dir"`

	// DictPath is the recognition character dictionary, one rune per line.
	DictPath string `yaml:"dict_path"`

	// Device selects the execution provider: "cpu" or "gpu".
	Device string `yaml:"device"`

	// OnnxLibraryPath overrides the onnxruntime shared library location.
	OnnxLibraryPath string `yaml:"onnx_library_path"`

	// Optional per-stage toggles. A nil pointer means "engine default":
	// the stage is enabled iff its model directory is configured.
	UseDocOrientation      *bool `yaml:"use_doc_orientation"`
	UseDocUnwarping        *bool `yaml:"use_doc_unwarping"`
	UseTextlineOrientation *bool `yaml:"use_textline_orientation"`

	// Detection postprocess parameters.
	DetMaxSideLen int     `yaml:"det_max_side_len"`
	DetDBThresh   float32 `yaml:"det_db_thresh"`
}

// DefaultConfig returns a configuration with engine-defined defaults.
func DefaultConfig() *Config {
	return &Config{
		Device:        "cpu",
		DetMaxSideLen: 960,
		DetDBThresh:   0.3,
	}
}

// LoadConfig reads a YAML pipeline configuration, applying defaults for
// any option the file does not set.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	return cfg, nil
}

// stageEnabled resolves a tri-state toggle against the stage's model
// directory: an explicit toggle wins, otherwise the stage runs iff a
// model directory was configured for it.
func stageEnabled(toggle *bool, modelDir string) bool {
	if toggle != nil {
		return *toggle && modelDir != ""
	}
	return modelDir != ""
}

// DocOrientationEnabled reports whether the document orientation
// classifier stage will run.
func (c *Config) DocOrientationEnabled() bool {
	return stageEnabled(c.UseDocOrientation, c.DocOrientationModelDir)
}

// DocUnwarpingEnabled reports whether the document unwarping stage will run.
func (c *Config) DocUnwarpingEnabled() bool {
	return stageEnabled(c.UseDocUnwarping, c.DocUnwarpingModelDir)
}

// TextlineOrientationEnabled reports whether the text-line orientation
// classifier stage will run.
func (c *Config) TextlineOrientationEnabled() bool {
	return stageEnabled(c.UseTextlineOrientation, c.TextlineOrientationModelDir)
}
