// Package config holds the detector's training configuration.
//
// A configuration is YAML over the Fast R-CNN defaults. Unknown keys are rejected, and
// Validate reports every invalid option at once.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/astn/internal/autodiff/ops"
	"github.com/born-ml/astn/internal/warp"
)

// Config holds every recognized training option.
type Config struct {
	// Model
	NumClasses    int     `yaml:"num_classes"`
	BlockNum      int     `yaml:"block_num"`
	TransformKind string  `yaml:"transform_kind"` // scale_shift | rotation
	ScoreThres    float64 `yaml:"score_thres"`
	QualityMode   string  `yaml:"quality_mode"` // cooperative | adversarial
	QualityWeight float64 `yaml:"quality_weight"`
	PooledH       int     `yaml:"pooled_h"`
	PooledW       int     `yaml:"pooled_w"`
	SpatialScale  float64 `yaml:"spatial_scale"`
	HiddenDim     int     `yaml:"hidden_dim"`
	PredictorDim  int     `yaml:"predictor_dim"`
	BBoxSigma     float64 `yaml:"bbox_sigma"`

	// Region sampling
	FgFraction        float64   `yaml:"fg_fraction"`
	FgThresh          float64   `yaml:"fg_thresh"`
	BgThreshHi        float64   `yaml:"bg_thresh_hi"`
	BgThreshLo        float64   `yaml:"bg_thresh_lo"`
	BatchSizePerImage int       `yaml:"batch_size_per_image"`
	ClassAgnostic     bool      `yaml:"class_agnostic"`
	UseGTAsProposals  bool      `yaml:"use_gt_as_proposals"`
	BBoxMeans         []float64 `yaml:"bbox_means"`
	BBoxStds          []float64 `yaml:"bbox_stds"`
	OHEMKeepPerImage  int       `yaml:"ohem_keep_per_image"` // 0 disables hard example mining

	// Data loading
	ImagesPerBatch int    `yaml:"images_per_batch"`
	AspectGrouping bool   `yaml:"aspect_grouping"`
	UseFlipped     bool   `yaml:"use_flipped"`
	PrefetchDepth  int    `yaml:"prefetch_depth"`
	Seed           uint64 `yaml:"seed"`

	// Update rule
	LR          float64 `yaml:"lr"`
	Momentum    float64 `yaml:"momentum"`
	WeightDecay float64 `yaml:"weight_decay"`
}

// Default returns the Fast R-CNN training defaults.
func Default() Config {
	return Config{
		NumClasses:    21,
		BlockNum:      1,
		TransformKind: warp.ScaleShift.String(),
		ScoreThres:    0.5,
		QualityMode:   ops.QualityCooperative.String(),
		QualityWeight: 1,
		PooledH:       7,
		PooledW:       7,
		SpatialScale:  1.0 / 16,
		HiddenDim:     1024,
		PredictorDim:  256,
		BBoxSigma:     1,

		FgFraction:        0.25,
		FgThresh:          0.5,
		BgThreshHi:        0.5,
		BgThreshLo:        0.1,
		BatchSizePerImage: 128,
		BBoxMeans:         []float64{0, 0, 0, 0},
		BBoxStds:          []float64{0.1, 0.1, 0.2, 0.2},

		ImagesPerBatch: 2,
		AspectGrouping: true,
		UseFlipped:     true,
		PrefetchDepth:  2,
		Seed:           3,

		LR:          0.001,
		Momentum:    0.9,
		WeightDecay: 0.0005,
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
// An empty document yields the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// BatchSize returns the number of sampled regions per minibatch.
func (c Config) BatchSize() int {
	return c.BatchSizePerImage * c.ImagesPerBatch
}

// WarpSpec returns the transform layout. The configuration must be valid.
func (c Config) WarpSpec() warp.Spec {
	kind, err := warp.ParseKind(c.TransformKind)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return warp.Spec{Kind: kind, BlockNum: c.BlockNum}
}

// Quality returns the quality loss options. The configuration must be valid.
func (c Config) Quality() ops.QualityOptions {
	mode, err := ParseQualityMode(c.QualityMode)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return ops.QualityOptions{Mode: mode, ScoreThres: c.ScoreThres}
}

// ParseQualityMode converts a configuration string into a quality mode.
func ParseQualityMode(s string) (ops.QualityMode, error) {
	switch s {
	case "cooperative", "":
		return ops.QualityCooperative, nil
	case "adversarial":
		return ops.QualityAdversarial, nil
	default:
		return 0, fmt.Errorf("unknown quality mode %q", s)
	}
}
