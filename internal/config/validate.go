package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/born-ml/astn/internal/warp"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// FieldError describes one invalid option.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrInvalid.
func (e *FieldError) Unwrap() error {
	return ErrInvalid
}

// Validate checks every option and returns all failures combined.
// Each failure is a *FieldError; use multierr.Errors to list them.
func (c Config) Validate() error {
	var err error
	check := func(ok bool, field, format string, args ...any) {
		if !ok {
			err = multierr.Append(err, &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
		}
	}
	unit := func(v float64) bool { return v >= 0 && v <= 1 }

	check(c.NumClasses >= 2, "num_classes", "must be at least 2, got %d", c.NumClasses)
	check(c.BlockNum >= 1, "block_num", "must be at least 1, got %d", c.BlockNum)
	if _, kerr := warp.ParseKind(c.TransformKind); kerr != nil {
		check(false, "transform_kind", "%v", kerr)
	}
	check(unit(c.ScoreThres), "score_thres", "must be in [0, 1], got %g", c.ScoreThres)
	if _, qerr := ParseQualityMode(c.QualityMode); qerr != nil {
		check(false, "quality_mode", "%v", qerr)
	}
	check(c.QualityWeight >= 0, "quality_weight", "must be non-negative, got %g", c.QualityWeight)
	check(c.PooledH > 0, "pooled_h", "must be positive, got %d", c.PooledH)
	check(c.PooledW > 0, "pooled_w", "must be positive, got %d", c.PooledW)
	check(c.SpatialScale > 0, "spatial_scale", "must be positive, got %g", c.SpatialScale)
	check(c.HiddenDim > 0, "hidden_dim", "must be positive, got %d", c.HiddenDim)
	check(c.PredictorDim > 0, "predictor_dim", "must be positive, got %d", c.PredictorDim)
	check(c.BBoxSigma > 0, "bbox_sigma", "must be positive, got %g", c.BBoxSigma)

	check(c.FgFraction > 0 && c.FgFraction <= 1, "fg_fraction", "must be in (0, 1], got %g", c.FgFraction)
	check(unit(c.FgThresh), "fg_thresh", "must be in [0, 1], got %g", c.FgThresh)
	check(unit(c.BgThreshHi), "bg_thresh_hi", "must be in [0, 1], got %g", c.BgThreshHi)
	check(unit(c.BgThreshLo), "bg_thresh_lo", "must be in [0, 1], got %g", c.BgThreshLo)
	check(c.BgThreshLo <= c.BgThreshHi, "bg_thresh_lo", "must not exceed bg_thresh_hi (%g > %g)", c.BgThreshLo, c.BgThreshHi)
	check(c.BgThreshHi <= c.FgThresh, "fg_thresh", "must not be below bg_thresh_hi (%g < %g)", c.FgThresh, c.BgThreshHi)
	check(c.BatchSizePerImage > 0, "batch_size_per_image", "must be positive, got %d", c.BatchSizePerImage)
	check(len(c.BBoxMeans) == 4, "bbox_means", "must have 4 values, got %d", len(c.BBoxMeans))
	check(len(c.BBoxStds) == 4, "bbox_stds", "must have 4 values, got %d", len(c.BBoxStds))
	for i, s := range c.BBoxStds {
		check(s > 0, fmt.Sprintf("bbox_stds[%d]", i), "must be positive, got %g", s)
	}
	check(c.OHEMKeepPerImage >= 0 && c.OHEMKeepPerImage <= c.BatchSizePerImage,
		"ohem_keep_per_image", "must be in [0, batch_size_per_image], got %d", c.OHEMKeepPerImage)

	check(c.ImagesPerBatch > 0, "images_per_batch", "must be positive, got %d", c.ImagesPerBatch)
	check(c.PrefetchDepth >= 0 && c.PrefetchDepth <= 2, "prefetch_depth", "must be 0 (no prefetch), 1 or 2, got %d", c.PrefetchDepth)

	check(c.LR > 0, "lr", "must be positive, got %g", c.LR)
	check(c.Momentum >= 0 && c.Momentum < 1, "momentum", "must be in [0, 1), got %g", c.Momentum)
	check(c.WeightDecay >= 0, "weight_decay", "must be non-negative, got %g", c.WeightDecay)

	return err
}
