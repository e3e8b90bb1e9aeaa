package astn

import (
	"github.com/born-ml/astn/internal/tensor"
	"github.com/born-ml/astn/internal/warp"
)

// Transformer warps pooled features with per-region parameters. The channels of each
// region are split into spec.BlockNum equal blocks, each warped by its own slice of the
// parameter vector. The output has the input's shape.
type Transformer[B tensor.Backend] struct {
	spec    warp.Spec
	backend B
}

// NewTransformer creates a transformer for the given block layout.
func NewTransformer[B tensor.Backend](spec warp.Spec, backend B) *Transformer[B] {
	return &Transformer[B]{spec: spec, backend: backend}
}

// Forward warps pooled [R, C, H, W] with theta [R, NumParams].
func (t *Transformer[B]) Forward(pooled, theta *tensor.RawTensor) *tensor.RawTensor {
	return t.backend.SpatialTransform(pooled, theta, t.spec)
}
