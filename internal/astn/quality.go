package astn

import (
	"github.com/born-ml/astn/internal/autodiff/ops"
	"github.com/born-ml/astn/internal/nn"
	"github.com/born-ml/astn/internal/tensor"
)

// QualityLoss scores warped regions by classification confidence.
//
// The logits must come from a frozen classifier so the loss only reaches the warp
// parameters. Background and invalid regions contribute nothing; the loss is averaged
// over valid regions.
type QualityLoss[B nn.LossBackend] struct {
	opts    ops.QualityOptions
	backend B
}

// NewQualityLoss creates a quality loss.
func NewQualityLoss[B nn.LossBackend](opts ops.QualityOptions, backend B) *QualityLoss[B] {
	return &QualityLoss[B]{opts: opts, backend: backend}
}

// Forward returns the scalar loss of class logits [R, K].
func (q *QualityLoss[B]) Forward(logits *tensor.RawTensor, labels []int, valid []bool) *tensor.RawTensor {
	probs := q.backend.Softmax(logits)
	return q.backend.TransformQuality(probs, labels, valid, q.opts)
}

// Options returns the loss options.
func (q *QualityLoss[B]) Options() ops.QualityOptions {
	return q.opts
}
