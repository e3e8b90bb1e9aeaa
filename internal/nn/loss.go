package nn

import (
	"github.com/born-ml/astn/internal/autodiff/ops"
	"github.com/born-ml/astn/internal/tensor"
)

// LossBackend is a backend that also computes the detector losses.
//
// The autodiff backend implements it; losses only make sense where gradients are
// recorded.
type LossBackend interface {
	tensor.Backend

	CrossEntropy(logits *tensor.RawTensor, labels []int, weights []float64) *tensor.RawTensor
	SmoothL1(pred, target, inside, outside *tensor.RawTensor, sigma float64) *tensor.RawTensor
	TransformQuality(probs *tensor.RawTensor, labels []int, valid []bool, opts ops.QualityOptions) *tensor.RawTensor
	WeightedSum(losses []*tensor.RawTensor, weights []float64) *tensor.RawTensor
}
