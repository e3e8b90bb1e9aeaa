package ops

import (
	"github.com/born-ml/astn/internal/tensor"
	"github.com/born-ml/astn/internal/warp"
)

// SpatialTransformOp represents the per-region block warp of pooled features.
//
// Backward pass:
//   - grad_input: outputGrad scattered through the bilinear weights
//   - grad_theta: outputGrad times the derivative of the bilinear kernel with respect
//     to the sampling location, chained through the transform parametrisation
//
// Out-of-bound samples contribute to neither gradient.
type SpatialTransformOp struct {
	input  *tensor.RawTensor
	theta  *tensor.RawTensor
	spec   warp.Spec
	output *tensor.RawTensor
}

// NewSpatialTransformOp creates a new SpatialTransformOp.
func NewSpatialTransformOp(input, theta *tensor.RawTensor, spec warp.Spec, output *tensor.RawTensor) *SpatialTransformOp {
	return &SpatialTransformOp{input: input, theta: theta, spec: spec, output: output}
}

// Backward computes gradients for input and theta.
func (op *SpatialTransformOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradInput, gradTheta := backend.SpatialTransformBackward(op.input, op.theta, outputGrad, op.spec)
	return []*tensor.RawTensor{gradInput, gradTheta}
}

// Inputs returns [input, theta].
func (op *SpatialTransformOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.theta}
}

// Output returns the warped features.
func (op *SpatialTransformOp) Output() *tensor.RawTensor {
	return op.output
}
