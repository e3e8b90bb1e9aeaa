// Package ops defines the differentiable operations recorded by the gradient tape.
//
// Each operation records its inputs and output during the forward pass and computes
// input gradients during the backward pass.
//
// Supported operations:
//   - AddOp: element-wise addition
//   - MatMulOp: matrix multiplication with optional transposes
//   - LinearOp: x @ W.T + b
//   - ReLUOp, SoftmaxOp, ReshapeOp
//   - ROIPoolOp: region max pooling (argmax routing)
//   - SpatialTransformOp: per-region block warp (gradients for features and params)
//   - CrossEntropyOp, SmoothL1Op, TransformQualityOp, WeightedSumOp: scalar losses
package ops

import "github.com/born-ml/astn/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor; an entry may be
	// nil when no gradient flows to that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}
