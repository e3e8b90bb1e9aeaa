// Package autodiff implements automatic differentiation using the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and adds gradient tracking
// through a GradientTape.
//
// Architecture:
//   - Decorator pattern: AutodiffBackend[B] wraps any Backend implementation
//   - GradientTape: Records operations during forward pass
//   - Operation interface: Each op implements its backward pass
//   - Reverse-mode AD: Computes gradients using the chain rule
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	logits := backend.Linear(x, w, b)
//	loss := backend.CrossEntropy(logits, labels, nil)
//	grads := autodiff.Backward(loss, backend)
//	gw := grads[w]
package autodiff

import (
	"github.com/born-ml/astn/internal/autodiff/ops"
	"github.com/born-ml/astn/internal/tensor"
	"github.com/born-ml/astn/internal/warp"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements the tensor.Backend interface and records operations in a GradientTape.
//
// Type parameter B must satisfy the tensor.Backend interface.
type AutodiffBackend[B tensor.Backend] struct {
	inner B             // Wrapped backend
	tape  *GradientTape // Records operations for backpropagation
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(x, y)
	b.tape.Record(ops.NewAddOp(x, y, result))
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(x, y *tensor.RawTensor, transA, transB bool) *tensor.RawTensor {
	result := b.inner.MatMul(x, y, transA, transB)
	b.tape.Record(ops.NewMatMulOp(x, y, transA, transB, result))
	return result
}

// Linear computes x @ weight.T + bias and records the operation.
func (b *AutodiffBackend[B]) Linear(x, weight, bias *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Linear(x, weight, bias)
	b.tape.Record(ops.NewLinearOp(x, weight, bias, result))
	return result
}

// ReLU applies max(0, x) and records the operation.
func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.ReLU(x)
	b.tape.Record(ops.NewReLUOp(x, result))
	return result
}

// Softmax applies a row-wise softmax and records the operation.
func (b *AutodiffBackend[B]) Softmax(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Softmax(x)
	b.tape.Record(ops.NewSoftmaxOp(x, result))
	return result
}

// Reshape changes the shape of x and records the operation.
func (b *AutodiffBackend[B]) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(x, shape)
	b.tape.Record(ops.NewReshapeOp(x, result))
	return result
}

// ROIPool max-pools regions and records the operation with its argmax.
func (b *AutodiffBackend[B]) ROIPool(features, rois *tensor.RawTensor, pooledH, pooledW int, spatialScale float64) (*tensor.RawTensor, []int) {
	result, argmax := b.inner.ROIPool(features, rois, pooledH, pooledW, spatialScale)
	b.tape.Record(ops.NewROIPoolOp(features, rois, argmax, result))
	return result, argmax
}

// ROIPoolBackward delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) ROIPoolBackward(featureShape tensor.Shape, outputGrad *tensor.RawTensor, argmax []int) *tensor.RawTensor {
	return b.inner.ROIPoolBackward(featureShape, outputGrad, argmax)
}

// SpatialTransform warps region features and records the operation.
func (b *AutodiffBackend[B]) SpatialTransform(input, theta *tensor.RawTensor, spec warp.Spec) *tensor.RawTensor {
	result := b.inner.SpatialTransform(input, theta, spec)
	b.tape.Record(ops.NewSpatialTransformOp(input, theta, spec, result))
	return result
}

// SpatialTransformBackward delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) SpatialTransformBackward(input, theta, outputGrad *tensor.RawTensor, spec warp.Spec) (*tensor.RawTensor, *tensor.RawTensor) {
	return b.inner.SpatialTransformBackward(input, theta, outputGrad, spec)
}

// CrossEntropy computes the weighted softmax cross-entropy of logits [R, K].
//
// Forward:
//
//	Loss = Σ_i w_i * -log_softmax(logits_i)[labels_i] / Σ_i w_i
//
// weights may be nil for a plain mean.
func (b *AutodiffBackend[B]) CrossEntropy(logits *tensor.RawTensor, labels []int, weights []float64) *tensor.RawTensor {
	result, grad := ops.CrossEntropyForward(logits, labels, weights)
	b.tape.Record(ops.NewCrossEntropyOp(logits, grad, result))
	return result
}

// SmoothL1 computes Σ outside * smoothL1(inside * (pred - target)).
func (b *AutodiffBackend[B]) SmoothL1(pred, target, inside, outside *tensor.RawTensor, sigma float64) *tensor.RawTensor {
	result, grad := ops.SmoothL1Forward(pred, target, inside, outside, sigma)
	b.tape.Record(ops.NewSmoothL1Op(pred, grad, result))
	return result
}

// TransformQuality computes the transform quality loss over class probabilities.
func (b *AutodiffBackend[B]) TransformQuality(probs *tensor.RawTensor, labels []int, valid []bool, opts ops.QualityOptions) *tensor.RawTensor {
	result, grad := ops.TransformQualityForward(probs, labels, valid, opts)
	b.tape.Record(ops.NewTransformQualityOp(probs, grad, result))
	return result
}

// WeightedSum combines scalar losses into one.
func (b *AutodiffBackend[B]) WeightedSum(losses []*tensor.RawTensor, weights []float64) *tensor.RawTensor {
	result := ops.WeightedSumForward(losses, weights)
	b.tape.Record(ops.NewWeightedSumOp(losses, weights, result))
	return result
}
