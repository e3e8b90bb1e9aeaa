package tensor

import "github.com/born-ml/astn/internal/warp"

// Backend defines the kernels the detector runs on.
//
// Every method allocates its result; inputs are never modified. The autodiff
// decorator wraps a Backend and records each call on its tape, so any code written
// against Backend is differentiable when handed an autodiff backend.
type Backend interface {
	// Name returns the backend name.
	Name() string

	// Device returns the compute device.
	Device() Device

	// Add performs element-wise addition of tensors with equal shapes.
	Add(a, b *RawTensor) *RawTensor

	// MatMul multiplies two 2D tensors, optionally transposing either operand.
	MatMul(a, b *RawTensor, transA, transB bool) *RawTensor

	// Linear computes x @ weight.T + bias for x [N, in], weight [out, in], bias [out].
	// bias may be nil.
	Linear(x, weight, bias *RawTensor) *RawTensor

	// ReLU applies max(0, x) element-wise.
	ReLU(x *RawTensor) *RawTensor

	// Softmax applies softmax along the last dimension of a 2D tensor.
	Softmax(x *RawTensor) *RawTensor

	// Reshape returns x with a new shape of equal element count.
	Reshape(x *RawTensor, shape Shape) *RawTensor

	// ROIPool max-pools every region of rois [R, 5] (image index, x1, y1, x2, y2 in image
	// pixels) over features [N, C, H, W] into [R, C, pooledH, pooledW]. It also returns,
	// for every output element, the flat feature index that held the maximum (-1 for an
	// empty bin).
	ROIPool(features, rois *RawTensor, pooledH, pooledW int, spatialScale float64) (*RawTensor, []int)

	// ROIPoolBackward routes outputGrad to the positions recorded in argmax.
	ROIPoolBackward(featureShape Shape, outputGrad *RawTensor, argmax []int) *RawTensor

	// SpatialTransform warps every region of input [R, C, H, W] with its parameter row of
	// theta [R, spec.NumParams()]; channels are split into spec.BlockNum contiguous blocks.
	SpatialTransform(input, theta *RawTensor, spec warp.Spec) *RawTensor

	// SpatialTransformBackward returns the gradients of SpatialTransform with respect to
	// input and theta.
	SpatialTransformBackward(input, theta, outputGrad *RawTensor, spec warp.Spec) (*RawTensor, *RawTensor)
}
