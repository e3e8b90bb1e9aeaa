package ops

import "github.com/born-ml/astn/internal/tensor"

// ROIPoolOp represents region max pooling.
//
// The forward pass stores, for every output element, the flat index of the feature
// cell that won its bin. Backward routes each output gradient to that cell; empty
// bins (argmax -1) route nothing. Region boxes receive no gradient.
type ROIPoolOp struct {
	features *tensor.RawTensor
	rois     *tensor.RawTensor
	argmax   []int
	output   *tensor.RawTensor
}

// NewROIPoolOp creates a new ROIPoolOp.
func NewROIPoolOp(features, rois *tensor.RawTensor, argmax []int, output *tensor.RawTensor) *ROIPoolOp {
	return &ROIPoolOp{features: features, rois: rois, argmax: argmax, output: output}
}

// Backward computes the feature gradient.
func (op *ROIPoolOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.ROIPoolBackward(op.features.Shape(), outputGrad, op.argmax)}
}

// Inputs returns the feature map.
func (op *ROIPoolOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.features}
}

// Output returns the pooled regions.
func (op *ROIPoolOp) Output() *tensor.RawTensor {
	return op.output
}

// Argmax returns the recorded winner indices.
func (op *ROIPoolOp) Argmax() []int {
	return op.argmax
}
