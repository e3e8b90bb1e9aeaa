package ops

import (
	"fmt"

	"github.com/born-ml/astn/internal/tensor"
)

// WeightedSumOp combines scalar losses: output = Σ_i w_i * loss_i.
type WeightedSumOp struct {
	inputs  []*tensor.RawTensor
	weights []float64
	output  *tensor.RawTensor
}

// NewWeightedSumOp creates a new WeightedSumOp.
func NewWeightedSumOp(inputs []*tensor.RawTensor, weights []float64, output *tensor.RawTensor) *WeightedSumOp {
	return &WeightedSumOp{inputs: inputs, weights: weights, output: output}
}

// WeightedSumForward computes Σ_i w_i * loss_i over one-element tensors.
func WeightedSumForward(inputs []*tensor.RawTensor, weights []float64) *tensor.RawTensor {
	if len(inputs) != len(weights) {
		panic(fmt.Sprintf("weighted sum: %d inputs but %d weights", len(inputs), len(weights)))
	}
	total := 0.0
	for i, in := range inputs {
		total += weights[i] * in.Item()
	}
	return tensor.Scalar(total, tensor.CPU)
}

// Backward gives each input w_i times the upstream gradient.
func (op *WeightedSumOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	g := outputGrad.Item()
	grads := make([]*tensor.RawTensor, len(op.inputs))
	for i, in := range op.inputs {
		grads[i] = tensor.Full(in.Shape(), op.weights[i]*g, in.Device())
	}
	return grads
}

// Inputs returns the combined losses.
func (op *WeightedSumOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the weighted sum.
func (op *WeightedSumOp) Output() *tensor.RawTensor {
	return op.output
}
