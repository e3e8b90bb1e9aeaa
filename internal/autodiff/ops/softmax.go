package ops

import (
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/astn/internal/tensor"
)

// SoftmaxOp represents a row-wise softmax over a 2D tensor.
//
// Backward pass, per row with y = softmax(x):
//
//	grad_x = y * (outputGrad - Σ_j outputGrad_j * y_j)
type SoftmaxOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSoftmaxOp creates a new SoftmaxOp.
func NewSoftmaxOp(input, output *tensor.RawTensor) *SoftmaxOp {
	return &SoftmaxOp{input: input, output: output}
}

// Backward computes the input gradient of softmax.
func (op *SoftmaxOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	rows, cols := op.output.Shape().Rows()
	gradInput := tensor.Zeros(op.input.Shape(), op.input.Device())
	y, g, dst := op.output.Data(), outputGrad.Data(), gradInput.Data()

	for r := 0; r < rows; r++ {
		yr := y[r*cols : (r+1)*cols]
		gr := g[r*cols : (r+1)*cols]
		dot := floats.Dot(gr, yr)
		for i := range yr {
			dst[r*cols+i] = yr[i] * (gr[i] - dot)
		}
	}
	return []*tensor.RawTensor{gradInput}
}

// Inputs returns the input tensor [x].
func (op *SoftmaxOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the probabilities.
func (op *SoftmaxOp) Output() *tensor.RawTensor {
	return op.output
}
