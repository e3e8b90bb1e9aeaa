package ops

import (
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/astn/internal/tensor"
)

// LinearOp represents a fully connected layer: output = x @ W.T + b.
//
// Backward pass:
//   - grad_x = outputGrad @ W
//   - grad_W = outputGrad.T @ x
//   - grad_b = Σ_rows outputGrad
type LinearOp struct {
	x, weight, bias *tensor.RawTensor // bias may be nil
	output          *tensor.RawTensor
}

// NewLinearOp creates a new LinearOp.
func NewLinearOp(x, weight, bias, output *tensor.RawTensor) *LinearOp {
	return &LinearOp{x: x, weight: weight, bias: bias, output: output}
}

// Backward computes gradients for x, weight and bias.
func (op *LinearOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradX := backend.MatMul(outputGrad, op.weight, false, false)
	gradW := backend.MatMul(outputGrad, op.x, true, false)
	if op.bias == nil {
		return []*tensor.RawTensor{gradX, gradW}
	}
	return []*tensor.RawTensor{gradX, gradW, sumRows(outputGrad)}
}

// Inputs returns [x, weight] or [x, weight, bias].
func (op *LinearOp) Inputs() []*tensor.RawTensor {
	if op.bias == nil {
		return []*tensor.RawTensor{op.x, op.weight}
	}
	return []*tensor.RawTensor{op.x, op.weight, op.bias}
}

// Output returns the layer output.
func (op *LinearOp) Output() *tensor.RawTensor {
	return op.output
}

// sumRows reduces a [N, M] tensor to [M].
func sumRows(t *tensor.RawTensor) *tensor.RawTensor {
	rows, cols := t.Shape().Rows()
	result := tensor.Zeros(tensor.Shape{cols}, t.Device())
	dst, src := result.Data(), t.Data()
	for r := 0; r < rows; r++ {
		floats.Add(dst, src[r*cols:(r+1)*cols])
	}
	return result
}
