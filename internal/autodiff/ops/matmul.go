package ops

import "github.com/born-ml/astn/internal/tensor"

// MatMulOp represents output = op(a) @ op(b), where op optionally transposes.
//
// Backward pass (no transposes):
//   - grad_a = outputGrad @ b.T
//   - grad_b = a.T @ outputGrad
//
// Transposed operands swap the roles accordingly.
type MatMulOp struct {
	a, b           *tensor.RawTensor
	transA, transB bool
	output         *tensor.RawTensor
}

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b *tensor.RawTensor, transA, transB bool, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{a: a, b: b, transA: transA, transB: transB, output: output}
}

// Backward computes input gradients for matrix multiplication.
func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	var gradA, gradB *tensor.RawTensor
	if op.transA {
		// a is [k, m]: grad_a = op(b) @ g.T
		gradA = backend.MatMul(op.b, outputGrad, op.transB, true)
	} else {
		gradA = backend.MatMul(outputGrad, op.b, false, !op.transB)
	}
	if op.transB {
		// b is [n, k]: grad_b = g.T @ op(a)
		gradB = backend.MatMul(outputGrad, op.a, true, op.transA)
	} else {
		gradB = backend.MatMul(op.a, outputGrad, !op.transA, false)
	}
	return []*tensor.RawTensor{gradA, gradB}
}

// Inputs returns the input tensors [a, b].
func (op *MatMulOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.a, op.b}
}

// Output returns the product.
func (op *MatMulOp) Output() *tensor.RawTensor {
	return op.output
}
