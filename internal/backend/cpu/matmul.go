package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/astn/internal/tensor"
)

// general views a 2D tensor as a row-major BLAS matrix without copying.
func general(t *tensor.RawTensor) blas64.General {
	shape := t.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D tensor, got shape %v", shape))
	}
	return blas64.General{
		Rows:   shape[0],
		Cols:   shape[1],
		Stride: shape[1],
		Data:   t.Data(),
	}
}

func transpose(t bool) blas.Transpose {
	if t {
		return blas.Trans
	}
	return blas.NoTrans
}

// MatMul computes op(a) @ op(b) where op optionally transposes its operand.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor, transA, transB bool) *tensor.RawTensor {
	ga, gb := general(a), general(b)

	m, k := ga.Rows, ga.Cols
	if transA {
		m, k = k, m
	}
	kb, n := gb.Rows, gb.Cols
	if transB {
		kb, n = n, kb
	}
	if k != kb {
		panic(fmt.Sprintf("matmul: inner dimensions differ: %v (trans=%v) @ %v (trans=%v)",
			a.Shape(), transA, b.Shape(), transB))
	}

	result := tensor.Zeros(tensor.Shape{m, n}, cpu.device)
	blas64.Gemm(transpose(transA), transpose(transB), 1, ga, gb, 0, general(result))
	return result
}

// Linear computes x @ weight.T + bias.
//
// Shapes: x [N, in], weight [out, in], bias [out] (optional), result [N, out].
func (cpu *CPUBackend) Linear(x, weight, bias *tensor.RawTensor) *tensor.RawTensor {
	result := cpu.MatMul(x, weight, false, true)
	if bias == nil {
		return result
	}

	n, out := result.Shape().Rows()
	if bias.NumElements() != out {
		panic(fmt.Sprintf("linear: bias has %d elements, want %d", bias.NumElements(), out))
	}
	data, b := result.Data(), bias.Data()
	for i := 0; i < n; i++ {
		row := data[i*out : (i+1)*out]
		for j := range row {
			row[j] += b[j]
		}
	}
	return result
}
