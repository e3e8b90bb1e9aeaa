package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/astn/internal/tensor"
)

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := tensor.Zeros(x.Shape(), cpu.device)
	out := result.Data()
	for i, v := range x.Data() {
		if v > 0 {
			out[i] = v
		}
	}
	return result
}

// Softmax applies a numerically stable softmax to each row of a 2D tensor.
//
//	softmax(x)_i = exp(x_i - max(x)) / Σ_j exp(x_j - max(x))
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor) *tensor.RawTensor {
	if len(x.Shape()) != 2 {
		panic(fmt.Sprintf("softmax: expected 2D input [batch, classes], got %v", x.Shape()))
	}
	rows, cols := x.Shape().Rows()
	result := tensor.Zeros(x.Shape(), cpu.device)
	in, out := x.Data(), result.Data()

	for r := 0; r < rows; r++ {
		row := in[r*cols : (r+1)*cols]
		dst := out[r*cols : (r+1)*cols]

		maxVal := math.Inf(-1)
		for _, v := range row {
			maxVal = math.Max(maxVal, v)
		}
		sum := 0.0
		for i, v := range row {
			dst[i] = math.Exp(v - maxVal)
			sum += dst[i]
		}
		for i := range dst {
			dst[i] /= sum
		}
	}
	return result
}
