package cpu

import (
	"fmt"

	"github.com/born-ml/astn/internal/parallel"
	"github.com/born-ml/astn/internal/tensor"
	"github.com/born-ml/astn/internal/warp"
)

func checkTransform(input, theta *tensor.RawTensor, spec warp.Spec) (r, c, h, w int) {
	is := input.Shape()
	if len(is) != 4 {
		panic(fmt.Sprintf("spatial transform: expected input [R, C, H, W], got %v", is))
	}
	r, c, h, w = is[0], is[1], is[2], is[3]
	if spec.BlockNum <= 0 || c%spec.BlockNum != 0 {
		panic(fmt.Sprintf("spatial transform: %d channels cannot be split into %d blocks", c, spec.BlockNum))
	}
	ts := theta.Shape()
	if len(ts) != 2 || ts[0] != r || ts[1] != spec.NumParams() {
		panic(fmt.Sprintf("spatial transform: expected theta [%d, %d], got %v", r, spec.NumParams(), ts))
	}
	return r, c, h, w
}

// SpatialTransform warps each channel block of each region with its own parameters.
func (cpu *CPUBackend) SpatialTransform(input, theta *tensor.RawTensor, spec warp.Spec) *tensor.RawTensor {
	r, c, h, w := checkTransform(input, theta, spec)
	result := tensor.Zeros(input.Shape(), cpu.device)

	in, out, params := input.Data(), result.Data(), theta.Data()
	blockCh := c / spec.BlockNum
	blockLen := blockCh * h * w
	perBlock := spec.Kind.ParamsPerBlock()
	numParams := spec.NumParams()

	parallel.For(r, func(i int) {
		for b := 0; b < spec.BlockNum; b++ {
			off := i*c*h*w + b*blockLen
			p := params[i*numParams+b*perBlock : i*numParams+(b+1)*perBlock]
			warp.Forward(spec.Kind, p, in[off:off+blockLen], out[off:off+blockLen], blockCh, h, w)
		}
	}, cpu.par)

	return result
}

// SpatialTransformBackward returns the input and theta gradients of SpatialTransform.
//
// Each region only touches its own slice of both gradients, so regions run in parallel.
func (cpu *CPUBackend) SpatialTransformBackward(input, theta, outputGrad *tensor.RawTensor, spec warp.Spec) (*tensor.RawTensor, *tensor.RawTensor) {
	r, c, h, w := checkTransform(input, theta, spec)
	if !outputGrad.Shape().Equal(input.Shape()) {
		panic(fmt.Sprintf("spatial transform backward: gradient shape %v, want %v",
			outputGrad.Shape(), input.Shape()))
	}
	gradInput := tensor.Zeros(input.Shape(), cpu.device)
	gradTheta := tensor.Zeros(theta.Shape(), cpu.device)

	in, gOut, params := input.Data(), outputGrad.Data(), theta.Data()
	dIn, dTheta := gradInput.Data(), gradTheta.Data()
	blockCh := c / spec.BlockNum
	blockLen := blockCh * h * w
	perBlock := spec.Kind.ParamsPerBlock()
	numParams := spec.NumParams()

	parallel.For(r, func(i int) {
		for b := 0; b < spec.BlockNum; b++ {
			off := i*c*h*w + b*blockLen
			lo, hi := i*numParams+b*perBlock, i*numParams+(b+1)*perBlock
			warp.Backward(spec.Kind, params[lo:hi],
				in[off:off+blockLen], gOut[off:off+blockLen],
				dIn[off:off+blockLen], dTheta[lo:hi],
				blockCh, h, w)
		}
	}, cpu.par)

	return gradInput, gradTheta
}
