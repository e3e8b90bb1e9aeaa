package cpu

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/astn/internal/parallel"
	"github.com/born-ml/astn/internal/tensor"
	"github.com/born-ml/astn/internal/warp"
)

func fromSlice(t *testing.T, data []float64, shape ...int) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromSlice(data, shape, tensor.CPU)
	require.NoError(t, err)
	return raw
}

func randomTensor(t *testing.T, rng *rand.Rand, shape ...int) *tensor.RawTensor {
	t.Helper()
	raw := tensor.Zeros(shape, tensor.CPU)
	for i := range raw.Data() {
		raw.Data()[i] = rng.NormFloat64()
	}
	return raw
}

func TestCPUBackend_Name(t *testing.T) {
	b := New()
	assert.Equal(t, "CPU", b.Name())
	assert.Equal(t, tensor.CPU, b.Device())
}

func TestMatMul(t *testing.T) {
	b := New()
	x := fromSlice(t, []float64{1, 2, 3, 4}, 2, 2)
	y := fromSlice(t, []float64{5, 6, 7, 8}, 2, 2)

	tests := []struct {
		name           string
		transA, transB bool
		want           []float64
	}{
		{"plain", false, false, []float64{19, 22, 43, 50}},
		{"trans b", false, true, []float64{17, 23, 39, 53}},
		{"trans a", true, false, []float64{26, 30, 38, 44}},
		{"trans both", true, true, []float64{23, 31, 34, 46}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := b.MatMul(x, y, tt.transA, tt.transB)
			assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
			assert.InDeltaSlice(t, tt.want, out.Data(), 1e-12)
		})
	}
}

func TestMatMul_ShapeMismatch(t *testing.T) {
	b := New()
	x := tensor.Zeros(tensor.Shape{2, 3}, tensor.CPU)
	assert.Panics(t, func() { b.MatMul(x, x, false, false) })
}

func TestLinear(t *testing.T) {
	b := New()
	x := fromSlice(t, []float64{1, 2}, 1, 2)
	w := fromSlice(t, []float64{1, 0, 0, 1, 1, 1}, 3, 2)
	bias := fromSlice(t, []float64{0.5, 0, -1}, 3)

	out := b.Linear(x, w, bias)
	assert.Equal(t, tensor.Shape{1, 3}, out.Shape())
	assert.InDeltaSlice(t, []float64{1.5, 2, 2}, out.Data(), 1e-12)

	noBias := b.Linear(x, w, nil)
	assert.InDeltaSlice(t, []float64{1, 2, 3}, noBias.Data(), 1e-12)
}

func TestReLU(t *testing.T) {
	b := New()
	x := fromSlice(t, []float64{-1, 0, 2.5, -0.1}, 4)
	assert.Equal(t, []float64{0, 0, 2.5, 0}, b.ReLU(x).Data())
}

func TestSoftmax(t *testing.T) {
	b := New()
	x := fromSlice(t, []float64{1, 2, 3, 1000, 1000, 1000}, 2, 3)
	out := b.Softmax(x)

	for r := 0; r < 2; r++ {
		sum := 0.0
		for c := 0; c < 3; c++ {
			v := out.At(r, c)
			assert.False(t, math.IsNaN(v))
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}
	assert.InDelta(t, 1.0/3, out.At(1, 0), 1e-12)
	assert.Greater(t, out.At(0, 2), out.At(0, 1))
}

func TestAddAndReshape(t *testing.T) {
	b := New()
	x := fromSlice(t, []float64{1, 2, 3, 4}, 2, 2)
	y := fromSlice(t, []float64{10, 20, 30, 40}, 2, 2)
	assert.Equal(t, []float64{11, 22, 33, 44}, b.Add(x, y).Data())

	flat := b.Reshape(x, tensor.Shape{4})
	assert.Equal(t, tensor.Shape{4}, flat.Shape())
	assert.Equal(t, x.Data(), flat.Data())
	assert.Panics(t, func() { b.Reshape(x, tensor.Shape{3}) })
}

func TestROIPool(t *testing.T) {
	b := New()
	data := make([]float64, 16)
	for i := range data {
		data[i] = float64(i)
	}
	features := fromSlice(t, data, 1, 1, 4, 4)
	rois := fromSlice(t, []float64{0, 0, 0, 3, 3}, 1, 5)

	out, argmax := b.ROIPool(features, rois, 2, 2, 1)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float64{5, 7, 13, 15}, out.Data())
	assert.Equal(t, []int{5, 7, 13, 15}, argmax)
}

func TestROIPool_SpatialScale(t *testing.T) {
	b := New()
	data := make([]float64, 16)
	for i := range data {
		data[i] = float64(i)
	}
	features := fromSlice(t, data, 1, 1, 4, 4)
	// Image coordinates at stride 16 land on cells (1,1)..(2,2).
	rois := fromSlice(t, []float64{0, 16, 16, 32, 32}, 1, 5)

	out, _ := b.ROIPool(features, rois, 1, 1, 1.0/16)
	assert.Equal(t, []float64{10}, out.Data())
}

func TestROIPool_EmptyBin(t *testing.T) {
	b := New()
	features := tensor.Full(tensor.Shape{1, 2, 4, 4}, 3, tensor.CPU)
	rois := fromSlice(t, []float64{0, 10, 10, 12, 12}, 1, 5)

	out, argmax := b.ROIPool(features, rois, 2, 2, 1)
	for i := range out.Data() {
		assert.Equal(t, 0.0, out.Data()[i])
		assert.Equal(t, -1, argmax[i])
	}

	grad := b.ROIPoolBackward(features.Shape(), tensor.Full(out.Shape(), 1, tensor.CPU), argmax)
	for _, v := range grad.Data() {
		assert.Equal(t, 0.0, v)
	}
}

func TestROIPool_BadImageIndex(t *testing.T) {
	b := New()
	features := tensor.Zeros(tensor.Shape{1, 1, 4, 4}, tensor.CPU)
	rois := fromSlice(t, []float64{1, 0, 0, 3, 3}, 1, 5)
	assert.Panics(t, func() { b.ROIPool(features, rois, 2, 2, 1) })
}

func TestROIPoolBackward_Accumulates(t *testing.T) {
	b := New()
	data := make([]float64, 16)
	for i := range data {
		data[i] = float64(i)
	}
	features := fromSlice(t, data, 1, 1, 4, 4)
	rois := fromSlice(t, []float64{0, 0, 0, 3, 3, 0, 0, 0, 3, 3}, 2, 5)

	out, argmax := b.ROIPool(features, rois, 2, 2, 1)
	grad := b.ROIPoolBackward(features.Shape(), tensor.Full(out.Shape(), 1, tensor.CPU), argmax)

	want := make([]float64, 16)
	for _, i := range []int{5, 7, 13, 15} {
		want[i] = 2
	}
	assert.Equal(t, want, grad.Data())
}

func TestSpatialTransform_Identity(t *testing.T) {
	b := New()
	rng := rand.New(rand.NewPCG(1, 2))
	input := randomTensor(t, rng, 3, 4, 5, 6)

	for _, kind := range []warp.Kind{warp.ScaleShift, warp.Rotation} {
		spec := warp.Spec{Kind: kind, BlockNum: 2}
		theta := tensor.Zeros(tensor.Shape{3, spec.NumParams()}, tensor.CPU)
		for r := 0; r < 3; r++ {
			copy(theta.Data()[r*spec.NumParams():], spec.Identity())
		}
		out := b.SpatialTransform(input, theta, spec)
		assert.InDeltaSlice(t, input.Data(), out.Data(), 1e-12, kind.String())
	}
}

func TestSpatialTransform_BlocksIndependent(t *testing.T) {
	b := New()
	rng := rand.New(rand.NewPCG(3, 4))
	input := randomTensor(t, rng, 1, 4, 3, 3)
	spec := warp.Spec{Kind: warp.ScaleShift, BlockNum: 2}
	// Block 0 identity, block 1 shifted off the plane.
	theta := fromSlice(t, []float64{1, 1, 0, 0, 1, 1, 5, 0}, 1, 8)

	out := b.SpatialTransform(input, theta, spec)
	half := 2 * 3 * 3
	assert.InDeltaSlice(t, input.Data()[:half], out.Data()[:half], 1e-12)
	for _, v := range out.Data()[half:] {
		assert.Equal(t, 0.0, v)
	}
}

func TestSpatialTransform_BadBlocks(t *testing.T) {
	b := New()
	input := tensor.Zeros(tensor.Shape{1, 3, 2, 2}, tensor.CPU)
	spec := warp.Spec{Kind: warp.ScaleShift, BlockNum: 2}
	theta := tensor.Zeros(tensor.Shape{1, spec.NumParams()}, tensor.CPU)
	assert.Panics(t, func() { b.SpatialTransform(input, theta, spec) })
}

func TestSpatialTransformBackward_ParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	input := randomTensor(t, rng, 8, 4, 4, 4)
	spec := warp.Spec{Kind: warp.ScaleShift, BlockNum: 2}
	theta := tensor.Zeros(tensor.Shape{8, spec.NumParams()}, tensor.CPU)
	for i := range theta.Data() {
		theta.Data()[i] = spec.Identity()[i%spec.NumParams()] + 0.2*rng.NormFloat64()
	}
	grad := randomTensor(t, rng, 8, 4, 4, 4)

	par := NewWithConfig(parallel.Config{Enabled: true, NumWorkers: 4, MinItems: 1})
	seq := NewWithConfig(parallel.Sequential())

	gin1, gth1 := par.SpatialTransformBackward(input, theta, grad, spec)
	gin2, gth2 := seq.SpatialTransformBackward(input, theta, grad, spec)
	assert.Equal(t, gin2.Data(), gin1.Data())
	assert.Equal(t, gth2.Data(), gth1.Data())
}

func TestSpatialTransformBackward_ThetaGradient(t *testing.T) {
	b := New()
	rng := rand.New(rand.NewPCG(7, 8))
	input := randomTensor(t, rng, 2, 2, 4, 4)
	spec := warp.Spec{Kind: warp.ScaleShift, BlockNum: 2}
	theta := fromSlice(t, []float64{
		0.83, 0.71, 0.071, -0.093, 1.1, 0.9, -0.12, 0.05,
		0.95, 1.05, 0.13, 0.22, 0.77, 0.88, 0.04, -0.17,
	}, 2, 8)
	grad := randomTensor(t, rng, 2, 2, 4, 4)

	loss := func() float64 {
		out := b.SpatialTransform(input, theta, spec)
		s := 0.0
		for i, v := range out.Data() {
			s += v * grad.Data()[i]
		}
		return s
	}

	_, gTheta := b.SpatialTransformBackward(input, theta, grad, spec)
	const eps = 1e-6
	for i := range theta.Data() {
		orig := theta.Data()[i]
		theta.Data()[i] = orig + eps
		plus := loss()
		theta.Data()[i] = orig - eps
		minus := loss()
		theta.Data()[i] = orig

		numeric := (plus - minus) / (2 * eps)
		analytic := gTheta.Data()[i]
		relErr := math.Abs(numeric-analytic) / math.Max(1, math.Max(math.Abs(numeric), math.Abs(analytic)))
		assert.Less(t, relErr, 1e-3, "theta[%d]: numeric %g analytic %g", i, numeric, analytic)
	}
}
