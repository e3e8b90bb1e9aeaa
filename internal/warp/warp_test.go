package warp

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBlock(r *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = r.Float64()*2 - 1
	}
	return out
}

// weightedSum is the scalar L = sum(out * g) used for gradient checks.
func weightedSum(k Kind, p, src, g []float64, channels, h, w int) float64 {
	dst := make([]float64, len(src))
	Forward(k, p, src, dst, channels, h, w)
	total := 0.0
	for i := range dst {
		total += dst[i] * g[i]
	}
	return total
}

func relErr(a, b float64) float64 {
	return math.Abs(a-b) / math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("rotation")
	require.NoError(t, err)
	assert.Equal(t, Rotation, k)

	k, err = ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, ScaleShift, k)

	_, err = ParseKind("perspective")
	assert.Error(t, err)
}

func TestSpec_NumParams(t *testing.T) {
	assert.Equal(t, 4, Spec{Kind: ScaleShift, BlockNum: 1}.NumParams())
	assert.Equal(t, 4, Spec{Kind: Rotation, BlockNum: 4}.NumParams())
	assert.Equal(t, []float64{1, 1, 0, 0, 1, 1, 0, 0}, Spec{Kind: ScaleShift, BlockNum: 2}.Identity())
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0}, Linspace(1))
	got := Linspace(5)
	want := []float64{-1, -0.5, 0, 0.5, 1}
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12)
	}
}

func TestForward_IdentityCopiesInput(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for _, k := range []Kind{ScaleShift, Rotation} {
		const c, h, w = 3, 7, 5
		src := randomBlock(r, c*h*w)
		dst := make([]float64, len(src))
		Forward(k, k.Identity(), src, dst, c, h, w)
		for i := range src {
			assert.InDelta(t, src[i], dst[i], 1e-9, "kind %s index %d", k, i)
		}
	}
}

func TestForward_OutOfBoundIsZero(t *testing.T) {
	src := []float64{1, 2, 3, 4}
	dst := make([]float64, 4)
	// Shift the whole grid far to the right of the block.
	Forward(ScaleShift, []float64{1, 1, 5, 0}, src, dst, 1, 2, 2)
	assert.Equal(t, []float64{0, 0, 0, 0}, dst)

	// NaN params sample nothing.
	Forward(ScaleShift, []float64{math.NaN(), 1, 0, 0}, src, dst, 1, 2, 2)
	assert.Equal(t, []float64{0, 0, 0, 0}, dst)
}

func TestBilinear_PartialCornerIsZeroPadded(t *testing.T) {
	plane := []float64{
		1, 2,
		3, 4,
	}
	// Halfway past the right edge: only the in-bounds corners contribute.
	v, _, _ := Bilinear(plane, 2, 2, 1.5, 0)
	assert.InDelta(t, 1.0, v, 1e-12)

	v, gx, gy := Bilinear(plane, 2, 2, 0.5, 0.5)
	assert.InDelta(t, 2.5, v, 1e-12)
	assert.InDelta(t, 1.0, gx, 1e-12)
	assert.InDelta(t, 2.0, gy, 1e-12)
}

func TestScatter_MatchesBilinearWeights(t *testing.T) {
	d := make([]float64, 4)
	Scatter(d, 2, 2, 0.25, 0.5, 2)
	assert.InDelta(t, 2*0.75*0.5, d[0], 1e-12)
	assert.InDelta(t, 2*0.25*0.5, d[1], 1e-12)
	assert.InDelta(t, 2*0.75*0.5, d[2], 1e-12)
	assert.InDelta(t, 2*0.25*0.5, d[3], 1e-12)
}

func TestBackward_ParamGradientMatchesNumerical(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		p    []float64
	}{
		{"interior scale shift", ScaleShift, []float64{0.83, 0.71, 0.071, -0.093}},
		{"out of bound scale shift", ScaleShift, []float64{1.17, 0.9, 0.63, -0.43}},
		{"mostly outside", ScaleShift, []float64{0.93, 1.07, 1.37, 0.11}},
		{"rotation", Rotation, []float64{0.3}},
	}
	const c, h, w = 2, 4, 4
	rnd := rand.New(rand.NewPCG(7, 11))
	src := randomBlock(rnd, c*h*w)
	g := randomBlock(rnd, c*h*w)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dParams := make([]float64, len(tc.p))
			Backward(tc.kind, tc.p, src, g, nil, dParams, c, h, w)

			const eps = 1e-6
			for q := range tc.p {
				plus := append([]float64(nil), tc.p...)
				minus := append([]float64(nil), tc.p...)
				plus[q] += eps
				minus[q] -= eps
				numerical := (weightedSum(tc.kind, plus, src, g, c, h, w) -
					weightedSum(tc.kind, minus, src, g, c, h, w)) / (2 * eps)
				assert.Less(t, relErr(dParams[q], numerical), 1e-3,
					"param %d: analytic %g numerical %g", q, dParams[q], numerical)
			}
		})
	}
}

func TestBackward_FeatureGradientMatchesNumerical(t *testing.T) {
	const c, h, w = 1, 3, 4
	rnd := rand.New(rand.NewPCG(3, 5))
	src := randomBlock(rnd, c*h*w)
	g := randomBlock(rnd, c*h*w)
	p := []float64{0.77, 1.21, 0.13, 0.05}

	dSrc := make([]float64, len(src))
	Backward(ScaleShift, p, src, g, dSrc, nil, c, h, w)

	// The warp is linear in src, so finite differences are exact up to rounding.
	const eps = 1e-6
	for i := range src {
		orig := src[i]
		src[i] = orig + eps
		plus := weightedSum(ScaleShift, p, src, g, c, h, w)
		src[i] = orig - eps
		minus := weightedSum(ScaleShift, p, src, g, c, h, w)
		src[i] = orig
		assert.InDelta(t, (plus-minus)/(2*eps), dSrc[i], 1e-6, "index %d", i)
	}
}
