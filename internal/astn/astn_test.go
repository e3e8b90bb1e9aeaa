package astn_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/astn/internal/astn"
	"github.com/born-ml/astn/internal/autodiff"
	"github.com/born-ml/astn/internal/autodiff/ops"
	"github.com/born-ml/astn/internal/backend/cpu"
	"github.com/born-ml/astn/internal/tensor"
	"github.com/born-ml/astn/internal/warp"
)

func randn(rng *rand.Rand, shape ...int) *tensor.RawTensor {
	t := tensor.Zeros(shape, tensor.CPU)
	for i := range t.Data() {
		t.Data()[i] = rng.NormFloat64()
	}
	return t
}

func nonZero(t *tensor.RawTensor) bool {
	for _, v := range t.Data() {
		if v != 0 {
			return true
		}
	}
	return false
}

func TestPredictor_StartsAtIdentity(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	for _, spec := range []warp.Spec{
		{Kind: warp.ScaleShift, BlockNum: 1},
		{Kind: warp.ScaleShift, BlockNum: 2},
		{Kind: warp.Rotation, BlockNum: 4},
	} {
		p := astn.NewPredictor(spec, 4*3*3, 16, cpu.New(), rng)
		theta := p.Forward(randn(rng, 5, 4, 3, 3))
		require.Equal(t, tensor.Shape{5, spec.NumParams()}, theta.Shape())
		id := spec.Identity()
		for r := 0; r < 5; r++ {
			for j, v := range id {
				assert.InDelta(t, v, theta.At(r, j), 1e-12, "%v region %d param %d", spec, r, j)
			}
		}
	}
}

func TestPredictor_RejectsWrongShape(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	p := astn.NewPredictor(warp.Spec{Kind: warp.ScaleShift, BlockNum: 1}, 8, 4, cpu.New(), rng)
	assert.Panics(t, func() { p.Forward(tensor.Zeros(tensor.Shape{2, 8}, tensor.CPU)) })
	assert.Panics(t, func() { p.Forward(tensor.Zeros(tensor.Shape{2, 3, 2, 2}, tensor.CPU)) })
}

func TestTransformer_Identity(t *testing.T) {
	rng := rand.New(rand.NewPCG(2, 2))
	spec := warp.Spec{Kind: warp.ScaleShift, BlockNum: 2}
	tr := astn.NewTransformer(spec, cpu.New())
	pooled := randn(rng, 3, 4, 5, 5)
	theta := tensor.Zeros(tensor.Shape{3, spec.NumParams()}, tensor.CPU)
	for r := 0; r < 3; r++ {
		copy(theta.Data()[r*spec.NumParams():], spec.Identity())
	}
	out := tr.Forward(pooled, theta)
	assert.InDeltaSlice(t, pooled.Data(), out.Data(), 1e-9)
}

func TestQualityLoss_Modes(t *testing.T) {
	b := autodiff.New(cpu.New())
	logits, err := tensor.FromSlice([]float64{0, 0, 2, 0}, tensor.Shape{2, 2}, tensor.CPU)
	require.NoError(t, err)

	// Region 0: p(class 1) = 0.5; region 1: p(class 1) = 0.12.
	coop := astn.NewQualityLoss(ops.QualityOptions{Mode: ops.QualityCooperative, ScoreThres: 0.3}, b)
	l := coop.Forward(logits, []int{1, 1}, nil).Item()
	p1 := 1 / (1 + math.Exp(2))
	assert.InDelta(t, -0.5*math.Log(p1), l, 1e-9, "only the unconfident region is penalised")

	adv := astn.NewQualityLoss(ops.QualityOptions{Mode: ops.QualityAdversarial, ScoreThres: 0.3}, b)
	l = adv.Forward(logits, []int{1, 1}, nil).Item()
	assert.InDelta(t, -0.5*math.Log(0.5), l, 1e-9, "only the confident region is penalised")
	assert.Equal(t, ops.QualityAdversarial, adv.Options().Mode)

	l = coop.Forward(logits, []int{0, 0}, nil).Item()
	assert.Zero(t, l, "background regions contribute nothing")
}

func TestAligner_GradientGating(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	b := autodiff.New(cpu.New())
	spec := warp.Spec{Kind: warp.ScaleShift, BlockNum: 2}
	a := astn.NewAligner(spec, 4, 3, 3, 8, b, rng)
	fc2 := a.Parameters()[2]
	pooled := randn(rng, 2, 4, 3, 3)

	run := func(pick func(astn.Aligned) *tensor.RawTensor) map[*tensor.RawTensor]*tensor.RawTensor {
		b.Tape().Clear()
		b.Tape().StartRecording()
		defer b.Tape().StopRecording()
		out := pick(a.Align(pooled))
		flat := b.Reshape(out, tensor.Shape{2, 36})
		loss := b.CrossEntropy(flat, []int{3, 17}, nil)
		return autodiff.Backward(loss, b)
	}

	grads := run(func(al astn.Aligned) *tensor.RawTensor { return al.Features })
	require.NotNil(t, grads[pooled])
	assert.True(t, nonZero(grads[pooled]))
	for _, p := range a.Parameters() {
		assert.Nil(t, grads[p.Tensor()], "%s receives classification gradient", p.Name())
	}

	grads = run(func(al astn.Aligned) *tensor.RawTensor { return al.Probe })
	assert.Nil(t, grads[pooled], "quality gradient leaks into the pooled features")
	require.NotNil(t, grads[fc2.Tensor()])
	assert.True(t, nonZero(grads[fc2.Tensor()]))
}

func TestAligner_IdentityAtStart(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 4))
	a := astn.NewAligner(warp.Spec{Kind: warp.Rotation, BlockNum: 1}, 2, 4, 4, 8, cpu.New(), rng)
	pooled := randn(rng, 3, 2, 4, 4)
	al := a.Align(pooled)
	assert.InDeltaSlice(t, pooled.Data(), al.Features.Data(), 1e-9)
	assert.InDeltaSlice(t, pooled.Data(), al.Probe.Data(), 1e-9)
	assert.Equal(t, tensor.Shape{3, 1}, al.Theta.Shape())
	assert.Equal(t, warp.Rotation, a.Predictor().Spec().Kind)
}
