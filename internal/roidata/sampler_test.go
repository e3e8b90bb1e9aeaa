package roidata

import (
	"math/rand/v2"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/astn/internal/boxes"
	"github.com/born-ml/astn/internal/tensor"
)

func testOptions() Options {
	return Options{
		NumClasses:        3,
		BatchSizePerImage: 8,
		FgFraction:        0.25,
		FgThresh:          0.5,
		BgThreshHi:        0.5,
		BgThreshLo:        0.1,
		Means:             [4]float32{0, 0, 0, 0},
		Stds:              [4]float32{0.1, 0.1, 0.2, 0.2},
	}
}

// twoObjectImage has two objects and ten proposals: four foreground (IoU 1 and 0.8
// against each object), three hard negatives (IoU 0.3, 0.3, 0.25) and three easy
// negatives (IoU 0).
func twoObjectImage() (*Image, []int) {
	im := &Image{
		Index:  7,
		Width:  200,
		Height: 200,
		GT: []GTBox{
			{Box: boxes.Box{X1: 0, Y1: 0, X2: 49, Y2: 49}, Class: 1},
			{Box: boxes.Box{X1: 50, Y1: 50, X2: 99, Y2: 99}, Class: 2},
		},
		Proposals: []boxes.Box{
			{X1: 0, Y1: 0, X2: 49, Y2: 49},
			{X1: 0, Y1: 0, X2: 49, Y2: 39},
			{X1: 50, Y1: 50, X2: 99, Y2: 99},
			{X1: 50, Y1: 50, X2: 99, Y2: 89},
			{X1: 0, Y1: 0, X2: 49, Y2: 14},
			{X1: 50, Y1: 50, X2: 99, Y2: 64},
			{X1: 0, Y1: 0, X2: 24, Y2: 24},
			{X1: 150, Y1: 0, X2: 199, Y2: 49},
			{X1: 0, Y1: 150, X2: 49, Y2: 199},
			{X1: 150, Y1: 150, X2: 199, Y2: 160},
		},
	}
	labels := []int{1, 1, 2, 2, 0, 0, 0, 0, 0, 0}
	return im, labels
}

func newTestSampler(t *testing.T, opts Options, seed uint64) *Sampler {
	return NewSampler(opts, logs.NewTestingLog(t), rand.New(rand.NewPCG(seed, 0)))
}

func TestSampler_TwoObjects(t *testing.T) {
	im, want := twoObjectImage()
	expected := map[boxes.Box]int{}
	for i, p := range im.Proposals {
		expected[p] = want[i]
	}

	b := newTestSampler(t, testOptions(), 3).Sample([]*Image{im})
	require.Equal(t, 8, b.Len())
	assert.Equal(t, 2, b.NumFg)
	assert.Equal(t, 6, b.NumBg)
	assert.Equal(t, 8, b.NumValid)
	assert.Equal(t, 12, b.TargetDim)

	seen := map[boxes.Box]bool{}
	for i, r := range b.Regions {
		require.True(t, r.Valid)
		assert.False(t, seen[r.Box], "region %d sampled twice", i)
		seen[r.Box] = true
		assert.Equal(t, expected[r.Box], r.Label, "region %d %v", i, r.Box)
		assert.Zero(t, r.Image)

		_, inside, outside := b.Row(i)
		for j := range inside {
			onLabel := r.Label > 0 && j/4 == r.Label
			assert.Equal(t, boolWeight(onLabel), inside[j])
			assert.InDelta(t, 1.0/8, outside[j], 1e-12)
		}
	}
	// Foreground first, then hard negatives before easy ones.
	assert.Positive(t, b.Regions[0].Label)
	assert.Positive(t, b.Regions[1].Label)
	for _, r := range b.Regions[2:5] {
		assert.GreaterOrEqual(t, r.IoU, float32(0.1))
	}
	for _, r := range b.Regions[5:] {
		assert.Less(t, r.IoU, float32(0.1))
	}
}

func TestSampler_Deterministic(t *testing.T) {
	im, _ := twoObjectImage()
	a := newTestSampler(t, testOptions(), 11).Sample([]*Image{im})
	b := newTestSampler(t, testOptions(), 11).Sample([]*Image{im})
	assert.Equal(t, a.Regions, b.Regions)
	assert.Equal(t, a.Targets, b.Targets)
}

func TestSampler_TargetsRoundTrip(t *testing.T) {
	im, _ := twoObjectImage()
	opts := testOptions()
	b := newTestSampler(t, opts, 5).Sample([]*Image{im})
	for i, r := range b.Regions {
		if r.Label == 0 {
			continue
		}
		targets, _, _ := b.Row(i)
		var d boxes.Delta
		for j := range d {
			d[j] = float32(targets[4*r.Label+j])
		}
		got := boxes.Decode(r.Box, d.Denormalize(opts.Means, opts.Stds))
		gt := im.GT[r.GTIndex].Box
		assert.InDelta(t, gt.X1, got.X1, 1e-3)
		assert.InDelta(t, gt.Y1, got.Y1, 1e-3)
		assert.InDelta(t, gt.X2, got.X2, 1e-3)
		assert.InDelta(t, gt.Y2, got.Y2, 1e-3)
	}
}

func TestSampler_Ratio(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	opts := testOptions()
	opts.BatchSizePerImage = 16
	images := []*Image{crowdedImage(0, rng), crowdedImage(1, rng)}

	b := newTestSampler(t, opts, 1).Sample(images)
	require.Equal(t, 32, b.Len())
	assert.Equal(t, 8, b.NumFg)
	assert.Equal(t, 24, b.NumBg)
	for img := 0; img < 2; img++ {
		fg := 0
		for _, r := range b.Regions[img*16 : (img+1)*16] {
			assert.Equal(t, img, r.Image)
			if r.Label > 0 {
				fg++
				assert.GreaterOrEqual(t, r.IoU, float32(opts.FgThresh))
			} else {
				assert.True(t, r.IoU < float32(opts.BgThreshHi))
			}
		}
		assert.Equal(t, 4, fg)
	}
}

func TestSampler_NoGroundTruth(t *testing.T) {
	im, _ := twoObjectImage()
	im.GT = nil
	b := newTestSampler(t, testOptions(), 2).Sample([]*Image{im})
	assert.Equal(t, 0, b.NumFg)
	assert.Equal(t, 8, b.NumBg)
	for _, r := range b.Regions {
		assert.Zero(t, r.Label)
		assert.Equal(t, -1, r.GTIndex)
	}
	for _, v := range b.Inside {
		assert.Zero(t, v)
	}
}

func TestSampler_NoProposalsIsSkipped(t *testing.T) {
	empty := &Image{Index: 4, Width: 100, Height: 100}
	im, _ := twoObjectImage()
	b := newTestSampler(t, testOptions(), 2).Sample([]*Image{empty, im})

	require.Equal(t, 16, b.Len())
	for _, r := range b.Regions[:8] {
		assert.False(t, r.Valid)
		assert.Zero(t, r.Label)
	}
	for _, r := range b.Regions[8:] {
		assert.True(t, r.Valid)
		assert.Equal(t, 1, r.Image)
	}
	tens := b.Tensors(tensor.CPU)
	for i := 8; i < 16; i++ {
		assert.Equal(t, 1.0, tens.ROIs.At(i, 0), "rois of the second image point at feature map 1")
	}
	for i := 0; i < 8; i++ {
		assert.Zero(t, tens.ClsWeights[i])
		assert.Zero(t, tens.Outside.At(i, 0))
	}
	assert.InDelta(t, 1.0/8, tens.Outside.At(8, 0), 1e-12)
}

func TestSampler_FewCandidatesLeaveInertSlots(t *testing.T) {
	im, _ := twoObjectImage()
	im.Proposals = im.Proposals[:3]
	b := newTestSampler(t, testOptions(), 2).Sample([]*Image{im})
	assert.Equal(t, 2, b.NumFg)
	assert.Equal(t, 0, b.NumBg, "the remaining proposal is foreground and over quota")
	assert.Equal(t, 2, b.NumValid)
	for _, r := range b.Regions[2:] {
		assert.False(t, r.Valid)
	}
}

func TestSampler_GTAsProposals(t *testing.T) {
	im, _ := twoObjectImage()
	im.Proposals = nil
	opts := testOptions()
	opts.UseGTAsProposals = true
	b := newTestSampler(t, opts, 2).Sample([]*Image{im})
	assert.Equal(t, 2, b.NumFg)
	assert.ElementsMatch(t, []int{1, 2}, []int{b.Regions[0].Label, b.Regions[1].Label})
}

func TestSampler_ClassAgnostic(t *testing.T) {
	im, _ := twoObjectImage()
	opts := testOptions()
	opts.ClassAgnostic = true
	b := newTestSampler(t, opts, 2).Sample([]*Image{im})
	require.Equal(t, 4, b.TargetDim)
	_, inside, _ := b.Row(0)
	assert.Equal(t, []float64{1, 1, 1, 1}, inside)
}

func TestSampler_BadClassPanics(t *testing.T) {
	im, _ := twoObjectImage()
	im.GT[0].Class = 3
	im.GT[1].Class = -1
	s := newTestSampler(t, testOptions(), 2)
	assert.Panics(t, func() { s.Sample([]*Image{im}) })
}

func TestImage_Flip(t *testing.T) {
	im, _ := twoObjectImage()
	f := im.Flip()
	assert.True(t, f.Flipped)
	assert.Equal(t, boxes.Box{X1: 150, Y1: 0, X2: 199, Y2: 49}, f.GT[0].Box)
	assert.Equal(t, im.GT[0].Class, f.GT[0].Class)
	assert.Equal(t, boxes.Box{X1: 0, Y1: 0, X2: 49, Y2: 49}, f.Proposals[7])
	assert.Equal(t, im.Proposals, f.Flip().Proposals)
}

func boolWeight(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// crowdedImage has one object, twelve proposals on it and thirty far away.
func crowdedImage(index int, rng *rand.Rand) *Image {
	gt := boxes.Box{X1: 100, Y1: 100, X2: 199, Y2: 199}
	im := &Image{Index: index, Width: 400, Height: 300, GT: []GTBox{{Box: gt, Class: 1 + index}}}
	for i := 0; i < 12; i++ {
		j := float32(rng.IntN(5))
		im.Proposals = append(im.Proposals, boxes.Box{X1: gt.X1 + j, Y1: gt.Y1 - j, X2: gt.X2 + j, Y2: gt.Y2})
	}
	for i := 0; i < 30; i++ {
		x := float32(250 + rng.IntN(100))
		y := float32(rng.IntN(250))
		im.Proposals = append(im.Proposals, boxes.Box{X1: x, Y1: y, X2: x + 40, Y2: y + 40})
	}
	return im
}
