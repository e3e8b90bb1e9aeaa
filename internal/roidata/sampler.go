package roidata

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/cyclopcam/logs"

	"github.com/born-ml/astn/internal/boxes"
	"github.com/born-ml/astn/internal/config"
)

// Options controls region sampling.
type Options struct {
	NumClasses        int
	BatchSizePerImage int
	FgFraction        float64
	FgThresh          float64 // foreground at IoU >= FgThresh
	BgThreshHi        float64 // hard background in [BgThreshLo, BgThreshHi)
	BgThreshLo        float64
	ClassAgnostic     bool
	UseGTAsProposals  bool
	Means             [4]float32
	Stds              [4]float32
}

// OptionsFromConfig extracts the sampling options of a validated configuration.
func OptionsFromConfig(cfg config.Config) Options {
	opts := Options{
		NumClasses:        cfg.NumClasses,
		BatchSizePerImage: cfg.BatchSizePerImage,
		FgFraction:        cfg.FgFraction,
		FgThresh:          cfg.FgThresh,
		BgThreshHi:        cfg.BgThreshHi,
		BgThreshLo:        cfg.BgThreshLo,
		ClassAgnostic:     cfg.ClassAgnostic,
		UseGTAsProposals:  cfg.UseGTAsProposals,
	}
	for i := 0; i < 4; i++ {
		opts.Means[i] = float32(cfg.BBoxMeans[i])
		opts.Stds[i] = float32(cfg.BBoxStds[i])
	}
	return opts
}

// TargetDim returns the width of a regression target row.
func (o Options) TargetDim() int {
	if o.ClassAgnostic {
		return 4
	}
	return 4 * o.NumClasses
}

// FgPerImage returns the foreground quota of one image.
func (o Options) FgPerImage() int {
	return int(math.Round(o.FgFraction * float64(o.BatchSizePerImage)))
}

// Sampler builds minibatches from images. It is not safe for concurrent use: the
// random source belongs to whichever goroutine samples.
type Sampler struct {
	opts Options
	log  logs.Log
	rng  *rand.Rand
}

// NewSampler creates a sampler drawing from rng.
func NewSampler(opts Options, log logs.Log, rng *rand.Rand) *Sampler {
	return &Sampler{opts: opts, log: log, rng: rng}
}

// Options returns the sampling options.
func (s *Sampler) Options() Options {
	return s.opts
}

// Sample returns a batch of exactly BatchSizePerImage slots per image.
//
// Image i owns slots [i*BatchSizePerImage, (i+1)*BatchSizePerImage). Slots an image
// cannot fill stay inert, and an image without candidates is skipped entirely.
func (s *Sampler) Sample(images []*Image) *Batch {
	per := s.opts.BatchSizePerImage
	b := newBatch(images, per, s.opts.NumClasses, s.opts.TargetDim())
	for i, im := range images {
		s.sampleImage(b, i*per, i, im)
	}
	b.normalize()
	return b
}

// sampleImage fills the slots of one image starting at offset.
func (s *Sampler) sampleImage(b *Batch, offset, pos int, im *Image) {
	cands := im.candidates(s.opts.UseGTAsProposals)
	if len(cands) == 0 {
		s.log.Warnf("Skipping image %d: no proposals", im.Index)
		return
	}
	matches := boxes.BestMatches(cands, im.gtBoxes())

	var fg, hard, easy []int
	for i, m := range matches {
		iou := float64(m.IoU)
		switch {
		case m.Index >= 0 && iou >= s.opts.FgThresh:
			fg = append(fg, i)
		case iou >= s.opts.BgThreshLo && iou < s.opts.BgThreshHi:
			hard = append(hard, i)
		case iou < s.opts.BgThreshLo:
			easy = append(easy, i)
		}
	}

	per := s.opts.BatchSizePerImage
	fg = s.choose(fg, min(s.opts.FgPerImage(), len(fg)))
	bgWanted := per - len(fg)
	hard = s.choose(hard, min(bgWanted, len(hard)))
	easy = s.choose(easy, min(bgWanted-len(hard), len(easy)))

	slot := offset
	for _, i := range fg {
		g := im.GT[matches[i].Index]
		if g.Class <= 0 || g.Class >= s.opts.NumClasses {
			panic(fmt.Sprintf("roidata: image %d has ground-truth class %d outside 1..%d",
				im.Index, g.Class, s.opts.NumClasses-1))
		}
		b.Regions[slot] = Region{
			Image:   pos,
			Box:     cands[i],
			Label:   g.Class,
			GTIndex: matches[i].Index,
			IoU:     matches[i].IoU,
			Valid:   true,
		}
		s.setTarget(b, slot, cands[i], g)
		slot++
	}
	for _, list := range [][]int{hard, easy} {
		for _, i := range list {
			b.Regions[slot] = Region{
				Image:   pos,
				Box:     cands[i],
				GTIndex: matches[i].Index,
				IoU:     matches[i].IoU,
				Valid:   true,
			}
			slot++
		}
	}
}

// setTarget writes the normalized regression target of a foreground slot.
func (s *Sampler) setTarget(b *Batch, slot int, box boxes.Box, g GTBox) {
	targets, inside, _ := b.Row(slot)
	col := 0
	if !s.opts.ClassAgnostic {
		col = 4 * g.Class
	}
	d := boxes.Encode(box, g.Box).Normalize(s.opts.Means, s.opts.Stds)
	for j := 0; j < 4; j++ {
		targets[col+j] = float64(d[j])
		inside[col+j] = 1
	}
}

// choose returns n elements of idx drawn without replacement.
func (s *Sampler) choose(idx []int, n int) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	for i, p := range s.rng.Perm(len(idx))[:n] {
		out[i] = idx[p]
	}
	return out
}
