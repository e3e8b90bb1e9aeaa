package fastrcnn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/astn/internal/astn"
	"github.com/born-ml/astn/internal/autodiff/ops"
	"github.com/born-ml/astn/internal/config"
	"github.com/born-ml/astn/internal/nn"
	"github.com/born-ml/astn/internal/roidata"
	"github.com/born-ml/astn/internal/tensor"
)

// Losses are the scalar training losses of one minibatch.
type Losses struct {
	Cls     *tensor.RawTensor // softmax cross-entropy over valid regions
	BBox    *tensor.RawTensor // smooth L1 weighted by inside/outside weights
	Quality *tensor.RawTensor // transform quality of the warp parameters
	Total   *tensor.RawTensor // Cls + BBox + quality_weight * Quality
}

// Values returns the loss values in the order Cls, BBox, Quality, Total.
func (l Losses) Values() [4]float64 {
	return [4]float64{l.Cls.Item(), l.BBox.Item(), l.Quality.Item(), l.Total.Item()}
}

// Model is the region network: ROI pooling, warp, head and losses.
//
// Gradient routing:
//   - Cls and BBox reach the head and the pooled features through the warp, never the
//     warp parameters.
//   - Quality reaches the warp predictor only, through a frozen copy of the head.
type Model[B nn.LossBackend] struct {
	numClasses    int
	channels      int
	pooledH       int
	pooledW       int
	spatialScale  float64
	sigma         float64
	qualityWeight float64
	ohemKeep      int

	aligner *astn.Aligner[B]
	head    *ClassifierHead[B]
	quality *astn.QualityLoss[B]
	backend B
}

// NewModel builds a model over feature maps of the given depth.
func NewModel[B nn.LossBackend](cfg config.Config, channels int, backend B, rng *rand.Rand) *Model[B] {
	spec := cfg.WarpSpec()
	if channels%spec.BlockNum != 0 {
		panic(fmt.Sprintf("fastrcnn: %d feature channels cannot be split into %d blocks", channels, spec.BlockNum))
	}
	bboxDim := 4 * cfg.NumClasses
	if cfg.ClassAgnostic {
		bboxDim = 4
	}
	in := channels * cfg.PooledH * cfg.PooledW
	return &Model[B]{
		numClasses:    cfg.NumClasses,
		channels:      channels,
		pooledH:       cfg.PooledH,
		pooledW:       cfg.PooledW,
		spatialScale:  cfg.SpatialScale,
		sigma:         cfg.BBoxSigma,
		qualityWeight: cfg.QualityWeight,
		ohemKeep:      cfg.OHEMKeepPerImage,
		aligner:       astn.NewAligner(spec, channels, cfg.PooledH, cfg.PooledW, cfg.PredictorDim, backend, rng),
		head:          NewClassifierHead(in, cfg.HiddenDim, cfg.NumClasses, bboxDim, backend, rng),
		quality:       astn.NewQualityLoss(cfg.Quality(), backend),
		backend:       backend,
	}
}

// Losses runs the forward pass of batch over features [N, C, H, W], where feature
// map n belongs to batch.Images[n].
//
// With hard example mining enabled, the returned batch is the mined one the losses
// were computed on; otherwise it is batch itself.
func (m *Model[B]) Losses(features *tensor.RawTensor, batch *roidata.Batch) (Losses, *roidata.Batch) {
	fs := features.Shape()
	if len(fs) != 4 || fs[0] != len(batch.Images) || fs[1] != m.channels {
		panic(fmt.Sprintf("fastrcnn: features %v for %d images of %d channels", fs, len(batch.Images), m.channels))
	}
	t := batch.Tensors(m.backend.Device())

	pooled, _ := m.backend.ROIPool(features, t.ROIs, m.pooledH, m.pooledW, m.spatialScale)
	aligned := m.aligner.Align(pooled)
	cls, bbox := m.head.Forward(aligned.Features)

	if m.ohemKeep > 0 {
		batch = roidata.SelectHard(batch, m.regionLosses(cls, bbox, t), m.ohemKeep)
		t = batch.Tensors(m.backend.Device())
	}

	clsLoss := m.backend.CrossEntropy(cls, t.Labels, t.ClsWeights)
	bboxLoss := m.backend.SmoothL1(bbox, t.Targets, t.Inside, t.Outside, m.sigma)

	probeCls, _ := m.head.ForwardFrozen(aligned.Probe)
	qualityLoss := m.quality.Forward(probeCls, t.Labels, t.Valid)

	total := m.backend.WeightedSum(
		[]*tensor.RawTensor{clsLoss, bboxLoss, qualityLoss},
		[]float64{1, 1, m.qualityWeight},
	)
	return Losses{Cls: clsLoss, BBox: bboxLoss, Quality: qualityLoss, Total: total}, batch
}

// regionLosses scores every region by classification plus regression loss.
func (m *Model[B]) regionLosses(cls, bbox *tensor.RawTensor, t roidata.Tensors) []float64 {
	scores := ops.CrossEntropyTerms(cls, t.Labels)
	reg := ops.SmoothL1Terms(bbox, t.Targets, t.Inside, m.sigma)
	for i := range scores {
		scores[i] += reg[i]
	}
	return scores
}

// Parameters returns the trainable parameters: warp predictor first, then the head.
func (m *Model[B]) Parameters() []*nn.Parameter {
	return append(m.aligner.Parameters(), m.head.Parameters()...)
}

// Head returns the classifier head.
func (m *Model[B]) Head() *ClassifierHead[B] {
	return m.head
}

// Aligner returns the spatial transform stage.
func (m *Model[B]) Aligner() *astn.Aligner[B] {
	return m.aligner
}
