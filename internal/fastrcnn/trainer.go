package fastrcnn

import (
	"context"
	"errors"
	"fmt"

	"github.com/cyclopcam/logs"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/astn/internal/autodiff"
	"github.com/born-ml/astn/internal/backbone"
	"github.com/born-ml/astn/internal/nn"
	"github.com/born-ml/astn/internal/optim"
	"github.com/born-ml/astn/internal/roidata"
)

// TrainBackend is a loss backend with a gradient tape.
type TrainBackend interface {
	nn.LossBackend
	autodiff.BackwardCapable
}

// RunningMean averages the most recent values of a series.
type RunningMean struct {
	window int
	values []float64
}

// NewRunningMean creates a mean over the last window values.
func NewRunningMean(window int) *RunningMean {
	return &RunningMean{window: max(window, 1)}
}

// Add appends v, dropping the oldest value once the window is full.
func (r *RunningMean) Add(v float64) {
	if len(r.values) == r.window {
		copy(r.values, r.values[1:])
		r.values = r.values[:r.window-1]
	}
	r.values = append(r.values, v)
}

// Mean returns the mean of the window, or 0 if it is empty.
func (r *RunningMean) Mean() float64 {
	if len(r.values) == 0 {
		return 0
	}
	return stat.Mean(r.values, nil)
}

// StepResult reports one training step.
type StepResult struct {
	Step    int
	Cls     float64
	BBox    float64
	Quality float64
	Total   float64
	NumFg   int
	NumBg   int
}

// TrainerOptions controls the training loop.
type TrainerOptions struct {
	LogEvery int // log running means every LogEvery steps; 0 disables
	Window   int // running mean window
}

// Trainer runs synchronous minibatch steps.
//
// Each step pulls a batch from the source, computes the losses over the backbone
// features, backpropagates the total and applies the optimizer. A step is applied
// entirely or not at all: cancellation is only observed between steps.
type Trainer[B TrainBackend] struct {
	model    *Model[B]
	backend  B
	backbone backbone.Backbone
	source   roidata.Source
	opt      optim.Optimizer
	log      logs.Log
	opts     TrainerOptions

	step  int
	means [4]*RunningMean
}

// NewTrainer creates a trainer. It does not take ownership of source.
func NewTrainer[B TrainBackend](model *Model[B], backend B, bb backbone.Backbone, source roidata.Source, opt optim.Optimizer, log logs.Log, opts TrainerOptions) *Trainer[B] {
	if opts.Window <= 0 {
		opts.Window = 20
	}
	t := &Trainer[B]{
		model:    model,
		backend:  backend,
		backbone: bb,
		source:   source,
		opt:      opt,
		log:      log,
		opts:     opts,
	}
	for i := range t.means {
		t.means[i] = NewRunningMean(opts.Window)
	}
	return t
}

// Step runs one training step.
func (t *Trainer[B]) Step(ctx context.Context) (StepResult, error) {
	batch, err := t.source.Next(ctx)
	if err != nil {
		return StepResult{}, fmt.Errorf("next batch: %w", err)
	}
	features := backbone.Stack(t.backbone, batch.Images)

	tape := t.backend.GetTape()
	tape.Clear()
	tape.StartRecording()
	losses, used := t.model.Losses(features, batch)
	grads := autodiff.Backward(losses.Total, t.backend)
	tape.StopRecording()
	tape.Clear()

	t.opt.Step(grads)
	t.opt.ZeroGrad()
	t.step++

	v := losses.Values()
	for i, m := range t.means {
		m.Add(v[i])
	}
	res := StepResult{
		Step:    t.step,
		Cls:     v[0],
		BBox:    v[1],
		Quality: v[2],
		Total:   v[3],
		NumFg:   used.NumFg,
		NumBg:   used.NumBg,
	}
	if t.opts.LogEvery > 0 && t.step%t.opts.LogEvery == 0 {
		t.log.Infof("Step %d: loss %.4f (cls %.4f, bbox %.4f, quality %.4f), fg %d bg %d, lr %g",
			t.step, t.means[3].Mean(), t.means[0].Mean(), t.means[1].Mean(), t.means[2].Mean(),
			res.NumFg, res.NumBg, t.opt.GetLR())
	}
	return res, nil
}

// Run trains for steps steps or until ctx is done, whichever comes first. It returns
// nil when all steps complete and ctx.Err() when stopped early.
func (t *Trainer[B]) Run(ctx context.Context, steps int) error {
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			t.log.Infof("Stopping after %d steps: %v", t.step, err)
			return err
		}
		if _, err := t.Step(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				t.log.Infof("Stopping after %d steps: %v", t.step, ctx.Err())
				return ctx.Err()
			}
			return err
		}
	}
	return nil
}

// Means returns the running means of Cls, BBox, Quality and Total.
func (t *Trainer[B]) Means() [4]float64 {
	var out [4]float64
	for i, m := range t.means {
		out[i] = m.Mean()
	}
	return out
}

// Steps returns the number of applied steps.
func (t *Trainer[B]) Steps() int {
	return t.step
}
