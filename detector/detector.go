// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package detector trains a region detector with an adaptive spatial transform.
//
// Regions are sampled from proposals and ground truth, ROI-pooled from a backbone
// feature map, warped by a learned per-region transform and classified. The transform
// is trained only by a quality loss that rewards warps the classifier is confident
// about.
//
// Example:
//
//	cfg, err := detector.LoadConfig("train.yaml")
//	if err != nil { ... }
//	bb := detector.NewFixedBackbone(64, 16, cfg.NumClasses, 0.1, cfg.Seed)
//	session, err := detector.NewSession(ctx, cfg, images, bb, log)
//	if err != nil { ... }
//	defer session.Close()
//	err = session.Run(ctx, 1000)
package detector

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/cyclopcam/logs"

	"github.com/born-ml/astn/internal/autodiff"
	"github.com/born-ml/astn/internal/backbone"
	"github.com/born-ml/astn/internal/backend/cpu"
	"github.com/born-ml/astn/internal/boxes"
	"github.com/born-ml/astn/internal/config"
	"github.com/born-ml/astn/internal/fastrcnn"
	"github.com/born-ml/astn/internal/optim"
	"github.com/born-ml/astn/internal/roidata"
)

// Config holds every training option.
type Config = config.Config

// DefaultConfig returns the Fast R-CNN training defaults.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// ParseConfig decodes and validates a YAML configuration.
func ParseConfig(data []byte) (Config, error) {
	return config.Parse(data)
}

// Data

// Box is an axis-aligned box with inclusive pixel corners.
type Box = boxes.Box

// GTBox is a ground-truth object.
type GTBox = roidata.GTBox

// Image is one entry of the image database: its size, proposals and objects.
type Image = roidata.Image

// Batch is a sampled minibatch.
type Batch = roidata.Batch

// Backbone maps an image to a feature map.
type Backbone = backbone.Backbone

// NewFixedBackbone creates a deterministic backbone that projects each cell's class
// coverage onto a fixed random embedding.
func NewFixedBackbone(channels, stride, numClasses int, noise float64, seed uint64) Backbone {
	return backbone.NewFixed(channels, stride, numClasses, noise, seed)
}

// Training

// Backend is the CPU backend with gradient recording.
type Backend = autodiff.AutodiffBackend[*cpu.CPUBackend]

// NewBackend creates a training backend.
func NewBackend() *Backend {
	return autodiff.New(cpu.New())
}

// Model is the region network.
type Model = fastrcnn.Model[*Backend]

// Losses are the scalar losses of one minibatch.
type Losses = fastrcnn.Losses

// Trainer runs minibatch steps.
type Trainer = fastrcnn.Trainer[*Backend]

// StepResult reports one training step.
type StepResult = fastrcnn.StepResult

// Session owns a model, its data pipeline and its trainer.
type Session struct {
	Model   *Model
	Trainer *Trainer
	source  roidata.Source
	log     logs.Log
}

// NewSession wires a training session over images.
//
// Data and weight initialisation draw from separate streams seeded by cfg.Seed, so a
// session is reproducible.
func NewSession(ctx context.Context, cfg Config, images []*Image, bb Backbone, log logs.Log) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if want := 1 / float64(bb.Stride()); math.Abs(cfg.SpatialScale-want) > 1e-9 {
		return nil, fmt.Errorf("spatial_scale %g does not match backbone stride %d", cfg.SpatialScale, bb.Stride())
	}
	if bb.Channels()%cfg.BlockNum != 0 {
		return nil, fmt.Errorf("block_num %d does not divide %d backbone channels", cfg.BlockNum, bb.Channels())
	}

	dataRNG := rand.New(rand.NewPCG(cfg.Seed, 1))
	loader, err := roidata.NewLoader(images, roidata.LoaderOptionsFromConfig(cfg), dataRNG)
	if err != nil {
		return nil, err
	}
	sampler := roidata.NewSampler(roidata.OptionsFromConfig(cfg), log, dataRNG)

	backend := NewBackend()
	model := fastrcnn.NewModel(cfg, bb.Channels(), backend, rand.New(rand.NewPCG(cfg.Seed, 2)))
	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{
		LR:          cfg.LR,
		Momentum:    cfg.Momentum,
		WeightDecay: cfg.WeightDecay,
	})
	source := roidata.NewSource(ctx, loader, sampler, cfg.PrefetchDepth, log)
	trainer := fastrcnn.NewTrainer(model, backend, bb, source, opt, log, fastrcnn.TrainerOptions{LogEvery: 20})

	log.Infof("Training on %d images (%d with flips), %d regions per batch",
		len(images), loader.Len(), cfg.BatchSize())
	return &Session{Model: model, Trainer: trainer, source: source, log: log}, nil
}

// Run trains for steps steps or until ctx is done.
func (s *Session) Run(ctx context.Context, steps int) error {
	return s.Trainer.Run(ctx, steps)
}

// Close stops the data pipeline.
func (s *Session) Close() error {
	return s.source.Close()
}
