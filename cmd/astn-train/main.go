// Package main trains the spatial transform detector on a synthetic image database.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"

	"github.com/born-ml/astn/detector"
	"github.com/born-ml/astn/internal/synth"
)

const version = "v0.1.0-dev"

func main() {
	logger, err := logs.NewLog()
	check(err)

	parser := argparse.NewParser("astn-train", "Train a region detector with an adaptive spatial transform on synthetic data")
	configFile := parser.String("c", "config", &argparse.Options{Help: "YAML training configuration (defaults when empty)", Default: ""})
	steps := parser.Int("n", "steps", &argparse.Options{Help: "Number of training steps", Default: 200})
	seed := parser.Int("s", "seed", &argparse.Options{Help: "Override the configured random seed", Default: -1})
	numImages := parser.Int("i", "images", &argparse.Options{Help: "Number of synthetic images", Default: 32})
	channels := parser.Int("C", "channels", &argparse.Options{Help: "Backbone feature channels", Default: 16})
	showVersion := parser.Flag("v", "version", &argparse.Options{Help: "Print version and exit", Default: false})
	err = parser.Parse(os.Args)
	if err != nil {
		logger.Errorf(parser.Usage(err))
		os.Exit(1)
	}
	if *showVersion {
		fmt.Printf("astn-train %s\n", version)
		return
	}

	if err := run(logger, *configFile, *steps, *seed, *numImages, *channels); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(logger logs.Log, configFile string, steps, seed, numImages, channels int) error {
	cfg := detector.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = detector.LoadConfig(configFile); err != nil {
			return err
		}
	}
	if seed >= 0 {
		cfg.Seed = uint64(seed)
	}
	stride := int(1/cfg.SpatialScale + 0.5)

	opts := synth.DefaultOptions(cfg.NumClasses)
	opts.NumImages = numImages
	images := synth.Generate(opts, rand.New(rand.NewPCG(cfg.Seed, 0)))
	bb := detector.NewFixedBackbone(channels, stride, cfg.NumClasses, 0.1, cfg.Seed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	session, err := detector.NewSession(ctx, cfg, images, bb, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	err = session.Run(ctx, steps)
	if errors.Is(err, context.Canceled) {
		logger.Infof("Interrupted")
		return nil
	}
	if err != nil {
		return err
	}
	m := session.Trainer.Means()
	logger.Infof("Done after %d steps: loss %.4f (cls %.4f, bbox %.4f, quality %.4f)",
		session.Trainer.Steps(), m[3], m[0], m[1], m[2])
	return nil
}

func check(err error) {
	if err != nil {
		panic(err)
	}
}
