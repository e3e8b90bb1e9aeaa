package roidata

import (
	"context"
	"errors"

	"github.com/cyclopcam/logs"
	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by Next after the source is closed.
var ErrClosed = errors.New("roidata: source closed")

// Source hands out minibatches to the training loop.
type Source interface {
	// Next returns the next batch. It blocks until one is ready or ctx is done.
	Next(ctx context.Context) (*Batch, error)
	// Close stops the source and releases its goroutines.
	Close() error
}

// NewSource returns a synchronous source when depth is 0 and a prefetching one otherwise.
func NewSource(ctx context.Context, loader *Loader, sampler *Sampler, depth int, log logs.Log) Source {
	if depth <= 0 {
		return NewSyncSource(loader, sampler)
	}
	return StartPrefetch(ctx, loader, sampler, depth, log)
}

type syncSource struct {
	loader  *Loader
	sampler *Sampler
	closed  bool
}

// NewSyncSource samples each batch on the caller's goroutine.
func NewSyncSource(loader *Loader, sampler *Sampler) Source {
	return &syncSource{loader: loader, sampler: sampler}
}

func (s *syncSource) Next(ctx context.Context) (*Batch, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.sampler.Sample(s.loader.Next()), nil
}

func (s *syncSource) Close() error {
	s.closed = true
	return nil
}

// Prefetcher samples batches on a producer goroutine, staying at most depth batches
// ahead of the consumer.
//
// The producer owns the loader and sampler until Close returns. Batches cross the
// queue by pointer and are never touched by the producer again.
type Prefetcher struct {
	batches chan *Batch
	cancel  context.CancelFunc
	group   *errgroup.Group
	log     logs.Log
}

// StartPrefetch starts the producer. Depth is clamped to [1, 2].
func StartPrefetch(ctx context.Context, loader *Loader, sampler *Sampler, depth int, log logs.Log) *Prefetcher {
	depth = max(1, min(depth, 2))
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	p := &Prefetcher{
		batches: make(chan *Batch, depth),
		cancel:  cancel,
		group:   g,
		log:     log,
	}
	g.Go(func() error {
		defer close(p.batches)
		log.Debugf("Prefetch started (depth %d)", depth)
		defer log.Debugf("Prefetch stopped")
		for {
			b := sampler.Sample(loader.Next())
			select {
			case p.batches <- b:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})
	return p
}

// Next returns the next prefetched batch.
func (p *Prefetcher) Next(ctx context.Context) (*Batch, error) {
	select {
	case b, ok := <-p.batches:
		if !ok {
			if err := p.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, ErrClosed
		}
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the producer, waits for it to exit, and discards queued batches.
func (p *Prefetcher) Close() error {
	p.cancel()
	err := p.group.Wait()
	for range p.batches {
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		p.log.Errorf("Prefetch failed: %v", err)
		return err
	}
	return nil
}
