package roidata

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/astn/internal/config"
)

// ErrTooFewImages is returned when the database cannot fill a single batch.
var ErrTooFewImages = errors.New("roidata: too few images for one batch")

// LoaderOptions controls minibatch image selection.
type LoaderOptions struct {
	ImagesPerBatch int
	AspectGrouping bool // batch images of the same orientation together
	UseFlipped     bool // append a mirrored copy of every image
}

// LoaderOptionsFromConfig extracts the loader options of a validated configuration.
func LoaderOptionsFromConfig(cfg config.Config) LoaderOptions {
	return LoaderOptions{
		ImagesPerBatch: cfg.ImagesPerBatch,
		AspectGrouping: cfg.AspectGrouping,
		UseFlipped:     cfg.UseFlipped,
	}
}

// Loader walks the image database in shuffled order, one epoch at a time.
// It is not safe for concurrent use.
type Loader struct {
	images []*Image
	opts   LoaderOptions
	rng    *rand.Rand
	perm   []int
	cur    int
	epoch  int
}

// NewLoader creates a loader over images. The slice is not modified.
func NewLoader(images []*Image, opts LoaderOptions, rng *rand.Rand) (*Loader, error) {
	db := append([]*Image(nil), images...)
	if opts.UseFlipped {
		for _, im := range images {
			db = append(db, im.Flip())
		}
	}
	if opts.ImagesPerBatch <= 0 || len(db) < opts.ImagesPerBatch {
		return nil, fmt.Errorf("%w: %d images, %d per batch", ErrTooFewImages, len(db), opts.ImagesPerBatch)
	}
	l := &Loader{images: db, opts: opts, rng: rng}
	l.shuffle()
	return l, nil
}

// Len returns the database size, flipped copies included.
func (l *Loader) Len() int {
	return len(l.images)
}

// Epoch returns the number of completed passes over the database.
func (l *Loader) Epoch() int {
	return l.epoch
}

// Next returns the images of the next minibatch. The database is reshuffled when
// the current permutation cannot supply a full batch.
func (l *Loader) Next() []*Image {
	n := l.opts.ImagesPerBatch
	if l.cur+n >= len(l.perm) {
		l.shuffle()
		l.epoch++
	}
	out := make([]*Image, n)
	for i, idx := range l.perm[l.cur : l.cur+n] {
		out[i] = l.images[idx]
	}
	l.cur += n
	return out
}

// shuffle draws a new permutation. With aspect grouping, horizontal and vertical
// images are shuffled separately and cut into batch-sized rows, then the rows are
// shuffled. Short rows go last so every full row stays batch-aligned.
func (l *Loader) shuffle() {
	l.cur = 0
	if !l.opts.AspectGrouping {
		l.perm = l.rng.Perm(len(l.images))
		return
	}

	var horz, vert []int
	for i, im := range l.images {
		if im.Horizontal() {
			horz = append(horz, i)
		} else {
			vert = append(vert, i)
		}
	}

	n := l.opts.ImagesPerBatch
	var rows, short [][]int
	for _, group := range [][]int{horz, vert} {
		order := make([]int, len(group))
		for i, p := range l.rng.Perm(len(group)) {
			order[i] = group[p]
		}
		for lo := 0; lo < len(order); lo += n {
			row := order[lo:min(lo+n, len(order))]
			if len(row) < n {
				short = append(short, row)
			} else {
				rows = append(rows, row)
			}
		}
	}

	l.perm = make([]int, 0, len(l.images))
	for _, r := range l.rng.Perm(len(rows)) {
		l.perm = append(l.perm, rows[r]...)
	}
	for _, row := range short {
		l.perm = append(l.perm, row...)
	}
}
