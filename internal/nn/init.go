package nn

import (
	"math"
	"math/rand/v2"

	"github.com/born-ml/astn/internal/tensor"
)

// Init fills a freshly allocated weight tensor.
type Init func(t *tensor.RawTensor, rng *rand.Rand)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
func Xavier(fanIn, fanOut int) Init {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return func(t *tensor.RawTensor, rng *rand.Rand) {
		for i := range t.Data() {
			t.Data()[i] = (rng.Float64()*2 - 1) * bound
		}
	}
}

// Normal initializes weights from N(0, std²).
// Fast R-CNN initialises cls_score with std 0.01 and bbox_pred with std 0.001.
func Normal(std float64) Init {
	return func(t *tensor.RawTensor, rng *rand.Rand) {
		for i := range t.Data() {
			t.Data()[i] = std * rng.NormFloat64()
		}
	}
}

// Constant fills the tensor with values, repeated cyclically.
func Constant(values ...float64) Init {
	return func(t *tensor.RawTensor, _ *rand.Rand) {
		if len(values) == 0 {
			clear(t.Data())
			return
		}
		for i := range t.Data() {
			t.Data()[i] = values[i%len(values)]
		}
	}
}
