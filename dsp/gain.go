package dsp

import "github.com/dmgraves/go-alsapcm/audio"

// Gain multiplies every sample of every channel in place by a scalar.
// Prepare is a no-op; a gain of 1.0 is an identity transform.
type Gain[T audio.Sample] struct {
	gain float64
}

// NewGain creates a gain node with the given linear multiplier.
func NewGain[T audio.Sample](gain float64) *Gain[T] {
	return &Gain[T]{gain: gain}
}

// Gain returns the configured multiplier.
func (g *Gain[T]) Gain() float64 { return g.gain }

func (g *Gain[T]) Prepare(ctx PrepareContext) error {
	return nil
}

func (g *Gain[T]) Process(ctx ProcessContext[T]) {
	buf := ctx.Buffer
	for frame := 0; frame < buf.NumFrames(); frame++ {
		for ch := 0; ch < buf.NumChannels(); ch++ {
			buf.SetSample(ch, frame, T(float64(buf.Sample(ch, frame))*g.gain))
		}
	}
}

func (g *Gain[T]) Close() error {
	return nil
}
