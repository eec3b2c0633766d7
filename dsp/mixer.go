package dsp

import (
	"fmt"

	"github.com/dmgraves/go-alsapcm/audio"
)

// Mixer sums the output of several source nodes into the buffer with a
// linear weight per source. Each source renders into a preallocated scratch
// region, so Process allocates nothing for interleaved output; planar output
// costs one small slice-header allocation per call. For float sample types
// the mixed result is clamped to [-1, 1].
type Mixer[T audio.Sample] struct {
	sources []mixerSource[T]
	scratch []T
	view    audio.Buffer[T]
	block   int
}

type mixerSource[T audio.Sample] struct {
	unit   *Unit[T]
	weight float64
}

// NewMixer creates an empty mixer. Sources are attached with Add before
// Prepare.
func NewMixer[T audio.Sample]() *Mixer[T] {
	return &Mixer[T]{}
}

// Add attaches a source with the given linear weight.
func (m *Mixer[T]) Add(node Node[T], weight float64) {
	m.sources = append(m.sources, mixerSource[T]{unit: NewUnit(node), weight: weight})
}

// Sources exposes the wrapped source units for lifecycle observation.
func (m *Mixer[T]) Sources() []*Unit[T] {
	units := make([]*Unit[T], len(m.sources))
	for i, s := range m.sources {
		units[i] = s.unit
	}
	return units
}

// Prepare sizes the scratch region for the render block and prepares every
// source. The scratch is always interleaved regardless of the output
// layout; sources address it through the generic view.
func (m *Mixer[T]) Prepare(ctx PrepareContext) error {
	if ctx.BlockSize <= 0 || ctx.NumChannels <= 0 {
		return fmt.Errorf("mixer: block %d x channels %d out of range", ctx.BlockSize, ctx.NumChannels)
	}

	need := ctx.BlockSize * ctx.NumChannels
	if cap(m.scratch) < need {
		m.scratch = make([]T, need)
	}
	m.scratch = m.scratch[:need]
	m.view = audio.NewInterleaved(m.scratch, ctx.NumChannels)
	m.block = ctx.BlockSize

	for _, s := range m.sources {
		if err := s.unit.Prepare(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mixer[T]) Process(ctx ProcessContext[T]) {
	out := ctx.Buffer
	frames := out.NumFrames()
	if frames > m.block {
		frames = m.block
	}
	channels := out.NumChannels()

	out.Slice(frames).Fill(0)

	for _, s := range m.sources {
		scratch := m.view.Slice(frames)
		scratch.Fill(0)
		s.unit.Process(ProcessContext[T]{Buffer: scratch})

		for frame := 0; frame < frames; frame++ {
			for ch := 0; ch < channels; ch++ {
				mixed := float64(out.Sample(ch, frame)) + s.weight*float64(scratch.Sample(ch, frame))
				out.SetSample(ch, frame, clampSample[T](mixed))
			}
		}
	}
}

// Close closes every source and reports the first error encountered.
func (m *Mixer[T]) Close() error {
	var first error
	for _, s := range m.sources {
		if err := s.unit.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// clampSample converts a mixed float value back to the sample type, keeping
// float formats inside full scale. Integer formats rely on the sources
// staying inside their own headroom.
func clampSample[T audio.Sample](v float64) T {
	var zero T
	switch any(zero).(type) {
	case float32, float64:
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
	}
	return T(v)
}
