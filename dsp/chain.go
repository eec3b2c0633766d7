package dsp

import "github.com/dmgraves/go-alsapcm/audio"

// Chain composes nodes sequentially: Process runs every member in order over
// the same buffer. Execution is strictly sequential on the audio thread;
// there is no internal parallelism within a render window. Chain itself
// satisfies Node, so chains nest.
type Chain[T audio.Sample] struct {
	units []*Unit[T]
}

// NewChain wraps each node in a Unit and composes them in order.
func NewChain[T audio.Sample](nodes ...Node[T]) *Chain[T] {
	units := make([]*Unit[T], len(nodes))
	for i, n := range nodes {
		units[i] = NewUnit(n)
	}
	return &Chain[T]{units: units}
}

// Units exposes the wrapped members so a controller can observe their
// lifecycle status.
func (c *Chain[T]) Units() []*Unit[T] { return c.units }

// Prepare fans out to every member and stops at the first failure.
func (c *Chain[T]) Prepare(ctx PrepareContext) error {
	for _, u := range c.units {
		if err := u.Prepare(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chain[T]) Process(ctx ProcessContext[T]) {
	for _, u := range c.units {
		u.Process(ctx)
	}
}

// Close closes every member and reports the first error encountered.
func (c *Chain[T]) Close() error {
	var first error
	for _, u := range c.units {
		if err := u.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
