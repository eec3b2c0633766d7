package dsp

import (
	"fmt"
	"math"

	"github.com/dmgraves/go-alsapcm/audio"
)

const twoPi = 2 * math.Pi

// Waveform selects the shape an Oscillator generates.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveSawtooth
)

func (w Waveform) String() string {
	if w == WaveSawtooth {
		return "sawtooth"
	}
	return "sine"
}

// OscillatorConfig configures an Oscillator.
type OscillatorConfig struct {
	Waveform     Waveform
	Freq         float64 // Hz
	Amp          float64 // linear amplitude
	SampleRate   int     // Hz; Prepare overrides this from the render context
	InitialPhase float64 // radians, wrapped into [0, 2π)
}

// Oscillator writes a periodic waveform to all channels of the buffer. It
// maintains a phase accumulator in [0, 2π) advanced by 2π·freq/rate per
// frame; the same accumulator drives every waveform shape.
type Oscillator[T audio.Sample] struct {
	waveform Waveform
	freq     float64
	amp      float64
	rate     float64
	phase    float64
	step     float64
}

// NewOscillator creates an oscillator from cfg.
func NewOscillator[T audio.Sample](cfg OscillatorConfig) *Oscillator[T] {
	o := &Oscillator[T]{
		waveform: cfg.Waveform,
		freq:     cfg.Freq,
		amp:      cfg.Amp,
		rate:     float64(cfg.SampleRate),
		phase:    wrapPhase(cfg.InitialPhase),
	}
	if o.rate > 0 {
		o.step = twoPi * o.freq / o.rate
	}
	return o
}

// NewSine creates a sine oscillator.
func NewSine[T audio.Sample](freq, amp float64, sampleRate int) *Oscillator[T] {
	return NewOscillator[T](OscillatorConfig{
		Waveform:   WaveSine,
		Freq:       freq,
		Amp:        amp,
		SampleRate: sampleRate,
	})
}

// Prepare adopts the render context's sample rate and recomputes the phase
// increment. The phase accumulator survives re-preparation, so repeated
// calls with the same context leave the output unchanged.
func (o *Oscillator[T]) Prepare(ctx PrepareContext) error {
	if ctx.SampleRate <= 0 {
		return fmt.Errorf("oscillator: sample rate %d out of range", ctx.SampleRate)
	}
	o.rate = float64(ctx.SampleRate)
	o.step = twoPi * o.freq / o.rate
	return nil
}

func (o *Oscillator[T]) Process(ctx ProcessContext[T]) {
	buf := ctx.Buffer
	channels := buf.NumChannels()

	for frame := 0; frame < buf.NumFrames(); frame++ {
		var v float64
		switch o.waveform {
		case WaveSawtooth:
			v = o.amp * (2*(o.phase/twoPi) - 1)
		default:
			v = o.amp * math.Sin(o.phase)
		}

		sample := T(v)
		for ch := 0; ch < channels; ch++ {
			buf.SetSample(ch, frame, sample)
		}

		o.phase += o.step
		if o.phase >= twoPi {
			o.phase -= twoPi
		}
	}
}

func (o *Oscillator[T]) Close() error {
	return nil
}

// Phase returns the current accumulator value, for inspection.
func (o *Oscillator[T]) Phase() float64 { return o.phase }

func wrapPhase(phase float64) float64 {
	phase = math.Mod(phase, twoPi)
	if phase < 0 {
		phase += twoPi
	}
	return phase
}
