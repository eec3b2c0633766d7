package hw

import (
	"fmt"
	"unsafe"

	"github.com/dmgraves/go-alsapcm/audio"
	"github.com/dmgraves/go-alsapcm/internal/uapi"
)

// kernelFormat maps the public sample format onto the kernel encoding.
func kernelFormat(f audio.Format) (uint32, error) {
	switch f {
	case audio.S16LE:
		return uapi.SNDRV_PCM_FORMAT_S16_LE, nil
	case audio.S32LE:
		return uapi.SNDRV_PCM_FORMAT_S32_LE, nil
	case audio.Float32LE:
		return uapi.SNDRV_PCM_FORMAT_FLOAT_LE, nil
	case audio.Float64LE:
		return uapi.SNDRV_PCM_FORMAT_FLOAT64_LE, nil
	}
	return 0, fmt.Errorf("hw: no kernel encoding for format %d", int(f))
}

// setupHwParams negotiates and commits the hardware parameters: mmap
// interleaved access, the requested format, channel count and rate, and a
// ring of the requested geometry. The committed values are read back since
// the device may round them.
func (p *PCM) setupHwParams(cfg Config) error {
	format, err := kernelFormat(cfg.Format)
	if err != nil {
		return err
	}

	var params uapi.HwParams
	params.Init()
	params.SetMask(uapi.SNDRV_PCM_HW_PARAM_ACCESS, uapi.SNDRV_PCM_ACCESS_MMAP_INTERLEAVED)
	params.SetMask(uapi.SNDRV_PCM_HW_PARAM_FORMAT, format)
	params.SetInterval(uapi.SNDRV_PCM_HW_PARAM_CHANNELS, uint32(cfg.Channels))
	params.SetInterval(uapi.SNDRV_PCM_HW_PARAM_RATE, uint32(cfg.SampleRate))
	params.SetInterval(uapi.SNDRV_PCM_HW_PARAM_PERIODS, uint32(cfg.Periods))

	// Constrain the ring size but let refinement round it to what the
	// hardware supports.
	buf := params.Interval(uapi.SNDRV_PCM_HW_PARAM_BUFFER_SIZE)
	buf.Min = uint32(cfg.BufferSize)
	buf.Max = uint32(cfg.BufferSize)
	buf.Flags = 0

	if err := p.ioctl(uapi.SNDRV_PCM_IOCTL_HW_REFINE, unsafe.Pointer(&params)); err != nil {
		return fmt.Errorf("hw: refine parameters (format %s, %dch, %dHz): %w",
			cfg.Format, cfg.Channels, cfg.SampleRate, err)
	}
	if params.Interval(uapi.SNDRV_PCM_HW_PARAM_BUFFER_SIZE).Empty() {
		return fmt.Errorf("hw: device cannot provide a %d frame ring", cfg.BufferSize)
	}

	params.Rmask = 0xffffffff
	if err := p.ioctl(uapi.SNDRV_PCM_IOCTL_HW_PARAMS, unsafe.Pointer(&params)); err != nil {
		return fmt.Errorf("hw: commit parameters: %w", err)
	}

	p.bufferSize = int(params.IntervalValue(uapi.SNDRV_PCM_HW_PARAM_BUFFER_SIZE))
	p.periodSize = int(params.IntervalValue(uapi.SNDRV_PCM_HW_PARAM_PERIOD_SIZE))
	p.boundary = computeBoundary(p.bufferSize)

	if p.bufferSize <= 0 {
		return fmt.Errorf("hw: device committed an empty ring")
	}
	return nil
}

// setupSwParams commits the software parameters for the min_available start
// strategy: the wait gate fires when one whole buffer is writable, and the
// kernel never starts the stream on its own; the loop's explicit start gate
// does.
func (p *PCM) setupSwParams() error {
	boundary := p.boundary

	params := uapi.SwParams{
		PeriodStep:       1,
		AvailMin:         uint64(p.bufferSize),
		XferAlign:        1,
		StartThreshold:   boundary, // never auto-start
		StopThreshold:    uint64(p.bufferSize),
		SilenceThreshold: 0,
		SilenceSize:      0,
		Boundary:         boundary,
	}

	if err := p.ioctl(uapi.SNDRV_PCM_IOCTL_SW_PARAMS, unsafe.Pointer(&params)); err != nil {
		return fmt.Errorf("hw: commit software parameters: %w", err)
	}

	// The kernel may adjust the boundary; adopt its value.
	if params.Boundary != 0 {
		p.boundary = params.Boundary
	}
	return nil
}
