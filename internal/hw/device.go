// Package hw opens and prepares real ALSA PCM playback devices. It talks to
// the kernel directly: hardware and software parameters are negotiated over
// ioctl, and the data ring plus the status/control pages are memory mapped.
// The result satisfies the Device contract the playback loop drives.
package hw

import (
	"fmt"
	"math"
	"os"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/dmgraves/go-alsapcm/audio"
	"github.com/dmgraves/go-alsapcm/internal/constants"
	"github.com/dmgraves/go-alsapcm/internal/interfaces"
	"github.com/dmgraves/go-alsapcm/internal/uapi"
)

// Config selects a playback endpoint and the stream parameters to commit.
type Config struct {
	Card   int    // ALSA card number
	Device int    // PCM device number on the card
	Path   string // explicit device path; overrides Card/Device when set

	Format     audio.Format
	Channels   int
	SampleRate int
	BufferSize int // ring size in frames; 0 picks the default
	Periods    int // periods per ring; 0 picks the default
	TimeoutMS  int // bounded wait on the PCM; 0 picks the default
}

func (c *Config) withDefaults() {
	if c.Channels == 0 {
		c.Channels = constants.DefaultChannels
	}
	if c.SampleRate == 0 {
		c.SampleRate = constants.DefaultSampleRate
	}
	if c.BufferSize == 0 {
		c.BufferSize = constants.DefaultBufferSize
	}
	if c.Periods == 0 {
		c.Periods = constants.DefaultPeriods
	}
	if c.TimeoutMS == 0 {
		c.TimeoutMS = constants.DefaultTimeoutMS
	}
}

func (c *Config) validate() error {
	if !c.Format.Valid() {
		return fmt.Errorf("hw: unknown sample format %d", int(c.Format))
	}
	if c.Channels < 1 {
		return fmt.Errorf("hw: channels %d out of range", c.Channels)
	}
	if c.SampleRate < 1 {
		return fmt.Errorf("hw: sample rate %d out of range", c.SampleRate)
	}
	if c.BufferSize < 1 {
		return fmt.Errorf("hw: buffer size %d out of range", c.BufferSize)
	}
	return nil
}

func (c *Config) path() string {
	if c.Path != "" {
		return c.Path
	}
	return DevicePath(c.Card, c.Device)
}

// DevicePath returns the playback endpoint path for a card/device pair.
func DevicePath(card, device int) string {
	return fmt.Sprintf("/dev/snd/pcmC%dD%dp", card, device)
}

// PCM is a prepared hardware playback stream. It is not safe for concurrent
// use; the playback loop owns it for the stream's lifetime.
type PCM struct {
	fd   int
	path string

	data []byte // mapped ring, bufferSize*frameBytes long

	// Shared pages with the kernel. In syncMode the pages could not be
	// mapped and both structs are local copies refreshed over the
	// SYNC_PTR ioctl instead.
	status     *uapi.MmapStatus
	control    *uapi.MmapControl
	statusMem  []byte
	controlMem []byte
	syncMode   bool

	boundary   uint64
	bufferSize int
	periodSize int
	channels   int
	rate       int
	frameBytes int
	timeoutMS  int
	format     audio.Format

	logger interfaces.Logger
}

// Open opens, configures and prepares a playback stream. The returned PCM is
// in a state from which Start is legal.
func Open(cfg Config, logger interfaces.Logger) (*PCM, error) {
	cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	path := cfg.path()
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("hw: open %s: %w", path, err)
	}

	p := &PCM{
		fd:        fd,
		path:      path,
		timeoutMS: cfg.TimeoutMS,
		channels:  cfg.Channels,
		rate:      cfg.SampleRate,
		format:    cfg.Format,
		logger:    logger,
	}
	p.frameBytes = cfg.Channels * cfg.Format.BytesPerSample()

	var version uint32
	if err := p.ioctl(uapi.SNDRV_PCM_IOCTL_PVERSION, unsafe.Pointer(&version)); err != nil {
		p.closeFd()
		return nil, fmt.Errorf("hw: query protocol version: %w", err)
	}
	if logger != nil {
		logger.Debugf("opened %s, PCM protocol %d.%d.%d", path, version>>16, (version>>8)&0xff, version&0xff)
	}

	if err := p.setupHwParams(cfg); err != nil {
		p.closeFd()
		return nil, err
	}
	if err := p.setupSwParams(); err != nil {
		p.closeFd()
		return nil, err
	}
	if err := p.mapRing(); err != nil {
		p.closeFd()
		return nil, err
	}
	if err := p.Prepare(); err != nil {
		p.Close()
		return nil, fmt.Errorf("hw: initial prepare: %w", err)
	}

	if logger != nil {
		logger.Infof("prepared %s: %s %dch %dHz, ring %d frames (%d periods of %d)",
			path, cfg.Format, p.channels, p.rate, p.bufferSize, cfg.Periods, p.periodSize)
	}
	return p, nil
}

// mapRing maps the data region and the status/control pages. Devices that
// refuse the status/control mappings fall back to SYNC_PTR mode.
func (p *PCM) mapRing() error {
	pageSize := os.Getpagesize()

	statusMem, err := unix.Mmap(p.fd, uapi.SNDRV_PCM_MMAP_OFFSET_STATUS, pageSize,
		unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		controlMem, cerr := unix.Mmap(p.fd, uapi.SNDRV_PCM_MMAP_OFFSET_CONTROL, pageSize,
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if cerr == nil {
			p.statusMem = statusMem
			p.controlMem = controlMem
			p.status = (*uapi.MmapStatus)(unsafe.Pointer(&statusMem[0]))
			p.control = (*uapi.MmapControl)(unsafe.Pointer(&controlMem[0]))
		} else {
			_ = unix.Munmap(statusMem)
			err = cerr
		}
	}
	if p.status == nil {
		if p.logger != nil {
			p.logger.Debugf("status/control pages not mappable (%v), using SYNC_PTR", err)
		}
		p.syncMode = true
		p.status = &uapi.MmapStatus{}
		p.control = &uapi.MmapControl{}
	}
	p.control.AvailMin = uint64(p.bufferSize)

	data, err := unix.Mmap(p.fd, uapi.SNDRV_PCM_MMAP_OFFSET_DATA, p.bufferSize*p.frameBytes,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("hw: map data ring: %w", err)
	}
	p.data = data
	return nil
}

// ioctl issues a PCM ioctl, converting the errno convention to Go errors.
func (p *PCM) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(p.fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// syncPtr exchanges the status/control snapshot with the kernel. With pull
// set the kernel's application pointer wins; otherwise ours is pushed.
func (p *PCM) syncPtr(flags uint32, pull bool) error {
	var s uapi.SyncPtr
	s.Flags = flags
	if pull {
		s.Flags |= uapi.SNDRV_PCM_SYNC_PTR_APPL | uapi.SNDRV_PCM_SYNC_PTR_AVAIL_MIN
	}
	s.Control = *p.control

	if err := p.ioctl(uapi.SNDRV_PCM_IOCTL_SYNC_PTR, unsafe.Pointer(&s)); err != nil {
		return err
	}

	*p.status = s.Status
	if pull {
		*p.control = s.Control
	}
	return nil
}

// hwsync refreshes the kernel's view of the hardware pointer.
func (p *PCM) hwsync() error {
	if p.syncMode {
		return p.syncPtr(uapi.SNDRV_PCM_SYNC_PTR_HWSYNC, true)
	}
	return p.ioctl(uapi.SNDRV_PCM_IOCTL_HWSYNC, nil)
}

func (p *PCM) loadState() interfaces.State {
	raw := atomic.LoadInt32(&p.status.State)
	switch raw {
	case uapi.SNDRV_PCM_STATE_OPEN:
		return interfaces.StateOpen
	case uapi.SNDRV_PCM_STATE_SETUP:
		return interfaces.StateSetup
	case uapi.SNDRV_PCM_STATE_PREPARED:
		return interfaces.StatePrepared
	case uapi.SNDRV_PCM_STATE_RUNNING:
		return interfaces.StateRunning
	case uapi.SNDRV_PCM_STATE_XRUN:
		return interfaces.StateXrun
	case uapi.SNDRV_PCM_STATE_DRAINING:
		return interfaces.StateDraining
	case uapi.SNDRV_PCM_STATE_PAUSED:
		return interfaces.StatePaused
	case uapi.SNDRV_PCM_STATE_SUSPENDED:
		return interfaces.StateSuspended
	default:
		return interfaces.StateDisconnected
	}
}

// State reads the kernel's runtime state for the stream.
func (p *PCM) State() (interfaces.State, error) {
	if p.syncMode {
		if err := p.syncPtr(0, true); err != nil {
			return 0, err
		}
	}
	return p.loadState(), nil
}

// pointers returns the current hardware and application frame positions.
func (p *PCM) pointers() (hw, appl uint64) {
	hw = atomic.LoadUint64(&p.status.HwPtr)
	appl = atomic.LoadUint64(&p.control.ApplPtr)
	return hw, appl
}

// availFrames computes the writable frame count from the shared pointers.
// Both pointers advance modulo boundary.
func (p *PCM) availFrames() int {
	hw, appl := p.pointers()
	used := appl - hw
	if appl < hw {
		used = appl + p.boundary - hw
	}
	avail := int64(p.bufferSize) - int64(used)
	if avail < 0 {
		avail = 0
	}
	return int(avail)
}

// AvailUpdate refreshes the hardware pointer and returns the number of
// frames the application may write. Xrun and suspend conditions surface as
// their errno.
func (p *PCM) AvailUpdate() (int, error) {
	if err := p.hwsync(); err != nil {
		return 0, err
	}
	switch p.loadState() {
	case interfaces.StateXrun:
		return 0, syscall.EPIPE
	case interfaces.StateSuspended:
		return 0, syscall.ESTRPIPE
	}
	return p.availFrames(), nil
}

// Start begins stream processing.
func (p *PCM) Start() error {
	return p.ioctl(uapi.SNDRV_PCM_IOCTL_START, nil)
}

// Prepare returns the stream to a startable state after an xrun.
func (p *PCM) Prepare() error {
	if err := p.ioctl(uapi.SNDRV_PCM_IOCTL_PREPARE, nil); err != nil {
		return err
	}
	// The kernel reset both pointers; refresh our copies.
	if p.syncMode {
		return p.syncPtr(uapi.SNDRV_PCM_SYNC_PTR_HWSYNC, true)
	}
	return nil
}

// Resume restarts a suspended stream. EAGAIN means the resume is still in
// progress.
func (p *PCM) Resume() error {
	return p.ioctl(uapi.SNDRV_PCM_IOCTL_RESUME, nil)
}

// Wait blocks until the PCM is ready for more data, bounded by timeoutMS.
func (p *PCM) Wait(timeoutMS int) error {
	fds := []unix.PollFd{{
		Fd:     int32(p.fd),
		Events: unix.POLLOUT | unix.POLLERR | unix.POLLNVAL,
	}}

	n, err := unix.Poll(fds, timeoutMS)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}
	if n == 0 {
		return syscall.ETIMEDOUT
	}

	if fds[0].Revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
		// An error event means the stream left the running state; report
		// which condition so the loop can pick the recovery cause.
		switch p.loadState() {
		case interfaces.StateSuspended:
			return syscall.ESTRPIPE
		case interfaces.StateDisconnected:
			return syscall.ENODEV
		default:
			return syscall.EPIPE
		}
	}
	return nil
}

// MmapBegin grants a writable window of up to frames frames. The grant is
// bounded by the writable space and by the distance to the end of the ring;
// a zero-frame grant is legal.
func (p *PCM) MmapBegin(frames int) (interfaces.Window, error) {
	switch p.loadState() {
	case interfaces.StateXrun:
		return interfaces.Window{}, syscall.EPIPE
	case interfaces.StateSuspended:
		return interfaces.Window{}, syscall.ESTRPIPE
	}

	_, appl := p.pointers()
	offset := int(appl % uint64(p.bufferSize))

	grant := frames
	if avail := p.availFrames(); grant > avail {
		grant = avail
	}
	if cont := p.bufferSize - offset; grant > cont {
		grant = cont
	}

	win := interfaces.Window{
		Offset: offset,
		Frames: grant,
	}
	if grant > 0 {
		win.Bytes = p.data[offset*p.frameBytes : (offset+grant)*p.frameBytes]
	}
	return win, nil
}

// MmapCommit releases a window back to the driver by advancing the
// application pointer. A stream that underran between begin and commit
// surfaces EPIPE.
func (p *PCM) MmapCommit(offset, frames int) (int, error) {
	_, appl := p.pointers()
	appl += uint64(frames)
	if appl >= p.boundary {
		appl -= p.boundary
	}
	atomic.StoreUint64(&p.control.ApplPtr, appl)

	if p.syncMode {
		if err := p.syncPtr(uapi.SNDRV_PCM_SYNC_PTR_HWSYNC, false); err != nil {
			return 0, err
		}
	}

	switch p.loadState() {
	case interfaces.StateXrun:
		return 0, syscall.EPIPE
	case interfaces.StateSuspended:
		return 0, syscall.ESTRPIPE
	}
	return frames, nil
}

// Close releases the mappings and the device node. The PCM must not be used
// afterwards.
func (p *PCM) Close() error {
	if p.fd < 0 {
		return nil
	}

	// Stop the stream; harmless when it never started.
	_ = p.ioctl(uapi.SNDRV_PCM_IOCTL_DROP, nil)

	if p.data != nil {
		_ = unix.Munmap(p.data)
		p.data = nil
	}
	if p.statusMem != nil {
		_ = unix.Munmap(p.statusMem)
		p.statusMem = nil
	}
	if p.controlMem != nil {
		_ = unix.Munmap(p.controlMem)
		p.controlMem = nil
	}
	p.status = nil
	p.control = nil

	return p.closeFd()
}

func (p *PCM) closeFd() error {
	err := unix.Close(p.fd)
	p.fd = -1
	return err
}

// Negotiated parameters

func (p *PCM) BufferSize() int             { return p.bufferSize }
func (p *PCM) PeriodSize() int             { return p.periodSize }
func (p *PCM) Channels() int               { return p.channels }
func (p *PCM) BytesPerFrame() int          { return p.frameBytes }
func (p *PCM) TimeoutMS() int              { return p.timeoutMS }
func (p *PCM) SampleRate() int             { return p.rate }
func (p *PCM) Format() audio.Format        { return p.format }
func (p *PCM) AccessPattern() audio.Access { return audio.Interleaved }

// Path returns the device node this stream was opened from.
func (p *PCM) Path() string { return p.path }

var _ interfaces.Device = (*PCM)(nil)

// computeBoundary picks the largest buffer-size multiple that still leaves
// slack below the pointer wrap limit, matching the kernel's expectation for
// stop thresholds.
func computeBoundary(bufferSize int) uint64 {
	boundary := uint64(bufferSize)
	const limit = math.MaxInt64 / 2
	for boundary*2 <= limit {
		boundary *= 2
	}
	return boundary
}
