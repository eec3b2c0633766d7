package alsapcm

import (
	"errors"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dmgraves/go-alsapcm/audio"
	"github.com/dmgraves/go-alsapcm/internal/constants"
)

// Callback renders audio into the window described by data. It runs on the
// audio thread, must fill exactly data.Frames frames, must return promptly
// and must not retain data or the views derived from it. There is no error
// channel: by contract the callback always succeeds, and a panic that
// unwinds into the loop is a fatal bug in the caller.
type Callback func(data *audio.Data)

// Options contains optional collaborators for a Player
type Options struct {
	// Logger for debug/info messages (if nil, no logging)
	Logger Logger

	// Observer for metrics collection (if nil, the Player's own Metrics
	// instance records loop events)
	Observer Observer
}

// Player owns the realtime playback loop for one prepared device. A
// controller goroutine may call Stop at any time; the loop observes the
// request between iterations and returns cleanly.
type Player struct {
	dev      Device
	callback Callback
	logger   Logger
	observer Observer
	metrics  *Metrics

	running atomic.Bool

	// sleep is indirect so recovery backoff is testable without waiting.
	sleep func(time.Duration)
}

// recovery causes, fixed by the errno taxonomy
const (
	causeXrun      = "xrun"
	causeSuspended = "suspended"
)

// NewPlayer creates a Player driving dev with the given render callback.
func NewPlayer(dev Device, callback Callback, options *Options) (*Player, error) {
	if dev == nil {
		return nil, NewError("new_player", KindInvalidParameters, "nil device")
	}
	if callback == nil {
		return nil, NewError("new_player", KindInvalidParameters, "nil callback")
	}

	if options == nil {
		options = &Options{}
	}

	metrics := NewMetrics()
	var observer Observer = NewMetricsObserver(metrics)
	if options.Observer != nil {
		observer = options.Observer
	}

	return &Player{
		dev:      dev,
		callback: callback,
		logger:   options.Logger,
		observer: observer,
		metrics:  metrics,
		sleep:    time.Sleep,
	}, nil
}

// Metrics returns the Player's metrics instance
func (p *Player) Metrics() *Metrics {
	return p.metrics
}

// Stop requests shutdown. The current iteration completes or is abandoned at
// the next state check; no guarantee is made about a final commit.
func (p *Player) Stop() {
	p.running.Store(false)
}

// Run blocks the calling goroutine, pinned to its OS thread, until Stop is
// called or a fatal error occurs. It continuously services the PCM ring and
// invokes the callback with successive writable windows. Errors carry the
// Kind taxonomy: xrun and suspend conditions are recovered internally and
// surface only when recovery itself fails.
func (p *Player) Run() error {
	// Pin to an OS thread: scheduling the render loop across threads adds
	// wakeup latency the ring budget does not have.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	p.running.Store(true)
	defer p.metrics.Stop()

	bufferSize := p.dev.BufferSize()

	// The stream is prepared but not yet started.
	stopped := true

	for p.running.Load() {
		state, err := p.dev.State()
		if err != nil {
			return fatal("pcm_state", KindUnexpected, err)
		}

		switch state {
		case StateXrun:
			prepared, err := p.recover(causeXrun)
			if err != nil {
				return err
			}
			if prepared {
				stopped = true
			}
			continue
		case StateSuspended:
			prepared, err := p.recover(causeSuspended)
			if err != nil {
				return err
			}
			if prepared {
				stopped = true
			}
			continue
		}

		avail, err := p.dev.AvailUpdate()
		if err != nil {
			prepared, rerr := p.recover(causeFromError(err))
			if rerr != nil {
				return rerr
			}
			if prepared {
				stopped = true
			}
			continue
		}

		if avail < bufferSize {
			if stopped {
				if err := p.dev.Start(); err != nil {
					p.observer.ObserveStart(false)
					return fatal("start", KindStart, err)
				}
				p.observer.ObserveStart(true)
				stopped = false
				// A fresh start never delivers frames in the same
				// iteration; recheck state first.
				continue
			}

			if err := p.dev.Wait(p.dev.TimeoutMS()); err != nil {
				if _, rerr := p.recover(causeFromError(err)); rerr != nil {
					return rerr
				}
				stopped = true
				continue
			}
		}

		abort, err := p.renderWindow(bufferSize, &stopped)
		if abort {
			return err
		}
	}

	if p.logger != nil {
		p.logger.Debugf("playback loop stopped cleanly")
	}
	return nil
}

// renderWindow services one full buffer worth of frames through the mmap
// window protocol. It returns fatal=true with the error to surface, or
// fatal=false after recoverable trouble has already been handled (stopped is
// updated in place).
func (p *Player) renderWindow(bufferSize int, stopped *bool) (bool, error) {
	toTransfer := bufferSize

	for toTransfer > 0 {
		win, err := p.dev.MmapBegin(toTransfer)
		if err != nil {
			// A failed begin leaves no window to commit; recover and
			// skip the rest of the transfer.
			if _, rerr := p.recover(causeFromError(err)); rerr != nil {
				return true, rerr
			}
			*stopped = true
			return false, nil
		}

		if win.Frames == 0 {
			// Legal: the driver has nothing to grant yet. Re-enter the
			// state check without invoking the callback.
			return false, nil
		}

		data, derr := p.wrapWindow(win)
		if derr != nil {
			return true, derr
		}

		start := time.Now()
		p.callback(data)
		p.observer.ObserveWindow(win.Frames, uint64(time.Since(start).Nanoseconds()))

		committed, err := p.dev.MmapCommit(win.Offset, win.Frames)
		if err != nil {
			p.observer.ObserveCommit(0, false)
			if _, rerr := p.recover(causeFromError(err)); rerr != nil {
				return true, rerr
			}
			*stopped = true
			return false, nil
		}

		if committed != win.Frames {
			// A partial commit means the ring position moved under us:
			// the stream underran between begin and commit.
			p.observer.ObserveCommit(committed, false)
			if _, rerr := p.recover(causeXrun); rerr != nil {
				return true, rerr
			}
			*stopped = true
			return false, nil
		}

		p.observer.ObserveCommit(committed, true)
		toTransfer -= committed
	}

	return false, nil
}

// wrapWindow builds the per-iteration data descriptor over a granted window.
func (p *Player) wrapWindow(win Window) (*audio.Data, error) {
	access := p.dev.AccessPattern()

	data := &audio.Data{
		Frames:   win.Frames,
		Channels: p.dev.Channels(),
		Format:   p.dev.Format(),
		Access:   access,
	}

	if access == audio.Interleaved {
		if win.Bytes == nil {
			return nil, NewError("mmap_begin", KindUnexpected, "driver granted a window with no area")
		}
		data.Bytes = win.Bytes[:win.Frames*p.dev.BytesPerFrame()]
		return data, nil
	}

	if len(win.Planes) != p.dev.Channels() {
		return nil, NewError("mmap_begin", KindUnexpected, "driver granted a window with missing channel areas")
	}
	width := p.dev.BytesPerFrame() / p.dev.Channels()
	planes := make([][]byte, len(win.Planes))
	for ch, plane := range win.Planes {
		if plane == nil {
			return nil, NewError("mmap_begin", KindUnexpected, "driver granted a window with a nil channel area")
		}
		planes[ch] = plane[:win.Frames*width]
	}
	data.Planes = planes
	return data, nil
}

// recover resolves an xrun or suspend condition in place. It reports whether
// the stream was re-prepared (the caller must then hold the stream stopped
// until the start gate fires again) and returns a fatal error when the
// condition could not be cleared.
func (p *Player) recover(cause string) (prepared bool, err error) {
	switch cause {
	case causeXrun:
		if p.logger != nil {
			p.logger.Debugf("recovering from xrun")
		}
		if err := p.dev.Prepare(); err != nil {
			p.observer.ObserveRecovery(causeXrun, false)
			return false, fatal("prepare", KindXrun, err)
		}
		p.observer.ObserveRecovery(causeXrun, true)
		return true, nil

	case causeSuspended:
		if p.logger != nil {
			p.logger.Debugf("recovering from suspend")
		}
		backoff := constants.ResumeInitialBackoff
		for attempt := 0; attempt < constants.ResumeMaxRetries; attempt++ {
			err := p.dev.Resume()
			if err == nil {
				p.observer.ObserveRecovery(causeSuspended, true)
				return false, nil
			}
			if errors.Is(err, syscall.EAGAIN) {
				p.sleep(backoff)
				backoff *= 2
				if backoff > constants.ResumeMaxBackoff {
					backoff = constants.ResumeMaxBackoff
				}
				continue
			}

			// Resume refused outright; fall back to a prepare as for an
			// xrun.
			if perr := p.dev.Prepare(); perr != nil {
				p.observer.ObserveRecovery(causeSuspended, false)
				return false, fatal("prepare", KindXrun, perr)
			}
			p.observer.ObserveRecovery(causeSuspended, true)
			return true, nil
		}

		p.observer.ObserveRecovery(causeSuspended, false)
		return false, NewError("resume", KindTimeout, "resume stuck in EAGAIN")

	default:
		return false, NewError("recover", KindUnexpected, "unknown recovery cause "+cause)
	}
}

// causeFromError maps a device error to a recovery cause. ESTRPIPE marks a
// suspended stream; everything else is treated as xrun-class.
func causeFromError(err error) string {
	if errors.Is(err, syscall.ESTRPIPE) {
		return causeSuspended
	}
	return causeXrun
}

// fatal builds the surfaced error for an unrecoverable condition, keeping
// the kernel errno when the device error carries one.
func fatal(op string, kind ErrorKind, inner error) *Error {
	e := &Error{
		Op:    op,
		Kind:  kind,
		Msg:   inner.Error(),
		Inner: inner,
	}
	var errno syscall.Errno
	if errors.As(inner, &errno) {
		e.Errno = errno
	}
	return e
}
