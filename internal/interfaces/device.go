// Package interfaces provides internal interface definitions for go-alsapcm.
// These are separate from the public interfaces to avoid circular imports
// between the main package and internal packages. The public package aliases
// the types defined here, so the two surfaces stay structurally identical.
package interfaces

import "github.com/dmgraves/go-alsapcm/audio"

// State mirrors the kernel PCM runtime states (SNDRV_PCM_STATE_*).
type State int

const (
	StateOpen State = iota
	StateSetup
	StatePrepared
	StateRunning
	StateXrun
	StateDraining
	StatePaused
	StateSuspended
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateSetup:
		return "setup"
	case StatePrepared:
		return "prepared"
	case StateRunning:
		return "running"
	case StateXrun:
		return "xrun"
	case StateDraining:
		return "draining"
	case StatePaused:
		return "paused"
	case StateSuspended:
		return "suspended"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Window is a writable range of frames in the PCM ring granted by MmapBegin.
// It stays valid until the matching MmapCommit; the driver may grant fewer
// frames than requested.
type Window struct {
	Offset int      // frame position in the ring
	Frames int      // frames granted
	Bytes  []byte   // interleaved region, Frames*BytesPerFrame long
	Planes [][]byte // per-channel regions for noninterleaved access
}

// Device is the prepared PCM handle the playback loop drives. All hardware
// and software parameters are committed before the loop sees the device, so
// Start is always legal. Operations that fail return an error wrapping the
// kernel errno.
type Device interface {
	// State reads the kernel's runtime state for the stream.
	State() (State, error)

	// AvailUpdate returns the number of frames the application may write.
	AvailUpdate() (int, error)

	// Start begins stream processing.
	Start() error

	// Prepare returns the stream to a startable state after an xrun.
	Prepare() error

	// Resume restarts a suspended stream. Returns EAGAIN while the resume
	// is still in progress.
	Resume() error

	// Wait blocks until the PCM is ready for more data, bounded by
	// timeout in milliseconds.
	Wait(timeoutMS int) error

	// MmapBegin requests a writable window of up to frames frames.
	MmapBegin(frames int) (Window, error)

	// MmapCommit releases a window back to the driver and returns the
	// number of frames actually committed.
	MmapCommit(offset, frames int) (int, error)

	// Negotiated parameters. Immutable after preparation.
	BufferSize() int
	Channels() int
	BytesPerFrame() int
	TimeoutMS() int
	SampleRate() int
	Format() audio.Format
	AccessPattern() audio.Access
}

// Logger interface for optional logging.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Observer interface for metrics collection.
// Implementations must be thread-safe; methods are called from the audio
// thread between render windows, never inside the callback.
type Observer interface {
	ObserveWindow(frames int, callbackNs uint64)
	ObserveCommit(frames int, success bool)
	ObserveRecovery(cause string, success bool)
	ObserveStart(success bool)
}
