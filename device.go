// Package alsapcm drives a Linux kernel sound device through the ALSA PCM
// mmap interface. A Player owns the realtime playback loop: it services the
// memory-mapped ring so the kernel never starves, recovers from xruns and
// suspensions, and hands successive writable windows to a user callback.
// Processing graphs built from the dsp package run inside that callback.
package alsapcm

import "github.com/dmgraves/go-alsapcm/internal/interfaces"

// State mirrors the kernel PCM runtime states.
type State = interfaces.State

// Re-export state constants for the public API
const (
	StateOpen         = interfaces.StateOpen
	StateSetup        = interfaces.StateSetup
	StatePrepared     = interfaces.StatePrepared
	StateRunning      = interfaces.StateRunning
	StateXrun         = interfaces.StateXrun
	StateDraining     = interfaces.StateDraining
	StatePaused       = interfaces.StatePaused
	StateSuspended    = interfaces.StateSuspended
	StateDisconnected = interfaces.StateDisconnected
)

// Window is a writable range of frames in the PCM ring granted by
// Device.MmapBegin and released by Device.MmapCommit.
type Window = interfaces.Window

// Device is the prepared PCM handle the playback loop drives. Hardware and
// software parameters are committed before the loop sees the device; the
// internal/hw package produces one for real hardware, and MockDevice stands
// in for tests. The loop borrows the handle; the owner closes it.
type Device = interfaces.Device

// Logger is the optional logging interface consumed by the Player.
type Logger = interfaces.Logger
