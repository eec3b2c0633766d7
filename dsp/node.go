// Package dsp provides the processing node abstraction invoked from the
// playback callback, plus a small set of built-in nodes. Nodes are plain
// interfaces dispatched once per render block; the Unit wrapper adds the
// atomic lifecycle status a controller thread can observe without locks.
//
// The realtime contract: Prepare may allocate and may be called repeatedly
// as render conditions change; Process runs on the audio thread and must not
// allocate, block or fail; Close releases resources exactly once.
package dsp

import (
	"sync/atomic"

	"github.com/dmgraves/go-alsapcm/audio"
)

// PrepareContext is a snapshot of the render conditions a node configures
// itself for.
type PrepareContext struct {
	BlockSize   int
	NumChannels int
	SampleRate  int
	Access      audio.Access
}

// ProcessContext carries the borrowed buffer a node reads and writes in
// place. The buffer is only valid for the duration of the call.
type ProcessContext[T audio.Sample] struct {
	Buffer audio.Buffer[T]
}

// Node is a DSP unit. Process must not be called before at least one
// successful Prepare.
type Node[T audio.Sample] interface {
	Prepare(ctx PrepareContext) error
	Process(ctx ProcessContext[T])
	Close() error
}

// Status is the lifecycle state of a wrapped node.
type Status int32

const (
	StatusInit      Status = iota // constructed, not yet prepared
	StatusReady                   // at least one successful Prepare
	StatusProcessed               // Process has run since becoming Ready
)

func (s Status) String() string {
	switch s {
	case StatusInit:
		return "init"
	case StatusReady:
		return "ready"
	case StatusProcessed:
		return "processed"
	}
	return "unknown"
}

// Unit wraps a Node with an atomic lifecycle status. The audio thread drives
// Prepare/Process; any other thread may read Status concurrently. Close is
// idempotent: only the first call reaches the node.
type Unit[T audio.Sample] struct {
	node   Node[T]
	status atomic.Int32
	closed atomic.Bool
}

// NewUnit wraps node. The unit starts in StatusInit.
func NewUnit[T audio.Sample](node Node[T]) *Unit[T] {
	return &Unit[T]{node: node}
}

// Prepare forwards to the node and transitions to StatusReady on success.
func (u *Unit[T]) Prepare(ctx PrepareContext) error {
	if err := u.node.Prepare(ctx); err != nil {
		return err
	}
	u.status.Store(int32(StatusReady))
	return nil
}

// Process forwards to the node and transitions to StatusProcessed.
func (u *Unit[T]) Process(ctx ProcessContext[T]) {
	u.node.Process(ctx)
	u.status.Store(int32(StatusProcessed))
}

// Close releases the node's resources. Calls after the first are no-ops.
func (u *Unit[T]) Close() error {
	if !u.closed.CompareAndSwap(false, true) {
		return nil
	}
	return u.node.Close()
}

// Status returns the current lifecycle state.
func (u *Unit[T]) Status() Status {
	return Status(u.status.Load())
}
