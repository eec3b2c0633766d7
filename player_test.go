package alsapcm

import (
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/dmgraves/go-alsapcm/audio"
)

const testBufferSize = 1024

// newTestPlayer wires a Player to a mock device with a counting callback.
// The returned recorder keeps the window size and channel count of every
// invocation.
func newTestPlayer(t *testing.T, dev *MockDevice) (*Player, *callbackRecorder) {
	t.Helper()
	rec := &callbackRecorder{}
	player, err := NewPlayer(dev, rec.callback, nil)
	if err != nil {
		t.Fatalf("NewPlayer failed: %v", err)
	}
	return player, rec
}

type callbackRecorder struct {
	mu       sync.Mutex
	windows  []int
	channels []int
}

func (r *callbackRecorder) callback(data *audio.Data) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows = append(r.windows, data.Frames)
	r.channels = append(r.channels, data.Channels)

	// Fill the window with silence, as a well-behaved callback must.
	for i := range data.Bytes {
		data.Bytes[i] = 0
	}
}

func (r *callbackRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}

func (r *callbackRecorder) windowSizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.windows))
	copy(out, r.windows)
	return out
}

func TestNewPlayerValidation(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)

	if _, err := NewPlayer(nil, func(*audio.Data) {}, nil); !IsKind(err, KindInvalidParameters) {
		t.Errorf("nil device: got %v, want KindInvalidParameters", err)
	}
	if _, err := NewPlayer(dev, nil, nil); !IsKind(err, KindInvalidParameters) {
		t.Errorf("nil callback: got %v, want KindInvalidParameters", err)
	}
}

// Scenario: state running, a full buffer available, one window granted in
// full, committed in full.
func TestHappyPathSingleWindow(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, rec := newTestPlayer(t, dev)

	dev.AfterCommit = func(total int) {
		if total >= testBufferSize {
			player.Stop()
		}
	}

	if err := player.Run(); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	if got := rec.windowSizes(); len(got) != 1 || got[0] != testBufferSize {
		t.Errorf("callback windows = %v, want [%d]", got, testBufferSize)
	}
	if rec.channels[0] != 2 {
		t.Errorf("callback saw %d channels, want 2", rec.channels[0])
	}
	if dev.CommittedFrames() != testBufferSize {
		t.Errorf("committed frames = %d, want %d", dev.CommittedFrames(), testBufferSize)
	}
	if dev.StartCalls() != 0 {
		t.Errorf("Start called %d times with a full buffer available", dev.StartCalls())
	}

	snap := player.Metrics().Snapshot()
	if snap.Windows != 1 || snap.FramesCommitted != testBufferSize {
		t.Errorf("metrics: windows=%d frames=%d, want 1/%d", snap.Windows, snap.FramesCommitted, testBufferSize)
	}
}

// Scenario: the driver grants 256 of a requested 1024; the loop re-enters
// the inner transfer with the remainder.
func TestShortGrant(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, rec := newTestPlayer(t, dev)

	dev.PushBegin(256, nil)
	dev.AfterCommit = func(total int) {
		if total >= testBufferSize {
			player.Stop()
		}
	}

	if err := player.Run(); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	want := []int{256, 768}
	got := rec.windowSizes()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("callback windows = %v, want %v", got, want)
	}
	if dev.CommittedFrames() != testBufferSize {
		t.Errorf("committed frames = %d, want %d", dev.CommittedFrames(), testBufferSize)
	}
}

// Scenario: commit fails with EPIPE mid-transfer; the loop prepares, stops
// the stream, and abandons the window without further commits.
func TestXrunMidTransfer(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, rec := newTestPlayer(t, dev)

	dev.PushCommit(0, syscall.EPIPE)
	player2Windows := func(total int) {
		if total >= testBufferSize {
			player.Stop()
		}
	}
	dev.AfterCommit = player2Windows

	if err := player.Run(); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	if dev.PrepareCalls() != 1 {
		t.Errorf("Prepare called %d times, want 1", dev.PrepareCalls())
	}
	// The aborted window contributed nothing; only the post-recovery window
	// reached the device.
	if dev.CommittedFrames() != testBufferSize {
		t.Errorf("committed frames = %d, want %d", dev.CommittedFrames(), testBufferSize)
	}
	if rec.count() != 2 {
		t.Errorf("callback invoked %d times, want 2", rec.count())
	}
}

// A commit that moves fewer frames than granted forces exactly one xrun
// recovery.
func TestShortCommitForcesXrunRecovery(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, _ := newTestPlayer(t, dev)

	dev.PushCommit(512, nil)
	dev.AfterCommit = func(total int) {
		// 512 from the short commit plus one full recovered window.
		if total >= 512+testBufferSize {
			player.Stop()
		}
	}

	if err := player.Run(); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	if dev.PrepareCalls() != 1 {
		t.Errorf("Prepare called %d times, want 1", dev.PrepareCalls())
	}

	snap := player.Metrics().Snapshot()
	if snap.ShortCommits != 1 {
		t.Errorf("ShortCommits = %d, want 1", snap.ShortCommits)
	}
	if snap.XrunRecoveries != 1 {
		t.Errorf("XrunRecoveries = %d, want 1", snap.XrunRecoveries)
	}
}

// Scenario: device reports SUSPENDED; resume answers EAGAIN once, then
// succeeds after a single backoff sleep. Prepare is never called.
func TestSuspendWithOneRetry(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, _ := newTestPlayer(t, dev)

	var sleeps []time.Duration
	player.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	dev.PushState(StateSuspended, nil)
	dev.PushResumeEAGAIN(1)
	dev.AfterCommit = func(total int) {
		if total >= testBufferSize {
			player.Stop()
		}
	}

	if err := player.Run(); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	if dev.ResumeCalls() != 2 {
		t.Errorf("Resume called %d times, want 2", dev.ResumeCalls())
	}
	if dev.PrepareCalls() != 0 {
		t.Errorf("Prepare called %d times, want 0", dev.PrepareCalls())
	}
	if len(sleeps) != 1 || sleeps[0] != 100*time.Microsecond {
		t.Errorf("backoff sleeps = %v, want [100µs]", sleeps)
	}
}

// Scenario: resume answers EAGAIN fifty consecutive times; the loop returns
// a timeout and never calls prepare.
func TestSuspendTimeout(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, rec := newTestPlayer(t, dev)

	var sleeps []time.Duration
	player.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	dev.PushState(StateSuspended, nil)
	dev.PushResumeEAGAIN(50)

	err := player.Run()
	if !IsKind(err, KindTimeout) {
		t.Fatalf("Run returned %v, want KindTimeout", err)
	}

	if dev.ResumeCalls() != 50 {
		t.Errorf("Resume called %d times, want 50", dev.ResumeCalls())
	}
	if dev.PrepareCalls() != 0 {
		t.Errorf("Prepare called %d times after timeout, want 0", dev.PrepareCalls())
	}
	if rec.count() != 0 {
		t.Errorf("callback invoked %d times during failed recovery", rec.count())
	}

	// Doubling from 100µs, capped at 50ms.
	if sleeps[0] != 100*time.Microsecond {
		t.Errorf("first sleep = %v, want 100µs", sleeps[0])
	}
	for i := 1; i < len(sleeps); i++ {
		if sleeps[i] > 50*time.Millisecond {
			t.Errorf("sleep %d = %v exceeds the 50ms cap", i, sleeps[i])
		}
		if sleeps[i] < sleeps[i-1] {
			t.Errorf("sleep %d = %v shrank from %v", i, sleeps[i], sleeps[i-1])
		}
	}
	if sleeps[len(sleeps)-1] != 50*time.Millisecond {
		t.Errorf("final sleep = %v, want the 50ms cap", sleeps[len(sleeps)-1])
	}
}

// A resume rejection that is not EAGAIN falls through to a prepare, exactly
// as an xrun would.
func TestSuspendFallsBackToPrepare(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, _ := newTestPlayer(t, dev)

	dev.PushState(StateSuspended, nil)
	dev.PushResumeErr(syscall.EIO)
	dev.AfterCommit = func(total int) {
		if total >= testBufferSize {
			player.Stop()
		}
	}

	if err := player.Run(); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}
	if dev.PrepareCalls() != 1 {
		t.Errorf("Prepare called %d times, want 1", dev.PrepareCalls())
	}
}

// Scenario: clean shutdown between iterations returns nil without aborting a
// window.
func TestCleanShutdown(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, _ := newTestPlayer(t, dev)

	dev.AfterCommit = func(total int) {
		if total >= 4*testBufferSize {
			player.Stop()
		}
	}

	if err := player.Run(); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}
	if dev.CommittedFrames() != 4*testBufferSize {
		t.Errorf("committed frames = %d, want %d", dev.CommittedFrames(), 4*testBufferSize)
	}
}

// A zero-frame grant does not invoke the callback and does not commit.
func TestZeroFrameGrant(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, rec := newTestPlayer(t, dev)

	dev.PushBegin(0, nil)
	dev.AfterCommit = func(total int) {
		if total >= testBufferSize {
			player.Stop()
		}
	}

	if err := player.Run(); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	if dev.BeginCalls() != 2 {
		t.Errorf("MmapBegin called %d times, want 2", dev.BeginCalls())
	}
	if dev.CommitCalls() != 1 {
		t.Errorf("MmapCommit called %d times, want 1", dev.CommitCalls())
	}
	if rec.count() != 1 {
		t.Errorf("callback invoked %d times, want 1", rec.count())
	}
}

// A failed MmapBegin recovers and skips the rest of the transfer instead of
// dereferencing a window that was never granted.
func TestBeginErrorSkipsWindow(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, rec := newTestPlayer(t, dev)

	dev.PushBegin(0, syscall.EPIPE)
	dev.AfterCommit = func(total int) {
		if total >= testBufferSize {
			player.Stop()
		}
	}

	if err := player.Run(); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}
	if dev.PrepareCalls() != 1 {
		t.Errorf("Prepare called %d times, want 1", dev.PrepareCalls())
	}
	if rec.count() != 1 {
		t.Errorf("callback invoked %d times, want 1", rec.count())
	}
}

// A granted window with no area is a broken driver invariant.
func TestNilAreaIsFatal(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, _ := newTestPlayer(t, dev)

	dev.PushBeginNilArea(testBufferSize)

	err := player.Run()
	if !IsKind(err, KindUnexpected) {
		t.Fatalf("Run returned %v, want KindUnexpected", err)
	}
	if dev.CommitCalls() != 0 {
		t.Errorf("MmapCommit called %d times on the fatal path, want 0", dev.CommitCalls())
	}
}

// An error from the state query is fatal.
func TestStateErrorIsFatal(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, _ := newTestPlayer(t, dev)

	dev.PushState(0, syscall.EBADFD)

	err := player.Run()
	if !IsKind(err, KindUnexpected) {
		t.Fatalf("Run returned %v, want KindUnexpected", err)
	}
}

// With less than a buffer available and the stream stopped, the loop starts
// the stream and delivers no frames until the next iteration.
func TestStartGate(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, rec := newTestPlayer(t, dev)

	dev.PushAvail(512, nil)
	dev.AfterCommit = func(total int) {
		if total >= testBufferSize {
			player.Stop()
		}
	}

	if err := player.Run(); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	if dev.StartCalls() != 1 {
		t.Errorf("Start called %d times, want 1", dev.StartCalls())
	}
	if rec.count() != 1 {
		t.Errorf("callback invoked %d times, want 1", rec.count())
	}

	snap := player.Metrics().Snapshot()
	if snap.Starts != 1 || snap.StartErrors != 0 {
		t.Errorf("metrics starts=%d errors=%d, want 1/0", snap.Starts, snap.StartErrors)
	}
}

func TestStartFailureIsFatal(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, _ := newTestPlayer(t, dev)

	dev.PushAvail(512, nil)
	dev.PushStartErr(syscall.EIO)

	err := player.Run()
	if !IsKind(err, KindStart) {
		t.Fatalf("Run returned %v, want KindStart", err)
	}
}

// Once started, a partial buffer routes through the wait gate.
func TestWaitGate(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, _ := newTestPlayer(t, dev)

	dev.PushAvail(512, nil) // start gate
	dev.PushAvail(512, nil) // wait gate
	dev.AfterCommit = func(total int) {
		if total >= testBufferSize {
			player.Stop()
		}
	}

	if err := player.Run(); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	if dev.StartCalls() != 1 {
		t.Errorf("Start called %d times, want 1", dev.StartCalls())
	}
	if dev.WaitCalls() != 1 {
		t.Errorf("Wait called %d times, want 1", dev.WaitCalls())
	}
}

// A failed wait recovers and holds the stream stopped.
func TestWaitErrorRecovers(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, _ := newTestPlayer(t, dev)

	dev.PushAvail(512, nil) // start gate
	dev.PushAvail(512, nil) // wait gate, fails
	dev.PushWaitErr(syscall.EPIPE)
	dev.PushAvail(512, nil) // stream is stopped again: start gate refires
	dev.AfterCommit = func(total int) {
		if total >= testBufferSize {
			player.Stop()
		}
	}

	if err := player.Run(); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	if dev.PrepareCalls() != 1 {
		t.Errorf("Prepare called %d times, want 1", dev.PrepareCalls())
	}
	if dev.StartCalls() != 2 {
		t.Errorf("Start called %d times, want 2 (restart after recovery)", dev.StartCalls())
	}
}

// An xrun reported by the state query is recovered and the stream restarted
// through the start gate.
func TestXrunStateRecoversAndRestarts(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, _ := newTestPlayer(t, dev)

	dev.PushState(StateXrun, nil)
	dev.PushAvail(0, nil) // after recovery: nothing available, stopped → start
	dev.AfterCommit = func(total int) {
		if total >= testBufferSize {
			player.Stop()
		}
	}

	if err := player.Run(); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	if dev.PrepareCalls() != 1 {
		t.Errorf("Prepare called %d times, want 1", dev.PrepareCalls())
	}
	if dev.StartCalls() != 1 {
		t.Errorf("Start called %d times, want 1", dev.StartCalls())
	}
}

func TestXrunPrepareFailureIsFatal(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, _ := newTestPlayer(t, dev)

	dev.PushState(StateXrun, nil)
	dev.PushPrepareErr(syscall.EIO)

	err := player.Run()
	if !IsKind(err, KindXrun) {
		t.Fatalf("Run returned %v, want KindXrun", err)
	}
}

// Noninterleaved devices deliver one region per channel; the callback view
// addresses them independently.
func TestPlanarWindow(t *testing.T) {
	dev := NewMockDevicePlanar(testBufferSize, 2, audio.Float32LE)

	var planeCounts []int
	callback := func(data *audio.Data) {
		planeCounts = append(planeCounts, len(data.Planes))
		buf := audio.Samples[float32](data)
		for frame := 0; frame < buf.NumFrames(); frame++ {
			buf.SetSample(0, frame, 0.25)
			buf.SetSample(1, frame, -0.25)
		}
	}

	player, err := NewPlayer(dev, callback, nil)
	if err != nil {
		t.Fatalf("NewPlayer failed: %v", err)
	}
	dev.AfterCommit = func(total int) {
		if total >= testBufferSize {
			player.Stop()
		}
	}

	if err := player.Run(); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}
	if len(planeCounts) != 1 || planeCounts[0] != 2 {
		t.Errorf("callback plane counts = %v, want [2]", planeCounts)
	}
}

// A negative avail_update recovers with the cause derived from the errno.
func TestAvailErrorRecovers(t *testing.T) {
	dev := NewMockDevice(testBufferSize, 2, audio.Float32LE)
	player, _ := newTestPlayer(t, dev)

	dev.PushAvail(0, syscall.EPIPE)
	dev.AfterCommit = func(total int) {
		if total >= testBufferSize {
			player.Stop()
		}
	}

	if err := player.Run(); err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}
	if dev.PrepareCalls() != 1 {
		t.Errorf("Prepare called %d times, want 1", dev.PrepareCalls())
	}
}
