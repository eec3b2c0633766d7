package alsapcm

import (
	"sync"
	"syscall"

	"github.com/dmgraves/go-alsapcm/audio"
)

// MockDevice provides a scripted implementation of Device for testing.
// Responses for each operation are queued with the Push helpers; once a
// queue is exhausted the device behaves like a healthy running stream:
// state running, a full buffer available, windows granted in full and
// commits accepted. Errors are plain syscall.Errno values, exactly what a
// real device surfaces.
type MockDevice struct {
	mu sync.Mutex

	// Negotiated parameters, fixed at construction
	bufferSize int
	channels   int
	frameBytes int
	timeoutMS  int
	rate       int
	format     audio.Format
	access     audio.Access

	ring    []byte
	planes  [][]byte
	applPos int

	stateQueue  []stateStep
	availQueue  []availStep
	startQueue  []error
	prepareQueue []error
	resumeQueue []error
	waitQueue   []error
	beginQueue  []beginStep
	commitQueue []commitStep

	startCalls   int
	prepareCalls int
	resumeCalls  int
	waitCalls    int
	beginCalls   int
	commitCalls  int

	committed int

	// AfterCommit, when set, runs after every successful commit with the
	// total frames committed so far. Tests use it to stop the loop at a
	// deterministic point.
	AfterCommit func(total int)
}

type stateStep struct {
	state State
	err   error
}

type availStep struct {
	n   int
	err error
}

type beginStep struct {
	frames  int
	err     error
	nilArea bool
}

type commitStep struct {
	n   int
	err error
}

// NewMockDevice creates a mock playback device with the given ring geometry.
func NewMockDevice(bufferSize, channels int, format audio.Format) *MockDevice {
	frameBytes := channels * format.BytesPerSample()
	return &MockDevice{
		bufferSize: bufferSize,
		channels:   channels,
		frameBytes: frameBytes,
		timeoutMS:  100,
		rate:       44100,
		format:     format,
		access:     audio.Interleaved,
		ring:       make([]byte, bufferSize*frameBytes),
	}
}

// NewMockDevicePlanar creates a mock device with noninterleaved access:
// each channel has its own contiguous ring region.
func NewMockDevicePlanar(bufferSize, channels int, format audio.Format) *MockDevice {
	m := NewMockDevice(bufferSize, channels, format)
	m.access = audio.NonInterleaved
	m.ring = nil
	m.planes = make([][]byte, channels)
	for ch := range m.planes {
		m.planes[ch] = make([]byte, bufferSize*format.BytesPerSample())
	}
	return m
}

// Script helpers. Each pushed response is consumed by exactly one call.

func (m *MockDevice) PushState(s State, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateQueue = append(m.stateQueue, stateStep{s, err})
}

func (m *MockDevice) PushAvail(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.availQueue = append(m.availQueue, availStep{n, err})
}

func (m *MockDevice) PushStartErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startQueue = append(m.startQueue, err)
}

func (m *MockDevice) PushPrepareErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prepareQueue = append(m.prepareQueue, err)
}

func (m *MockDevice) PushResumeErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumeQueue = append(m.resumeQueue, err)
}

// PushResumeEAGAIN queues n consecutive EAGAIN responses from Resume.
func (m *MockDevice) PushResumeEAGAIN(n int) {
	for i := 0; i < n; i++ {
		m.PushResumeErr(syscall.EAGAIN)
	}
}

func (m *MockDevice) PushWaitErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waitQueue = append(m.waitQueue, err)
}

func (m *MockDevice) PushBegin(frames int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beginQueue = append(m.beginQueue, beginStep{frames: frames, err: err})
}

// PushBeginNilArea queues a grant whose area pointer is missing, which the
// loop must treat as a broken invariant.
func (m *MockDevice) PushBeginNilArea(frames int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beginQueue = append(m.beginQueue, beginStep{frames: frames, nilArea: true})
}

func (m *MockDevice) PushCommit(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitQueue = append(m.commitQueue, commitStep{n, err})
}

// Device implementation

func (m *MockDevice) State() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stateQueue) > 0 {
		step := m.stateQueue[0]
		m.stateQueue = m.stateQueue[1:]
		return step.state, step.err
	}
	return StateRunning, nil
}

func (m *MockDevice) AvailUpdate() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.availQueue) > 0 {
		step := m.availQueue[0]
		m.availQueue = m.availQueue[1:]
		return step.n, step.err
	}
	return m.bufferSize, nil
}

func (m *MockDevice) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls++
	if len(m.startQueue) > 0 {
		err := m.startQueue[0]
		m.startQueue = m.startQueue[1:]
		return err
	}
	return nil
}

func (m *MockDevice) Prepare() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prepareCalls++
	if len(m.prepareQueue) > 0 {
		err := m.prepareQueue[0]
		m.prepareQueue = m.prepareQueue[1:]
		return err
	}
	return nil
}

func (m *MockDevice) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumeCalls++
	if len(m.resumeQueue) > 0 {
		err := m.resumeQueue[0]
		m.resumeQueue = m.resumeQueue[1:]
		return err
	}
	return nil
}

func (m *MockDevice) Wait(timeoutMS int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waitCalls++
	if len(m.waitQueue) > 0 {
		err := m.waitQueue[0]
		m.waitQueue = m.waitQueue[1:]
		return err
	}
	return nil
}

func (m *MockDevice) MmapBegin(frames int) (Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beginCalls++

	granted := frames
	var nilArea bool
	if len(m.beginQueue) > 0 {
		step := m.beginQueue[0]
		m.beginQueue = m.beginQueue[1:]
		if step.err != nil {
			return Window{}, step.err
		}
		granted = step.frames
		nilArea = step.nilArea
	}
	if granted > m.bufferSize {
		granted = m.bufferSize
	}

	win := Window{
		Offset: m.applPos % m.bufferSize,
		Frames: granted,
	}
	if !nilArea && granted > 0 {
		if m.access == audio.NonInterleaved {
			sampleBytes := m.format.BytesPerSample()
			win.Planes = make([][]byte, m.channels)
			for ch := range win.Planes {
				win.Planes[ch] = m.planes[ch][:granted*sampleBytes]
			}
		} else {
			win.Bytes = m.ring[:granted*m.frameBytes]
		}
	}
	return win, nil
}

func (m *MockDevice) MmapCommit(offset, frames int) (int, error) {
	m.mu.Lock()
	m.commitCalls++

	n := frames
	if len(m.commitQueue) > 0 {
		step := m.commitQueue[0]
		m.commitQueue = m.commitQueue[1:]
		if step.err != nil {
			m.mu.Unlock()
			return 0, step.err
		}
		n = step.n
	}

	m.applPos += n
	m.committed += n
	total := m.committed
	hook := m.AfterCommit
	m.mu.Unlock()

	if hook != nil {
		hook(total)
	}
	return n, nil
}

// Accessors

func (m *MockDevice) BufferSize() int             { return m.bufferSize }
func (m *MockDevice) Channels() int               { return m.channels }
func (m *MockDevice) BytesPerFrame() int          { return m.frameBytes }
func (m *MockDevice) TimeoutMS() int              { return m.timeoutMS }
func (m *MockDevice) SampleRate() int             { return m.rate }
func (m *MockDevice) Format() audio.Format        { return m.format }
func (m *MockDevice) AccessPattern() audio.Access { return m.access }

// Call counters for verification

func (m *MockDevice) StartCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCalls
}

func (m *MockDevice) PrepareCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prepareCalls
}

func (m *MockDevice) ResumeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resumeCalls
}

func (m *MockDevice) WaitCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waitCalls
}

func (m *MockDevice) BeginCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beginCalls
}

func (m *MockDevice) CommitCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commitCalls
}

// CommittedFrames returns the total frames committed so far.
func (m *MockDevice) CommittedFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committed
}

// Ring exposes the backing ring for content assertions.
func (m *MockDevice) Ring() []byte {
	return m.ring
}

var _ Device = (*MockDevice)(nil)
