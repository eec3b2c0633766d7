package alsapcm

import (
	"math"
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the callback latency histogram buckets in
// nanoseconds. Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks performance and operational statistics for a playback stream
type Metrics struct {
	// Render window counters
	Windows         atomic.Uint64 // Callback invocations
	FramesCommitted atomic.Uint64 // Frames handed back to the driver
	ShortCommits    atomic.Uint64 // Commits that returned fewer frames than granted

	// Recovery counters
	XrunRecoveries    atomic.Uint64 // Recoveries entered with cause xrun
	SuspendRecoveries atomic.Uint64 // Recoveries entered with cause suspended
	RecoveryFailures  atomic.Uint64 // Recoveries that could not be resolved

	// Stream lifecycle counters
	Starts      atomic.Uint64 // snd_pcm_start issued
	StartErrors atomic.Uint64 // snd_pcm_start failures

	// Callback latency tracking
	TotalCallbackNs atomic.Uint64 // Cumulative callback latency in nanoseconds
	CallbackCount   atomic.Uint64 // Callback invocations measured

	// Latency histogram buckets (cumulative counts)
	// Each bucket[i] contains the count of callbacks with latency <= LatencyBuckets[i]
	CallbackLatency [numLatencyBuckets]atomic.Uint64

	// Stream lifecycle
	StartTime atomic.Int64 // Loop start timestamp (UnixNano)
	StopTime  atomic.Int64 // Loop stop timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordWindow records one callback invocation over a render window
func (m *Metrics) RecordWindow(frames int, callbackNs uint64) {
	m.Windows.Add(1)
	m.TotalCallbackNs.Add(callbackNs)
	m.CallbackCount.Add(1)

	// Update histogram buckets (cumulative)
	for i, bucket := range LatencyBuckets {
		if callbackNs <= bucket {
			m.CallbackLatency[i].Add(1)
		}
	}
}

// RecordCommit records a window commit
func (m *Metrics) RecordCommit(frames int, success bool) {
	if success {
		m.FramesCommitted.Add(uint64(frames))
	} else {
		m.ShortCommits.Add(1)
	}
}

// RecordRecovery records a recovery attempt for the given cause
func (m *Metrics) RecordRecovery(cause string, success bool) {
	switch cause {
	case "xrun":
		m.XrunRecoveries.Add(1)
	case "suspended":
		m.SuspendRecoveries.Add(1)
	}
	if !success {
		m.RecoveryFailures.Add(1)
	}
}

// RecordStart records a stream start attempt
func (m *Metrics) RecordStart(success bool) {
	m.Starts.Add(1)
	if !success {
		m.StartErrors.Add(1)
	}
}

// Stop marks the stream as stopped
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	// Render windows
	Windows         uint64
	FramesCommitted uint64
	ShortCommits    uint64

	// Recoveries
	XrunRecoveries    uint64
	SuspendRecoveries uint64
	RecoveryFailures  uint64

	// Lifecycle
	Starts      uint64
	StartErrors uint64
	UptimeNs    uint64

	// Callback latency
	AvgCallbackNs    uint64
	CallbackP50Ns    uint64 // 50th percentile (median)
	CallbackP99Ns    uint64 // 99th percentile
	CallbackP999Ns   uint64 // 99.9th percentile
	CallbackHistogram [numLatencyBuckets]uint64

	// Computed statistics
	WindowsPerSecond float64
	FramesPerSecond  float64
}

// Snapshot creates a point-in-time snapshot of metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Windows:           m.Windows.Load(),
		FramesCommitted:   m.FramesCommitted.Load(),
		ShortCommits:      m.ShortCommits.Load(),
		XrunRecoveries:    m.XrunRecoveries.Load(),
		SuspendRecoveries: m.SuspendRecoveries.Load(),
		RecoveryFailures:  m.RecoveryFailures.Load(),
		Starts:            m.Starts.Load(),
		StartErrors:       m.StartErrors.Load(),
	}

	// Calculate average callback latency
	totalNs := m.TotalCallbackNs.Load()
	count := m.CallbackCount.Load()
	if count > 0 {
		snap.AvgCallbackNs = totalNs / count
	}

	// Calculate uptime
	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	// Calculate rates
	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.WindowsPerSecond = float64(snap.Windows) / uptimeSeconds
		snap.FramesPerSecond = float64(snap.FramesCommitted) / uptimeSeconds
	}

	// Copy histogram bucket counts
	for i := 0; i < numLatencyBuckets; i++ {
		snap.CallbackHistogram[i] = m.CallbackLatency[i].Load()
	}

	// Calculate percentiles from histogram
	if count > 0 {
		snap.CallbackP50Ns = m.calculatePercentile(0.50)
		snap.CallbackP99Ns = m.calculatePercentile(0.99)
		snap.CallbackP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates a latency percentile from the cumulative
// histogram. Returns the upper bound of the bucket containing the percentile.
func (m *Metrics) calculatePercentile(p float64) uint64 {
	count := m.CallbackCount.Load()
	if count == 0 {
		return 0
	}

	target := uint64(math.Ceil(float64(count) * p))
	if target == 0 {
		target = 1
	}

	for i := 0; i < numLatencyBuckets; i++ {
		if m.CallbackLatency[i].Load() >= target {
			return LatencyBuckets[i]
		}
	}

	// Beyond the largest bucket
	return LatencyBuckets[numLatencyBuckets-1]
}

// Observer receives loop events for metrics collection.
// Implementations must be thread-safe; methods are called from the audio
// thread between render windows, never inside the callback.
type Observer interface {
	ObserveWindow(frames int, callbackNs uint64)
	ObserveCommit(frames int, success bool)
	ObserveRecovery(cause string, success bool)
	ObserveStart(success bool)
}

// MetricsObserver adapts a Metrics instance to the Observer interface
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer recording into metrics
func NewMetricsObserver(metrics *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: metrics}
}

func (o *MetricsObserver) ObserveWindow(frames int, callbackNs uint64) {
	o.metrics.RecordWindow(frames, callbackNs)
}

func (o *MetricsObserver) ObserveCommit(frames int, success bool) {
	o.metrics.RecordCommit(frames, success)
}

func (o *MetricsObserver) ObserveRecovery(cause string, success bool) {
	o.metrics.RecordRecovery(cause, success)
}

func (o *MetricsObserver) ObserveStart(success bool) {
	o.metrics.RecordStart(success)
}

// NoOpObserver discards all observations
type NoOpObserver struct{}

func (NoOpObserver) ObserveWindow(frames int, callbackNs uint64) {}
func (NoOpObserver) ObserveCommit(frames int, success bool)      {}
func (NoOpObserver) ObserveRecovery(cause string, success bool)  {}
func (NoOpObserver) ObserveStart(success bool)                   {}
