package constants

import "time"

// Default configuration constants
const (
	// DefaultBufferSize is the default PCM ring size in frames
	DefaultBufferSize = 1024

	// DefaultChannels is the default channel count
	DefaultChannels = 2

	// DefaultSampleRate is the default sample rate in Hz
	DefaultSampleRate = 44100

	// DefaultTimeoutMS is the default bounded wait on the PCM in milliseconds
	DefaultTimeoutMS = 1000

	// DefaultPeriods is the default number of periods in the ring
	DefaultPeriods = 4
)

// Suspend recovery constants
//
// A suspended device is resumed by polling snd_pcm_resume. The kernel
// answers EAGAIN while the resume is still in progress, so the loop sleeps
// between attempts with exponential backoff. The initial sleep is short to
// keep latency low on the common fast-resume case; the cap bounds the total
// wait on slow power-management paths.
const (
	// ResumeMaxRetries is the number of EAGAIN responses tolerated before
	// the recovery is declared a timeout.
	ResumeMaxRetries = 50

	// ResumeInitialBackoff is the first sleep between resume attempts.
	ResumeInitialBackoff = 100 * time.Microsecond

	// ResumeMaxBackoff caps the doubling backoff between resume attempts.
	ResumeMaxBackoff = 50 * time.Millisecond
)
