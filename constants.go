package alsapcm

import "github.com/dmgraves/go-alsapcm/internal/constants"

// Re-export constants for public API
const (
	DefaultBufferSize    = constants.DefaultBufferSize
	DefaultChannels      = constants.DefaultChannels
	DefaultSampleRate    = constants.DefaultSampleRate
	DefaultTimeoutMS     = constants.DefaultTimeoutMS
	DefaultPeriods       = constants.DefaultPeriods
	ResumeMaxRetries     = constants.ResumeMaxRetries
	ResumeInitialBackoff = constants.ResumeInitialBackoff
	ResumeMaxBackoff     = constants.ResumeMaxBackoff
)
