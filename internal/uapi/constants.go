// Package uapi provides Linux kernel UAPI definitions for the ALSA PCM
// interface (sound/asound.h)
package uapi

// PCM runtime states (snd_pcm_state_t)
const (
	SNDRV_PCM_STATE_OPEN         = 0
	SNDRV_PCM_STATE_SETUP        = 1
	SNDRV_PCM_STATE_PREPARED     = 2
	SNDRV_PCM_STATE_RUNNING      = 3
	SNDRV_PCM_STATE_XRUN         = 4
	SNDRV_PCM_STATE_DRAINING     = 5
	SNDRV_PCM_STATE_PAUSED       = 6
	SNDRV_PCM_STATE_SUSPENDED    = 7
	SNDRV_PCM_STATE_DISCONNECTED = 8
)

// Sample formats (snd_pcm_format_t), little-endian subset
const (
	SNDRV_PCM_FORMAT_S8        = 0
	SNDRV_PCM_FORMAT_U8        = 1
	SNDRV_PCM_FORMAT_S16_LE    = 2
	SNDRV_PCM_FORMAT_S24_LE    = 6
	SNDRV_PCM_FORMAT_S32_LE    = 10
	SNDRV_PCM_FORMAT_FLOAT_LE  = 14
	SNDRV_PCM_FORMAT_FLOAT64_LE = 16
)

// Access types (snd_pcm_access_t)
const (
	SNDRV_PCM_ACCESS_MMAP_INTERLEAVED    = 0
	SNDRV_PCM_ACCESS_MMAP_NONINTERLEAVED = 1
	SNDRV_PCM_ACCESS_MMAP_COMPLEX        = 2
	SNDRV_PCM_ACCESS_RW_INTERLEAVED      = 3
	SNDRV_PCM_ACCESS_RW_NONINTERLEAVED   = 4
)

// Hardware parameter indices. Masks and intervals live in separate arrays;
// the index into each array is the parameter number minus the first of its
// class.
const (
	SNDRV_PCM_HW_PARAM_ACCESS    = 0
	SNDRV_PCM_HW_PARAM_FORMAT    = 1
	SNDRV_PCM_HW_PARAM_SUBFORMAT = 2

	SNDRV_PCM_HW_PARAM_FIRST_MASK = SNDRV_PCM_HW_PARAM_ACCESS
	SNDRV_PCM_HW_PARAM_LAST_MASK  = SNDRV_PCM_HW_PARAM_SUBFORMAT

	SNDRV_PCM_HW_PARAM_SAMPLE_BITS  = 8
	SNDRV_PCM_HW_PARAM_FRAME_BITS   = 9
	SNDRV_PCM_HW_PARAM_CHANNELS     = 10
	SNDRV_PCM_HW_PARAM_RATE         = 11
	SNDRV_PCM_HW_PARAM_PERIOD_TIME  = 12
	SNDRV_PCM_HW_PARAM_PERIOD_SIZE  = 13
	SNDRV_PCM_HW_PARAM_PERIOD_BYTES = 14
	SNDRV_PCM_HW_PARAM_PERIODS      = 15
	SNDRV_PCM_HW_PARAM_BUFFER_TIME  = 16
	SNDRV_PCM_HW_PARAM_BUFFER_SIZE  = 17
	SNDRV_PCM_HW_PARAM_BUFFER_BYTES = 18
	SNDRV_PCM_HW_PARAM_TICK_TIME    = 19

	SNDRV_PCM_HW_PARAM_FIRST_INTERVAL = SNDRV_PCM_HW_PARAM_SAMPLE_BITS
	SNDRV_PCM_HW_PARAM_LAST_INTERVAL  = SNDRV_PCM_HW_PARAM_TICK_TIME
)

// Interval flag bits (bitfields in struct snd_interval)
const (
	SNDRV_PCM_INTERVAL_OPENMIN = 1 << 0
	SNDRV_PCM_INTERVAL_OPENMAX = 1 << 1
	SNDRV_PCM_INTERVAL_INTEGER = 1 << 2
	SNDRV_PCM_INTERVAL_EMPTY   = 1 << 3
)

// Mmap offsets for the status and control pages
const (
	SNDRV_PCM_MMAP_OFFSET_DATA    = 0x00000000
	SNDRV_PCM_MMAP_OFFSET_STATUS  = 0x80000000
	SNDRV_PCM_MMAP_OFFSET_CONTROL = 0x81000000
)

// Sync pointer request flags
const (
	SNDRV_PCM_SYNC_PTR_HWSYNC    = 1 << 0
	SNDRV_PCM_SYNC_PTR_APPL      = 1 << 1
	SNDRV_PCM_SYNC_PTR_AVAIL_MIN = 1 << 2
)

// PCM ioctl requests, 'A' command class
var (
	SNDRV_PCM_IOCTL_PVERSION  = ior('A', 0x00, 4)
	SNDRV_PCM_IOCTL_HW_REFINE = iowr('A', 0x10, SizeofHwParams)
	SNDRV_PCM_IOCTL_HW_PARAMS = iowr('A', 0x11, SizeofHwParams)
	SNDRV_PCM_IOCTL_HW_FREE   = io('A', 0x12)
	SNDRV_PCM_IOCTL_SW_PARAMS = iowr('A', 0x13, SizeofSwParams)
	SNDRV_PCM_IOCTL_HWSYNC    = io('A', 0x22)
	SNDRV_PCM_IOCTL_SYNC_PTR  = iowr('A', 0x23, SizeofSyncPtr)
	SNDRV_PCM_IOCTL_PREPARE   = io('A', 0x40)
	SNDRV_PCM_IOCTL_RESET     = io('A', 0x41)
	SNDRV_PCM_IOCTL_START     = io('A', 0x42)
	SNDRV_PCM_IOCTL_DROP      = io('A', 0x43)
	SNDRV_PCM_IOCTL_DRAIN     = io('A', 0x44)
	SNDRV_PCM_IOCTL_RESUME    = io('A', 0x47)
	SNDRV_PCM_IOCTL_XRUN      = io('A', 0x48)
)
