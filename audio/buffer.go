package audio

// Buffer is a typed, channel-addressable view over a region supplied by the
// driver. It does not own the underlying memory: a buffer obtained inside a
// render window is valid only until that window is committed, and retaining
// it past the callback is a programming error. Buffer is a small value; the
// copies share the same backing region.
type Buffer[T Sample] struct {
	interleaved []T   // frames*channels samples when access == Interleaved
	planes      [][]T // one region per channel when access == NonInterleaved
	channels    int
	frames      int
	access      Access
}

// NewInterleaved wraps an interleaved sample region. len(samples) must be a
// multiple of channels.
func NewInterleaved[T Sample](samples []T, channels int) Buffer[T] {
	if channels <= 0 {
		panic("audio: channels must be positive")
	}
	if len(samples)%channels != 0 {
		panic("audio: interleaved region is not a whole number of frames")
	}
	return Buffer[T]{
		interleaved: samples,
		channels:    channels,
		frames:      len(samples) / channels,
		access:      Interleaved,
	}
}

// NewPlanar wraps one region per channel. All planes must have equal length.
func NewPlanar[T Sample](planes [][]T) Buffer[T] {
	if len(planes) == 0 {
		panic("audio: planar buffer needs at least one channel")
	}
	frames := len(planes[0])
	for _, p := range planes[1:] {
		if len(p) != frames {
			panic("audio: planar channel regions differ in length")
		}
	}
	return Buffer[T]{
		planes:   planes,
		channels: len(planes),
		frames:   frames,
		access:   NonInterleaved,
	}
}

// NumChannels returns the channel count of the view.
func (b Buffer[T]) NumChannels() int { return b.channels }

// NumFrames returns the frame count of the view.
func (b Buffer[T]) NumFrames() int { return b.frames }

// AccessPattern returns the channel layout of the view.
func (b Buffer[T]) AccessPattern() Access { return b.access }

// Sample returns the sample for channel ch at the given frame.
func (b Buffer[T]) Sample(ch, frame int) T {
	if b.access == Interleaved {
		return b.interleaved[frame*b.channels+ch]
	}
	return b.planes[ch][frame]
}

// SetSample stores a sample for channel ch at the given frame.
func (b Buffer[T]) SetSample(ch, frame int, v T) {
	if b.access == Interleaved {
		b.interleaved[frame*b.channels+ch] = v
	} else {
		b.planes[ch][frame] = v
	}
}

// Raw returns the interleaved sample region, or nil for planar buffers.
func (b Buffer[T]) Raw() []T { return b.interleaved }

// Plane returns channel ch's region for planar buffers, or nil otherwise.
func (b Buffer[T]) Plane(ch int) []T {
	if b.access != NonInterleaved {
		return nil
	}
	return b.planes[ch]
}

// Slice returns a view over the first frames frames, sharing the backing
// region. For interleaved buffers this performs no allocation, which keeps
// it usable on the render path.
func (b Buffer[T]) Slice(frames int) Buffer[T] {
	if frames > b.frames {
		panic("audio: slice beyond buffer length")
	}
	if b.access == Interleaved {
		return Buffer[T]{
			interleaved: b.interleaved[:frames*b.channels],
			channels:    b.channels,
			frames:      frames,
			access:      Interleaved,
		}
	}
	planes := make([][]T, len(b.planes))
	for ch, p := range b.planes {
		planes[ch] = p[:frames]
	}
	return Buffer[T]{
		planes:   planes,
		channels: b.channels,
		frames:   frames,
		access:   NonInterleaved,
	}
}

// Fill writes v to every sample of every channel.
func (b Buffer[T]) Fill(v T) {
	if b.access == Interleaved {
		for i := range b.interleaved {
			b.interleaved[i] = v
		}
		return
	}
	for _, p := range b.planes {
		for i := range p {
			p[i] = v
		}
	}
}
