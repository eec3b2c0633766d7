package audio

import "unsafe"

// Data is the descriptor handed to the render callback. It wraps the raw
// region granted by the driver together with the negotiated format so the
// callback signature stays decoupled from the device handle. A Data is built
// fresh for every render window and must not be retained after the callback
// returns.
type Data struct {
	Bytes    []byte   // interleaved region; nil when Access == NonInterleaved
	Planes   [][]byte // per-channel regions; nil when Access == Interleaved
	Frames   int
	Channels int
	Format   Format
	Access   Access
}

// Samples reinterprets the descriptor's raw region as a typed buffer view.
// T must match the device format's sample width; picking a mismatched T
// misaddresses the region. The returned view shares the driver memory and
// inherits the descriptor's lifetime.
func Samples[T Sample](d *Data) Buffer[T] {
	var zero T
	width := int(unsafe.Sizeof(zero))

	if d.Access == Interleaved {
		n := len(d.Bytes) / width
		if n == 0 {
			return NewInterleaved([]T{}, max(d.Channels, 1))
		}
		s := unsafe.Slice((*T)(unsafe.Pointer(&d.Bytes[0])), n)
		return NewInterleaved(s, d.Channels)
	}

	planes := make([][]T, len(d.Planes))
	for ch, raw := range d.Planes {
		n := len(raw) / width
		if n == 0 {
			planes[ch] = []T{}
			continue
		}
		planes[ch] = unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), n)
	}
	return NewPlanar(planes)
}
