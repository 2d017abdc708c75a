// Package frame carries the video frames an encoder session accepts:
// either CPU-resident planar I420 buffers or GPU-resident texture
// buffers. Both variants share one capability set so the session does
// not care which family it was handed.
package frame

// Buffer is the pixel storage behind a Frame. Texture-backed buffers
// reference GPU memory and are reference-counted explicitly; planar
// buffers live in ordinary Go memory and treat Retain/Release as no-ops.
type Buffer interface {
	Width() int
	Height() int

	// ToI420 materializes a CPU-readable planar copy. For buffers that
	// already hold planar data this is the identity.
	ToI420() *I420Buffer

	// CropAndScale derives a new buffer of the same family covering the
	// (x, y, w, h) region of this buffer, scaled to outW x outH.
	CropAndScale(x, y, w, h, outW, outH int) Buffer

	Retain()
	Release()
}

// Frame pairs a buffer with its capture metadata. The buffer's lifetime
// stays with the caller; the session copies or imports what it needs
// before Encode returns.
type Frame struct {
	Buffer      Buffer
	Rotation    int // degrees clockwise: 0, 90, 180 or 270
	TimestampNs int64
}

// NewFrame wraps a buffer with rotation and capture timestamp.
func NewFrame(buf Buffer, rotation int, timestampNs int64) *Frame {
	return &Frame{
		Buffer:      buf,
		Rotation:    rotation,
		TimestampNs: timestampNs,
	}
}

// Width returns the buffer width, or 0 for a frame without a buffer.
func (f *Frame) Width() int {
	if f == nil || f.Buffer == nil {
		return 0
	}
	return f.Buffer.Width()
}

// Height returns the buffer height, or 0 for a frame without a buffer.
func (f *Frame) Height() int {
	if f == nil || f.Buffer == nil {
		return 0
	}
	return f.Buffer.Height()
}

// Retain increments the underlying buffer's reference count.
func (f *Frame) Retain() {
	if f != nil && f.Buffer != nil {
		f.Buffer.Retain()
	}
}

// Release decrements the underlying buffer's reference count.
func (f *Frame) Release() {
	if f != nil && f.Buffer != nil {
		f.Buffer.Release()
	}
}
