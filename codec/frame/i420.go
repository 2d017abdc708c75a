package frame

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"
)

// I420Buffer holds planar 4:2:0 samples with explicit per-plane strides.
type I420Buffer struct {
	W, H    int
	Y, U, V []byte
	StrideY int
	StrideU int
	StrideV int
}

// AllocateI420 returns a tightly packed, zeroed I420 buffer. Zeroed
// chroma decodes as green; callers that care should Fill it.
func AllocateI420(width, height int) *I420Buffer {
	if width <= 0 || height <= 0 {
		return nil
	}
	chromaW := (width + 1) / 2
	chromaH := (height + 1) / 2
	return &I420Buffer{
		W:       width,
		H:       height,
		Y:       make([]byte, width*height),
		U:       make([]byte, chromaW*chromaH),
		V:       make([]byte, chromaW*chromaH),
		StrideY: width,
		StrideU: chromaW,
		StrideV: chromaW,
	}
}

// Fill sets every pixel to the given YUV value.
func (b *I420Buffer) Fill(y, u, v byte) {
	for i := range b.Y {
		b.Y[i] = y
	}
	for i := range b.U {
		b.U[i] = u
	}
	for i := range b.V {
		b.V[i] = v
	}
}

// Width implements Buffer.
func (b *I420Buffer) Width() int { return b.W }

// Height implements Buffer.
func (b *I420Buffer) Height() int { return b.H }

// ToI420 implements Buffer; planar data is already CPU-readable.
func (b *I420Buffer) ToI420() *I420Buffer { return b }

// Retain implements Buffer. Planar buffers are garbage-collected.
func (b *I420Buffer) Retain() {}

// Release implements Buffer. Planar buffers are garbage-collected.
func (b *I420Buffer) Release() {}

// Clone copies the buffer into tightly packed planes.
func (b *I420Buffer) Clone() *I420Buffer {
	if b == nil {
		return nil
	}
	dst := AllocateI420(b.W, b.H)
	copyPlane(dst.Y, dst.StrideY, b.Y, b.StrideY, b.W, b.H)
	chromaW := (b.W + 1) / 2
	chromaH := (b.H + 1) / 2
	copyPlane(dst.U, dst.StrideU, b.U, b.StrideU, chromaW, chromaH)
	copyPlane(dst.V, dst.StrideV, b.V, b.StrideV, chromaW, chromaH)
	return dst
}

// CropAndScale implements Buffer: crops the (x, y, w, h) region and
// scales it to outW x outH into a freshly allocated planar buffer. Odd
// crop origins are rounded down to even so the chroma planes stay
// aligned with the luma grid.
func (b *I420Buffer) CropAndScale(x, y, w, h, outW, outH int) Buffer {
	if b == nil || w <= 0 || h <= 0 || outW <= 0 || outH <= 0 {
		return nil
	}
	x &^= 1
	y &^= 1
	if x+w > b.W {
		w = b.W - x
	}
	if y+h > b.H {
		h = b.H - y
	}
	if w <= 0 || h <= 0 {
		return nil
	}

	cropped := AllocateI420(w, h)
	copyPlaneRegion(cropped.Y, cropped.StrideY, b.Y, b.StrideY, x, y, w, h)
	chromaW := (w + 1) / 2
	chromaH := (h + 1) / 2
	copyPlaneRegion(cropped.U, cropped.StrideU, b.U, b.StrideU, x/2, y/2, chromaW, chromaH)
	copyPlaneRegion(cropped.V, cropped.StrideV, b.V, b.StrideV, x/2, y/2, chromaW, chromaH)
	if w == outW && h == outH {
		return cropped
	}

	out := AllocateI420(outW, outH)
	outChromaW := (outW + 1) / 2
	outChromaH := (outH + 1) / 2
	scalePlane(out.Y, out.StrideY, outW, outH, cropped.Y, cropped.StrideY, w, h)
	scalePlane(out.U, out.StrideU, outChromaW, outChromaH, cropped.U, cropped.StrideU, chromaW, chromaH)
	scalePlane(out.V, out.StrideV, outChromaW, outChromaH, cropped.V, cropped.StrideV, chromaW, chromaH)
	return out
}

func (b *I420Buffer) String() string {
	return fmt.Sprintf("i420 %dx%d", b.W, b.H)
}

func copyPlane(dst []byte, dstStride int, src []byte, srcStride, width, height int) {
	for row := 0; row < height; row++ {
		copy(dst[row*dstStride:row*dstStride+width], src[row*srcStride:row*srcStride+width])
	}
}

func copyPlaneRegion(dst []byte, dstStride int, src []byte, srcStride, x, y, width, height int) {
	for row := 0; row < height; row++ {
		srcOff := (y+row)*srcStride + x
		copy(dst[row*dstStride:row*dstStride+width], src[srcOff:srcOff+width])
	}
}

// scalePlane resamples a single plane with a bilinear filter. Each plane
// is wrapped as a grayscale image so the resize library can do the
// filtering.
func scalePlane(dst []byte, dstStride, dstW, dstH int, src []byte, srcStride, srcW, srcH int) {
	gray := &image.Gray{
		Pix:    src,
		Stride: srcStride,
		Rect:   image.Rect(0, 0, srcW, srcH),
	}
	scaled := resize.Resize(uint(dstW), uint(dstH), gray, resize.Bilinear)
	result, ok := scaled.(*image.Gray)
	if !ok {
		// resize keeps the Gray color model; fall back to the generic
		// accessor if that ever changes.
		for row := 0; row < dstH; row++ {
			for col := 0; col < dstW; col++ {
				r, _, _, _ := scaled.At(col, row).RGBA()
				dst[row*dstStride+col] = byte(r >> 8)
			}
		}
		return
	}
	copyPlane(dst, dstStride, result.Pix, result.Stride, dstW, dstH)
}
