package frame

import (
	"image"
	"sync/atomic"

	"Vidra/gpu"

	"github.com/kataras/golog"
)

var logger = golog.Child("[frame]")

// TextureBuffer references a GPU-resident image by texture id instead of
// holding samples in process memory. GPU storage is not garbage
// collected, so the buffer is reference-counted explicitly: Retain before
// handing it to another owner, Release when done. When the count drops to
// zero the release hook runs (typically returning the texture to its
// producer).
type TextureBuffer struct {
	ctx       *gpu.Context
	id        uint32
	kind      gpu.TextureKind
	width     int
	height    int
	transform gpu.Matrix

	refs      int32
	onRelease func()
}

// NewTextureBuffer wraps an existing texture. The returned buffer holds
// one reference; onRelease may be nil.
func NewTextureBuffer(ctx *gpu.Context, kind gpu.TextureKind, id uint32, width, height int, transform gpu.Matrix, onRelease func()) *TextureBuffer {
	return &TextureBuffer{
		ctx:       ctx,
		id:        id,
		kind:      kind,
		width:     width,
		height:    height,
		transform: transform,
		refs:      1,
		onRelease: onRelease,
	}
}

// Width implements Buffer.
func (b *TextureBuffer) Width() int { return b.width }

// Height implements Buffer.
func (b *TextureBuffer) Height() int { return b.height }

// Kind reports whether the texture is a plain RGBA texture or an
// external image.
func (b *TextureBuffer) Kind() gpu.TextureKind { return b.kind }

// TextureID exposes the underlying texture handle.
func (b *TextureBuffer) TextureID() uint32 { return b.id }

// Transform returns the texture-coordinate transform to apply when
// sampling the buffer.
func (b *TextureBuffer) Transform() gpu.Matrix { return b.transform }

// Context returns the GPU context the texture lives in.
func (b *TextureBuffer) Context() *gpu.Context { return b.ctx }

// Retain implements Buffer.
func (b *TextureBuffer) Retain() {
	if atomic.AddInt32(&b.refs, 1) <= 1 {
		panic("frame: Retain on released TextureBuffer")
	}
}

// Release implements Buffer.
func (b *TextureBuffer) Release() {
	refs := atomic.AddInt32(&b.refs, -1)
	if refs < 0 {
		panic("frame: Release without matching Retain")
	}
	if refs == 0 && b.onRelease != nil {
		b.onRelease()
	}
}

// ToI420 reads the texture through the context and converts the sampled
// region to planar I420. The read happens immediately; the copy stays
// valid after the caller deletes the texture.
func (b *TextureBuffer) ToI420() *I420Buffer {
	if b == nil || b.ctx == nil {
		return nil
	}
	img, err := b.ctx.ReadTexture(b.id)
	if err != nil {
		logger.Warnf("texture %d read failed: %v", b.id, err)
		return nil
	}
	if !b.transform.IsIdentity() {
		img = sampleTransformed(img, b.transform, b.width, b.height)
	}
	return RGBAToI420(img)
}

// CropAndScale implements Buffer without touching pixels: the region is
// composed into the sampling transform and the underlying texture is
// retained until the derived buffer is released.
func (b *TextureBuffer) CropAndScale(x, y, w, h, outW, outH int) Buffer {
	if b == nil || w <= 0 || h <= 0 || outW <= 0 || outH <= 0 {
		return nil
	}
	b.Retain()
	return &TextureBuffer{
		ctx:       b.ctx,
		id:        b.id,
		kind:      b.kind,
		width:     outW,
		height:    outH,
		transform: b.transform.Mul(gpu.CropScale(x, y, w, h, b.width, b.height)),
		refs:      1,
		onRelease: b.Release,
	}
}

// sampleTransformed resolves a non-identity transform on the CPU with
// nearest sampling at output pixel centers.
func sampleTransformed(src *image.RGBA, m gpu.Matrix, outW, outH int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, outW, outH))
	srcW := src.Rect.Dx()
	srcH := src.Rect.Dy()
	for row := 0; row < outH; row++ {
		v := (float32(row) + 0.5) / float32(outH)
		for col := 0; col < outW; col++ {
			u := (float32(col) + 0.5) / float32(outW)
			su, sv := m.Apply(u, v)
			sx := int(su * float32(srcW))
			sy := int(sv * float32(srcH))
			if sx < 0 {
				sx = 0
			} else if sx >= srcW {
				sx = srcW - 1
			}
			if sy < 0 {
				sy = 0
			} else if sy >= srcH {
				sy = srcH - 1
			}
			srcOff := src.PixOffset(src.Rect.Min.X+sx, src.Rect.Min.Y+sy)
			dstOff := out.PixOffset(col, row)
			copy(out.Pix[dstOff:dstOff+4], src.Pix[srcOff:srcOff+4])
		}
	}
	return out
}

var _ Buffer = (*I420Buffer)(nil)
var _ Buffer = (*TextureBuffer)(nil)
