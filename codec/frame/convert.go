package frame

import "image"

// BT.601 studio-swing conversion, the same coefficients hardware codecs
// default to for SD/HD content handed over without colorspace metadata.

// RGBAToI420 converts an RGBA image into a planar I420 buffer.
func RGBAToI420(img *image.RGBA) *I420Buffer {
	if img == nil {
		return nil
	}
	width := img.Rect.Dx()
	height := img.Rect.Dy()
	out := AllocateI420(width, height)
	if out == nil {
		return nil
	}
	for row := 0; row < height; row++ {
		src := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+row)
		for col := 0; col < width; col++ {
			r := int32(img.Pix[src])
			g := int32(img.Pix[src+1])
			b := int32(img.Pix[src+2])
			src += 4
			out.Y[row*out.StrideY+col] = clampByte(((66*r + 129*g + 25*b) >> 8) + 16)
			if row%2 == 0 && col%2 == 0 {
				ci := (row/2)*out.StrideU + col/2
				out.U[ci] = clampByte(((-38*r - 74*g + 112*b) >> 8) + 128)
				out.V[ci] = clampByte(((112*r - 94*g - 18*b) >> 8) + 128)
			}
		}
	}
	return out
}

// I420ToRGBA converts a planar buffer back to RGBA, mainly for preview
// and test paths.
func I420ToRGBA(buf *I420Buffer) *image.RGBA {
	if buf == nil {
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, buf.W, buf.H))
	for row := 0; row < buf.H; row++ {
		dst := row * img.Stride
		for col := 0; col < buf.W; col++ {
			y := int32(buf.Y[row*buf.StrideY+col]) - 16
			u := int32(buf.U[(row/2)*buf.StrideU+col/2]) - 128
			v := int32(buf.V[(row/2)*buf.StrideV+col/2]) - 128
			img.Pix[dst] = clampByte((298*y + 409*v + 128) >> 8)
			img.Pix[dst+1] = clampByte((298*y - 100*u - 208*v + 128) >> 8)
			img.Pix[dst+2] = clampByte((298*y + 516*u + 128) >> 8)
			img.Pix[dst+3] = 0xFF
			dst += 4
		}
	}
	return img
}

func clampByte(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
