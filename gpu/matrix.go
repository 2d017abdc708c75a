package gpu

// Matrix is a 3x3 row-major transform applied to normalized texture
// coordinates (u, v, 1). Buffers that wrap a texture compose their
// crop/scale regions into one of these instead of copying pixels.
type Matrix [9]float32

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// Mul returns m * other (other is applied first).
func (m Matrix) Mul(other Matrix) Matrix {
	var out Matrix
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			var sum float32
			for k := 0; k < 3; k++ {
				sum += m[row*3+k] * other[k*3+col]
			}
			out[row*3+col] = sum
		}
	}
	return out
}

// CropScale builds the transform that maps the unit square onto the
// region (x, y, w, h) of a texW x texH texture.
func CropScale(x, y, w, h, texW, texH int) Matrix {
	if texW <= 0 || texH <= 0 {
		return Identity()
	}
	sx := float32(w) / float32(texW)
	sy := float32(h) / float32(texH)
	tx := float32(x) / float32(texW)
	ty := float32(y) / float32(texH)
	return Matrix{
		sx, 0, tx,
		0, sy, ty,
		0, 0, 1,
	}
}

// Apply maps the texture coordinate (u, v) through the transform.
func (m Matrix) Apply(u, v float32) (float32, float32) {
	ou := m[0]*u + m[1]*v + m[2]
	ov := m[3]*u + m[4]*v + m[5]
	return ou, ov
}

// IsIdentity reports whether the transform is the identity.
func (m Matrix) IsIdentity() bool {
	return m == Identity()
}
