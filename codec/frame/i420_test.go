package frame

import "testing"

func TestAllocateI420(t *testing.T) {
	b := AllocateI420(7, 5)
	if b == nil {
		t.Fatalf("allocation failed")
	}
	if b.W != 7 || b.H != 5 {
		t.Fatalf("dims %dx%d", b.W, b.H)
	}
	if len(b.Y) != 35 || len(b.U) != 12 || len(b.V) != 12 {
		t.Fatalf("plane sizes %d/%d/%d", len(b.Y), len(b.U), len(b.V))
	}
	if b.StrideY != 7 || b.StrideU != 4 || b.StrideV != 4 {
		t.Fatalf("strides %d/%d/%d", b.StrideY, b.StrideU, b.StrideV)
	}
	if AllocateI420(0, 5) != nil || AllocateI420(5, -1) != nil {
		t.Fatalf("degenerate dims must not allocate")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	b := AllocateI420(4, 4)
	b.Fill(100, 110, 120)
	c := b.Clone()
	b.Y[0] = 0
	if c.Y[0] != 100 || c.U[0] != 110 || c.V[0] != 120 {
		t.Fatalf("clone shares storage with the source")
	}
}

func TestCropKeepsRegion(t *testing.T) {
	b := AllocateI420(8, 8)
	b.Fill(10, 128, 128)
	// Paint the bottom-right 4x4 luma quadrant.
	for row := 4; row < 8; row++ {
		for col := 4; col < 8; col++ {
			b.Y[row*b.StrideY+col] = 200
		}
	}

	out := b.CropAndScale(4, 4, 4, 4, 4, 4)
	cropped, ok := out.(*I420Buffer)
	if !ok {
		t.Fatalf("expected planar result, got %T", out)
	}
	if cropped.W != 4 || cropped.H != 4 {
		t.Fatalf("cropped dims %dx%d", cropped.W, cropped.H)
	}
	for i, y := range cropped.Y {
		if y != 200 {
			t.Fatalf("luma[%d] = %d, want 200", i, y)
		}
	}
}

func TestCropOriginRoundsDownToEven(t *testing.T) {
	b := AllocateI420(8, 8)
	out := b.CropAndScale(3, 5, 4, 2, 4, 2).(*I420Buffer)
	if out.W != 4 || out.H != 2 {
		t.Fatalf("dims %dx%d", out.W, out.H)
	}
	// An odd origin would misalign the chroma grid; the call clamps to
	// (2, 4), which still fits the source.
	if b.CropAndScale(7, 7, 4, 4, 4, 4) == nil {
		t.Fatalf("clamped crop should still produce a buffer")
	}
}

func TestScaleDownPreservesFlatColor(t *testing.T) {
	b := AllocateI420(64, 48)
	b.Fill(150, 90, 170)
	out := b.CropAndScale(0, 0, 64, 48, 32, 24).(*I420Buffer)
	if out.W != 32 || out.H != 24 {
		t.Fatalf("dims %dx%d", out.W, out.H)
	}
	for _, y := range out.Y {
		if y != 150 {
			t.Fatalf("flat luma changed to %d", y)
		}
	}
	for i := range out.U {
		if out.U[i] != 90 || out.V[i] != 170 {
			t.Fatalf("flat chroma changed to %d/%d", out.U[i], out.V[i])
		}
	}
}

func TestFrameDelegatesToBuffer(t *testing.T) {
	b := AllocateI420(16, 8)
	f := NewFrame(b, 90, 20000)
	if f.Width() != 16 || f.Height() != 8 {
		t.Fatalf("frame dims %dx%d", f.Width(), f.Height())
	}
	if f.Rotation != 90 || f.TimestampNs != 20000 {
		t.Fatalf("metadata %d/%d", f.Rotation, f.TimestampNs)
	}
}
