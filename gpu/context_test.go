package gpu

import (
	"image"
	"testing"
)

func TestTextureLifecycle(t *testing.T) {
	ctx := NewContext()
	id, err := ctx.CreateTexture(TextureRGBA, 4, 2)
	if err != nil {
		t.Fatalf("create texture: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0x11
		img.Pix[i+1] = 0x22
		img.Pix[i+2] = 0x33
		img.Pix[i+3] = 0xFF
	}
	if err := ctx.UploadTexture(id, img); err != nil {
		t.Fatalf("upload: %v", err)
	}

	out, err := ctx.ReadTexture(id)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Pix[0] != 0x11 || out.Pix[1] != 0x22 || out.Pix[2] != 0x33 {
		t.Fatalf("unexpected pixel %v", out.Pix[:4])
	}

	// The read is a copy; mutating it must not touch the texture.
	out.Pix[0] = 0xFF
	again, err := ctx.ReadTexture(id)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if again.Pix[0] != 0x11 {
		t.Fatalf("texture contents changed by reading")
	}

	ctx.DeleteTexture(id)
	if _, err := ctx.ReadTexture(id); err != ErrTextureDeleted {
		t.Fatalf("expected ErrTextureDeleted, got %v", err)
	}
}

func TestUploadDimensionMismatch(t *testing.T) {
	ctx := NewContext()
	id, err := ctx.CreateTexture(TextureRGBA, 4, 4)
	if err != nil {
		t.Fatalf("create texture: %v", err)
	}
	if err := ctx.UploadTexture(id, image.NewRGBA(image.Rect(0, 0, 2, 2))); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestSharedContextSeesTextures(t *testing.T) {
	caller := NewContext()
	enc, err := NewSharedContext(caller)
	if err != nil {
		t.Fatalf("shared context: %v", err)
	}
	if !caller.SharesWith(enc) {
		t.Fatalf("contexts should share a group")
	}
	if caller.SharesWith(NewContext()) {
		t.Fatalf("fresh context must not share the group")
	}

	id, err := caller.CreateTexture(TextureExternal, 2, 2)
	if err != nil {
		t.Fatalf("create texture: %v", err)
	}
	if _, err := enc.ReadTexture(id); err != nil {
		t.Fatalf("shared context read: %v", err)
	}

	w, h, err := enc.TextureSize(id)
	if err != nil || w != 2 || h != 2 {
		t.Fatalf("texture size = %dx%d, %v", w, h, err)
	}
}

func TestReleasedContextRejectsOperations(t *testing.T) {
	ctx := NewContext()
	ctx.Release()
	ctx.Release() // idempotent
	if _, err := ctx.CreateTexture(TextureRGBA, 2, 2); err != ErrContextReleased {
		t.Fatalf("expected ErrContextReleased, got %v", err)
	}
	if _, err := NewSharedContext(ctx); err != ErrContextReleased {
		t.Fatalf("expected ErrContextReleased for shared creation, got %v", err)
	}
}
