// Package gpu models the texture side of a GL/EGL driver boundary:
// contexts that belong to the same share group can see each other's
// textures, which is what lets an encoder import a frame produced by the
// caller's rendering context without taking that context over.
package gpu

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/kataras/golog"
)

var logger = golog.Child("[gpu]")

var (
	ErrContextReleased = errors.New("gpu: context released")
	ErrTextureDeleted  = errors.New("gpu: texture deleted or unknown")
)

// TextureKind distinguishes plain 2D textures from external/imported
// images (the equivalent of an OES external texture).
type TextureKind int

const (
	TextureRGBA TextureKind = iota
	TextureExternal
)

func (k TextureKind) String() string {
	switch k {
	case TextureRGBA:
		return "rgba"
	case TextureExternal:
		return "external"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type texture struct {
	kind   TextureKind
	width  int
	height int
	pix    []byte // RGBA, width*4 stride
}

// shareGroup owns the texture store common to a context and everything
// created via NewSharedContext. All access is serialized on mu.
type shareGroup struct {
	mu       sync.Mutex
	nextID   uint32
	textures map[uint32]*texture
}

// Context is a handle into a share group. The zero value is not usable;
// create one with NewContext or NewSharedContext.
type Context struct {
	group *shareGroup

	mu       sync.Mutex
	released bool
}

// NewContext creates a context with a fresh share group.
func NewContext() *Context {
	return &Context{
		group: &shareGroup{
			nextID:   1,
			textures: make(map[uint32]*texture),
		},
	}
}

// NewSharedContext creates a context that joins the share group of the
// given context, so textures created in either are visible to both.
func NewSharedContext(share *Context) (*Context, error) {
	if share == nil || share.group == nil {
		return nil, errors.New("gpu: nil share context")
	}
	share.mu.Lock()
	released := share.released
	share.mu.Unlock()
	if released {
		return nil, ErrContextReleased
	}
	return &Context{group: share.group}, nil
}

// SharesWith reports whether both contexts belong to the same share group.
func (c *Context) SharesWith(other *Context) bool {
	return c != nil && other != nil && c.group != nil && c.group == other.group
}

func (c *Context) usable() error {
	if c == nil || c.group == nil {
		return errors.New("gpu: nil context")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return ErrContextReleased
	}
	return nil
}

// CreateTexture allocates a w x h texture and returns its id.
func (c *Context) CreateTexture(kind TextureKind, width, height int) (uint32, error) {
	if err := c.usable(); err != nil {
		return 0, err
	}
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("gpu: invalid texture dimensions %dx%d", width, height)
	}
	g := c.group
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++
	g.textures[id] = &texture{
		kind:   kind,
		width:  width,
		height: height,
		pix:    make([]byte, width*height*4),
	}
	return id, nil
}

// UploadTexture replaces the texture contents with the given RGBA image.
// The image bounds must match the texture dimensions.
func (c *Context) UploadTexture(id uint32, img *image.RGBA) error {
	if err := c.usable(); err != nil {
		return err
	}
	if img == nil {
		return errors.New("gpu: nil image")
	}
	g := c.group
	g.mu.Lock()
	defer g.mu.Unlock()
	tex, ok := g.textures[id]
	if !ok {
		return ErrTextureDeleted
	}
	width := img.Rect.Dx()
	height := img.Rect.Dy()
	if width != tex.width || height != tex.height {
		return fmt.Errorf("gpu: upload %dx%d into %dx%d texture", width, height, tex.width, tex.height)
	}
	rowBytes := width * 4
	src := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y)
	for y := 0; y < height; y++ {
		copy(tex.pix[y*rowBytes:(y+1)*rowBytes], img.Pix[src:src+rowBytes])
		src += img.Stride
	}
	return nil
}

// ReadTexture copies the texture contents out as an RGBA image. The copy
// is independent of the texture; deleting the texture afterwards does not
// disturb it.
func (c *Context) ReadTexture(id uint32) (*image.RGBA, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	g := c.group
	g.mu.Lock()
	defer g.mu.Unlock()
	tex, ok := g.textures[id]
	if !ok {
		return nil, ErrTextureDeleted
	}
	out := image.NewRGBA(image.Rect(0, 0, tex.width, tex.height))
	copy(out.Pix, tex.pix)
	return out, nil
}

// TextureSize returns the dimensions of a live texture.
func (c *Context) TextureSize(id uint32) (int, int, error) {
	if err := c.usable(); err != nil {
		return 0, 0, err
	}
	g := c.group
	g.mu.Lock()
	defer g.mu.Unlock()
	tex, ok := g.textures[id]
	if !ok {
		return 0, 0, ErrTextureDeleted
	}
	return tex.width, tex.height, nil
}

// DeleteTexture frees the texture. Deleting an unknown id is a no-op, as
// it is in GL.
func (c *Context) DeleteTexture(id uint32) {
	if c.usable() != nil {
		return
	}
	g := c.group
	g.mu.Lock()
	delete(g.textures, id)
	g.mu.Unlock()
}

// Release marks the context unusable. Textures stay alive as long as any
// context in the share group still references the group.
func (c *Context) Release() {
	if c == nil {
		return
	}
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	c.mu.Unlock()
	logger.Debugf("context released")
}
