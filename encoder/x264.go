//go:build cgo

package encoder

import (
	"bytes"
	"fmt"
	"image"

	"Vidra/codec"
	"Vidra/codec/frame"

	"github.com/gen2brain/x264-go"
)

type x264Factory struct{}

func registerX264Backend(m *Manager) {
	if m == nil {
		return
	}
	m.registerBackend(&x264Factory{})
}

func (x264Factory) Capability() Capability {
	return Capability{
		Name:        "x264-h264",
		Codec:       "h264",
		Hardware:    false,
		Description: "libx264 H.264 encoder (baseline, zerolatency)",
		Params: map[string]string{
			"profile": "baseline",
			"tune":    "zerolatency",
		},
	}
}

func (x264Factory) Open(settings codec.Settings) (backendInstance, error) {
	if !settings.Valid() {
		return nil, fmt.Errorf("x264: invalid settings %+v", settings)
	}
	// libx264 wants mod-2 dimensions for 4:2:0 input.
	if settings.Width%2 != 0 || settings.Height%2 != 0 {
		return nil, fmt.Errorf("x264: dimensions must be even, got %dx%d", settings.Width, settings.Height)
	}
	inst := &x264Instance{
		width:       settings.Width,
		height:      settings.Height,
		fps:         settings.FPS,
		bitrateKbps: settings.BitrateKbps,
	}
	if err := inst.open(); err != nil {
		return nil, err
	}
	return inst, nil
}

type x264Instance struct {
	width       int
	height      int
	fps         int
	bitrateKbps int

	buffer bytes.Buffer
	enc    *x264.Encoder
	frames int
	reopen bool
	closed bool
}

func (e *x264Instance) open() error {
	e.buffer.Reset()
	opts := x264.Options{
		Width:     e.width,
		Height:    e.height,
		FrameRate: e.fps,
		Tune:      "zerolatency",
		Preset:    "veryfast",
		Profile:   "baseline",
		LogLevel:  x264.LogWarning,
	}
	enc, err := x264.NewEncoder(&e.buffer, &opts)
	if err != nil {
		return fmt.Errorf("x264: encoder init failed: %w", err)
	}
	e.enc = enc
	e.frames = 0
	return nil
}

// Encode implements backendInstance. This libx264 binding has no
// per-frame IDR control, so a key-frame request on anything but the
// first frame reinitializes the stream; the first frame out of a fresh
// encoder is always an IDR.
func (e *x264Instance) Encode(buf *frame.I420Buffer, forceKey bool) ([]byte, bool, error) {
	if e == nil || e.closed {
		return nil, false, fmt.Errorf("x264: encoder closed")
	}
	if buf == nil || buf.W != e.width || buf.H != e.height {
		return nil, false, fmt.Errorf("x264: frame dimensions mismatch")
	}
	if e.reopen || (forceKey && e.frames > 0) {
		if err := e.reset(); err != nil {
			return nil, false, err
		}
	}
	img := &image.YCbCr{
		Y:              buf.Y,
		Cb:             buf.U,
		Cr:             buf.V,
		YStride:        buf.StrideY,
		CStride:        buf.StrideU,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, buf.W, buf.H),
	}
	e.buffer.Reset()
	if err := e.enc.Encode(img); err != nil {
		return nil, false, fmt.Errorf("x264: encode failed: %w", err)
	}
	if err := e.enc.Flush(); err != nil {
		return nil, false, fmt.Errorf("x264: flush failed: %w", err)
	}
	e.frames++
	payload := append([]byte(nil), e.buffer.Bytes()...)
	return payload, containsIDR(payload), nil
}

func (e *x264Instance) reset() error {
	if e.enc != nil {
		if err := e.enc.Close(); err != nil {
			logger.Debugf("x264 close before reopen: %v", err)
		}
	}
	e.reopen = false
	return e.open()
}

// SetRates implements backendInstance. The binding has no live
// reconfiguration, so new rates take effect at the next stream restart.
func (e *x264Instance) SetRates(bitrateKbps, fps int) error {
	if bitrateKbps <= 0 || fps <= 0 {
		return fmt.Errorf("x264: invalid rates %d kbps @ %d fps", bitrateKbps, fps)
	}
	e.bitrateKbps = bitrateKbps
	e.fps = fps
	e.reopen = true
	return nil
}

func (e *x264Instance) Close() error {
	if e == nil || e.closed {
		return nil
	}
	e.closed = true
	if e.enc != nil {
		return e.enc.Close()
	}
	return nil
}

// containsIDR scans Annex B NAL units for an IDR slice (type 5).
func containsIDR(payload []byte) bool {
	for i := 0; i+3 < len(payload); i++ {
		if payload[i] != 0 || payload[i+1] != 0 {
			continue
		}
		var header byte
		if payload[i+2] == 1 && i+3 < len(payload) {
			header = payload[i+3]
		} else if payload[i+2] == 0 && i+4 < len(payload) && payload[i+3] == 1 {
			header = payload[i+4]
		} else {
			continue
		}
		if header&0x1F == 5 {
			return true
		}
	}
	return false
}
