// Package agent wires the encoder SDK into a runnable capture service:
// it grabs display frames, pushes them through an encoder session as
// texture-backed frames, and fans the encoded stream out to websocket
// and WebRTC subscribers.
package agent

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"Vidra/codec"
	"Vidra/codec/frame"
	"Vidra/config"
	"Vidra/encoder"
	"Vidra/gpu"

	"github.com/kataras/golog"
	"github.com/kbinani/screenshot"
)

var logger = golog.Child("[agent]")

var ErrStreamUnavailable = errors.New("agent: no encoder available for streaming")

const subscriberQueueDepth = 4

// Agent owns the capture/encode pipeline and the encoded-frame fanout.
type Agent struct {
	cfg     *config.Config
	ctx     *gpu.Context
	factory *encoder.Factory

	mu      sync.Mutex
	enc     codec.VideoEncoder
	subs    map[int]chan codec.EncodedImage
	nextSub int
	running bool
	quit    chan struct{}
	done    chan struct{}

	keyReq int32

	viewers    *viewerSet
	signalling *signalController
	issuer     *iceCredentialIssuer
}

// New builds an agent around the given configuration. The GPU context
// created here is the caller-side context; the factory joins its share
// group so texture frames can be imported by the encoder.
func New(cfg *config.Config) (*Agent, error) {
	if cfg == nil {
		return nil, errors.New("agent: nil config")
	}
	ctx := gpu.NewContext()
	shared, err := gpu.NewSharedContext(ctx)
	if err != nil {
		return nil, err
	}
	a := &Agent{
		cfg:        cfg,
		ctx:        ctx,
		factory:    encoder.NewFactory(encoder.WithContext(shared)),
		subs:       make(map[int]chan codec.EncodedImage),
		viewers:    newViewerSet(),
		signalling: newSignalController(0),
		issuer:     newIceCredentialIssuer(cfg.WebRTC),
	}
	return a, nil
}

// Capabilities reports every codec capability known on this machine.
func (a *Agent) Capabilities() []encoder.Capability {
	return encoder.Instance().Capabilities()
}

// SupportedCodecs lists the codecs the agent can actually stream with.
func (a *Agent) SupportedCodecs() []codec.Info {
	if a == nil {
		return nil
	}
	return a.factory.SupportedCodecs()
}

// Start spins up the encoder session and the capture loop. When no
// encoder backend exists on this machine it returns
// ErrStreamUnavailable; the caller may still serve the API.
func (a *Agent) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}
	info, ok := a.pickCodec()
	if !ok {
		return ErrStreamUnavailable
	}
	enc, err := a.factory.CreateEncoder(info)
	if err != nil {
		return err
	}
	settings := codec.DefaultSettings()
	settings.Width = a.cfg.Width
	settings.Height = a.cfg.Height
	settings.FPS = a.cfg.FPS
	settings.BitrateKbps = a.cfg.BitrateKbps
	settings.AutomaticResize = true
	if status := enc.InitEncode(&settings, a.fanout); status != codec.StatusOK {
		return fmt.Errorf("agent: encoder init: %s", status)
	}
	a.enc = enc
	a.running = true
	a.quit = make(chan struct{})
	a.done = make(chan struct{})
	go a.captureLoop(a.quit, a.done)
	logger.Infof("streaming %s %dx%d@%dfps (%d kbps)",
		info.Name, settings.Width, settings.Height, settings.FPS, settings.BitrateKbps)
	return nil
}

func (a *Agent) pickCodec() (codec.Info, bool) {
	for _, info := range a.factory.SupportedCodecs() {
		if a.cfg.Codec == "" || info.Name == a.cfg.Codec {
			return info, true
		}
	}
	return codec.Info{}, false
}

// Stop tears the pipeline down. Safe to call repeatedly.
func (a *Agent) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	quit, done := a.quit, a.done
	enc := a.enc
	a.enc = nil
	a.mu.Unlock()

	close(quit)
	<-done
	if enc != nil {
		if status := enc.Release(); status != codec.StatusOK {
			logger.Warnf("encoder release: %s", status)
		}
	}
	a.viewers.closeAll()
	a.ctx.Release()
}

// Subscribe registers an encoded-frame sink and schedules a key frame so
// the new subscriber can start decoding immediately.
func (a *Agent) Subscribe() (int, <-chan codec.EncodedImage) {
	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	ch := make(chan codec.EncodedImage, subscriberQueueDepth)
	a.subs[id] = ch
	a.mu.Unlock()
	a.RequestKeyFrame()
	return id, ch
}

// Unsubscribe removes a sink and closes its channel.
func (a *Agent) Unsubscribe(id int) {
	a.mu.Lock()
	ch, ok := a.subs[id]
	if ok {
		delete(a.subs, id)
	}
	a.mu.Unlock()
	if ok {
		close(ch)
	}
}

// RequestKeyFrame asks the encoder to emit a key frame on the next
// capture.
func (a *Agent) RequestKeyFrame() {
	atomic.StoreInt32(&a.keyReq, 1)
}

// fanout is the session callback. It runs on the encoder worker, so it
// must not block: slow subscribers lose frames instead.
func (a *Agent) fanout(img codec.EncodedImage) {
	a.mu.Lock()
	for id, ch := range a.subs {
		select {
		case ch <- img:
		default:
			logger.Debugf("subscriber %d lagging, dropped frame pts=%d", id, img.TimestampNs)
		}
	}
	a.mu.Unlock()
	a.viewers.writeSample(img, a.cfg.FPS)
}

func (a *Agent) captureLoop(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := time.Second / time.Duration(a.cfg.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			if err := a.captureOne(); err != nil {
				logger.Debugf("capture: %v", err)
			}
		}
	}
}

// captureOne grabs one display frame, uploads it as a texture and
// submits a texture-backed frame. The texture is deleted as soon as
// Encode returns; the session has imported the contents by then.
func (a *Agent) captureOne() error {
	img, err := captureDisplay(a.cfg.Display)
	if err != nil {
		return err
	}
	width := img.Rect.Dx()
	height := img.Rect.Dy()
	id, err := a.ctx.CreateTexture(gpu.TextureRGBA, width, height)
	if err != nil {
		return err
	}
	if err := a.ctx.UploadTexture(id, img); err != nil {
		a.ctx.DeleteTexture(id)
		return err
	}
	buf := frame.NewTextureBuffer(a.ctx, gpu.TextureRGBA, id, width, height, gpu.Identity(), nil)
	f := frame.NewFrame(buf, 0, time.Now().UnixNano())
	info := &codec.EncodeInfo{}
	if atomic.CompareAndSwapInt32(&a.keyReq, 1, 0) {
		info.FrameTypes = []codec.FrameType{codec.FrameKey}
	}

	a.mu.Lock()
	enc := a.enc
	a.mu.Unlock()
	if enc == nil {
		a.ctx.DeleteTexture(id)
		return errors.New("agent: encoder gone")
	}
	status := enc.Encode(f, info)
	buf.Release()
	a.ctx.DeleteTexture(id)
	if status != codec.StatusOK && status != codec.StatusNoOutput {
		return fmt.Errorf("agent: encode: %s", status)
	}
	return nil
}

func captureDisplay(display int) (*image.RGBA, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, errors.New("agent: no active displays")
	}
	if display >= n {
		display = 0
	}
	return screenshot.CaptureDisplay(display)
}
