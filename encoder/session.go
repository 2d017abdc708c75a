package encoder

import (
	"sync"

	"Vidra/codec"
	"Vidra/codec/frame"
	"Vidra/gpu"
)

// How many frames may sit between submission and the encode worker.
// Beyond this the session drops the newest frame instead of blocking the
// caller.
const encodeQueueDepth = 8

type sessionState int

const (
	stateUninitialized sessionState = iota
	stateInitialized
	stateReleased
)

type workItem struct {
	buf      *frame.I420Buffer
	pts      int64
	rotation int
	forceKey bool
}

// session is one encoder lifecycle: uninitialized -> initialized ->
// released, never backwards. Frames are imported synchronously inside
// Encode; the actual codec runs on a single worker goroutine, and the
// callback is invoked from that worker, which is what makes delivery
// serialized and submission-ordered.
type session struct {
	codecName string
	backend   backendFactory
	gpuCtx    *gpu.Context

	mu       sync.Mutex
	state    sessionState
	settings codec.Settings
	callback codec.Callback
	inst     backendInstance
	work     chan workItem
	done     chan struct{}
}

func newSession(codecName string, backend backendFactory, ctx *gpu.Context) *session {
	return &session{
		codecName: codecName,
		backend:   backend,
		gpuCtx:    ctx,
	}
}

// Name implements codec.VideoEncoder.
func (s *session) Name() string { return s.codecName }

// InitEncode implements codec.VideoEncoder. It must be called exactly
// once; a second call, or a call on a released session, fails.
func (s *session) InitEncode(settings *codec.Settings, callback codec.Callback) codec.Status {
	if !settings.Valid() || callback == nil {
		return codec.StatusErrParameter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateInitialized:
		return codec.StatusErrParameter
	case stateReleased:
		return codec.StatusUninitialized
	}
	inst, err := s.backend.Open(*settings)
	if err != nil {
		logger.Warnf("%s backend rejected settings %dx%d@%dfps: %v",
			s.codecName, settings.Width, settings.Height, settings.FPS, err)
		return codec.StatusErrParameter
	}
	s.settings = *settings
	s.callback = callback
	s.inst = inst
	s.work = make(chan workItem, encodeQueueDepth)
	s.done = make(chan struct{})
	s.state = stateInitialized
	go s.encodeLoop(inst, callback, *settings)
	return codec.StatusOK
}

// Encode implements codec.VideoEncoder. The frame's pixel content is
// captured before the call returns: planar buffers are copied, texture
// buffers are read out of the GPU context. The caller is free to delete
// or reuse the source immediately afterwards.
func (s *session) Encode(f *frame.Frame, info *codec.EncodeInfo) codec.Status {
	if f == nil || f.Buffer == nil {
		return codec.StatusErrParameter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateInitialized {
		return codec.StatusUninitialized
	}

	buf, status := s.importLocked(f.Buffer)
	if status != codec.StatusOK {
		return status
	}
	item := workItem{
		buf:      buf,
		pts:      f.TimestampNs,
		rotation: f.Rotation,
		forceKey: info.WantsKeyFrame(),
	}
	select {
	case s.work <- item:
		return codec.StatusOK
	default:
		// Backpressure: the codec is behind. Dropping the newest frame
		// keeps Encode non-blocking, matching the contract.
		logger.Debugf("%s encode queue full, dropping frame pts=%d", s.codecName, item.pts)
		return codec.StatusNoOutput
	}
}

// importLocked materializes the input as a detached planar buffer with
// the session's configured dimensions.
func (s *session) importLocked(buf frame.Buffer) (*frame.I420Buffer, codec.Status) {
	if tex, ok := buf.(*frame.TextureBuffer); ok {
		if s.gpuCtx == nil {
			logger.Warnf("%s session has no GPU context, rejecting texture frame", s.codecName)
			return nil, codec.StatusErrParameter
		}
		if !tex.Context().SharesWith(s.gpuCtx) {
			logger.Warnf("%s texture %d lives outside the shared context group", s.codecName, tex.TextureID())
			return nil, codec.StatusErrParameter
		}
	}

	i420 := buf.ToI420()
	if i420 == nil {
		return nil, codec.StatusErrParameter
	}
	if i420.W != s.settings.Width || i420.H != s.settings.Height {
		if !s.settings.AutomaticResize {
			return nil, codec.StatusErrParameter
		}
		scaled := i420.CropAndScale(0, 0, i420.W, i420.H, s.settings.Width, s.settings.Height)
		out, ok := scaled.(*frame.I420Buffer)
		if !ok {
			return nil, codec.StatusErrParameter
		}
		return out, codec.StatusOK
	}
	if i420 == buf {
		// Caller-owned planar storage: detach so the caller can reuse it
		// the moment Encode returns.
		return i420.Clone(), codec.StatusOK
	}
	return i420, codec.StatusOK
}

// encodeLoop runs on the session worker. It exits when the work channel
// closes, after which no callback can fire.
func (s *session) encodeLoop(inst backendInstance, callback codec.Callback, settings codec.Settings) {
	defer close(s.done)
	for item := range s.work {
		payload, key, err := inst.Encode(item.buf, item.forceKey)
		if err != nil {
			logger.Warnf("%s encode failed pts=%d: %v", s.codecName, item.pts, err)
			continue
		}
		if len(payload) == 0 {
			continue
		}
		frameType := codec.FrameDelta
		if key {
			frameType = codec.FrameKey
		}
		callback(codec.EncodedImage{
			Buffer:        payload,
			Width:         settings.Width,
			Height:        settings.Height,
			TimestampNs:   item.pts,
			FrameType:     frameType,
			Rotation:      item.rotation,
			CompleteFrame: true,
		})
	}
}

// SetRates implements codec.VideoEncoder.
func (s *session) SetRates(bitrateKbps, fps int) codec.Status {
	if bitrateKbps <= 0 || fps <= 0 {
		return codec.StatusErrParameter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateInitialized {
		return codec.StatusUninitialized
	}
	if err := s.inst.SetRates(bitrateKbps, fps); err != nil {
		logger.Warnf("%s rate update rejected: %v", s.codecName, err)
		return codec.StatusErrParameter
	}
	s.settings.BitrateKbps = bitrateKbps
	s.settings.FPS = fps
	return codec.StatusOK
}

// Release implements codec.VideoEncoder. It drains the worker before
// tearing down the backend, so either a pending callback fires before
// Release returns or it never fires. Safe to call from any state, any
// number of times.
func (s *session) Release() codec.Status {
	s.mu.Lock()
	if s.state == stateReleased {
		s.mu.Unlock()
		return codec.StatusOK
	}
	prev := s.state
	s.state = stateReleased
	if prev == stateUninitialized {
		s.mu.Unlock()
		return codec.StatusOK
	}
	// Closing under the lock is what keeps Encode from racing a send
	// onto a closed channel: its send also happens under the lock.
	close(s.work)
	inst := s.inst
	done := s.done
	s.inst = nil
	s.callback = nil
	s.mu.Unlock()

	<-done
	if err := inst.Close(); err != nil {
		logger.Warnf("%s backend close: %v", s.codecName, err)
		return codec.StatusErrEncode
	}
	return codec.StatusOK
}

var _ codec.VideoEncoder = (*session)(nil)
