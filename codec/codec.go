// Package codec defines the contract between frame producers and the
// hardware/software video encoder sessions that consume them.
package codec

import (
	"runtime"

	"Vidra/codec/frame"

	"github.com/shirou/gopsutil/v3/cpu"
)

// FrameType tags an encoded image as self-contained or predicted.
type FrameType int

const (
	// FrameDelta is a predicted frame that needs prior reference frames.
	FrameDelta FrameType = iota
	// FrameKey is a self-contained frame decodable on its own.
	FrameKey
)

func (t FrameType) String() string {
	if t == FrameKey {
		return "key"
	}
	return "delta"
}

// Settings is the immutable configuration a session is started with.
type Settings struct {
	Cores           int
	Width           int
	Height          int
	BitrateKbps     int
	FPS             int
	AutomaticResize bool
}

// DefaultSettings returns a conservative 640x480@30 configuration with
// the core count taken from the machine.
func DefaultSettings() Settings {
	return Settings{
		Cores:           physicalCores(),
		Width:           640,
		Height:          480,
		BitrateKbps:     300,
		FPS:             30,
		AutomaticResize: true,
	}
}

func physicalCores() int {
	if count, err := cpu.Counts(false); err == nil && count > 0 {
		return count
	}
	return runtime.NumCPU()
}

// Valid reports whether the settings describe an encodable stream.
func (s *Settings) Valid() bool {
	return s != nil && s.Width > 0 && s.Height > 0 && s.BitrateKbps > 0 && s.FPS > 0
}

// EncodeInfo carries per-call hints for one Encode invocation.
type EncodeInfo struct {
	// FrameTypes lists the requested output types; a FrameKey entry
	// forces a key frame.
	FrameTypes []FrameType
}

// WantsKeyFrame reports whether the hint requests a key frame.
func (i *EncodeInfo) WantsKeyFrame() bool {
	if i == nil {
		return false
	}
	for _, t := range i.FrameTypes {
		if t == FrameKey {
			return true
		}
	}
	return false
}

// EncodedImage is one encoded access unit delivered via the callback.
type EncodedImage struct {
	Buffer        []byte
	Width         int
	Height        int
	TimestampNs   int64
	FrameType     FrameType
	Rotation      int
	CompleteFrame bool
	QP            int
}

// Callback receives encoded images. For a given session, callbacks are
// serialized and fire in frame-submission order; none fires after
// Release has returned.
type Callback func(image EncodedImage)

// Info identifies one codec configuration a factory can instantiate.
type Info struct {
	Name     string            `json:"name"`
	Hardware bool              `json:"hardware"`
	Params   map[string]string `json:"params,omitempty"`
}

// SameCodec compares by name, ignoring parameters.
func (i Info) SameCodec(other Info) bool {
	return i.Name == other.Name
}

// VideoEncoder is one encoder session. Sessions move through
// uninitialized -> initialized -> (encoding) -> released and never back.
type VideoEncoder interface {
	// InitEncode binds the configuration and output callback. It must be
	// called exactly once, before any Encode.
	InitEncode(settings *Settings, callback Callback) Status

	// Encode submits one frame. The call does not block on the encode;
	// output arrives later through the callback. Texture-backed input is
	// imported before Encode returns, so the caller may delete the
	// texture as soon as the call comes back.
	Encode(f *frame.Frame, info *EncodeInfo) Status

	// SetRates adjusts the target bitrate and framerate mid-stream.
	SetRates(bitrateKbps, fps int) Status

	// Release tears down the session. Idempotent; once it returns, no
	// callback will fire.
	Release() Status

	// Name identifies the codec the session runs.
	Name() string
}

// Factory enumerates available codec configurations and creates
// sessions. An empty SupportedCodecs result is a valid state meaning no
// encoder is available on this machine; it is not an error.
type Factory interface {
	SupportedCodecs() []Info
	CreateEncoder(info Info) (VideoEncoder, error)
}
