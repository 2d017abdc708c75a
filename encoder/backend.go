package encoder

import (
	"Vidra/codec"
	"Vidra/codec/frame"
)

// Capability describes one codec backend the manager can expose.
type Capability struct {
	Name           string            `json:"name"`
	Codec          string            `json:"codec"`
	Hardware       bool              `json:"hardware"`
	Experimental   bool              `json:"experimental,omitempty"`
	Description    string            `json:"description,omitempty"`
	Params         map[string]string `json:"params,omitempty"`
	Disabled       bool              `json:"disabled,omitempty"`
	DisabledReason string            `json:"disabledReason,omitempty"`
}

// backendFactory can open encode instances for one capability.
type backendFactory interface {
	Capability() Capability
	Open(settings codec.Settings) (backendInstance, error)
}

// backendInstance is a live codec. It sees only planar input; texture
// import happens before frames reach it. Implementations do not need to
// be goroutine-safe: a session calls Encode from a single worker.
type backendInstance interface {
	// Encode returns the encoded access unit and whether it is a key
	// frame. forceKey requests a key frame for this input.
	Encode(buf *frame.I420Buffer, forceKey bool) ([]byte, bool, error)
	SetRates(bitrateKbps, fps int) error
	Close() error
}
